package ui

import "github.com/rivo/tview"

// Pages is a stack of named pages over tview.Pages. Pages implementing
// Attention are told when they come to the front or leave it.
type Pages struct {
	*tview.Pages
	stack      []string
	components map[string]Component
	onChange   func(stack []string)
}

// NewPages creates an empty page stack.
func NewPages() *Pages {
	return &Pages{Pages: tview.NewPages(), components: make(map[string]Component)}
}

// Add registers a page without showing it.
func (p *Pages) Add(name string, c Component, prim tview.Primitive) {
	p.components[name] = c
	p.AddPage(name, prim, true, false)
}

// SetOnChange sets a callback fired after every stack change.
func (p *Pages) SetOnChange(fn func(stack []string)) {
	p.onChange = fn
}

// Push shows name on top of the stack.
func (p *Pages) Push(name string) {
	if top := p.Current(); top != "" {
		if top == name {
			return
		}
		p.hide(top)
	}
	p.stack = append(p.stack, name)
	p.show(name)
	p.notify()
}

// Pop removes the top page and returns its name. The root page stays.
func (p *Pages) Pop() string {
	if len(p.stack) <= 1 {
		return ""
	}
	top := p.stack[len(p.stack)-1]
	p.hide(top)
	p.stack = p.stack[:len(p.stack)-1]
	p.show(p.Current())
	p.notify()
	return top
}

// Current returns the top page name.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// CurrentComponent returns the component of the top page.
func (p *Pages) CurrentComponent() Component {
	return p.components[p.Current()]
}

// Stack returns the display names of the stacked pages.
func (p *Pages) Stack() []string {
	names := make([]string, 0, len(p.stack))
	for _, n := range p.stack {
		if c, ok := p.components[n]; ok {
			names = append(names, c.Name())
			continue
		}
		names = append(names, n)
	}
	return names
}

// Reset replaces the stack with name alone.
func (p *Pages) Reset(name string) {
	for _, n := range p.stack {
		p.hide(n)
	}
	p.stack = []string{name}
	p.show(name)
	p.notify()
}

func (p *Pages) show(name string) {
	p.ShowPage(name)
	p.SendToFront(name)
	if a, ok := p.components[name].(Attention); ok {
		a.Shown()
	}
}

func (p *Pages) hide(name string) {
	p.HidePage(name)
	if a, ok := p.components[name].(Attention); ok {
		a.Hidden()
	}
}

func (p *Pages) notify() {
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}
