package ui

// MenuHint is one shortcut on the menu line, e.g. "r" / "Retry".
type MenuHint struct {
	Key         string
	Description string
}

// Component is a page of the chat UI: the conversation list, an open
// thread or help. Name is what the crumb bar shows for it.
type Component interface {
	Name() string
	Hints() []MenuHint
}

// Attention is implemented by pages whose visibility matters to the
// session; an open thread only counts as read while it is in front.
type Attention interface {
	Shown()
	Hidden()
}
