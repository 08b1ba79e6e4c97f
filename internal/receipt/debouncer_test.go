package receipt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/storechat/internal/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConv struct{ key string }

func (f fakeConv) Key() string         { return f.key }
func (f fakeConv) Self() chat.Identity { return chat.Identity{ID: "u1", Name: "ana"} }

type recorder struct {
	mu      sync.Mutex
	marks   []string
	signals []string
	failN   int
}

func (r *recorder) MarkRead(_ context.Context, key, readerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failN > 0 {
		r.failN--
		return 0, errors.New("backend down")
	}
	r.marks = append(r.marks, key+"/"+readerID)
	return 1, nil
}

func (r *recorder) SendRead(_ context.Context, key, readerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, key+"/"+readerID)
	return nil
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.marks), len(r.signals)
}

func newTestDebouncer(rec *recorder) (*Debouncer, *clock.Mock) {
	mock := clock.NewMock()
	d := NewDebouncer(Config{QuietPeriod: time.Second, MinInterval: 2 * time.Second},
		fakeConv{key: "u1-s1"}, rec, rec, mock, nil)
	return d, mock
}

func marks(rec *recorder) int {
	n, _ := rec.counts()
	return n
}

func TestBurstProducesOneMark(t *testing.T) {
	rec := &recorder{}
	d, mock := newTestDebouncer(rec)

	for i := 0; i < 5; i++ {
		d.NotifyInteraction()
		mock.Add(100 * time.Millisecond)
	}
	// 100ms after the last interaction: still inside the quiet period.
	assert.Equal(t, 0, marks(rec))

	mock.Add(900 * time.Millisecond)
	require.Eventually(t, func() bool { return marks(rec) == 1 }, time.Second, time.Millisecond)

	mock.Add(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	m, s := rec.counts()
	assert.Equal(t, 1, m)
	assert.Equal(t, 1, s)
	rec.mu.Lock()
	assert.Equal(t, []string{"u1-s1/u1"}, rec.marks)
	assert.Equal(t, []string{"u1-s1/u1"}, rec.signals)
	rec.mu.Unlock()
}

func TestQuietPeriodRestartsOnInteraction(t *testing.T) {
	rec := &recorder{}
	d, mock := newTestDebouncer(rec)

	d.NotifyInteraction()
	mock.Add(900 * time.Millisecond)
	d.NotifyInteraction()
	mock.Add(900 * time.Millisecond)
	assert.Equal(t, 0, marks(rec))

	mock.Add(100 * time.Millisecond)
	require.Eventually(t, func() bool { return marks(rec) == 1 }, time.Second, time.Millisecond)
}

func TestMinIntervalBetweenFirings(t *testing.T) {
	rec := &recorder{}
	d, mock := newTestDebouncer(rec)

	d.NotifyInteraction()
	mock.Add(time.Second)
	require.Eventually(t, func() bool { return marks(rec) == 1 }, time.Second, time.Millisecond)

	d.NotifyInteraction()
	mock.Add(time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, marks(rec), "second firing must wait for the minimum interval")

	mock.Add(time.Second)
	require.Eventually(t, func() bool { return marks(rec) == 2 }, time.Second, time.Millisecond)
}

func TestBlurSuppressesFiring(t *testing.T) {
	rec := &recorder{}
	d, mock := newTestDebouncer(rec)

	d.NotifyInteraction()
	d.Blur()
	mock.Add(3 * time.Second)

	d.NotifyInteraction()
	mock.Add(3 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, marks(rec))
	assert.False(t, d.Focused())

	d.Focus()
	mock.Add(time.Second)
	require.Eventually(t, func() bool { return marks(rec) == 1 }, time.Second, time.Millisecond)
}

func TestMarkFailureRetriedOnNextInteraction(t *testing.T) {
	rec := &recorder{failN: 1}
	d, mock := newTestDebouncer(rec)

	d.NotifyInteraction()
	mock.Add(time.Second)
	time.Sleep(10 * time.Millisecond)
	m, s := rec.counts()
	assert.Equal(t, 0, m)
	assert.Equal(t, 0, s, "no read signal without a successful mark")

	d.NotifyInteraction()
	mock.Add(2 * time.Second)
	require.Eventually(t, func() bool { return marks(rec) == 1 }, time.Second, time.Millisecond)
}

func TestNoConversationNoCall(t *testing.T) {
	rec := &recorder{}
	mock := clock.NewMock()
	d := NewDebouncer(Config{}, fakeConv{}, rec, rec, mock, nil)

	d.NotifyInteraction()
	mock.Add(time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, marks(rec))
}

func TestStopCancelsPending(t *testing.T) {
	rec := &recorder{}
	d, mock := newTestDebouncer(rec)

	d.NotifyInteraction()
	d.Stop()
	d.NotifyInteraction()
	mock.Add(3 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, marks(rec))
}
