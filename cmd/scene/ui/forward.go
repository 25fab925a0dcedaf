package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"promptscene/internal/document"
)

// Forwarder carries document notifications into the program's update loop.
// OnChange never blocks, so the manager may deliver from inside Update.
// Notifications come out of Next in the order they went in.
type Forwarder struct {
	mu     sync.Mutex
	queue  []document.ChangeNotification
	ready  chan struct{}
	closed bool
}

// NewForwarder returns an empty forwarder.
func NewForwarder() *Forwarder {
	return &Forwarder{ready: make(chan struct{}, 1)}
}

// OnChange implements document.Observer.
func (f *Forwarder) OnChange(n document.ChangeNotification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.queue = append(f.queue, n)
	select {
	case f.ready <- struct{}{}:
	default:
	}
}

// Next returns a command that waits for the next notification. It yields
// nil once the forwarder is closed.
func (f *Forwarder) Next() tea.Cmd {
	return func() tea.Msg {
		for {
			f.mu.Lock()
			if len(f.queue) > 0 {
				n := f.queue[0]
				f.queue = f.queue[1:]
				f.mu.Unlock()
				return n
			}
			if f.closed {
				f.mu.Unlock()
				return nil
			}
			f.mu.Unlock()
			<-f.ready
		}
	}
}

// Pending returns the number of queued notifications.
func (f *Forwarder) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Close drops queued notifications and releases a waiting Next.
func (f *Forwarder) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.queue = nil
	close(f.ready)
}
