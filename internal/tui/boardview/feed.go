package boardview

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/kb/internal/session"
)

// Feed carries session changes into the bubbletea loop. It keeps only the
// newest change, so a slow view skips intermediate states instead of
// blocking the session.
type Feed struct {
	mu     sync.Mutex
	latest session.Change
	signal chan struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{signal: make(chan struct{}, 1)}
}

// Publish records c if it is newer than the last change. Pass it to
// session.WithOnChange.
func (f *Feed) Publish(c session.Change) {
	f.mu.Lock()
	if c.Version > f.latest.Version {
		f.latest = c
	}
	f.mu.Unlock()
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// next waits for the next signal and delivers the newest change.
func (f *Feed) next() tea.Cmd {
	return func() tea.Msg {
		<-f.signal
		f.mu.Lock()
		defer f.mu.Unlock()
		return ChangeMsg(f.latest)
	}
}
