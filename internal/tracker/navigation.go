package tracker

import "sync"

// Page is what the host reports about the current location.
type Page struct {
	URL      string
	Referrer string
	Title    string
	Path     string
	Search   string
	Hash     string
}

// Location reports the host's current page.
type Location interface {
	Current() Page
}

// Navigation delivers "navigation occurred" notices. Subscribe returns a
// function that removes fn.
type Navigation interface {
	Subscribe(fn func()) (unsubscribe func())
}

// Navigator is an in-process Location and Navigation: hosts call Navigate
// whenever their current page changes.
type Navigator struct {
	mu   sync.Mutex
	page Page
	next int
	subs map[int]func()
}

func NewNavigator(initial Page) *Navigator {
	return &Navigator{page: initial, subs: map[int]func(){}}
}

func (n *Navigator) Current() Page {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.page
}

func (n *Navigator) Subscribe(fn func()) func() {
	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Navigate moves to p and notifies subscribers after the move is visible.
func (n *Navigator) Navigate(p Page) {
	n.mu.Lock()
	n.page = p
	subs := make([]func(), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
