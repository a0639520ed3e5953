// Package waiter fans out task events to registered listeners.
package waiter

import (
	"sync"

	"github.com/evanphx/tutorkernel/log"
	"github.com/evanphx/tutorkernel/pkg/ilist"
)

type EventType uint64

// AnySource matches events from every source.
const AnySource = -1

// Notification is what a listener receives when an event fires.
type Notification struct {
	Mask   EventType
	Source int
}

type Waiter struct {
	mu sync.RWMutex

	count     int
	listeners ilist.List
}

type Listener struct {
	ilist.Entry

	Mask   EventType
	Source int
	Fire   func(Notification)
}

func (l *Listener) matches(n Notification) bool {
	if n.Mask&l.Mask == 0 {
		return false
	}

	return l.Source == AnySource || l.Source == n.Source
}

func (w *Waiter) Register(l *Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count++
	w.listeners.PushBack(l)
}

// Subscribe delivers matching notifications from source on c. Delivery never
// blocks the notifier, so a full channel drops the notification; callers
// should re-check state after each receive.
func (w *Waiter) Subscribe(mask EventType, source int, c chan Notification) *Listener {
	l := &Listener{
		Mask:   mask,
		Source: source,
		Fire: func(n Notification) {
			select {
			case c <- n:
			default:
			}
		},
	}

	w.Register(l)

	return l
}

func (w *Waiter) Unregister(l *Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count--
	w.listeners.Remove(l)
}

func (w *Waiter) Listeners() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.count
}

func (w *Waiter) Notify(mask EventType, source int) {
	n := Notification{Mask: mask, Source: source}

	w.mu.RLock()
	defer w.mu.RUnlock()

	log.L.Trace("waiter-notify", "listeners", w.count, "mask", mask, "source", source)

	for it := w.listeners.Front(); it != nil; it = it.Next() {
		if l := it.(*Listener); l.matches(n) {
			l.Fire(n)
		}
	}
}
