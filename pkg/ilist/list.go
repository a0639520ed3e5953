// Package ilist implements an intrusive doubly linked list. Elements embed an
// Entry and are linked without any extra allocation.
package ilist

// Linker is the interface objects must implement to be stored in a List.
// Embedding Entry provides it.
type Linker interface {
	Next() Element
	Prev() Element
	SetNext(Element)
	SetPrev(Element)
}

type Element interface {
	Linker
}

// List is an intrusive list. The zero value is an empty list.
type List struct {
	head Element
	tail Element
	len  int
}

func (l *List) Reset() {
	l.head = nil
	l.tail = nil
	l.len = 0
}

func (l *List) Empty() bool {
	return l.head == nil
}

func (l *List) Len() int {
	return l.len
}

func (l *List) Front() Element {
	return l.head
}

func (l *List) Back() Element {
	return l.tail
}

func (l *List) PushFront(e Element) {
	e.SetNext(l.head)
	e.SetPrev(nil)

	if l.head != nil {
		l.head.SetPrev(e)
	} else {
		l.tail = e
	}

	l.head = e
	l.len++
}

func (l *List) PushBack(e Element) {
	e.SetNext(nil)
	e.SetPrev(l.tail)

	if l.tail != nil {
		l.tail.SetNext(e)
	} else {
		l.head = e
	}

	l.tail = e
	l.len++
}

// PopFront removes and returns the first element, or nil.
func (l *List) PopFront() Element {
	e := l.head
	if e != nil {
		l.Remove(e)
	}

	return e
}

// Remove unlinks e, which must be in l.
func (l *List) Remove(e Element) {
	prev := e.Prev()
	next := e.Next()

	if prev != nil {
		prev.SetNext(next)
	} else {
		l.head = next
	}

	if next != nil {
		next.SetPrev(prev)
	} else {
		l.tail = prev
	}

	e.SetNext(nil)
	e.SetPrev(nil)
	l.len--
}

// Entry is embedded in list elements.
type Entry struct {
	next Element
	prev Element
}

func (e *Entry) Next() Element {
	return e.next
}

func (e *Entry) Prev() Element {
	return e.prev
}

func (e *Entry) SetNext(elem Element) {
	e.next = elem
}

func (e *Entry) SetPrev(elem Element) {
	e.prev = elem
}
