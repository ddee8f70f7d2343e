// Package marshal converts backend collections into ordered sequences.
//
// Backends hand out two native shapes: nil-terminated arrays (driver and
// format tables) and singly linked lists (scanned devices, channels). The two
// shapes differ in how "nothing" is reported and this package keeps that
// difference visible at the type level:
//
//   - a nil array means the resource was not provided: the result is absent
//   - a nil list head means the list is empty: the result is present and empty
//
// Iteration stops at the first nil array element or at the first nil list cell.
package marshal

// Seq is an ordered, finite sequence that may be absent.
type Seq[T any] struct {
	items   []T
	present bool
}

// Absent returns a sequence that denotes "not provided".
func Absent[T any]() Seq[T] {
	return Seq[T]{}
}

// Of returns a present sequence holding items.
func Of[T any](items ...T) Seq[T] {
	return Seq[T]{items: items, present: true}
}

// Present reports whether the sequence was provided at all.
func (s Seq[T]) Present() bool { return s.present }

// Len returns the number of items; zero for an absent sequence.
func (s Seq[T]) Len() int { return len(s.items) }

// Items returns a copy of the items, or nil for an absent sequence.
func (s Seq[T]) Items() []T {
	if !s.present {
		return nil
	}
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Each calls fn for every item in order until fn returns false.
func (s Seq[T]) Each(fn func(int, T) bool) {
	for i, v := range s.items {
		if !fn(i, v) {
			return
		}
	}
}

// Node is one cell of a singly linked list.
type Node[E any] struct {
	Data E
	Next *Node[E]
}

// ListOf builds a linked list from items; no items yields a nil head.
func ListOf[E any](items ...E) *Node[E] {
	var head *Node[E]
	for i := len(items) - 1; i >= 0; i-- {
		head = &Node[E]{Data: items[i], Next: head}
	}
	return head
}

// FromArray converts a nil-terminated array. The converter maps one element to
// a proxy; ok=false means the element denotes "no object". A nil array yields
// an absent sequence; iteration stops at the first nil element or at the
// first element the converter reports as "no object".
func FromArray[E any, T any](arr []*E, conv func(*E) (T, bool, error)) (Seq[T], error) {
	if arr == nil {
		return Absent[T](), nil
	}
	out := make([]T, 0, len(arr))
	for _, e := range arr {
		if e == nil {
			break
		}
		v, ok, err := conv(e)
		if err != nil {
			return Absent[T](), err
		}
		if !ok {
			break
		}
		out = append(out, v)
	}
	return Of(out...), nil
}

// FromList converts a linked list. A nil head yields an empty present
// sequence; cells whose payload is "no object" are skipped.
func FromList[E any, T any](head *Node[*E], conv func(*E) (T, bool, error)) (Seq[T], error) {
	out := []T{}
	for n := head; n != nil; n = n.Next {
		if n.Data == nil {
			continue
		}
		v, ok, err := conv(n.Data)
		if err != nil {
			return Absent[T](), err
		}
		if !ok {
			continue
		}
		out = append(out, v)
	}
	return Of(out...), nil
}
