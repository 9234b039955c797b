package mem

import "iter"

// Node is an element of a List. The zero value is an unlinked node.
type Node[T any] struct {
	succ, pred *Node[T]
	list       *List[T]

	Type  NodeType
	Pri   int8
	Name  string
	Value T
}

// Next returns the successor of n, or nil at the end or when n is unlinked.
func (n *Node[T]) Next() *Node[T] {
	if n.list == nil {
		return nil
	}
	return n.succ
}

// Prev returns the predecessor of n, or nil at the front or when n is unlinked.
func (n *Node[T]) Prev() *Node[T] {
	if n.list == nil {
		return nil
	}
	return n.pred
}

// Linked reports whether n is currently in a list.
func (n *Node[T]) Linked() bool {
	return n.list != nil
}

// List is a doubly-linked list kept in descending priority order.
// Nodes of equal priority keep insertion order.
//
// NOT thread-safe. Owners guard their lists with their own locks.
type List[T any] struct {
	head, tail *Node[T]
	n          int
}

// Len returns the number of linked nodes.
func (l *List[T]) Len() int { return l.n }

// Front returns the first node, or nil.
func (l *List[T]) Front() *Node[T] { return l.head }

// Back returns the last node, or nil.
func (l *List[T]) Back() *Node[T] { return l.tail }

// Enqueue links n after every node whose priority is greater than or equal
// to its own.
func (l *List[T]) Enqueue(n *Node[T]) {
	l.unlink(n)
	at := l.head
	for at != nil && at.Pri >= n.Pri {
		at = at.succ
	}
	l.insertBefore(n, at)
}

// AddTail links n at the end of the list regardless of priority.
func (l *List[T]) AddTail(n *Node[T]) {
	l.insertBefore(n, nil)
}

// Remove unlinks n. It reports false if n is not in l.
func (l *List[T]) Remove(n *Node[T]) bool {
	if n.list != l {
		return false
	}
	if n.pred != nil {
		n.pred.succ = n.succ
	} else {
		l.head = n.succ
	}
	if n.succ != nil {
		n.succ.pred = n.pred
	} else {
		l.tail = n.pred
	}
	n.succ, n.pred, n.list = nil, nil, nil
	l.n--
	return true
}

// All yields every node front to back. The successor is captured before
// each node is yielded, so the loop body may remove the current node.
func (l *List[T]) All() iter.Seq[*Node[T]] {
	return func(yield func(*Node[T]) bool) {
		for n := l.head; n != nil; {
			next := n.succ
			if !yield(n) {
				return
			}
			n = next
		}
	}
}

// Values yields the Value of every node front to back.
func (l *List[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		for n := range l.All() {
			if !yield(n.Value) {
				return
			}
		}
	}
}

// unlink removes n from whatever list holds it.
func (l *List[T]) unlink(n *Node[T]) {
	if n.list != nil {
		n.list.Remove(n)
	}
}

func (l *List[T]) insertBefore(n, at *Node[T]) {
	l.unlink(n)
	n.list = l
	n.succ = at
	if at == nil {
		n.pred = l.tail
		if l.tail != nil {
			l.tail.succ = n
		} else {
			l.head = n
		}
		l.tail = n
	} else {
		n.pred = at.pred
		if at.pred != nil {
			at.pred.succ = n
		} else {
			l.head = n
		}
		at.pred = n
	}
	l.n++
}
