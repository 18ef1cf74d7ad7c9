// Package list implements the intrusive doubly-linked list utilities used
// to hold the registry's plain lists (events_list, tracer_list) and, in
// its RCU-safe form, the state-dump handle list.
//
// Callers carry a *Node[T] in their own struct as a link field rather
// than storing values in the list itself, so a handle and its list
// membership share one allocation and one lifetime.
package list

import "sync/atomic"

// Node is one link in a doubly-linked list. The zero value is an unlinked
// node.
type Node[T any] struct {
	next, prev atomic.Pointer[Node[T]]
	Value      T
}

// List is a doubly-linked list built on atomic pointers. Mutation (PushBack,
// Remove) must still be serialized by the caller's own mutex — the registry
// mutex for events_list/tracer_list, the statedump mutex for statedump_list
// — but because links are published with release stores and followed with
// acquire loads, a concurrent Each() walk needs no lock of its own. This is
// what makes the same type serve as both the registry's plain lists and the
// state-dump subsystem's RCU-safe list: the statedump agent walks the list
// inside an RCU read section while a tracer thread may be mutating it under
// the statedump mutex at the same time.
type List[T any] struct {
	head Node[T] // sentinel; head.next/head.prev point into the ring
}

// New returns an empty list whose sentinel links to itself.
func New[T any]() *List[T] {
	l := &List[T]{}
	l.head.next.Store(&l.head)
	l.head.prev.Store(&l.head)
	return l
}

// PushBack links n at the tail of the list.
func (l *List[T]) PushBack(n *Node[T]) {
	tail := l.head.prev.Load()
	n.prev.Store(tail)
	n.next.Store(&l.head)
	tail.next.Store(n)
	l.head.prev.Store(n)
}

// Remove unlinks n from the list. n must currently be linked in l. The
// removed node's own next/prev are left pointing into the list: a
// concurrent walker standing on n can still step off it, and the node
// only becomes garbage once the caller's grace period proves no walker
// holds it.
func (l *List[T]) Remove(n *Node[T]) {
	prev := n.prev.Load()
	next := n.next.Load()
	prev.next.Store(next)
	next.prev.Store(prev)
}

// Each calls fn for every linked node in order. fn must not mutate the
// list; callers needing deletion-while-iterating should collect nodes
// first, matching the registry's own "snapshot then act" pattern.
func (l *List[T]) Each(fn func(*Node[T])) {
	for n := l.head.next.Load(); n != &l.head; n = n.next.Load() {
		fn(n)
	}
}
