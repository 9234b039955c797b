package mem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func names(l *List[string]) []string {
	var out []string
	for v := range l.Values() {
		out = append(out, v)
	}
	return out
}

func node(v string, pri int8) *Node[string] {
	return &Node[string]{Pri: pri, Value: v, Name: v}
}

func TestList_EnqueueOrdersByPriority(t *testing.T) {
	var l List[string]
	l.Enqueue(node("a", 0))
	l.Enqueue(node("b", 10))
	l.Enqueue(node("c", -5))
	l.Enqueue(node("d", 0))

	require.Equal(t, []string{"b", "a", "d", "c"}, names(&l))
	require.Equal(t, 4, l.Len())
	require.Equal(t, "b", l.Front().Value)
	require.Equal(t, "c", l.Back().Value)
}

func TestList_ReenqueueGoesToEndOfBand(t *testing.T) {
	var l List[string]
	l.Enqueue(node("hi", 5))
	a := node("a", 0)
	l.Enqueue(a)
	l.Enqueue(node("b", 0))
	l.Enqueue(node("lo", -1))

	require.True(t, l.Remove(a))
	l.Enqueue(a)
	require.Equal(t, []string{"hi", "b", "a", "lo"}, names(&l))

	// Enqueue on a linked node moves it too.
	l.Enqueue(l.Front().Next())
	require.Equal(t, []string{"hi", "a", "b", "lo"}, names(&l))
}

func TestList_Remove(t *testing.T) {
	var l List[string]
	a, b, c := node("a", 0), node("b", 0), node("c", 0)
	l.AddTail(a)
	l.AddTail(b)
	l.AddTail(c)

	require.True(t, l.Remove(b))
	require.False(t, b.Linked())
	require.Nil(t, b.Next())
	require.False(t, l.Remove(b), "second remove must be rejected")
	require.Equal(t, []string{"a", "c"}, names(&l))

	require.True(t, l.Remove(a))
	require.True(t, l.Remove(c))
	require.Nil(t, l.Front())
	require.Nil(t, l.Back())
	require.Equal(t, 0, l.Len())
}

func TestList_RemoveDuringIteration(t *testing.T) {
	var l List[string]
	for _, v := range []string{"a", "b", "c", "d"} {
		l.AddTail(node(v, 0))
	}

	var seen []string
	for n := range l.All() {
		seen = append(seen, n.Value)
		if n.Value == "b" || n.Value == "c" {
			l.Remove(n)
		}
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, seen)
	require.Equal(t, []string{"a", "d"}, names(&l))
}

func TestList_RemoveFromOtherList(t *testing.T) {
	var l1, l2 List[string]
	n := node("x", 0)
	l1.AddTail(n)
	require.False(t, l2.Remove(n))
	require.Equal(t, 1, l1.Len())
}
