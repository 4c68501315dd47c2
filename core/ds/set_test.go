package ds

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSet_add_order(t *testing.T) {
	s := NewSet[string]()
	s.Add("b")
	s.Add("a")
	s.Add("c")
	s.Add("a") // duplicate ignored

	require.Equal(t, 3, s.Len())
	require.Equal(t, []string{"b", "a", "c"}, s.Values())
	require.True(t, s.Contains("a"))
	require.False(t, s.Contains("z"))
}

func TestSet_remove(t *testing.T) {
	s := NewSet(1, 2, 3, 4)
	s.Remove(2, 4, 99)

	require.Equal(t, []int{1, 3}, s.Values())
	require.False(t, s.Contains(2))

	s.Remove() // no-op
	require.Equal(t, 2, s.Len())
}

func TestSet_foreach_and_copy(t *testing.T) {
	s := NewSet("x", "y")

	var seen []string
	s.ForEach(func(v string) { seen = append(seen, v) })
	require.Equal(t, []string{"x", "y"}, seen)

	c := s.Copy()
	c.Add("z")
	require.Equal(t, 2, s.Len(), "copy does not alias the original")
	require.Equal(t, 3, c.Len())
}
