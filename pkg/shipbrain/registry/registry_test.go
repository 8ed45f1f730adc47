package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()

	assert.False(t, r.Register("one", 1))
	assert.False(t, r.Register("two", 2))
	assert.True(t, r.Register("one", 11))

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 11, v)

	v, ok = r.Get("three")
	assert.False(t, ok)
	assert.Zero(t, v)
	assert.Equal(t, []string{"one", "two"}, r.Keys(), "replacing keeps position")
}

func TestAdd(t *testing.T) {
	r := New[string, string]()
	require.NoError(t, r.Add("a", "x"))
	err := r.Add("a", "y")
	require.ErrorIs(t, err, ErrExists)
	assert.Contains(t, err.Error(), "a")

	v, _ := r.Get("a")
	assert.Equal(t, "x", v)
}

func TestOrder(t *testing.T) {
	r := New[string, int]()
	for i, k := range []string{"c", "a", "b", "d"} {
		r.Register(k, i)
	}
	assert.True(t, r.Delete("a"))
	assert.False(t, r.Delete("a"))
	r.Register("a", 9)

	assert.Equal(t, []string{"c", "b", "d", "a"}, r.Keys())
	assert.Equal(t, []int{0, 2, 3, 9}, r.Values())
	assert.Equal(t, 4, r.Len())
	assert.True(t, r.Has("a"))
}

func TestRange(t *testing.T) {
	r := New[int, string]()
	for i := range 5 {
		r.Register(i, fmt.Sprint(i))
	}

	var seen []int
	r.Range(func(k int, _ string) bool {
		seen = append(seen, k)
		r.Delete(k)
		return k < 2
	})
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, []int{3, 4}, r.Keys())
}

func TestGetOrCreate_Concurrent(t *testing.T) {
	r := New[string, *int]()
	var calls atomic.Int32

	var wg sync.WaitGroup
	results := make([]*int, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.GetOrCreate("k", func() *int {
				calls.Add(1)
				v := 42
				return &v
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, p := range results {
		assert.Same(t, results[0], p)
	}
	assert.Equal(t, []string{"k"}, r.Keys())
}

func TestConcurrentReadWrite(t *testing.T) {
	r := New[int, int]()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r.Register(i, i*i)
		}(i)
		go func(i int) {
			defer wg.Done()
			r.Get(i)
			r.Keys()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, r.Len())
}
