package states

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore(t *testing.T) {
	s := NewStore[string]()

	_, ok := s.Get(1)
	assert.False(t, ok)

	s.Set(1, "awaiting_number")
	s.Set(2, "awaiting_flight_time")
	got, ok := s.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "awaiting_number", got)
	assert.Equal(t, 2, s.Len())

	s.Clear(1)
	s.Clear(42)
	_, ok = s.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s.Set(id, int(id))
			s.Get(id)
			if id%2 == 0 {
				s.Clear(id)
			}
		}(int64(i))
	}
	wg.Wait()
	assert.Equal(t, 25, s.Len())
}
