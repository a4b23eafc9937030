package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SessionsAreIsolated(t *testing.T) {
	st := NewStore(time.Hour)
	a := st.Create()
	b := st.Create()
	require.NotEqual(t, a.ID, b.ID)

	a.AppendExchange("hi", "hello")

	assert.Len(t, a.Transcript(), 2)
	assert.Empty(t, b.Transcript())

	got, ok := st.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = st.Get("missing")
	assert.False(t, ok)
}

func TestSession_TryBeginAdmitsOne(t *testing.T) {
	s := NewStore(time.Hour).Create()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryBegin() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.True(t, s.Busy())

	s.End()
	assert.True(t, s.TryBegin())
}

func TestSession_ConcurrentAppendsKeepPairs(t *testing.T) {
	s := NewStore(time.Hour).Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AppendExchange(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		}(i)
	}
	wg.Wait()

	entries := s.Transcript()
	require.Len(t, entries, 100)
	for i := 0; i < len(entries); i += 2 {
		assert.Equal(t, "q"+entries[i+1].Message[1:], entries[i].Message)
	}
}

func TestStore_Prune(t *testing.T) {
	st := NewStore(time.Minute)
	now := time.Now()
	st.now = func() time.Time { return now }

	idle := st.Create()
	busy := st.Create()
	fresh := st.Create()
	require.True(t, busy.TryBegin())

	now = now.Add(2 * time.Minute)
	_, ok := st.Get(fresh.ID)
	require.True(t, ok)

	assert.Equal(t, 1, st.Prune())
	_, ok = st.Get(idle.ID)
	assert.False(t, ok)
	assert.Equal(t, 2, st.Len())
}

func TestSession_TryOnOutcome(t *testing.T) {
	s := NewStore(time.Hour).Create()

	res, msg := s.LastTryOn()
	assert.Nil(t, res)
	assert.Empty(t, msg)

	s.SetTryOnOutcome(nil, "An error occurred: boom")
	_, msg = s.LastTryOn()
	assert.Equal(t, "An error occurred: boom", msg)

	s.ResetTranscript()
	assert.Empty(t, s.TranscriptText())
}
