package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AppendAndGet(t *testing.T) {
	m := NewMemory(0)

	assert.Empty(t, m.Get("s1"), "unknown session yields empty history")

	m.Append("s1", Turn{Question: "quanti articoli oggi?", Answer: "12"})
	m.Append("s1", Turn{Question: "e ieri?", Answer: "7"})
	m.Append("s2", Turn{Question: "chi ha scritto di noi?", Answer: "mario rossi"})

	h := m.Get("s1")
	require.Len(t, h, 2)
	assert.Equal(t, "quanti articoli oggi?", h[0].Question)
	assert.Equal(t, "e ieri?", h[1].Question)
	assert.Len(t, m.Get("s2"), 1, "sessions are isolated")
}

func TestMemory_TrimsOldestBeyondLimit(t *testing.T) {
	m := NewMemory(3)
	for i := 0; i < 5; i++ {
		m.Append("s", Turn{Question: fmt.Sprintf("q%d", i)})
	}
	h := m.Get("s")
	require.Len(t, h, 3)
	assert.Equal(t, "q2", h[0].Question)
	assert.Equal(t, "q4", h[2].Question)
}

func TestMemory_Reset(t *testing.T) {
	m := NewMemory(0)
	m.Append("s", Turn{Question: "q", Answer: "a"})
	m.Reset("s")
	assert.Empty(t, m.Get("s"))
	m.Reset("never-existed") // no-op
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	m := NewMemory(0)
	m.Append("s", Turn{Question: "original"})
	h := m.Get("s")
	h[0].Question = "mutated"
	assert.Equal(t, "original", m.Get("s")[0].Question)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := NewMemory(5)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n%2)
			for j := 0; j < 50; j++ {
				m.Append(id, Turn{Question: "q"})
				m.Get(id)
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, m.Get("s0"), 5)
	assert.Len(t, m.Get("s1"), 5)
}
