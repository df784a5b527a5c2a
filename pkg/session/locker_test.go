package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocker_SerializesSameKey(t *testing.T) {
	l := NewKeyedLocker()

	const workers = 8
	const iterations = 50

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				unlock := l.Lock("sess-1")
				counter++
				unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*iterations, counter)
}

func TestKeyedLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewKeyedLocker()

	unlockA := l.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := l.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	default:
		// Give the goroutine a chance to run.
		<-done
	}
}

func TestKeyedLocker_ReleasesEntries(t *testing.T) {
	l := NewKeyedLocker()

	unlock := l.Lock("sess-1")
	unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.locks)
}
