package testhelpers

import (
	"sync"
	"testing"
	"time"
)

// ConcurrentTestWithTimeout starts goroutines workers that all block on a shared
// gate and releases them together, so they contend for the same customer lock or
// rows as hard as possible. It fails the test if they do not finish in time.
func ConcurrentTestWithTimeout(t *testing.T, timeout time.Duration, goroutines int, fn func(workerID int)) {
	t.Helper()

	var ready, finished sync.WaitGroup
	gate := make(chan struct{})
	ready.Add(goroutines)
	finished.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer finished.Done()
			ready.Done()
			<-gate
			fn(id)
		}(i)
	}

	ready.Wait()
	close(gate)
	MustCompleteWithin(t, timeout, finished.Wait)
}
