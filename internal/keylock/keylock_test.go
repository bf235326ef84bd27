package keylock

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	locks := New()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("+243812345678")
			defer unlock()
			current := counter
			current++
			counter = current
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter want 50 got %d", counter)
	}
	if locks.Size() != 0 {
		t.Fatalf("expected idle keys released, got %d", locks.Size())
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	locks := New()
	unlockA := locks.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}
