package syncx

import (
	"sync"
	"testing"
)

func TestGuardGetSetSwap(t *testing.T) {
	g := NewGuard(42)
	if got := g.Get(); got != 42 {
		t.Errorf("Get() = %d, want 42", got)
	}

	g.Set(100)
	if got := g.Get(); got != 100 {
		t.Errorf("Get() after Set = %d, want 100", got)
	}

	if old := g.Swap(7); old != 100 {
		t.Errorf("Swap returned %d, want 100", old)
	}
	if got := g.Get(); got != 7 {
		t.Errorf("Get() after Swap = %d, want 7", got)
	}
}

func TestGuardUpdate(t *testing.T) {
	g := NewGuard([]string{"is7"})
	g.Update(func(v *[]string) {
		*v = append(*v, "fv4005")
	})
	if got := g.Get(); len(got) != 2 || got[1] != "fv4005" {
		t.Errorf("Update result = %v", got)
	}
}

func TestGuardConcurrent(t *testing.T) {
	g := NewGuard(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Update(func(v *int) { *v++ })
		}()
	}
	wg.Wait()
	if got := g.Get(); got != 50 {
		t.Errorf("concurrent updates = %d, want 50", got)
	}
}
