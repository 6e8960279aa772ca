package report

import (
	"sync"
	"testing"
)

func TestCacheFlushDrains(t *testing.T) {
	c := NewCache()
	c.Push(New(Report{Type: TypeAlert, RuleID: "r1"}))
	c.Push(New(Report{Type: TypeBlock, RuleID: "r2"}))

	first := c.Flush()
	if len(first) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(first))
	}
	if first[0].RuleID != "r1" || first[1].RuleID != "r2" {
		t.Fatalf("expected FIFO order, got %q then %q", first[0].RuleID, first[1].RuleID)
	}
	if first[0].ID == "" || first[0].Timestamp.IsZero() {
		t.Fatalf("expected id and timestamp to be stamped")
	}

	second := c.Flush()
	if second == nil || len(second) != 0 {
		t.Fatalf("expected empty non-nil flush, got %#v", second)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}

func TestCacheConcurrentPushAndFlush(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	var mu sync.Mutex
	flushed := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Push(Report{Type: TypeAlert})
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			n := len(c.Flush())
			mu.Lock()
			flushed += n
			mu.Unlock()
		}
	}()
	wg.Wait()

	flushed += len(c.Flush())
	if flushed != 800 {
		t.Fatalf("expected every report exactly once, got %d", flushed)
	}
}
