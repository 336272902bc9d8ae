package gossip

import "testing"

func TestDedupCacheSeenOrAdd(t *testing.T) {
	c := newDedupCache(2)
	if c.SeenOrAdd("a") {
		t.Error("first insertion of a should report unseen")
	}
	if !c.SeenOrAdd("a") {
		t.Error("second insertion of a should report seen")
	}
	if c.SeenOrAdd("b") {
		t.Error("first insertion of b should report unseen")
	}
}

func TestDedupCacheEvictsOldest(t *testing.T) {
	c := newDedupCache(2)
	c.SeenOrAdd("a")
	c.SeenOrAdd("b")
	c.SeenOrAdd("c") // evicts "a"

	if c.SeenOrAdd("a") {
		t.Error("a should have been evicted and report unseen again")
	}
	if !c.SeenOrAdd("c") {
		t.Error("c should still be present")
	}
}
