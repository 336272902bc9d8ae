package ledger

import "testing"

func TestPoolRejectsDuplicatesAndFull(t *testing.T) {
	p := NewPool(1)
	tx := NewTransaction(KindTransfer, "a", "b", 1, 0, 0, 1000, nil)
	tx.ID = tx.Hash()
	if err := p.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := p.Add(tx); CodeOf(err) != DuplicateTransaction {
		t.Errorf("expected DuplicateTransaction, got %v", err)
	}

	tx2 := NewTransaction(KindTransfer, "a", "b", 2, 0, 1, 1000, nil)
	tx2.ID = tx2.Hash()
	if err := p.Add(tx2); CodeOf(err) != PoolFull {
		t.Errorf("expected PoolFull, got %v", err)
	}
}

func TestPoolOrderedByFeeThenTimestampThenID(t *testing.T) {
	p := NewPool(0)
	low := NewTransaction(KindTransfer, "a", "b", 1, 1, 0, 2000, nil)
	low.ID = low.Hash()
	high := NewTransaction(KindTransfer, "a", "b", 1, 5, 0, 3000, nil)
	high.ID = high.Hash()
	tie1 := NewTransaction(KindTransfer, "a", "b", 1, 3, 0, 1000, nil)
	tie1.ID = tie1.Hash()
	tie2 := NewTransaction(KindTransfer, "a", "b", 1, 3, 0, 500, nil)
	tie2.ID = tie2.Hash()

	for _, tx := range []*Transaction{low, high, tie1, tie2} {
		if err := p.Add(tx); err != nil {
			t.Fatal(err)
		}
	}

	ordered := p.Ordered()
	if ordered[0].ID != high.ID {
		t.Errorf("expected highest fee first, got fee %d", ordered[0].Fee)
	}
	if ordered[1].ID != tie2.ID || ordered[2].ID != tie1.ID {
		t.Error("equal-fee transactions should order by ascending timestamp")
	}
	if ordered[3].ID != low.ID {
		t.Error("expected lowest fee last")
	}
}
