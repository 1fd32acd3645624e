package domain

import (
	"testing"
	"time"
)

func TestSortByTimestamp(t *testing.T) {
	base := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)

	t.Run("OrdersAscending", func(t *testing.T) {
		txs := []Transaction{
			{ID: "c", Timestamp: base.Add(2 * time.Hour)},
			{ID: "a", Timestamp: base},
			{ID: "d", Timestamp: base.Add(3 * time.Hour)},
			{ID: "b", Timestamp: base.Add(time.Hour)},
		}

		SortByTimestamp(txs)

		want := []string{"a", "b", "c", "d"}
		for i, id := range want {
			if txs[i].ID != id {
				t.Errorf("position %d: got %q, want %q", i, txs[i].ID, id)
			}
		}
	})

	t.Run("StableForEqualTimestamps", func(t *testing.T) {
		txs := []Transaction{
			{ID: "later", Timestamp: base.Add(time.Hour)},
			{ID: "first", Timestamp: base},
			{ID: "second", Timestamp: base},
			{ID: "third", Timestamp: base},
		}

		SortByTimestamp(txs)

		want := []string{"first", "second", "third", "later"}
		for i, id := range want {
			if txs[i].ID != id {
				t.Errorf("position %d: got %q, want %q", i, txs[i].ID, id)
			}
		}
	})

	t.Run("HandlesEmptyAndSingle", func(t *testing.T) {
		SortByTimestamp(nil)
		one := []Transaction{{ID: "only", Timestamp: base}}
		SortByTimestamp(one)
		if one[0].ID != "only" {
			t.Errorf("single-element slice changed: %q", one[0].ID)
		}
	})
}
