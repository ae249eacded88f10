package core

import (
	"testing"
	"time"
)

func entry(id string, typ EntryType, cents int64, at time.Time, seq int64) LedgerEntry {
	return LedgerEntry{
		ID:          id,
		Description: id,
		Amount:      Money{Cents: cents},
		Type:        typ,
		CreatedAt:   at,
		Seq:         seq,
	}
}

func TestDeriveEmpty(t *testing.T) {
	agg := Derive(Snapshot{})
	if agg.TotalIncome.Cents != 0 || agg.TotalExpenses.Cents != 0 || agg.Balance.Cents != 0 {
		t.Fatalf("expected zero totals, got %+v", agg)
	}
	if len(agg.IncomeItems) != 0 || len(agg.ExpenseItems) != 0 {
		t.Fatalf("expected empty partitions, got %+v", agg)
	}
}

func TestDeriveScenario(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entries := []LedgerEntry{
		entry("paycheck", Income, 100000, t0, 1),
		entry("groceries", Expense, 15050, t0.Add(time.Minute), 2),
	}
	SortEntries(entries)
	if entries[0].ID != "groceries" {
		t.Fatalf("expected the more recent entry first, got %q", entries[0].ID)
	}

	agg := Derive(Snapshot{Revision: 2, Entries: entries})
	if agg.TotalIncome.Cents != 100000 {
		t.Fatalf("total income: expected 100000, got %d", agg.TotalIncome.Cents)
	}
	if agg.TotalExpenses.Cents != 15050 {
		t.Fatalf("total expenses: expected 15050, got %d", agg.TotalExpenses.Cents)
	}
	if agg.Balance.Cents != 84950 {
		t.Fatalf("balance: expected 84950, got %d", agg.Balance.Cents)
	}
}

func TestDeriveBalanceIdentityAndPartitions(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	entries := []LedgerEntry{
		entry("a", Income, 123, t0, 1),
		entry("b", Expense, 456, t0.Add(time.Second), 2),
		entry("c", Income, 789, t0.Add(2*time.Second), 3),
		entry("d", Expense, 100000, t0.Add(3*time.Second), 4),
	}
	snap := Snapshot{Revision: 4, Entries: entries}
	agg := Derive(snap)

	if agg.TotalIncome.Sub(agg.TotalExpenses) != agg.Balance {
		t.Fatalf("balance identity broken: %d - %d != %d",
			agg.TotalIncome.Cents, agg.TotalExpenses.Cents, agg.Balance.Cents)
	}

	// Partitions are total and exclusive.
	if len(agg.IncomeItems)+len(agg.ExpenseItems) != len(entries) {
		t.Fatalf("partitions lost entries: %d + %d != %d",
			len(agg.IncomeItems), len(agg.ExpenseItems), len(entries))
	}
	for _, e := range agg.IncomeItems {
		if e.Type != Income {
			t.Fatalf("entry %q in wrong partition", e.ID)
		}
	}
	for _, e := range agg.ExpenseItems {
		if e.Type != Expense {
			t.Fatalf("entry %q in wrong partition", e.ID)
		}
	}
}

func TestDeriveIsPure(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{Revision: 1, Entries: []LedgerEntry{entry("a", Income, 100, t0, 1)}}
	first := Derive(snap)
	second := Derive(snap)
	if first.Balance != second.Balance || first.TotalIncome != second.TotalIncome {
		t.Fatalf("same snapshot produced different aggregates")
	}
}

func TestDeriverMemoizesByRevision(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var d Deriver

	snap := Snapshot{Revision: 1, Entries: []LedgerEntry{entry("a", Income, 100, t0, 1)}}
	if got := d.Derive(snap); got.TotalIncome.Cents != 100 {
		t.Fatalf("expected 100, got %d", got.TotalIncome.Cents)
	}
	// Same revision: memoized result comes back.
	if got := d.Derive(snap); got.TotalIncome.Cents != 100 {
		t.Fatalf("expected memoized 100, got %d", got.TotalIncome.Cents)
	}

	next := Snapshot{Revision: 2, Entries: []LedgerEntry{
		entry("a", Income, 100, t0, 1),
		entry("b", Income, 100, t0.Add(time.Second), 2),
	}}
	if got := d.Derive(next); got.TotalIncome.Cents != 200 {
		t.Fatalf("expected recompute to 200, got %d", got.TotalIncome.Cents)
	}
}
