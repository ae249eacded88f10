package core

import "sync"

// Aggregate holds the figures derived from one Snapshot. It has no
// lifecycle of its own; it is a recomputed view and is never mutated
// independently of the snapshot it came from.
type Aggregate struct {
	TotalIncome   Money         `json:"totalIncome"`
	TotalExpenses Money         `json:"totalExpenses"`
	Balance       Money         `json:"balance"`
	IncomeItems   []LedgerEntry `json:"incomeItems"`
	ExpenseItems  []LedgerEntry `json:"expenseItems"`
}

// Derive computes the aggregate for a snapshot. Pure: the same snapshot
// always yields the same aggregate, and every entry lands in exactly one
// of the two partitions.
func Derive(s Snapshot) Aggregate {
	agg := Aggregate{
		IncomeItems:  make([]LedgerEntry, 0, len(s.Entries)),
		ExpenseItems: make([]LedgerEntry, 0, len(s.Entries)),
	}
	for _, e := range s.Entries {
		if e.Type == Income {
			agg.TotalIncome = agg.TotalIncome.Add(e.Amount)
			agg.IncomeItems = append(agg.IncomeItems, e)
		} else {
			agg.TotalExpenses = agg.TotalExpenses.Add(e.Amount)
			agg.ExpenseItems = append(agg.ExpenseItems, e)
		}
	}
	agg.Balance = agg.TotalIncome.Sub(agg.TotalExpenses)
	return agg
}

// Deriver memoizes Derive by snapshot revision so that re-reading an
// unchanged snapshot does not recompute the totals.
type Deriver struct {
	mu  sync.Mutex
	rev int64
	ok  bool
	agg Aggregate
}

func (d *Deriver) Derive(s Snapshot) Aggregate {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ok && d.rev == s.Revision {
		return d.agg
	}
	d.agg = Derive(s)
	d.rev = s.Revision
	d.ok = true
	return d.agg
}
