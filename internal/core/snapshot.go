package core

import "sort"

// Snapshot is the full ordered materialization of a ledger collection as
// of one observed revision. It is replaced wholesale on every change
// event, never patched field by field.
type Snapshot struct {
	Revision int64         `json:"revision"`
	Entries  []LedgerEntry `json:"entries"`
}

// SortEntries orders entries newest first: CreatedAt descending, then
// store sequence descending, then ID as a final stable key.
func SortEntries(entries []LedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.Seq != b.Seq {
			return a.Seq > b.Seq
		}
		return a.ID < b.ID
	})
}
