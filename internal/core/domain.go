package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

type (
	// EntryType partitions entries into the two sides of the ledger.
	EntryType string

	// Money is an amount in cents. Entry amounts are always positive;
	// derived totals may go negative.
	Money struct {
		Cents int64
	}

	// LedgerEntry is a single immutable income or expense record.
	// ID, CreatedAt and Seq are assigned by the store at insertion;
	// Seq breaks ordering ties between entries sharing a timestamp.
	LedgerEntry struct {
		ID          string    `json:"id"`
		Description string    `json:"description"`
		Amount      Money     `json:"amount"`
		Type        EntryType `json:"type"`
		AuthorID    string    `json:"authorId,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
		Seq         int64     `json:"-"`
	}

	// EntryDraft is a creation request before the store has assigned
	// identity and ordering fields.
	EntryDraft struct {
		Description string
		Amount      Money
		Type        EntryType
		AuthorID    string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidType      = errors.New("invalid entry type")
	ErrEmptyID          = errors.New("empty entry id")
)

// ParseEntryType maps user input onto one of the two entry types.
func ParseEntryType(s string) (EntryType, error) {
	switch EntryType(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	}
	return "", ErrInvalidType
}

func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (d EntryDraft) Validate() error {
	if len(strings.TrimSpace(d.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(d.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := d.Amount.Validate(); err != nil {
		return err
	}
	if !d.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}
