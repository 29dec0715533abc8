package domain

import "time"

// ImportKind says which table an import batch wrote to.
type ImportKind string

const (
	ImportDaily  ImportKind = "daily"
	ImportHabits ImportKind = "habits"
)

// ImportBatch records the outcome of one ingestion of raw rows.
type ImportBatch struct {
	ID        string     `json:"id"`
	Kind      ImportKind `json:"kind"`
	Source    string     `json:"source"`
	Rows      int        `json:"rows"`      // rows stored
	Skipped   int        `json:"skipped"`   // rows without a usable date
	Malformed int        `json:"malformed"` // cells normalized to zero
	CreatedAt time.Time  `json:"created_at"`
}
