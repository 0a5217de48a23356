package entity

import (
	"time"
)

// Sync directions and statuses recorded on the audit trail.
const (
	SyncDirectionUpload = "upload"
	SyncStatusSuccess   = "success"
)

// SyncRecord is one append-only audit entry per completed upload. Rows are
// never mutated or deleted.
type SyncRecord struct {
	ID         uint
	OwnerID    string
	PeriodID   uint
	Direction  string
	DaysSynced int
	Status     string
	LastSyncAt time.Time
}

// SyncHistoryEntry is a sync record joined with its period bounds.
type SyncHistoryEntry struct {
	SyncRecord
	PeriodStart *time.Time
	PeriodEnd   *time.Time
}
