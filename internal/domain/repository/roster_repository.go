package repository

import (
	"context"
	"errors"
	"time"

	"rostersync-service/internal/domain/entity"
)

// ErrNotFound is returned by reads scoped to an owner when the target row
// does not exist or belongs to someone else.
var ErrNotFound = errors.New("not found")

// ErrSerialization marks store failures worth retrying as a whole
// transaction: serialization conflicts, deadlocks, lock timeouts.
// Implementations wrap the driver error so callers can errors.Is on it.
var ErrSerialization = errors.New("serialization conflict")

// SyncScope is the transaction-scoped handle an upload runs against. It is
// owned exclusively by the orchestrator for the lifetime of one call; no
// component opens its own transaction.
type SyncScope interface {
	// ResolvePeriod finds or creates the period for the natural key and
	// unconditionally bumps its last-updated timestamp.
	ResolvePeriod(ctx context.Context, ownerID, crewID string, start, end time.Time) (uint, error)

	// UpsertVersion inserts the version or, for an existing
	// (period, version number) pair, overwrites its payload and parse time.
	UpsertVersion(ctx context.Context, version *entity.Version) (uint, error)

	// LockDay serializes compare-and-materialize for one (period, date)
	// against concurrent uploads. Held until the transaction ends.
	LockDay(ctx context.Context, periodID uint, date time.Time) error

	// ActiveDay returns the currently active day row for the date, or nil
	// when the date has never been seen.
	ActiveDay(ctx context.Context, periodID uint, date time.Time) (*entity.Day, error)

	InsertDay(ctx context.Context, day *entity.Day) (uint, error)

	// DeactivateOtherDays clears the active flag on every other row
	// sharing (period, date).
	DeactivateOtherDays(ctx context.Context, periodID uint, date time.Time, keepDayID uint) error

	InsertDuty(ctx context.Context, duty *entity.DutyAssignment) (uint, error)
	InsertSector(ctx context.Context, sector *entity.SectorRow) error

	AppendSyncRecord(ctx context.Context, record *entity.SyncRecord) error
}

// RosterRepository defines the store operations for roster data. Reads are
// plain queries over the same tables the sync transaction writes.
type RosterRepository interface {
	// WithinSync runs fn inside one transaction; fn sees every write or
	// none of them.
	WithinSync(ctx context.Context, fn func(tx SyncScope) error) error

	ListPeriods(ctx context.Context, ownerID string) ([]*entity.PeriodSummary, error)
	GetPeriodDetail(ctx context.Context, ownerID string, periodID uint) (*entity.PeriodDetail, error)
	DeletePeriod(ctx context.Context, ownerID string, periodID uint) (*entity.Period, error)
	ListActiveDays(ctx context.Context, ownerID string, periodID uint, from, to *time.Time) ([]*entity.DaySummary, error)
	ListDayHistory(ctx context.Context, ownerID string, periodID uint, date time.Time) ([]*entity.DayRevision, error)
	ListDayDuties(ctx context.Context, ownerID string, dayID uint) ([]*entity.DutyDetail, error)
	ListSyncHistory(ctx context.Context, ownerID string, limit int) ([]*entity.SyncHistoryEntry, error)

	// CountStats feeds the periodic gauge refresh.
	CountStats(ctx context.Context) (periods, activeDays int64, err error)
}
