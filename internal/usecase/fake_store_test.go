package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rostersync-service/internal/domain/entity"
	"rostersync-service/internal/domain/repository"
	"rostersync-service/pkg/logger"
)

// fakeStore is an in-memory RosterRepository with transactional semantics:
// every WithinSync call works on a copy of the state and publishes it only
// when fn succeeds, so a failing upload leaves nothing behind.
type fakeStore struct {
	mu    sync.Mutex
	state fakeState

	// conflictsLeft makes the next N transactions fail as retryable.
	conflictsLeft int
	// failOn, when set, is consulted before each write with an operation
	// name ("duty", "sector", ...) and can abort the transaction.
	failOn func(op string) error

	attempts  int
	lockCalls []string
}

type fakeState struct {
	nextID      uint
	periods     []entity.Period
	versions    []entity.Version
	days        []entity.Day
	duties      []entity.DutyAssignment
	sectors     []entity.SectorRow
	syncRecords []entity.SyncRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: fakeState{nextID: 1}}
}

func (st *fakeState) clone() *fakeState {
	c := &fakeState{nextID: st.nextID}
	c.periods = append([]entity.Period(nil), st.periods...)
	c.versions = append([]entity.Version(nil), st.versions...)
	c.days = append([]entity.Day(nil), st.days...)
	c.duties = append([]entity.DutyAssignment(nil), st.duties...)
	c.sectors = append([]entity.SectorRow(nil), st.sectors...)
	c.syncRecords = append([]entity.SyncRecord(nil), st.syncRecords...)
	return c
}

func (st *fakeState) id() uint {
	id := st.nextID
	st.nextID++
	return id
}

func (f *fakeStore) WithinSync(ctx context.Context, fn func(tx repository.SyncScope) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts++
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return fmt.Errorf("%w: simulated conflict", repository.ErrSerialization)
	}

	work := f.state.clone()
	if err := fn(&fakeScope{store: f, st: work}); err != nil {
		return err
	}
	f.state = *work
	return nil
}

// activeDays returns the active day rows for one (period, date).
func (f *fakeStore) activeDays(periodID uint, date time.Time) []entity.Day {
	var out []entity.Day
	for _, d := range f.state.days {
		if d.PeriodID == periodID && d.Date.Equal(date) && d.IsActiveForDate {
			out = append(out, d)
		}
	}
	return out
}

type fakeScope struct {
	store *fakeStore
	st    *fakeState
}

func (s *fakeScope) fail(op string) error {
	if s.store.failOn != nil {
		return s.store.failOn(op)
	}
	return nil
}

func (s *fakeScope) ResolvePeriod(_ context.Context, ownerID, crewID string, start, end time.Time) (uint, error) {
	if err := s.fail("period"); err != nil {
		return 0, err
	}
	for i := range s.st.periods {
		p := &s.st.periods[i]
		if p.OwnerID == ownerID && p.CrewID == crewID && p.PeriodStart.Equal(start) && p.PeriodEnd.Equal(end) {
			p.LastUpdatedAt = time.Now()
			return p.ID, nil
		}
	}
	period := entity.Period{
		ID:            s.st.id(),
		OwnerID:       ownerID,
		CrewID:        crewID,
		PeriodStart:   start,
		PeriodEnd:     end,
		CreatedAt:     time.Now(),
		LastUpdatedAt: time.Now(),
	}
	s.st.periods = append(s.st.periods, period)
	return period.ID, nil
}

func (s *fakeScope) UpsertVersion(_ context.Context, v *entity.Version) (uint, error) {
	if err := s.fail("version"); err != nil {
		return 0, err
	}
	for i := range s.st.versions {
		existing := &s.st.versions[i]
		if existing.PeriodID == v.PeriodID && existing.VersionNumber == v.VersionNumber {
			existing.RawPayload = v.RawPayload
			existing.ParsedAt = time.Now()
			return existing.ID, nil
		}
	}
	version := *v
	version.ID = s.st.id()
	version.ParsedAt = time.Now()
	s.st.versions = append(s.st.versions, version)
	return version.ID, nil
}

func (s *fakeScope) LockDay(_ context.Context, periodID uint, date time.Time) error {
	s.store.lockCalls = append(s.store.lockCalls, fmt.Sprintf("%d:%s", periodID, date.Format("2006-01-02")))
	return nil
}

func (s *fakeScope) ActiveDay(_ context.Context, periodID uint, date time.Time) (*entity.Day, error) {
	for i := range s.st.days {
		d := s.st.days[i]
		if d.PeriodID == periodID && d.Date.Equal(date) && d.IsActiveForDate {
			return &d, nil
		}
	}
	return nil, nil
}

func (s *fakeScope) InsertDay(_ context.Context, day *entity.Day) (uint, error) {
	if err := s.fail("day"); err != nil {
		return 0, err
	}
	for i := range s.st.days {
		existing := &s.st.days[i]
		if existing.PeriodID == day.PeriodID && existing.Date.Equal(day.Date) && existing.SourceVersionID == day.SourceVersionID {
			existing.RawText = day.RawText
			existing.Duties = day.Duties
			existing.IsActiveForDate = true
			existing.UpdatedAt = time.Now()
			return existing.ID, nil
		}
	}
	row := *day
	row.ID = s.st.id()
	row.IsActiveForDate = true
	row.UpdatedAt = time.Now()
	s.st.days = append(s.st.days, row)
	return row.ID, nil
}

func (s *fakeScope) DeactivateOtherDays(_ context.Context, periodID uint, date time.Time, keepDayID uint) error {
	for i := range s.st.days {
		d := &s.st.days[i]
		if d.PeriodID == periodID && d.Date.Equal(date) && d.ID != keepDayID {
			d.IsActiveForDate = false
		}
	}
	return nil
}

func (s *fakeScope) InsertDuty(_ context.Context, duty *entity.DutyAssignment) (uint, error) {
	if err := s.fail("duty"); err != nil {
		return 0, err
	}
	row := *duty
	row.ID = s.st.id()
	s.st.duties = append(s.st.duties, row)
	return row.ID, nil
}

func (s *fakeScope) InsertSector(_ context.Context, sector *entity.SectorRow) error {
	if err := s.fail("sector"); err != nil {
		return err
	}
	row := *sector
	row.ID = s.st.id()
	s.st.sectors = append(s.st.sectors, row)
	return nil
}

func (s *fakeScope) AppendSyncRecord(_ context.Context, rec *entity.SyncRecord) error {
	if err := s.fail("sync_record"); err != nil {
		return err
	}
	row := *rec
	row.ID = s.st.id()
	row.LastSyncAt = time.Now()
	s.st.syncRecords = append(s.st.syncRecords, row)
	return nil
}

// Read projections are not exercised by the syncer tests.

func (f *fakeStore) ListPeriods(context.Context, string) ([]*entity.PeriodSummary, error) {
	return nil, nil
}

func (f *fakeStore) GetPeriodDetail(context.Context, string, uint) (*entity.PeriodDetail, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeStore) DeletePeriod(context.Context, string, uint) (*entity.Period, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeStore) ListActiveDays(context.Context, string, uint, *time.Time, *time.Time) ([]*entity.DaySummary, error) {
	return nil, nil
}

func (f *fakeStore) ListDayHistory(context.Context, string, uint, time.Time) ([]*entity.DayRevision, error) {
	return nil, nil
}

func (f *fakeStore) ListDayDuties(context.Context, string, uint) ([]*entity.DutyDetail, error) {
	return nil, nil
}

func (f *fakeStore) ListSyncHistory(context.Context, string, int) ([]*entity.SyncHistoryEntry, error) {
	return nil, nil
}

func (f *fakeStore) CountStats(context.Context) (int64, int64, error) {
	return int64(len(f.state.periods)), 0, nil
}

// nopLogger keeps test output quiet.
type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})        {}
func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Warn(string, ...interface{})         {}
func (nopLogger) Error(string, ...interface{})        {}
func (nopLogger) Fatal(string, ...interface{})        {}
func (l nopLogger) With(...interface{}) logger.Logger { return l }
