package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rostersync-service/internal/domain/entity"
	"rostersync-service/internal/domain/repository"
	"rostersync-service/pkg/logger"
)

// GormRosterRepository implements the RosterRepository interface
type GormRosterRepository struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewGormRosterRepository creates a new GORM roster repository
func NewGormRosterRepository(db *gorm.DB, logger logger.Logger) repository.RosterRepository {
	return &GormRosterRepository{
		db:     db,
		logger: logger,
	}
}

// WithinSync runs fn in one transaction. Retryable store failures come back
// wrapped in repository.ErrSerialization.
func (r *GormRosterRepository) WithinSync(ctx context.Context, fn func(tx repository.SyncScope) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormSyncScope{tx: tx})
	})
	return classifyStoreError(err)
}

// classifyStoreError tags serialization failures, deadlocks and lock
// timeouts so the orchestrator can retry the whole transaction.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %v", repository.ErrSerialization, err)
		}
	}
	return err
}

// gormSyncScope is the transaction-scoped store handle for one upload.
type gormSyncScope struct {
	tx *gorm.DB
}

// ResolvePeriod finds or creates the period and bumps last_updated_at.
func (s *gormSyncScope) ResolvePeriod(ctx context.Context, ownerID, crewID string, start, end time.Time) (uint, error) {
	period := RosterPeriod{
		UserID:        ownerID,
		CrewID:        crewID,
		PeriodStart:   datatypes.Date(start),
		PeriodEnd:     datatypes.Date(end),
		LastUpdatedAt: time.Now().UTC(),
	}
	result := s.tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "crew_id"},
			{Name: "period_start"}, {Name: "period_end"},
		},
		DoUpdates: clause.Assignments(map[string]any{"last_updated_at": time.Now().UTC()}),
	}).Create(&period)
	if result.Error != nil {
		return 0, fmt.Errorf("resolve period: %w", result.Error)
	}
	return period.ID, nil
}

// UpsertVersion inserts the version or overwrites the payload of an
// existing (period, version number) row.
func (s *gormSyncScope) UpsertVersion(ctx context.Context, v *entity.Version) (uint, error) {
	version := RosterVersion{
		PeriodID:       v.PeriodID,
		VersionNumber:  v.VersionNumber,
		SourceFileName: v.SourceFileName,
		SourceFileSize: v.SourceFileSize,
		JSONData:       datatypes.JSON(v.RawPayload),
		Name:           v.Name,
		FlightTime:     v.FlightTime,
		GeneratedAt:    v.GeneratedAt,
		ParsedAt:       time.Now().UTC(),
		AppVersion:     v.AppVersion,
		DeviceModel:    v.DeviceModel,
	}
	result := s.tx.WithContext(ctx).Omit("Period").Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "period_id"}, {Name: "version_number"}},
		DoUpdates: clause.Assignments(map[string]any{
			"json_data": datatypes.JSON(v.RawPayload),
			"parsed_at": time.Now().UTC(),
		}),
	}).Create(&version)
	if result.Error != nil {
		return 0, fmt.Errorf("upsert version: %w", result.Error)
	}
	return version.ID, nil
}

// LockDay takes a transaction-scoped advisory lock keyed on the period id
// and the date's day number, serializing compare-and-materialize for one
// (period, date) against concurrent uploads. Released at commit/rollback.
func (s *gormSyncScope) LockDay(ctx context.Context, periodID uint, date time.Time) error {
	dayNumber := int32(date.Unix() / 86400)
	err := s.tx.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(?, ?)", int32(periodID), dayNumber).Error
	if err != nil {
		return fmt.Errorf("lock day: %w", err)
	}
	return nil
}

// ActiveDay returns the active day row for the date, nil when unseen.
func (s *gormSyncScope) ActiveDay(ctx context.Context, periodID uint, date time.Time) (*entity.Day, error) {
	var day RosterDay
	result := s.tx.WithContext(ctx).
		Where("period_id = ? AND date = ? AND is_active_for_date = ?", periodID, datatypes.Date(date), true).
		First(&day)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("active day: %w", result.Error)
	}
	return toEntityDay(&day), nil
}

// InsertDay writes the day row active; re-materializing the same version
// for the date updates the existing row instead of duplicating it.
func (s *gormSyncScope) InsertDay(ctx context.Context, d *entity.Day) (uint, error) {
	parsed, err := canonicalDuties(d.Duties)
	if err != nil {
		return 0, fmt.Errorf("insert day: %w", err)
	}
	day := RosterDay{
		PeriodID:        d.PeriodID,
		SourceVersionID: d.SourceVersionID,
		Date:            datatypes.Date(d.Date),
		DayNumber:       d.DayNumber,
		Weekday:         d.Weekday,
		RawText:         d.RawText,
		ParsedData:      parsed,
		IsActiveForDate: true,
	}
	result := s.tx.WithContext(ctx).Omit("Period", "SourceVersion").Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "period_id"}, {Name: "date"}, {Name: "source_version_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"raw_text":           d.RawText,
			"parsed_data":        parsed,
			"is_active_for_date": true,
			"updated_at":         time.Now().UTC(),
		}),
	}).Create(&day)
	if result.Error != nil {
		return 0, fmt.Errorf("insert day: %w", result.Error)
	}
	return day.ID, nil
}

// DeactivateOtherDays clears the active flag on every other row for the date.
func (s *gormSyncScope) DeactivateOtherDays(ctx context.Context, periodID uint, date time.Time, keepDayID uint) error {
	result := s.tx.WithContext(ctx).Model(&RosterDay{}).
		Where("period_id = ? AND date = ? AND id <> ?", periodID, datatypes.Date(date), keepDayID).
		Update("is_active_for_date", false)
	if result.Error != nil {
		return fmt.Errorf("deactivate days: %w", result.Error)
	}
	return nil
}

// InsertDuty writes one ordered duty row.
func (s *gormSyncScope) InsertDuty(ctx context.Context, d *entity.DutyAssignment) (uint, error) {
	duty := toDutyModel(d)
	if err := s.tx.WithContext(ctx).Omit("RosterDay").Create(duty).Error; err != nil {
		return 0, fmt.Errorf("insert duty: %w", err)
	}
	return duty.ID, nil
}

// InsertSector writes one validated sector row.
func (s *gormSyncScope) InsertSector(ctx context.Context, sec *entity.SectorRow) error {
	sector := toSectorModel(sec)
	if err := s.tx.WithContext(ctx).Omit("DutyAssignment").Create(sector).Error; err != nil {
		return fmt.Errorf("insert sector: %w", err)
	}
	return nil
}

// AppendSyncRecord appends the audit row for a committed upload.
func (s *gormSyncScope) AppendSyncRecord(ctx context.Context, rec *entity.SyncRecord) error {
	periodID := rec.PeriodID
	record := RosterSyncMetadata{
		UserID:        rec.OwnerID,
		PeriodID:      &periodID,
		SyncDirection: rec.Direction,
		DaysSynced:    rec.DaysSynced,
		SyncStatus:    rec.Status,
		LastSyncAt:    time.Now().UTC(),
	}
	if err := s.tx.WithContext(ctx).Omit("Period").Create(&record).Error; err != nil {
		return fmt.Errorf("append sync record: %w", err)
	}
	return nil
}

// periodSummaryRow scans the ranked-periods projection.
type periodSummaryRow struct {
	RosterPeriod
	TotalDays       int
	LatestVersionAt *time.Time
}

// ListPeriods returns the most recently updated period per calendar month
// and crew, with active-day and version aggregates.
func (r *GormRosterRepository) ListPeriods(ctx context.Context, ownerID string) ([]*entity.PeriodSummary, error) {
	var rows []periodSummaryRow
	err := r.db.WithContext(ctx).Raw(`
		WITH ranked_periods AS (
			SELECT
				rp.*,
				COUNT(DISTINCT rd.id) AS total_days,
				MAX(rv.parsed_at) AS latest_version_at,
				ROW_NUMBER() OVER (
					PARTITION BY DATE_TRUNC('month', rp.period_start::date), rp.crew_id
					ORDER BY rp.last_updated_at DESC
				) AS rn
			FROM roster_periods rp
			LEFT JOIN roster_versions rv ON rv.period_id = rp.id
			LEFT JOIN roster_days rd ON rd.period_id = rp.id AND rd.is_active_for_date = true
			WHERE rp.user_id = ?
			GROUP BY rp.id
		)
		SELECT * FROM ranked_periods WHERE rn = 1
		ORDER BY period_start DESC`, ownerID).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}

	summaries := make([]*entity.PeriodSummary, 0, len(rows))
	for i := range rows {
		summaries = append(summaries, &entity.PeriodSummary{
			Period:          *toEntityPeriod(&rows[i].RosterPeriod),
			TotalDays:       rows[i].TotalDays,
			LatestVersionAt: rows[i].LatestVersionAt,
		})
	}
	return summaries, nil
}

// GetPeriodDetail returns one owned period with its versions (newest first)
// and the dates carrying more than one source version.
func (r *GormRosterRepository) GetPeriodDetail(ctx context.Context, ownerID string, periodID uint) (*entity.PeriodDetail, error) {
	var period RosterPeriod
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", periodID, ownerID).
		First(&period)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get period: %w", result.Error)
	}

	var versions []RosterVersion
	err := r.db.WithContext(ctx).
		Select("id", "version_number", "source_file_name", "source_file_size", "parsed_at", "name", "flight_time", "generated_at").
		Where("period_id = ?", periodID).
		Order("version_number DESC").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("get period versions: %w", err)
	}

	var changes []struct {
		Date         time.Time
		VersionCount int
	}
	err = r.db.WithContext(ctx).Raw(`
		SELECT date, COUNT(DISTINCT source_version_id) AS version_count
		FROM roster_days
		WHERE period_id = ?
		GROUP BY date
		HAVING COUNT(DISTINCT source_version_id) > 1
		ORDER BY date`, periodID).Scan(&changes).Error
	if err != nil {
		return nil, fmt.Errorf("get period changes: %w", err)
	}

	detail := &entity.PeriodDetail{Period: *toEntityPeriod(&period)}
	for i := range versions {
		v := versions[i]
		detail.Versions = append(detail.Versions, entity.VersionMeta{
			ID:             v.ID,
			VersionNumber:  v.VersionNumber,
			SourceFileName: v.SourceFileName,
			SourceFileSize: v.SourceFileSize,
			ParsedAt:       v.ParsedAt,
			Name:           v.Name,
			FlightTime:     v.FlightTime,
			GeneratedAt:    v.GeneratedAt,
		})
	}
	for _, c := range changes {
		detail.Changes = append(detail.Changes, entity.DateChange{Date: c.Date, VersionCount: c.VersionCount})
	}
	return detail, nil
}

// DeletePeriod removes an owned period; descendants cascade in the schema.
func (r *GormRosterRepository) DeletePeriod(ctx context.Context, ownerID string, periodID uint) (*entity.Period, error) {
	var period RosterPeriod
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", periodID, ownerID).
		First(&period)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("delete period: %w", result.Error)
	}
	if err := r.db.WithContext(ctx).Delete(&RosterPeriod{}, period.ID).Error; err != nil {
		return nil, fmt.Errorf("delete period: %w", err)
	}
	return toEntityPeriod(&period), nil
}

// daySummaryRow scans the active-days projection.
type daySummaryRow struct {
	RosterDay
	VersionNumber  int
	SourceFileName string
	HasChanges     bool
}

// ListActiveDays returns the active day per date in a period, optionally
// bounded, joined with its source version.
func (r *GormRosterRepository) ListActiveDays(ctx context.Context, ownerID string, periodID uint, from, to *time.Time) ([]*entity.DaySummary, error) {
	if err := r.checkPeriodOwner(ctx, ownerID, periodID); err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Table("roster_days AS rd").
		Select(`rd.*, rv.version_number, rv.source_file_name,
			(SELECT COUNT(DISTINCT rd2.id) > 1
			 FROM roster_days rd2
			 WHERE rd2.period_id = rd.period_id AND rd2.date = rd.date) AS has_changes`).
		Joins("JOIN roster_versions rv ON rv.id = rd.source_version_id").
		Where("rd.period_id = ? AND rd.is_active_for_date = ?", periodID, true)
	if from != nil {
		query = query.Where("rd.date >= ?", datatypes.Date(*from))
	}
	if to != nil {
		query = query.Where("rd.date <= ?", datatypes.Date(*to))
	}

	var rows []daySummaryRow
	if err := query.Order("rd.date ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list active days: %w", err)
	}

	days := make([]*entity.DaySummary, 0, len(rows))
	for i := range rows {
		days = append(days, &entity.DaySummary{
			Day:            *toEntityDay(&rows[i].RosterDay),
			VersionNumber:  rows[i].VersionNumber,
			SourceFileName: rows[i].SourceFileName,
			HasChanges:     rows[i].HasChanges,
		})
	}
	return days, nil
}

// dayRevisionRow scans the per-date history projection.
type dayRevisionRow struct {
	RosterDay
	VersionNumber   int
	SourceFileName  string
	VersionParsedAt time.Time
}

// ListDayHistory returns every stored row for one date, newest version first.
func (r *GormRosterRepository) ListDayHistory(ctx context.Context, ownerID string, periodID uint, date time.Time) ([]*entity.DayRevision, error) {
	if err := r.checkPeriodOwner(ctx, ownerID, periodID); err != nil {
		return nil, err
	}

	var rows []dayRevisionRow
	err := r.db.WithContext(ctx).Table("roster_days AS rd").
		Select("rd.*, rv.version_number, rv.source_file_name, rv.parsed_at AS version_parsed_at").
		Joins("JOIN roster_versions rv ON rv.id = rd.source_version_id").
		Where("rd.period_id = ? AND rd.date = ?", periodID, datatypes.Date(date)).
		Order("rv.version_number DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list day history: %w", err)
	}

	revisions := make([]*entity.DayRevision, 0, len(rows))
	for i := range rows {
		revisions = append(revisions, &entity.DayRevision{
			Day:             *toEntityDay(&rows[i].RosterDay),
			VersionNumber:   rows[i].VersionNumber,
			SourceFileName:  rows[i].SourceFileName,
			VersionParsedAt: rows[i].VersionParsedAt,
		})
	}
	return revisions, nil
}

// ListDayDuties returns the duty rows of an owned active day in sequence
// order, each with its persisted sectors.
func (r *GormRosterRepository) ListDayDuties(ctx context.Context, ownerID string, dayID uint) ([]*entity.DutyDetail, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("roster_days AS rd").
		Joins("JOIN roster_periods rp ON rp.id = rd.period_id").
		Where("rd.id = ? AND rp.user_id = ? AND rd.is_active_for_date = ?", dayID, ownerID, true).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("list day duties: %w", err)
	}
	if count == 0 {
		return nil, repository.ErrNotFound
	}

	var duties []DutyAssignment
	err = r.db.WithContext(ctx).
		Where("roster_day_id = ?", dayID).
		Order("sequence_order ASC").
		Find(&duties).Error
	if err != nil {
		return nil, fmt.Errorf("list day duties: %w", err)
	}

	dutyIDs := make([]uint, 0, len(duties))
	for i := range duties {
		dutyIDs = append(dutyIDs, duties[i].ID)
	}
	sectorsByDuty := make(map[uint][]entity.SectorRow)
	if len(dutyIDs) > 0 {
		var sectors []Sector
		err = r.db.WithContext(ctx).
			Where("duty_assignment_id IN ?", dutyIDs).
			Order("id ASC").
			Find(&sectors).Error
		if err != nil {
			return nil, fmt.Errorf("list day sectors: %w", err)
		}
		for i := range sectors {
			sectorsByDuty[sectors[i].DutyAssignmentID] = append(sectorsByDuty[sectors[i].DutyAssignmentID], toEntitySector(&sectors[i]))
		}
	}

	details := make([]*entity.DutyDetail, 0, len(duties))
	for i := range duties {
		details = append(details, &entity.DutyDetail{
			DutyAssignment: *toEntityDuty(&duties[i]),
			SectorRows:     sectorsByDuty[duties[i].ID],
		})
	}
	return details, nil
}

// syncHistoryRow scans the sync-history projection.
type syncHistoryRow struct {
	RosterSyncMetadata
	PeriodStart *time.Time
	PeriodEnd   *time.Time
}

// ListSyncHistory returns the owner's most recent sync records with the
// bounds of the period each one touched.
func (r *GormRosterRepository) ListSyncHistory(ctx context.Context, ownerID string, limit int) ([]*entity.SyncHistoryEntry, error) {
	var rows []syncHistoryRow
	err := r.db.WithContext(ctx).Table("roster_sync_metadata AS rsm").
		Select("rsm.*, rp.period_start, rp.period_end").
		Joins("LEFT JOIN roster_periods rp ON rp.id = rsm.period_id").
		Where("rsm.user_id = ?", ownerID).
		Order("rsm.last_sync_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list sync history: %w", err)
	}

	entries := make([]*entity.SyncHistoryEntry, 0, len(rows))
	for i := range rows {
		m := rows[i]
		record := entity.SyncRecord{
			ID:         m.ID,
			OwnerID:    m.UserID,
			Direction:  m.SyncDirection,
			DaysSynced: m.DaysSynced,
			Status:     m.SyncStatus,
			LastSyncAt: m.LastSyncAt,
		}
		if m.RosterSyncMetadata.PeriodID != nil {
			record.PeriodID = *m.RosterSyncMetadata.PeriodID
		}
		entries = append(entries, &entity.SyncHistoryEntry{
			SyncRecord:  record,
			PeriodStart: m.PeriodStart,
			PeriodEnd:   m.PeriodEnd,
		})
	}
	return entries, nil
}

// CountStats reports totals for the periodic gauge refresh.
func (r *GormRosterRepository) CountStats(ctx context.Context) (periods, activeDays int64, err error) {
	if err = r.db.WithContext(ctx).Model(&RosterPeriod{}).Count(&periods).Error; err != nil {
		return 0, 0, fmt.Errorf("count periods: %w", err)
	}
	if err = r.db.WithContext(ctx).Model(&RosterDay{}).Where("is_active_for_date = ?", true).Count(&activeDays).Error; err != nil {
		return 0, 0, fmt.Errorf("count active days: %w", err)
	}
	return periods, activeDays, nil
}

func (r *GormRosterRepository) checkPeriodOwner(ctx context.Context, ownerID string, periodID uint) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&RosterPeriod{}).
		Where("id = ? AND user_id = ?", periodID, ownerID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check period owner: %w", err)
	}
	if count == 0 {
		return repository.ErrNotFound
	}
	return nil
}
