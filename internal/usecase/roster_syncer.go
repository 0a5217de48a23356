package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rostersync-service/internal/domain/entity"
	"rostersync-service/internal/domain/repository"
	"rostersync-service/pkg/logger"
	"rostersync-service/pkg/metrics"
)

// ErrValidation marks an upload rejected before any transaction was opened.
var ErrValidation = errors.New("validation")

// ErrSyncConflict is surfaced when concurrent uploads kept conflicting past
// the retry budget.
var ErrSyncConflict = errors.New("sync conflict, retry later")

// RosterSyncer orchestrates roster uploads: one transaction per call,
// period and version resolved by natural key, each day compared against
// the active row for its date and materialized only on change.
type RosterSyncer struct {
	repo       repository.RosterRepository
	logger     logger.Logger
	metrics    *metrics.Metrics
	maxRetries int
	retryDelay time.Duration
}

// NewRosterSyncer creates a new roster syncer
func NewRosterSyncer(repo repository.RosterRepository, logger logger.Logger, m *metrics.Metrics, maxRetries int) *RosterSyncer {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RosterSyncer{
		repo:       repo,
		logger:     logger,
		metrics:    m,
		maxRetries: maxRetries,
		retryDelay: 50 * time.Millisecond,
	}
}

// UploadRoster runs one upload end to end. Everything commits or nothing
// does; a conflicting concurrent upload is retried a bounded number of
// times before surfacing as ErrSyncConflict.
func (s *RosterSyncer) UploadRoster(ctx context.Context, req *entity.UploadRequest) (*entity.UploadResult, error) {
	if err := validateUpload(req); err != nil {
		return nil, err
	}

	log := s.logger.With("ownerId", req.OwnerID, "crewId", req.CrewID, "version", req.VersionNumber)
	log.Info("Starting roster upload",
		"periodStart", req.PeriodStart.Format("2006-01-02"),
		"periodEnd", req.PeriodEnd.Format("2006-01-02"),
		"days", len(req.Days))
	started := time.Now()

	var result *entity.UploadResult
	var err error
	for attempt := 0; ; attempt++ {
		result, err = s.runUpload(ctx, req)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrSerialization) {
			s.metrics.ErrorsCount.WithLabelValues("upload").Inc()
			log.Error("Roster upload failed", "error", err)
			return nil, err
		}
		if attempt >= s.maxRetries {
			s.metrics.ErrorsCount.WithLabelValues("upload_conflict").Inc()
			log.Error("Roster upload kept conflicting", "attempts", attempt+1, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrSyncConflict, err)
		}
		s.metrics.ConflictRetries.Inc()
		log.Warn("Roster upload conflicted, retrying", "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}

	s.metrics.RostersUploaded.Inc()
	s.metrics.DaysWritten.Add(float64(result.DaysWritten))
	s.metrics.SectorsWritten.Add(float64(result.SectorsWritten))
	s.metrics.UploadDuration.Observe(time.Since(started).Seconds())
	log.Info("Roster uploaded",
		"periodId", result.PeriodID,
		"versionId", result.VersionID,
		"daysWritten", result.DaysWritten,
		"sectorsWritten", result.SectorsWritten)
	return result, nil
}

// runUpload is one transactional attempt.
func (s *RosterSyncer) runUpload(ctx context.Context, req *entity.UploadRequest) (*entity.UploadResult, error) {
	result := &entity.UploadResult{}
	err := s.repo.WithinSync(ctx, func(tx repository.SyncScope) error {
		periodID, err := tx.ResolvePeriod(ctx, req.OwnerID, req.CrewID, req.PeriodStart, req.PeriodEnd)
		if err != nil {
			return err
		}
		result.PeriodID = periodID

		versionID, err := tx.UpsertVersion(ctx, &entity.Version{
			PeriodID:       periodID,
			VersionNumber:  req.VersionNumber,
			SourceFileName: req.SourceFileName,
			SourceFileSize: req.SourceFileSize,
			RawPayload:     req.RawPayload,
			Name:           req.Name,
			FlightTime:     req.FlightTime,
			GeneratedAt:    req.GeneratedAt,
			AppVersion:     req.AppVersion,
			DeviceModel:    req.DeviceModel,
		})
		if err != nil {
			return err
		}
		result.VersionID = versionID

		for i := range req.Days {
			written, sectors, err := s.materializeDay(ctx, tx, periodID, versionID, &req.Days[i])
			if err != nil {
				return err
			}
			if written {
				result.DaysWritten++
				result.SectorsWritten += sectors
			}
		}

		return tx.AppendSyncRecord(ctx, &entity.SyncRecord{
			OwnerID:    req.OwnerID,
			PeriodID:   periodID,
			Direction:  entity.SyncDirectionUpload,
			DaysSynced: result.DaysWritten,
			Status:     entity.SyncStatusSuccess,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// materializeDay applies the single-active-row invariant for one date: the
// advisory lock serializes the compare-and-materialize sequence, a new row
// is written only when the content changed, and every other row for the
// date is deactivated in the same transaction.
func (s *RosterSyncer) materializeDay(ctx context.Context, tx repository.SyncScope, periodID, versionID uint, day *entity.DayPayload) (bool, int, error) {
	if err := tx.LockDay(ctx, periodID, day.Date); err != nil {
		return false, 0, err
	}

	prev, err := tx.ActiveDay(ctx, periodID, day.Date)
	if err != nil {
		return false, 0, err
	}
	if !ContentChanged(prev, day.RawText, day.Duties) {
		s.logger.Debug("Skipping day, no changes detected", "date", day.Date.Format("2006-01-02"))
		return false, 0, nil
	}

	dayID, err := tx.InsertDay(ctx, &entity.Day{
		PeriodID:        periodID,
		SourceVersionID: versionID,
		Date:            day.Date,
		DayNumber:       day.DayNumber,
		Weekday:         day.Weekday,
		RawText:         day.RawText,
		Duties:          day.Duties,
	})
	if err != nil {
		return false, 0, err
	}
	if err := tx.DeactivateOtherDays(ctx, periodID, day.Date, dayID); err != nil {
		return false, 0, err
	}

	sectors, err := s.writeDuties(ctx, tx, dayID, day.Duties)
	if err != nil {
		return false, 0, err
	}
	return true, sectors, nil
}

func validateUpload(req *entity.UploadRequest) error {
	switch {
	case req.CrewID == "":
		return fmt.Errorf("%w: missing crew_id", ErrValidation)
	case req.PeriodStart.IsZero():
		return fmt.Errorf("%w: missing period_start", ErrValidation)
	case req.PeriodEnd.IsZero():
		return fmt.Errorf("%w: missing period_end", ErrValidation)
	case len(req.Days) == 0:
		return fmt.Errorf("%w: missing roster days", ErrValidation)
	}
	return nil
}
