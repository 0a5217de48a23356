package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"rostersync-service/internal/domain/entity"
	"rostersync-service/internal/domain/repository"
	"rostersync-service/internal/usecase"
	"rostersync-service/pkg/logger"
	"rostersync-service/pkg/utils"
)

// RosterUploader is the slice of the syncer the upload handler needs.
type RosterUploader interface {
	UploadRoster(ctx context.Context, req *entity.UploadRequest) (*entity.UploadResult, error)
}

const dateLayout = "2006-01-02"

// UploadRoster ingests one roster snapshot for the authenticated owner.
func UploadRoster(uploader RosterUploader, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload entity.UploadPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "Invalid JSON body")
			return
		}

		req, err := entity.ParseUploadRequest(Principal(r), &payload)
		if err != nil {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "Invalid json_data")
			return
		}

		result, err := uploader.UploadRoster(r.Context(), req)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrValidation):
				WriteError(w, http.StatusBadRequest, ErrValidation, err.Error())
			case errors.Is(err, usecase.ErrSyncConflict):
				WriteError(w, http.StatusServiceUnavailable, ErrConflict, "Upload conflicted with a concurrent sync, retry later")
			default:
				WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to upload roster")
			}
			return
		}

		WriteJSON(w, http.StatusCreated, map[string]any{
			"message":          "Roster uploaded successfully",
			"period_id":        result.PeriodID,
			"version_id":       result.VersionID,
			"days_inserted":    result.DaysWritten,
			"sectors_inserted": result.SectorsWritten,
		})
	}
}

type periodJSON struct {
	ID            uint       `json:"id"`
	CrewID        string     `json:"crew_id"`
	PeriodStart   string     `json:"period_start"`
	PeriodEnd     string     `json:"period_end"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUpdatedAt time.Time  `json:"last_updated_at"`
	TotalDays     *int       `json:"total_days,omitempty"`
	LatestVersion *time.Time `json:"latest_version_at,omitempty"`
}

func toPeriodJSON(p *entity.Period) periodJSON {
	return periodJSON{
		ID:            p.ID,
		CrewID:        p.CrewID,
		PeriodStart:   p.PeriodStart.Format(dateLayout),
		PeriodEnd:     p.PeriodEnd.Format(dateLayout),
		CreatedAt:     p.CreatedAt,
		LastUpdatedAt: p.LastUpdatedAt,
	}
}

// ListPeriods returns the owner's latest period per month and crew.
func ListPeriods(repo repository.RosterRepository, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := repo.ListPeriods(r.Context(), Principal(r))
		if err != nil {
			log.Error("Failed to list periods", "error", err)
			WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to fetch periods")
			return
		}

		periods := make([]periodJSON, 0, len(summaries))
		for _, s := range summaries {
			p := toPeriodJSON(&s.Period)
			total := s.TotalDays
			p.TotalDays = &total
			p.LatestVersion = s.LatestVersionAt
			periods = append(periods, p)
		}
		WriteJSON(w, http.StatusOK, map[string]any{"periods": periods})
	}
}

type versionJSON struct {
	ID             uint       `json:"id"`
	VersionNumber  int        `json:"version_number"`
	SourceFileName string     `json:"source_file_name,omitempty"`
	SourceFileSize int64      `json:"source_file_size,omitempty"`
	ParsedAt       time.Time  `json:"parsed_at"`
	Name           string     `json:"name,omitempty"`
	FlightTime     string     `json:"flight_time,omitempty"`
	GeneratedAt    *time.Time `json:"generated_at,omitempty"`
}

// GetPeriod returns one period with its version history and changed dates.
func GetPeriod(repo repository.RosterRepository, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		periodID, ok := pathID(w, r, "period_id")
		if !ok {
			return
		}

		detail, err := repo.GetPeriodDetail(r.Context(), Principal(r), periodID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				WriteError(w, http.StatusNotFound, ErrNotFound, "Period not found")
				return
			}
			log.Error("Failed to get period detail", "periodId", periodID, "error", err)
			WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to fetch period details")
			return
		}

		versions := make([]versionJSON, 0, len(detail.Versions))
		for _, v := range detail.Versions {
			versions = append(versions, versionJSON{
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
		changes := make([]map[string]any, 0, len(detail.Changes))
		for _, c := range detail.Changes {
			changes = append(changes, map[string]any{
				"date":          c.Date.Format(dateLayout),
				"version_count": c.VersionCount,
			})
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"period":   toPeriodJSON(&detail.Period),
			"versions": versions,
			"changes":  changes,
		})
	}
}

// DeletePeriod removes a period and everything under it.
func DeletePeriod(repo repository.RosterRepository, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		periodID, ok := pathID(w, r, "period_id")
		if !ok {
			return
		}

		deleted, err := repo.DeletePeriod(r.Context(), Principal(r), periodID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				WriteError(w, http.StatusNotFound, ErrNotFound, "Period not found")
				return
			}
			log.Error("Failed to delete period", "periodId", periodID, "error", err)
			WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to delete period")
			return
		}

		log.Info("Period deleted", "ownerId", Principal(r), "periodId", periodID)
		WriteJSON(w, http.StatusOK, map[string]any{
			"message": "Period deleted successfully",
			"deleted": map[string]any{
				"crew_id":      deleted.CrewID,
				"period_start": deleted.PeriodStart.Format(dateLayout),
				"period_end":   deleted.PeriodEnd.Format(dateLayout),
			},
		})
	}
}

type dayJSON struct {
	ID              uint          `json:"id"`
	Date            string        `json:"date"`
	DayNumber       int           `json:"day_number"`
	Weekday         string        `json:"weekday,omitempty"`
	RawText         string        `json:"raw_text"`
	ParsedData      []entity.Duty `json:"parsed_data"`
	IsActiveForDate bool          `json:"is_active_for_date"`
	UpdatedAt       time.Time     `json:"updated_at"`
	VersionNumber   int           `json:"version_number"`
	SourceFileName  string        `json:"source_file_name,omitempty"`
	HasChanges      *bool         `json:"has_changes,omitempty"`
	VersionParsedAt *time.Time    `json:"version_parsed_at,omitempty"`
}

// ListDays returns the active day per date of one period, optionally
// bounded by start_date/end_date query params.
func ListDays(repo repository.RosterRepository, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("period_id") == "" {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "period_id is required")
			return
		}
		periodID64, err := strconv.ParseUint(q.Get("period_id"), 10, 32)
		if err != nil {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "Invalid period_id")
			return
		}

		var from, to *time.Time
		if s := q.Get("start_date"); s != "" {
			from = utils.ParseTime(s)
		}
		if s := q.Get("end_date"); s != "" {
			to = utils.ParseTime(s)
		}

		days, err := repo.ListActiveDays(r.Context(), Principal(r), uint(periodID64), from, to)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				WriteError(w, http.StatusNotFound, ErrNotFound, "Period not found")
				return
			}
			log.Error("Failed to list roster days", "error", err)
			WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to fetch roster days")
			return
		}

		body := make([]dayJSON, 0, len(days))
		for _, d := range days {
			hasChanges := d.HasChanges
			body = append(body, dayJSON{
				ID:              d.ID,
				Date:            d.Date.Format(dateLayout),
				DayNumber:       d.DayNumber,
				Weekday:         d.Weekday,
				RawText:         d.RawText,
				ParsedData:      d.Duties,
				IsActiveForDate: d.IsActiveForDate,
				UpdatedAt:       d.UpdatedAt,
				VersionNumber:   d.VersionNumber,
				SourceFileName:  d.SourceFileName,
				HasChanges:      &hasChanges,
			})
		}
		WriteJSON(w, http.StatusOK, map[string]any{"days": body})
	}
}

// DayHistory returns every stored revision of one date, newest first.
func DayHistory(repo repository.RosterRepository, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		periodID, ok := pathID(w, r, "period_id")
		if !ok {
			return
		}
		date := utils.ParseTime(mux.Vars(r)["date"])
		if date == nil {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "Invalid date")
			return
		}

		revisions, err := repo.ListDayHistory(r.Context(), Principal(r), periodID, *date)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				WriteError(w, http.StatusNotFound, ErrNotFound, "Period not found")
				return
			}
			log.Error("Failed to list day history", "error", err)
			WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to fetch date history")
			return
		}

		body := make([]dayJSON, 0, len(revisions))
		for _, d := range revisions {
			parsedAt := d.VersionParsedAt
			body = append(body, dayJSON{
				ID:              d.ID,
				Date:            d.Date.Format(dateLayout),
				DayNumber:       d.DayNumber,
				Weekday:         d.Weekday,
				RawText:         d.RawText,
				ParsedData:      d.Duties,
				IsActiveForDate: d.IsActiveForDate,
				UpdatedAt:       d.UpdatedAt,
				VersionNumber:   d.VersionNumber,
				SourceFileName:  d.SourceFileName,
				VersionParsedAt: &parsedAt,
			})
		}
		WriteJSON(w, http.StatusOK, map[string]any{"versions": body})
	}
}

type sectorJSON struct {
	ID             uint            `json:"id"`
	FlightNumber   string          `json:"flight_number"`
	DepIATA        string          `json:"dep_iata"`
	ArrIATA        string          `json:"arr_iata"`
	DepTime        string          `json:"dep_time,omitempty"`
	ArrTime        string          `json:"arr_time,omitempty"`
	Aircraft       string          `json:"aircraft,omitempty"`
	DepTimeDt      *time.Time      `json:"dep_time_dt,omitempty"`
	ArrTimeDt      *time.Time      `json:"arr_time_dt,omitempty"`
	TrainingKind   string          `json:"kind_training_duty"`
	CockpitCrew    json.RawMessage `json:"cockpit_crew"`
	CabinCrew      json.RawMessage `json:"cabin_crew"`
	DepTimeIsLocal bool            `json:"dep_time_is_local"`
	ArrTimeIsLocal bool            `json:"arr_time_is_local"`
}

type dutyJSON struct {
	ID               uint            `json:"id"`
	SequenceOrder    int             `json:"sequence_order"`
	DutyKind         string          `json:"duty_kind"`
	DutyType         string          `json:"duty_type,omitempty"`
	RuleID           string          `json:"rule_id"`
	CheckIn          string          `json:"check_in,omitempty"`
	CheckInStation   string          `json:"check_in_station,omitempty"`
	CheckInDate      *time.Time      `json:"check_in_date,omitempty"`
	CheckOut         string          `json:"check_out,omitempty"`
	CheckOutStation  string          `json:"check_out_station,omitempty"`
	CheckOutDate     *time.Time      `json:"check_out_date,omitempty"`
	IsInstructorDuty *bool           `json:"is_instructor_duty,omitempty"`
	LearningTitle    string          `json:"learning_title,omitempty"`
	Notes            json.RawMessage `json:"notes"`
	Sectors          []sectorJSON    `json:"sectors"`
}

// DayDuties returns the duty rows of one active day with their sectors.
func DayDuties(repo repository.RosterRepository, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dayID, ok := pathID(w, r, "day_id")
		if !ok {
			return
		}

		duties, err := repo.ListDayDuties(r.Context(), Principal(r), dayID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				WriteError(w, http.StatusNotFound, ErrNotFound, "Day not found or not active")
				return
			}
			log.Error("Failed to list day duties", "dayId", dayID, "error", err)
			WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to fetch duties")
			return
		}

		body := make([]dutyJSON, 0, len(duties))
		for _, d := range duties {
			sectors := make([]sectorJSON, 0, len(d.SectorRows))
			for _, s := range d.SectorRows {
				sectors = append(sectors, sectorJSON{
					ID:             s.ID,
					FlightNumber:   s.FlightNumber,
					DepIATA:        s.DepCode,
					ArrIATA:        s.ArrCode,
					DepTime:        s.DepTime,
					ArrTime:        s.ArrTime,
					Aircraft:       s.Aircraft,
					DepTimeDt:      s.DepTimeUTC,
					ArrTimeDt:      s.ArrTimeUTC,
					TrainingKind:   s.TrainingKind,
					CockpitCrew:    s.CockpitCrew,
					CabinCrew:      s.CabinCrew,
					DepTimeIsLocal: s.DepTimeIsLocal,
					ArrTimeIsLocal: s.ArrTimeIsLocal,
				})
			}
			body = append(body, dutyJSON{
				ID:               d.ID,
				SequenceOrder:    d.SequenceOrder,
				DutyKind:         d.DutyKind,
				DutyType:         d.DutyType,
				RuleID:           d.RuleID,
				CheckIn:          d.CheckIn,
				CheckInStation:   d.CheckInStation,
				CheckInDate:      d.CheckInDate,
				CheckOut:         d.CheckOut,
				CheckOutStation:  d.CheckOutStation,
				CheckOutDate:     d.CheckOutDate,
				IsInstructorDuty: d.IsInstructorDuty,
				LearningTitle:    d.LearningTitle,
				Notes:            d.Notes,
				Sectors:          sectors,
			})
		}
		WriteJSON(w, http.StatusOK, map[string]any{"duties": body})
	}
}

// SyncHistory returns the owner's most recent sync records.
func SyncHistory(repo repository.RosterRepository, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				limit = n
			}
		}

		entries, err := repo.ListSyncHistory(r.Context(), Principal(r), limit)
		if err != nil {
			log.Error("Failed to list sync history", "error", err)
			WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to fetch sync history")
			return
		}

		body := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			item := map[string]any{
				"id":             e.ID,
				"period_id":      e.PeriodID,
				"sync_direction": e.Direction,
				"days_synced":    e.DaysSynced,
				"sync_status":    e.Status,
				"last_sync_at":   e.LastSyncAt,
			}
			if e.PeriodStart != nil {
				item["period_start"] = e.PeriodStart.Format(dateLayout)
			}
			if e.PeriodEnd != nil {
				item["period_end"] = e.PeriodEnd.Format(dateLayout)
			}
			body = append(body, item)
		}
		WriteJSON(w, http.StatusOK, map[string]any{"sync_history": body})
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 32)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}
