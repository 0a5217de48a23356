package repository

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"rostersync-service/internal/domain/entity"
)

// GORM models for database mapping. Natural keys are enforced with unique
// indexes so period/version resolution can upsert on conflict instead of
// insert-then-check. Foreign keys cascade downward; sync metadata keeps its
// rows when a period is removed.

// RosterPeriod GORM model
type RosterPeriod struct {
	ID            uint           `gorm:"primaryKey"`
	UserID        string         `gorm:"column:user_id;not null;uniqueIndex:uq_roster_period,priority:1"`
	CrewID        string         `gorm:"column:crew_id;not null;uniqueIndex:uq_roster_period,priority:2"`
	PeriodStart   datatypes.Date `gorm:"not null;uniqueIndex:uq_roster_period,priority:3"`
	PeriodEnd     datatypes.Date `gorm:"not null;uniqueIndex:uq_roster_period,priority:4"`
	CreatedAt     time.Time
	LastUpdatedAt time.Time `gorm:"column:last_updated_at"`
}

// TableName overrides the default table name
func (RosterPeriod) TableName() string {
	return "roster_periods"
}

// RosterVersion GORM model
type RosterVersion struct {
	ID             uint `gorm:"primaryKey"`
	PeriodID       uint `gorm:"not null;uniqueIndex:uq_roster_version,priority:1"`
	VersionNumber  int  `gorm:"not null;uniqueIndex:uq_roster_version,priority:2"`
	SourceFileName string
	SourceFileSize int64
	JSONData       datatypes.JSON `gorm:"column:json_data;type:jsonb"`
	Name           string
	FlightTime     string
	GeneratedAt    *time.Time
	ParsedAt       time.Time
	AppVersion     string
	DeviceModel    string
	Period         RosterPeriod `gorm:"foreignKey:PeriodID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the default table name
func (RosterVersion) TableName() string {
	return "roster_versions"
}

// RosterDay GORM model
type RosterDay struct {
	ID              uint           `gorm:"primaryKey"`
	PeriodID        uint           `gorm:"not null;uniqueIndex:uq_roster_day,priority:1;index:idx_roster_day_active,priority:1"`
	SourceVersionID uint           `gorm:"not null;uniqueIndex:uq_roster_day,priority:3"`
	Date            datatypes.Date `gorm:"not null;uniqueIndex:uq_roster_day,priority:2;index:idx_roster_day_active,priority:2"`
	DayNumber       int
	Weekday         string
	RawText         string         `gorm:"type:text"`
	ParsedData      datatypes.JSON `gorm:"type:jsonb"`
	IsActiveForDate bool           `gorm:"index:idx_roster_day_active,priority:3"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Period          RosterPeriod  `gorm:"foreignKey:PeriodID;constraint:OnDelete:CASCADE"`
	SourceVersion   RosterVersion `gorm:"foreignKey:SourceVersionID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the default table name
func (RosterDay) TableName() string {
	return "roster_days"
}

// DutyAssignment GORM model
type DutyAssignment struct {
	ID               uint `gorm:"primaryKey"`
	RosterDayID      uint `gorm:"not null;index"`
	SequenceOrder    int  `gorm:"not null"`
	DutyKind         string
	DutyType         *string
	RuleID           string `gorm:"column:rule_id"`
	CheckIn          *string
	CheckInStation   *string
	CheckInDate      *time.Time
	CheckOut         *string
	CheckOutStation  *string
	CheckOutDate     *time.Time
	IsInstructorDuty *bool
	LearningTitle    *string
	Notes            datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt        time.Time
	RosterDay        RosterDay `gorm:"foreignKey:RosterDayID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the default table name
func (DutyAssignment) TableName() string {
	return "duty_assignments"
}

// Sector GORM model
type Sector struct {
	ID               uint `gorm:"primaryKey"`
	DutyAssignmentID uint `gorm:"not null;index"`
	FlightNumber     string
	DepIATA          string `gorm:"column:dep_iata"`
	ArrIATA          string `gorm:"column:arr_iata"`
	DepTime          *string
	ArrTime          *string
	Aircraft         *string
	DepTimeDt        *time.Time `gorm:"column:dep_time_dt"`
	ArrTimeDt        *time.Time `gorm:"column:arr_time_dt"`
	KindTrainingDuty string
	CockpitCrew      datatypes.JSON `gorm:"type:jsonb"`
	CabinCrew        datatypes.JSON `gorm:"type:jsonb"`
	DepTimeIsLocal   bool
	ArrTimeIsLocal   bool
	CreatedAt        time.Time
	DutyAssignment   DutyAssignment `gorm:"foreignKey:DutyAssignmentID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the default table name
func (Sector) TableName() string {
	return "sectors"
}

// RosterSyncMetadata GORM model
type RosterSyncMetadata struct {
	ID            uint   `gorm:"primaryKey"`
	UserID        string `gorm:"column:user_id;not null;index"`
	PeriodID      *uint
	SyncDirection string
	DaysSynced    int
	SyncStatus    string
	LastSyncAt    time.Time `gorm:"column:last_sync_at"`
	Period        *RosterPeriod `gorm:"foreignKey:PeriodID;constraint:OnDelete:SET NULL"`
}

// TableName overrides the default table name
func (RosterSyncMetadata) TableName() string {
	return "roster_sync_metadata"
}

// Models lists every roster table for migration.
func Models() []any {
	return []any{
		&RosterPeriod{},
		&RosterVersion{},
		&RosterDay{},
		&DutyAssignment{},
		&Sector{},
		&RosterSyncMetadata{},
	}
}

func toEntityPeriod(m *RosterPeriod) *entity.Period {
	return &entity.Period{
		ID:            m.ID,
		OwnerID:       m.UserID,
		CrewID:        m.CrewID,
		PeriodStart:   time.Time(m.PeriodStart),
		PeriodEnd:     time.Time(m.PeriodEnd),
		CreatedAt:     m.CreatedAt,
		LastUpdatedAt: m.LastUpdatedAt,
	}
}

func toEntityDay(m *RosterDay) *entity.Day {
	day := &entity.Day{
		ID:              m.ID,
		PeriodID:        m.PeriodID,
		SourceVersionID: m.SourceVersionID,
		Date:            time.Time(m.Date),
		DayNumber:       m.DayNumber,
		Weekday:         m.Weekday,
		RawText:         m.RawText,
		IsActiveForDate: m.IsActiveForDate,
		UpdatedAt:       m.UpdatedAt,
	}
	if len(m.ParsedData) > 0 {
		// Best effort: parsed_data always holds the canonical duty list.
		json.Unmarshal(m.ParsedData, &day.Duties)
	}
	return day
}

func toDutyModel(d *entity.DutyAssignment) *DutyAssignment {
	notes := d.Notes
	if len(notes) == 0 {
		notes = json.RawMessage("[]")
	}
	return &DutyAssignment{
		RosterDayID:      d.DayID,
		SequenceOrder:    d.SequenceOrder,
		DutyKind:         d.DutyKind,
		DutyType:         optString(d.DutyType),
		RuleID:           d.RuleID,
		CheckIn:          optString(d.CheckIn),
		CheckInStation:   optString(d.CheckInStation),
		CheckInDate:      d.CheckInDate,
		CheckOut:         optString(d.CheckOut),
		CheckOutStation:  optString(d.CheckOutStation),
		CheckOutDate:     d.CheckOutDate,
		IsInstructorDuty: d.IsInstructorDuty,
		LearningTitle:    optString(d.LearningTitle),
		Notes:            datatypes.JSON(notes),
	}
}

func toEntityDuty(m *DutyAssignment) *entity.DutyAssignment {
	return &entity.DutyAssignment{
		ID:            m.ID,
		DayID:         m.RosterDayID,
		SequenceOrder: m.SequenceOrder,
		Duty: entity.Duty{
			DutyKind:         m.DutyKind,
			DutyType:         strValue(m.DutyType),
			RuleID:           m.RuleID,
			CheckIn:          strValue(m.CheckIn),
			CheckInStation:   strValue(m.CheckInStation),
			CheckInDate:      m.CheckInDate,
			CheckOut:         strValue(m.CheckOut),
			CheckOutStation:  strValue(m.CheckOutStation),
			CheckOutDate:     m.CheckOutDate,
			IsInstructorDuty: m.IsInstructorDuty,
			LearningTitle:    strValue(m.LearningTitle),
			Notes:            json.RawMessage(m.Notes),
		},
	}
}

func toSectorModel(s *entity.SectorRow) *Sector {
	return &Sector{
		DutyAssignmentID: s.DutyAssignmentID,
		FlightNumber:     s.FlightNumber,
		DepIATA:          s.DepCode,
		ArrIATA:          s.ArrCode,
		DepTime:          optString(s.DepTime),
		ArrTime:          optString(s.ArrTime),
		Aircraft:         optString(s.Aircraft),
		DepTimeDt:        s.DepTimeUTC,
		ArrTimeDt:        s.ArrTimeUTC,
		KindTrainingDuty: s.TrainingKind,
		CockpitCrew:      datatypes.JSON(s.CockpitCrew),
		CabinCrew:        datatypes.JSON(s.CabinCrew),
		DepTimeIsLocal:   s.DepTimeIsLocal,
		ArrTimeIsLocal:   s.ArrTimeIsLocal,
	}
}

func toEntitySector(m *Sector) entity.SectorRow {
	return entity.SectorRow{
		ID:               m.ID,
		DutyAssignmentID: m.DutyAssignmentID,
		Sector: entity.Sector{
			FlightNumber:   m.FlightNumber,
			DepCode:        m.DepIATA,
			ArrCode:        m.ArrIATA,
			DepTime:        strValue(m.DepTime),
			ArrTime:        strValue(m.ArrTime),
			Aircraft:       strValue(m.Aircraft),
			DepTimeUTC:     m.DepTimeDt,
			ArrTimeUTC:     m.ArrTimeDt,
			TrainingKind:   m.KindTrainingDuty,
			CockpitCrew:    json.RawMessage(m.CockpitCrew),
			CabinCrew:      json.RawMessage(m.CabinCrew),
			DepTimeIsLocal: m.DepTimeIsLocal,
			ArrTimeIsLocal: m.ArrTimeIsLocal,
		},
	}
}

// canonicalDuties serializes the canonical duty list for jsonb storage.
func canonicalDuties(duties []entity.Duty) (datatypes.JSON, error) {
	if duties == nil {
		duties = []entity.Duty{}
	}
	b, err := json.Marshal(duties)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
