package entity

import (
	"encoding/json"
	"time"
)

// DutyKindUnknown is stored when an upload names neither alias of a duty's
// kind or rule id.
const DutyKindUnknown = "unknown"

// Duty is the canonical form of one scheduled work assignment inside a day
// payload. Uploads arrive with two parallel naming conventions per field;
// normalization resolves them once so nothing downstream branches on key
// spelling. Notes stay an opaque blob at this layer.
type Duty struct {
	DutyKind         string          `json:"dutyKind"`
	DutyType         string          `json:"dutyType,omitempty"`
	RuleID           string          `json:"ruleId"`
	CheckIn          string          `json:"checkIn,omitempty"`
	CheckInStation   string          `json:"checkInStation,omitempty"`
	CheckInDate      *time.Time      `json:"checkInDate,omitempty"`
	CheckOut         string          `json:"checkOut,omitempty"`
	CheckOutStation  string          `json:"checkOutStation,omitempty"`
	CheckOutDate     *time.Time      `json:"checkOutDate,omitempty"`
	IsInstructorDuty *bool           `json:"isInstructorDuty,omitempty"`
	LearningTitle    string          `json:"learningTitle,omitempty"`
	Notes            json.RawMessage `json:"notes"`
	Sectors          []Sector        `json:"sectors"`
}

// DutyAssignment is a persisted duty row, ordered within its day.
type DutyAssignment struct {
	ID            uint
	DayID         uint
	SequenceOrder int
	Duty
}

// DutyDetail is the per-day duty projection with its persisted sectors.
type DutyDetail struct {
	DutyAssignment
	SectorRows []SectorRow
}
