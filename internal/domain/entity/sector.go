package entity

import (
	"encoding/json"
	"time"
)

// Sector is the canonical form of one flight leg within a duty. Departure
// and arrival codes are uppercased at normalization; a sector whose codes
// do not reach three characters is dropped at write time without failing
// its duty. Crew lists stay opaque blobs.
type Sector struct {
	FlightNumber   string          `json:"flightNumber"`
	DepCode        string          `json:"depCode"`
	ArrCode        string          `json:"arrCode"`
	DepTime        string          `json:"depTime,omitempty"`
	ArrTime        string          `json:"arrTime,omitempty"`
	Aircraft       string          `json:"aircraft,omitempty"`
	DepTimeUTC     *time.Time      `json:"depTimeUtc,omitempty"`
	ArrTimeUTC     *time.Time      `json:"arrTimeUtc,omitempty"`
	TrainingKind   string          `json:"trainingKind"`
	CockpitCrew    json.RawMessage `json:"cockpitCrew"`
	CabinCrew      json.RawMessage `json:"cabinCrew"`
	DepTimeIsLocal bool            `json:"depTimeIsLocal"`
	ArrTimeIsLocal bool            `json:"arrTimeIsLocal"`
}

// Valid reports whether both location codes resolve to at least three
// characters after alias resolution.
func (s Sector) Valid() bool {
	return len(s.DepCode) >= 3 && len(s.ArrCode) >= 3
}

// SectorRow is a persisted sector.
type SectorRow struct {
	ID               uint
	DutyAssignmentID uint
	Sector
}
