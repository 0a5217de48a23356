package entity

import (
	"time"
)

// Period is one bounded reporting window of roster data for a crew identity.
// Unique per (owner, crew, start, end); touched on every upload that hits it.
type Period struct {
	ID            uint
	OwnerID       string
	CrewID        string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

// PeriodSummary is the periods-list projection: the latest period per
// calendar month and crew, with aggregate day/version info.
type PeriodSummary struct {
	Period
	TotalDays       int
	LatestVersionAt *time.Time
}

// DateChange marks a date that exists under more than one source version.
type DateChange struct {
	Date         time.Time
	VersionCount int
}

// PeriodDetail is the single-period projection with its version history.
type PeriodDetail struct {
	Period   Period
	Versions []VersionMeta
	Changes  []DateChange
}
