package entity

import (
	"time"
)

// Day is the materialized schedule for one calendar date as seen from a
// specific version. At most one row per (period, date) is active; superseded
// rows are kept for history and never deleted.
type Day struct {
	ID              uint
	PeriodID        uint
	SourceVersionID uint
	Date            time.Time
	DayNumber       int
	Weekday         string
	RawText         string
	Duties          []Duty
	IsActiveForDate bool
	UpdatedAt       time.Time
}

// DaySummary is the active-days projection joined with version metadata.
type DaySummary struct {
	Day
	VersionNumber  int
	SourceFileName string
	HasChanges     bool
}

// DayRevision is one historical row for a date, newest version first.
type DayRevision struct {
	Day
	VersionNumber   int
	SourceFileName  string
	VersionParsedAt time.Time
}
