package entity

import (
	"encoding/json"
	"time"
)

// Version is one complete upload snapshot within a Period, unique per
// (period, version number). Re-uploading the same number overwrites the
// payload and bumps ParsedAt; everything else is immutable.
type Version struct {
	ID             uint
	PeriodID       uint
	VersionNumber  int
	SourceFileName string
	SourceFileSize int64
	RawPayload     json.RawMessage
	Name           string
	FlightTime     string
	GeneratedAt    *time.Time
	ParsedAt       time.Time
	AppVersion     string
	DeviceModel    string
}

// VersionMeta is the version row without the raw payload, as returned by
// the period-detail and day projections.
type VersionMeta struct {
	ID             uint
	VersionNumber  int
	SourceFileName string
	SourceFileSize int64
	ParsedAt       time.Time
	Name           string
	FlightTime     string
	GeneratedAt    *time.Time
}
