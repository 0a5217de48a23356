package entity

import (
	"encoding/json"
	"strings"
	"time"

	"rostersync-service/pkg/utils"
)

// UploadPayload is the wire shape of a roster upload. json_data carries the
// full client snapshot; the day list inside it is normalized before any
// component touches it.
type UploadPayload struct {
	CrewID         string          `json:"crew_id"`
	PeriodStart    string          `json:"period_start"`
	PeriodEnd      string          `json:"period_end"`
	VersionNumber  int             `json:"version_number"`
	SourceFileName string          `json:"source_file_name"`
	SourceFileSize int64           `json:"source_file_size"`
	JSONData       json.RawMessage `json:"json_data"`
	Name           string          `json:"name"`
	FlightTime     string          `json:"flight_time"`
	GeneratedAt    *time.Time      `json:"generated_at"`
	AppVersion     string          `json:"app_version"`
	DeviceModel    string          `json:"device_model"`
}

// UploadRequest is the canonical upload consumed by the sync engine.
type UploadRequest struct {
	OwnerID        string
	CrewID         string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	VersionNumber  int
	SourceFileName string
	SourceFileSize int64
	RawPayload     json.RawMessage
	Name           string
	FlightTime     string
	GeneratedAt    *time.Time
	AppVersion     string
	DeviceModel    string
	Days           []DayPayload
}

// DayPayload is one normalized calendar date from an upload.
type DayPayload struct {
	Date      time.Time
	DayNumber int
	Weekday   string
	RawText   string
	Duties    []Duty
}

// UploadResult aggregates the counters of one committed upload.
type UploadResult struct {
	PeriodID       uint
	VersionID      uint
	DaysWritten    int
	SectorsWritten int
}

// ParseUploadRequest resolves the wire payload into an UploadRequest,
// applying field aliasing once at ingestion. Presence validation of the
// required fields happens in the syncer; this only rejects dates that
// cannot be parsed at all.
func ParseUploadRequest(ownerID string, p *UploadPayload) (*UploadRequest, error) {
	req := &UploadRequest{
		OwnerID:        ownerID,
		CrewID:         p.CrewID,
		VersionNumber:  p.VersionNumber,
		SourceFileName: p.SourceFileName,
		SourceFileSize: p.SourceFileSize,
		RawPayload:     p.JSONData,
		Name:           p.Name,
		FlightTime:     p.FlightTime,
		GeneratedAt:    p.GeneratedAt,
		AppVersion:     p.AppVersion,
		DeviceModel:    p.DeviceModel,
	}

	if t := utils.ParseTime(p.PeriodStart); t != nil {
		req.PeriodStart = *t
	}
	if t := utils.ParseTime(p.PeriodEnd); t != nil {
		req.PeriodEnd = *t
	}

	if len(p.JSONData) > 0 {
		var snapshot map[string]any
		if err := json.Unmarshal(p.JSONData, &snapshot); err != nil {
			return nil, err
		}
		for _, dayMap := range utils.MapList(utils.ListField(snapshot, "roster", "days")) {
			if day, ok := NormalizeDay(dayMap); ok {
				req.Days = append(req.Days, day)
			}
		}
	}

	return req, nil
}

// NormalizeDay resolves one raw day object. Days without a parseable date
// are unusable and reported as not ok.
func NormalizeDay(m map[string]any) (DayPayload, bool) {
	t := utils.TimeField(m, "isoDate", "iso_date", "date")
	if t == nil {
		return DayPayload{}, false
	}

	day := DayPayload{
		Date:      time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
		DayNumber: utils.IntField(m, "dayNumber", "day_number"),
		Weekday:   utils.StringField(m, "weekday"),
		RawText:   utils.StringField(m, "rawText", "raw"),
	}
	for _, dutyMap := range utils.MapList(utils.ListField(m, "parsed", "duties")) {
		day.Duties = append(day.Duties, NormalizeDuty(dutyMap))
	}
	return day, true
}

// NormalizeDuty resolves one raw duty object into its canonical form.
// Kind and rule id fall back to the literal "unknown" when neither alias
// is present.
func NormalizeDuty(m map[string]any) Duty {
	duty := Duty{
		DutyKind:        utils.StringField(m, "dutyKind", "duty_kind"),
		DutyType:        utils.StringField(m, "dutyType", "duty_type"),
		RuleID:          utils.StringField(m, "ruleId", "rule_id"),
		CheckIn:         utils.StringField(m, "checkIn", "check_in"),
		CheckInStation:  utils.StringField(m, "checkInStation", "check_in_station"),
		CheckInDate:     utils.TimeField(m, "checkInDate", "check_in_date"),
		CheckOut:        utils.StringField(m, "checkOut", "check_out"),
		CheckOutStation: utils.StringField(m, "checkOutStation", "check_out_station"),
		CheckOutDate:    utils.TimeField(m, "checkOutDate", "check_out_date"),
		LearningTitle:   utils.StringField(m, "learningTitle", "learning_title"),
		Notes:           utils.RawField(m, "notes"),
	}
	if duty.DutyKind == "" {
		duty.DutyKind = DutyKindUnknown
	}
	if duty.RuleID == "" {
		duty.RuleID = DutyKindUnknown
	}
	if v, present := utils.BoolField(m, "isInstructorDuty", "is_instructor_duty"); present {
		duty.IsInstructorDuty = &v
	}
	for _, sectorMap := range utils.MapList(utils.ListField(m, "sectors")) {
		duty.Sectors = append(duty.Sectors, NormalizeSector(sectorMap))
	}
	return duty
}

// NormalizeSector resolves one raw sector object. Location codes accept
// both the IATA and ICAO alias families and are uppercased here; length
// validation stays with the writer so the dropped sector can be counted.
func NormalizeSector(m map[string]any) Sector {
	sector := Sector{
		FlightNumber: utils.StringField(m, "flightNumber", "flight_number"),
		DepCode:      strings.ToUpper(utils.StringField(m, "depIATA", "dep_iata", "depIata", "depICAO", "depIcao")),
		ArrCode:      strings.ToUpper(utils.StringField(m, "arrIATA", "arr_iata", "arrIata", "arrICAO", "arrIcao")),
		DepTime:      utils.StringField(m, "depTime", "dep_time"),
		ArrTime:      utils.StringField(m, "arrTime", "arr_time"),
		Aircraft:     utils.StringField(m, "aircraft"),
		DepTimeUTC:   utils.TimeField(m, "depTimeDt", "dep_time_dt"),
		ArrTimeUTC:   utils.TimeField(m, "arrTimeDt", "arr_time_dt"),
		TrainingKind: utils.StringField(m, "kindTrainingDuty", "kind_training_duty"),
		CockpitCrew:  utils.RawField(m, "cockpitCrew", "cockpit_crew"),
		CabinCrew:    utils.RawField(m, "cabinCrew", "cabin_crew"),
	}
	if sector.TrainingKind == "" {
		sector.TrainingKind = "none"
	}
	sector.DepTimeIsLocal, _ = utils.BoolField(m, "depTimeIsLocal", "dep_time_is_local")
	sector.ArrTimeIsLocal, _ = utils.BoolField(m, "arrTimeIsLocal", "arr_time_is_local")
	return sector
}
