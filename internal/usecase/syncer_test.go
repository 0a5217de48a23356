package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rostersync-service/internal/domain/entity"
	"rostersync-service/pkg/metrics"
)

// One shared registry-backed metrics value for the whole test binary;
// promauto registers on the default registry and panics on duplicates.
var testMetrics = metrics.NewMetrics("rostersync_usecase_test")

func newTestSyncer(store *fakeStore, maxRetries int) *RosterSyncer {
	s := NewRosterSyncer(store, nopLogger{}, testMetrics, maxRetries)
	s.retryDelay = time.Millisecond
	return s
}

func uploadReq(t *testing.T, version int, daysJSON string) *entity.UploadRequest {
	t.Helper()
	payload := &entity.UploadPayload{
		CrewID:        "CX123",
		PeriodStart:   "2024-01-01",
		PeriodEnd:     "2024-01-31",
		VersionNumber: version,
		JSONData:      json.RawMessage(`{"roster":` + daysJSON + `}`),
	}
	req, err := entity.ParseUploadRequest("owner-1", payload)
	require.NoError(t, err)
	return req
}

func flightDay(date, rawText, checkIn, dep, arr string) string {
	return fmt.Sprintf(`{
		"isoDate": %q,
		"rawText": %q,
		"parsed": [{
			"dutyKind": "flight",
			"ruleId": "R1",
			"checkIn": %q,
			"sectors": [{"flightNumber": "NX101", "depIATA": %q, "arrIATA": %q}]
		}]
	}`, date, rawText, checkIn, dep, arr)
}

func TestUploadRoster_FirstUpload(t *testing.T) {
	store := newFakeStore()
	syncer := newTestSyncer(store, 3)

	req := uploadReq(t, 1, "["+flightDay("2024-01-05", "D5 NX101 MFM-HKG", "06:30", "MFM", "HKG")+"]")
	result, err := syncer.UploadRoster(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, result.DaysWritten)
	assert.Equal(t, 1, result.SectorsWritten)
	assert.NotZero(t, result.PeriodID)
	assert.NotZero(t, result.VersionID)

	require.Len(t, store.state.periods, 1)
	assert.Equal(t, "owner-1", store.state.periods[0].OwnerID)
	assert.Equal(t, "CX123", store.state.periods[0].CrewID)

	require.Len(t, store.state.versions, 1)
	assert.Equal(t, 1, store.state.versions[0].VersionNumber)

	require.Len(t, store.state.days, 1)
	day := store.state.days[0]
	assert.True(t, day.IsActiveForDate)
	assert.Equal(t, result.VersionID, day.SourceVersionID)
	assert.Equal(t, "2024-01-05", day.Date.Format("2006-01-02"))

	require.Len(t, store.state.duties, 1)
	assert.Equal(t, day.ID, store.state.duties[0].DayID)
	assert.Equal(t, 1, store.state.duties[0].SequenceOrder)

	require.Len(t, store.state.sectors, 1)
	assert.Equal(t, "MFM", store.state.sectors[0].DepCode)
	assert.Equal(t, "HKG", store.state.sectors[0].ArrCode)

	require.Len(t, store.state.syncRecords, 1)
	assert.Equal(t, entity.SyncDirectionUpload, store.state.syncRecords[0].Direction)
	assert.Equal(t, entity.SyncStatusSuccess, store.state.syncRecords[0].Status)
	assert.Equal(t, 1, store.state.syncRecords[0].DaysSynced)
}

func TestUploadRoster_IdenticalReuploadWritesNothing(t *testing.T) {
	store := newFakeStore()
	syncer := newTestSyncer(store, 3)
	days := "[" + flightDay("2024-01-05", "D5 NX101 MFM-HKG", "06:30", "MFM", "HKG") + "]"

	_, err := syncer.UploadRoster(context.Background(), uploadReq(t, 1, days))
	require.NoError(t, err)

	result, err := syncer.UploadRoster(context.Background(), uploadReq(t, 1, days))
	require.NoError(t, err)

	assert.Equal(t, 0, result.DaysWritten)
	assert.Equal(t, 0, result.SectorsWritten)
	assert.Len(t, store.state.versions, 1, "same version number must not duplicate the version row")
	assert.Len(t, store.state.days, 1)
	assert.Len(t, store.state.duties, 1)

	require.Len(t, store.state.syncRecords, 2)
	assert.Equal(t, 0, store.state.syncRecords[1].DaysSynced)
}

func TestUploadRoster_ChangedDayKeepsOneActiveRow(t *testing.T) {
	store := newFakeStore()
	syncer := newTestSyncer(store, 3)
	date := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	first, err := syncer.UploadRoster(context.Background(),
		uploadReq(t, 1, "["+flightDay("2024-01-05", "D5 NX101 MFM-HKG", "06:30", "MFM", "HKG")+"]"))
	require.NoError(t, err)

	// Version 2 moves the check-in; everything else is identical.
	second, err := syncer.UploadRoster(context.Background(),
		uploadReq(t, 2, "["+flightDay("2024-01-05", "D5 NX101 MFM-HKG", "07:00", "MFM", "HKG")+"]"))
	require.NoError(t, err)
	assert.Equal(t, 1, second.DaysWritten)

	assert.Len(t, store.state.days, 2)
	active := store.activeDays(first.PeriodID, date)
	require.Len(t, active, 1, "exactly one active row per date")
	assert.Equal(t, second.VersionID, active[0].SourceVersionID)
	require.Len(t, active[0].Duties, 1)
	assert.Equal(t, "07:00", active[0].Duties[0].CheckIn)
}

func TestUploadRoster_InvalidSectorSkipped(t *testing.T) {
	store := newFakeStore()
	syncer := newTestSyncer(store, 3)

	// One duty with a two-letter departure code and one with a four-letter
	// ICAO-style code that must be truncated to three characters.
	days := `[{
		"isoDate": "2024-01-06",
		"rawText": "D6",
		"parsed": [
			{"dutyKind": "flight", "sectors": [{"flightNumber": "NX1", "depIATA": "AB", "arrIATA": "HKG"}]},
			{"dutyKind": "flight", "sectors": [{"flightNumber": "NX2", "depICAO": "VMMC", "arrICAO": "VHHH"}]}
		]
	}]`

	result, err := syncer.UploadRoster(context.Background(), uploadReq(t, 1, days))
	require.NoError(t, err)

	assert.Equal(t, 1, result.DaysWritten)
	assert.Equal(t, 1, result.SectorsWritten)

	// The duty with the dropped sector is still persisted.
	assert.Len(t, store.state.duties, 2)
	require.Len(t, store.state.sectors, 1)
	assert.Equal(t, "VMM", store.state.sectors[0].DepCode)
	assert.Equal(t, "VHH", store.state.sectors[0].ArrCode)
}

func TestUploadRoster_FailureLeavesNothingBehind(t *testing.T) {
	store := newFakeStore()
	dutyWrites := 0
	store.failOn = func(op string) error {
		if op == "duty" {
			dutyWrites++
			if dutyWrites == 3 {
				return errors.New("disk full")
			}
		}
		return nil
	}
	syncer := newTestSyncer(store, 3)

	days := "[" +
		flightDay("2024-01-05", "D5", "06:30", "MFM", "HKG") + "," +
		flightDay("2024-01-06", "D6", "06:30", "HKG", "MFM") + "," +
		flightDay("2024-01-07", "D7", "06:30", "MFM", "BKK") +
		"]"

	_, err := syncer.UploadRoster(context.Background(), uploadReq(t, 1, days))
	require.Error(t, err)

	assert.Empty(t, store.state.periods)
	assert.Empty(t, store.state.versions)
	assert.Empty(t, store.state.days)
	assert.Empty(t, store.state.duties)
	assert.Empty(t, store.state.syncRecords, "failed uploads leave no sync record")
}

func TestUploadRoster_Validation(t *testing.T) {
	store := newFakeStore()
	syncer := newTestSyncer(store, 3)
	days := "[" + flightDay("2024-01-05", "D5", "06:30", "MFM", "HKG") + "]"

	tests := []struct {
		name   string
		mutate func(req *entity.UploadRequest)
	}{
		{"missing crew id", func(req *entity.UploadRequest) { req.CrewID = "" }},
		{"missing period start", func(req *entity.UploadRequest) { req.PeriodStart = time.Time{} }},
		{"missing period end", func(req *entity.UploadRequest) { req.PeriodEnd = time.Time{} }},
		{"no days", func(req *entity.UploadRequest) { req.Days = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := uploadReq(t, 1, days)
			tt.mutate(req)

			_, err := syncer.UploadRoster(context.Background(), req)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	assert.Zero(t, store.attempts, "rejected uploads never open a transaction")
}

func TestUploadRoster_ConflictRetried(t *testing.T) {
	store := newFakeStore()
	store.conflictsLeft = 2
	syncer := newTestSyncer(store, 3)

	result, err := syncer.UploadRoster(context.Background(),
		uploadReq(t, 1, "["+flightDay("2024-01-05", "D5", "06:30", "MFM", "HKG")+"]"))
	require.NoError(t, err)

	assert.Equal(t, 3, store.attempts)
	assert.Equal(t, 1, result.DaysWritten)
	assert.Len(t, store.state.days, 1)
}

func TestUploadRoster_ConflictBudgetExhausted(t *testing.T) {
	store := newFakeStore()
	store.conflictsLeft = 10
	syncer := newTestSyncer(store, 2)

	_, err := syncer.UploadRoster(context.Background(),
		uploadReq(t, 1, "["+flightDay("2024-01-05", "D5", "06:30", "MFM", "HKG")+"]"))
	require.ErrorIs(t, err, ErrSyncConflict)

	assert.Equal(t, 3, store.attempts, "initial attempt plus two retries")
	assert.Empty(t, store.state.days)
	assert.Empty(t, store.state.syncRecords)
}

func TestUploadRoster_VersionPayloadOverwritten(t *testing.T) {
	store := newFakeStore()
	syncer := newTestSyncer(store, 3)
	days := "[" + flightDay("2024-01-05", "D5", "06:30", "MFM", "HKG") + "]"

	_, err := syncer.UploadRoster(context.Background(), uploadReq(t, 1, days))
	require.NoError(t, err)

	// Same version number with extra top-level metadata: the version row
	// is overwritten in place, not duplicated.
	req := uploadReq(t, 1, days)
	req.RawPayload = json.RawMessage(`{"roster":` + days + `,"note":"resend"}`)
	_, err = syncer.UploadRoster(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, store.state.versions, 1)
	assert.JSONEq(t, string(req.RawPayload), string(store.state.versions[0].RawPayload))
}

func TestUploadRoster_LocksEveryDate(t *testing.T) {
	store := newFakeStore()
	syncer := newTestSyncer(store, 3)

	days := "[" +
		flightDay("2024-01-05", "D5", "06:30", "MFM", "HKG") + "," +
		flightDay("2024-01-06", "D6", "06:30", "HKG", "MFM") +
		"]"
	result, err := syncer.UploadRoster(context.Background(), uploadReq(t, 1, days))
	require.NoError(t, err)

	want := []string{
		fmt.Sprintf("%d:2024-01-05", result.PeriodID),
		fmt.Sprintf("%d:2024-01-06", result.PeriodID),
	}
	assert.Equal(t, want, store.lockCalls)
}
