package usecase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"rostersync-service/internal/domain/entity"
)

func TestContentChanged_NeverSeenDate(t *testing.T) {
	assert.True(t, ContentChanged(nil, "D1 MFM-HKG", nil))
	assert.True(t, ContentChanged(nil, "", nil))
}

func TestContentChanged_Identical(t *testing.T) {
	duties := []entity.Duty{{
		DutyKind: "flight",
		RuleID:   "R1",
		CheckIn:  "06:30",
		Sectors: []entity.Sector{{
			FlightNumber: "NX101",
			DepCode:      "MFM",
			ArrCode:      "HKG",
			TrainingKind: "none",
		}},
	}}
	prev := &entity.Day{RawText: "D1 NX101 MFM-HKG", Duties: duties}

	assert.False(t, ContentChanged(prev, "D1 NX101 MFM-HKG", duties))
}

func TestContentChanged_RawTextDiffers(t *testing.T) {
	prev := &entity.Day{RawText: "D1 NX101 MFM-HKG"}

	assert.True(t, ContentChanged(prev, "D1 NX102 MFM-HKG", nil))
}

func TestContentChanged_SingleFieldDiffers(t *testing.T) {
	base := entity.Duty{DutyKind: "flight", RuleID: "R1", CheckIn: "06:30"}
	prev := &entity.Day{RawText: "D1", Duties: []entity.Duty{base}}

	changed := base
	changed.CheckIn = "07:00"

	assert.True(t, ContentChanged(prev, "D1", []entity.Duty{changed}))
}

func TestContentChanged_BlobKeyOrderIgnored(t *testing.T) {
	prev := &entity.Day{RawText: "D1", Duties: []entity.Duty{{
		DutyKind: "flight",
		Notes:    json.RawMessage(`{"a":1,"b":2}`),
	}}}

	// Same notes object with keys in the other order, as a jsonb round
	// trip could hand back.
	reordered := []entity.Duty{{
		DutyKind: "flight",
		Notes:    json.RawMessage(`{"b":2,"a":1}`),
	}}

	assert.False(t, ContentChanged(prev, "D1", reordered))
}

func TestContentChanged_DutyCountDiffers(t *testing.T) {
	prev := &entity.Day{RawText: "D1", Duties: []entity.Duty{{DutyKind: "flight"}}}

	assert.True(t, ContentChanged(prev, "D1", nil))
	assert.True(t, ContentChanged(prev, "D1", []entity.Duty{{DutyKind: "flight"}, {DutyKind: "standby"}}))
}
