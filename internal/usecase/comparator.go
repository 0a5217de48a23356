package usecase

import (
	"encoding/json"

	"rostersync-service/internal/domain/entity"
	"rostersync-service/pkg/utils"
)

// ContentChanged reports whether an uploaded day differs from the stored
// active row for its date. Raw text is compared as an opaque string; the
// duty structure is compared on its canonical serialization, so neither
// input key ordering nor jsonb key reordering can fake a change. No prior
// row is always a change (first sighting).
func ContentChanged(prev *entity.Day, rawText string, duties []entity.Duty) bool {
	if prev == nil {
		return true
	}
	if prev.RawText != rawText {
		return true
	}
	return !dutiesEqual(prev.Duties, duties)
}

func dutiesEqual(a, b []entity.Duty) bool {
	return string(canonicalize(a)) == string(canonicalize(b))
}

func canonicalize(duties []entity.Duty) []byte {
	if duties == nil {
		duties = []entity.Duty{}
	}
	raw, err := json.Marshal(duties)
	if err != nil {
		return nil
	}
	return utils.CanonicalJSON(raw)
}
