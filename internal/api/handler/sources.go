package handler

import (
	"encoding/json"
	"strconv"

	"github.com/snowballr/snowballr-api/internal/api/validation"
	"github.com/snowballr/snowballr-api/internal/source"
)

func sourceKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// sourcesFromBody extracts the optional "sources" object. ok is false when
// the key is present but not a JSON object.
func sourcesFromBody(body validation.Body) (rec source.Record, present, ok bool) {
	if !body.Has("sources") {
		return nil, false, true
	}
	raw, _ := body.Raw("sources")
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, true, false
	}
	return rec, true, true
}
