// Package sentryevent implements the Event Decoder (component C2): parsing
// a JSON event payload into models.RawEvent, tolerating unknown fields and
// coercing ambiguous timestamp representations.
package sentryevent

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sentrel/sentrel/internal/models"
)

// knownTopLevelFields lists the RawEvent keys recognized by json.Unmarshal
// so Decode can build the catch-all bucket of anything left over.
var knownTopLevelFields = map[string]struct{}{
	"event_id": {}, "timestamp": {}, "platform": {}, "level": {}, "logger": {},
	"transaction": {}, "server_name": {}, "release": {}, "dist": {}, "environment": {},
	"message": {}, "logentry": {}, "exception": {}, "user": {}, "request": {},
	"contexts": {}, "tags": {}, "extra": {}, "fingerprint": {}, "breadcrumbs": {},
	"sdk": {}, "modules": {},
}

// Decode parses a JSON event payload into a RawEvent. Empty or unparseable
// input yields an empty RawEvent with level=error rather than an error --
// per the Event Decoder's contract, decode never fails fatally.
func Decode(data []byte) models.RawEvent {
	var event models.RawEvent
	if len(data) == 0 {
		event.Level = "error"
		return event
	}

	if err := json.Unmarshal(data, &event); err != nil {
		event = models.RawEvent{Level: "error"}
		return event
	}

	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err == nil {
		catchall := make(map[string]interface{})
		for k, v := range generic {
			if _, known := knownTopLevelFields[k]; !known {
				catchall[k] = v
			}
		}
		if len(catchall) > 0 {
			event.Catchall = catchall
		}
	}

	if event.Level == "" {
		event.Level = "error"
	}

	return event
}

// NormalizeTimestamp coerces RawEvent.Timestamp (per I2) to a UTC time.
// Numbers greater than 1e12 are treated as epoch milliseconds, otherwise as
// epoch seconds. Strings are parsed as ISO-8601, with a trailing "Z" treated
// as "+00:00". Anything else falls back to the current wall-clock time.
func NormalizeTimestamp(ts interface{}) time.Time {
	switch v := ts.(type) {
	case nil:
		return time.Now().UTC()
	case float64:
		return fromEpoch(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Now().UTC()
		}
		return fromEpoch(f)
	case string:
		return fromISOString(v)
	default:
		return time.Now().UTC()
	}
}

func fromEpoch(v float64) time.Time {
	if v > 1e12 {
		v = v / 1000
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

func fromISOString(s string) time.Time {
	normalized := strings.Replace(s, "Z", "+00:00", 1)
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999-07:00",
		"2006-01-02T15:04:05-07:00",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t.UTC()
		}
	}
	// Bare numeric string (some SDKs send timestamp as a quoted number).
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f)
	}
	return time.Now().UTC()
}

// EnsureEventID returns the event's id, falling back to envelopeHeaderID and
// finally to a freshly generated v4 UUID in hex-no-dashes form (I1).
func EnsureEventID(eventID, envelopeHeaderID string) string {
	if eventID != "" {
		return eventID
	}
	if envelopeHeaderID != "" {
		return envelopeHeaderID
	}
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
