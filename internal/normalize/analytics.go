// Package normalize maps raw provider payloads into the canonical
// score/moment/persona representation. All mapping is pure data: lookup
// tables and scale configuration come from the caller (integration config),
// nothing here touches storage or the network.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"momentiq.app/pipeline/internal/model"
)

// ErrMissingFields marks an event that lacks mandatory fields (name,
// timestamp). Batch importers count these as skipped, not failed.
var ErrMissingFields = errors.New("event missing mandatory fields")

// CanonicalMin and CanonicalMax bound the normalized satisfaction scale.
const (
	CanonicalMin = 1
	CanonicalMax = 5
)

// ParamValue is the typed value variant carried by analytics parameters.
// Exactly one field is expected to be set.
type ParamValue struct {
	StringValue *string  `json:"string_value,omitempty"`
	IntValue    *int64   `json:"int_value,omitempty"`
	FloatValue  *float64 `json:"float_value,omitempty"`
	DoubleValue *float64 `json:"double_value,omitempty"`
}

// EventParam is one typed key/value record from an analytics event.
type EventParam struct {
	Key   string     `json:"key"`
	Value ParamValue `json:"value"`
}

// AnalyticsEvent is the raw shape of one event in an analytics export batch.
type AnalyticsEvent struct {
	EventName      string          `json:"event_name"`
	EventTimestamp int64           `json:"event_timestamp"`
	UserPseudoID   string          `json:"user_pseudo_id"`
	EventParams    []EventParam    `json:"event_params"`
	UserProperties []EventParam    `json:"user_properties"`
	Device         json.RawMessage `json:"device,omitempty"`
	Geo            json.RawMessage `json:"geo,omitempty"`
	TrafficSource  json.RawMessage `json:"traffic_source,omitempty"`
}

// Normalized is the canonical result of mapping one external event.
type Normalized struct {
	ExternalID string
	MomentID   *int64
	PersonaID  *int64
	Score      *int
	Metadata   json.RawMessage
}

// ParamNumber extracts a named parameter's numeric value, honoring all typed
// variants. Returns nil if the parameter is absent or non-numeric.
func ParamNumber(params []EventParam, key string) *float64 {
	for _, p := range params {
		if p.Key != key {
			continue
		}
		switch {
		case p.Value.IntValue != nil:
			v := float64(*p.Value.IntValue)
			return &v
		case p.Value.FloatValue != nil:
			return p.Value.FloatValue
		case p.Value.DoubleValue != nil:
			return p.Value.DoubleValue
		}
		return nil
	}
	return nil
}

// ParamString extracts a named parameter's string value, or nil if absent.
func ParamString(params []EventParam, key string) *string {
	for _, p := range params {
		if p.Key == key {
			return p.Value.StringValue
		}
	}
	return nil
}

// NormalizeScore rescales a raw satisfaction value onto the canonical [1,5]
// scale. With a declared source scale the value is linearly interpolated and
// rounded; without one the raw value is assumed canonical and round-clamped.
func NormalizeScore(raw float64, source *model.ScoreScale) int {
	score := raw
	if source != nil && source.Max > source.Min {
		t := (raw - source.Min) / (source.Max - source.Min)
		score = CanonicalMin + t*(CanonicalMax-CanonicalMin)
	}

	rounded := int(math.Round(score))
	if rounded < CanonicalMin {
		return CanonicalMin
	}
	if rounded > CanonicalMax {
		return CanonicalMax
	}
	return rounded
}

// DedupeKey computes the natural dedup key for an analytics event: a
// deterministic composite of source identity, event name, and the
// source-provided timestamp. This key backs the InboundEvent uniqueness
// invariant.
func DedupeKey(userPseudoID, eventName string, timestamp int64) string {
	return fmt.Sprintf("%s:%s:%d", userPseudoID, eventName, timestamp)
}

// AnalyticsEventNormalizer maps analytics events using an integration's
// connection config.
type AnalyticsEventNormalizer struct {
	cfg model.ConnectionConfig
}

func NewAnalyticsEventNormalizer(cfg model.ConnectionConfig) *AnalyticsEventNormalizer {
	return &AnalyticsEventNormalizer{cfg: cfg}
}

// Normalize maps one raw analytics event. Events missing mandatory fields
// return ErrMissingFields so batch importers can count them as skipped.
func (n *AnalyticsEventNormalizer) Normalize(ev AnalyticsEvent) (Normalized, error) {
	if ev.EventName == "" || ev.EventTimestamp == 0 {
		return Normalized{}, ErrMissingFields
	}

	result := Normalized{
		ExternalID: DedupeKey(ev.UserPseudoID, ev.EventName, ev.EventTimestamp),
	}

	if momentID, ok := n.cfg.MomentMappings[ev.EventName]; ok {
		result.MomentID = &momentID
	}

	if n.cfg.PersonaProperty != "" {
		if value := ParamString(ev.UserProperties, n.cfg.PersonaProperty); value != nil {
			if personaID, ok := n.cfg.PersonaMappings[*value]; ok {
				result.PersonaID = &personaID
			}
		}
	}

	scoreParam := n.cfg.ScoreParam
	if scoreParam == "" {
		scoreParam = "rating"
	}
	if raw := ParamNumber(ev.EventParams, scoreParam); raw != nil {
		score := NormalizeScore(*raw, n.cfg.ScoreScale)
		result.Score = &score
	}

	return result, nil
}
