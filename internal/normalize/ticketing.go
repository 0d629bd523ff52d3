package normalize

import (
	"encoding/json"
	"strconv"
)

// TicketPayload is the raw shape of a ticketing satisfaction webhook.
type TicketPayload struct {
	Ticket struct {
		ID                 int64           `json:"id"`
		Subject            string          `json:"subject"`
		Status             string          `json:"status"`
		SatisfactionRating *Rating         `json:"satisfaction_rating,omitempty"`
		Tags               []string        `json:"tags,omitempty"`
		CustomFields       json.RawMessage `json:"custom_fields,omitempty"`
	} `json:"ticket"`
}

// Rating carries a ticketing provider's satisfaction verdict. Score is either
// a verdict word ("good"/"bad") or a numeric string, depending on provider
// configuration.
type Rating struct {
	Score   string `json:"score"`
	Comment string `json:"comment,omitempty"`
}

// NormalizeTicket maps a ticketing satisfaction payload. Tickets without a
// rating (or an "offered" rating that was never answered) resolve to no score;
// the event is still recorded for audit.
func NormalizeTicket(payload TicketPayload) (Normalized, error) {
	if payload.Ticket.ID == 0 {
		return Normalized{}, ErrMissingFields
	}

	result := Normalized{
		ExternalID: strconv.FormatInt(payload.Ticket.ID, 10),
	}

	rating := payload.Ticket.SatisfactionRating
	if rating == nil {
		return result, nil
	}

	switch rating.Score {
	case "good":
		score := CanonicalMax
		result.Score = &score
	case "bad":
		score := CanonicalMin
		result.Score = &score
	case "", "offered", "unoffered":
		// no verdict yet
	default:
		if raw, err := strconv.ParseFloat(rating.Score, 64); err == nil {
			score := NormalizeScore(raw, nil)
			result.Score = &score
		}
	}

	if rating.Comment != "" {
		meta, err := json.Marshal(map[string]string{"comment": rating.Comment})
		if err == nil {
			result.Metadata = meta
		}
	}

	return result, nil
}
