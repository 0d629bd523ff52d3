package normalize

import (
	"encoding/json"
)

// AppStoreReview is the raw shape of an app-store review notification.
type AppStoreReview struct {
	ID      string `json:"id"`
	Rating  int    `json:"rating"`
	Title   string `json:"title,omitempty"`
	Body    string `json:"body,omitempty"`
	Author  string `json:"author,omitempty"`
	Version string `json:"version,omitempty"`
	Date    string `json:"date"`
}

// NormalizeReview maps an app-store review. Ratings are already on the 1-5
// scale, so the value is round-clamped; review text travels as metadata.
func NormalizeReview(review AppStoreReview) (Normalized, error) {
	if review.ID == "" {
		return Normalized{}, ErrMissingFields
	}

	score := NormalizeScore(float64(review.Rating), nil)
	result := Normalized{
		ExternalID: review.ID,
		Score:      &score,
	}

	meta := map[string]string{}
	if review.Title != "" {
		meta["title"] = review.Title
	}
	if review.Body != "" {
		meta["body"] = review.Body
	}
	if review.Author != "" {
		meta["author"] = review.Author
	}
	if review.Version != "" {
		meta["version"] = review.Version
	}
	if len(meta) > 0 {
		if encoded, err := json.Marshal(meta); err == nil {
			result.Metadata = encoded
		}
	}

	return result, nil
}
