package normalize_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"momentiq.app/pipeline/internal/normalize"
)

var _ = Describe("NormalizeTicket", func() {
	payload := func(score, comment string) normalize.TicketPayload {
		var p normalize.TicketPayload
		p.Ticket.ID = 42
		p.Ticket.Subject = "printer on fire"
		if score != "" || comment != "" {
			p.Ticket.SatisfactionRating = &normalize.Rating{Score: score, Comment: comment}
		}
		return p
	}

	It("maps a good verdict to the top of the scale", func() {
		result, err := normalize.NormalizeTicket(payload("good", ""))
		Expect(err).ToNot(HaveOccurred())
		Expect(result.ExternalID).To(Equal("42"))
		Expect(result.Score).To(HaveValue(Equal(5)))
	})

	It("maps a bad verdict to the bottom of the scale", func() {
		result, err := normalize.NormalizeTicket(payload("bad", ""))
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Score).To(HaveValue(Equal(1)))
	})

	It("records offered-but-unanswered ratings without a score", func() {
		for _, verdict := range []string{"offered", "unoffered"} {
			result, err := normalize.NormalizeTicket(payload(verdict, ""))
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Score).To(BeNil())
			Expect(result.ExternalID).To(Equal("42"))
		}
	})

	It("records tickets with no rating at all", func() {
		result, err := normalize.NormalizeTicket(payload("", ""))
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Score).To(BeNil())
	})

	It("normalizes numeric verdicts", func() {
		result, err := normalize.NormalizeTicket(payload("3", ""))
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Score).To(HaveValue(Equal(3)))

		result, err = normalize.NormalizeTicket(payload("9", ""))
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Score).To(HaveValue(Equal(5)))
	})

	It("ignores unparseable verdicts", func() {
		result, err := normalize.NormalizeTicket(payload("meh", ""))
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Score).To(BeNil())
	})

	It("carries the comment as metadata", func() {
		result, err := normalize.NormalizeTicket(payload("good", "fast resolution"))
		Expect(err).ToNot(HaveOccurred())
		Expect(string(result.Metadata)).To(MatchJSON(`{"comment":"fast resolution"}`))
	})

	It("rejects payloads without a ticket id", func() {
		_, err := normalize.NormalizeTicket(normalize.TicketPayload{})
		Expect(err).To(MatchError(normalize.ErrMissingFields))
	})
})

var _ = Describe("NormalizeReview", func() {
	It("round-clamps the rating and carries review text as metadata", func() {
		result, err := normalize.NormalizeReview(normalize.AppStoreReview{
			ID:      "rev-1",
			Rating:  7,
			Title:   "great",
			Body:    "does what it says",
			Author:  "someone",
			Version: "2.1.0",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(result.ExternalID).To(Equal("rev-1"))
		Expect(result.Score).To(HaveValue(Equal(5)))
		Expect(string(result.Metadata)).To(MatchJSON(`{
			"title": "great",
			"body": "does what it says",
			"author": "someone",
			"version": "2.1.0"
		}`))
	})

	It("omits metadata when the review has no text", func() {
		result, err := normalize.NormalizeReview(normalize.AppStoreReview{ID: "rev-2", Rating: 3})
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Score).To(HaveValue(Equal(3)))
		Expect(result.Metadata).To(BeNil())
	})

	It("rejects reviews without an id", func() {
		_, err := normalize.NormalizeReview(normalize.AppStoreReview{Rating: 4})
		Expect(err).To(MatchError(normalize.ErrMissingFields))
	})
})
