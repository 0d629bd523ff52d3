package store

import (
	"momentiq.app/pipeline/core/db"
)

// Stores bundles all store implementations over a single Querier.
// Bind it to a pool for standalone access or to a transaction via TxRunner.
type Stores struct {
	q db.Querier
}

func NewStores(q db.Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Integrations() IntegrationStore {
	return &integrationStore{q: s.q}
}

func (s *Stores) InboundEvents() InboundEventStore {
	return &inboundEventStore{q: s.q}
}

func (s *Stores) CsatResponses() CsatResponseStore {
	return &csatResponseStore{q: s.q}
}

func (s *Stores) OutboundActions() OutboundActionStore {
	return &outboundActionStore{q: s.q}
}
