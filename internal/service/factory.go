package service

import (
	"time"

	"momentiq.app/pipeline/common/crypto"
	"momentiq.app/pipeline/internal/store"
)

type Services struct {
	stores     *store.Stores
	txRunner   TxRunner
	producer   JobProducer
	keeper     *crypto.Keeper
	anonymizer *crypto.Anonymizer
	tolerance  time.Duration
}

func NewServices(stores *store.Stores, txRunner TxRunner, producer JobProducer, keeper *crypto.Keeper, anonymizer *crypto.Anonymizer, timestampTolerance time.Duration) *Services {
	return &Services{
		stores:     stores,
		txRunner:   txRunner,
		producer:   producer,
		keeper:     keeper,
		anonymizer: anonymizer,
		tolerance:  timestampTolerance,
	}
}

func (s *Services) Integrations() IntegrationService {
	return NewIntegrationService(s.stores.Integrations(), s.keeper, s.tolerance)
}

func (s *Services) Ingest() IngestService {
	return NewIngestService(s.txRunner, s.producer, s.anonymizer)
}

func (s *Services) Outbound() OutboundService {
	return NewOutboundService(s.stores)
}
