package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"momentiq.app/pipeline/common/crypto"
	"momentiq.app/pipeline/common/id"
	"momentiq.app/pipeline/common/logger"
	"momentiq.app/pipeline/internal/model"
	"momentiq.app/pipeline/internal/normalize"
	"momentiq.app/pipeline/internal/queue"
)

// JobProducer is the slice of the queue the materializer needs.
type JobProducer interface {
	Enqueue(ctx context.Context, jobType queue.JobType, payload any, opts ...queue.EnqueueOption) (string, error)
}

// IngestParams carries one normalized external event into materialization.
type IngestParams struct {
	Integration *model.Integration
	Config      model.ConnectionConfig
	SourceType  model.SourceType
	// Payload is the raw provider payload, stored verbatim on the event.
	Payload    json.RawMessage
	Normalized normalize.Normalized
	TraceID    string
}

// IngestResult reports what one delivery produced.
type IngestResult struct {
	Event      *model.InboundEvent
	Response   *model.CsatResponse
	Duplicated bool
	Enqueued   bool
}

// BatchError pins a failed batch entry to its position.
type BatchError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResult summarizes an analytics batch import. Skipped counts events
// missing mandatory fields; Errors carries per-event failures without
// aborting the rest of the batch.
type BatchResult struct {
	Processed            int          `json:"processed"`
	Skipped              int          `json:"skipped"`
	CsatResponsesCreated int          `json:"csat_responses_created"`
	Errors               []BatchError `json:"errors,omitempty"`
}

// IngestService materializes inbound events and canonical CSAT responses.
type IngestService interface {
	Ingest(ctx context.Context, params IngestParams) (*IngestResult, error)
	ImportAnalyticsBatch(ctx context.Context, integration *model.Integration, events []normalize.AnalyticsEvent) (*BatchResult, error)
}

type ingestService struct {
	txRunner   TxRunner
	producer   JobProducer
	anonymizer *crypto.Anonymizer
}

func NewIngestService(txRunner TxRunner, producer JobProducer, anonymizer *crypto.Anonymizer) IngestService {
	return &ingestService{
		txRunner:   txRunner,
		producer:   producer,
		anonymizer: anonymizer,
	}
}

// Ingest records the delivery and, when it carries a score, the canonical
// response, in one transaction. First delivery wins: a redelivery of the same
// (integration, external id) pair returns the surviving event with
// Duplicated=true and creates nothing.
func (s *ingestService) Ingest(ctx context.Context, params IngestParams) (*IngestResult, error) {
	if params.Integration == nil {
		return nil, fmt.Errorf("integration is required")
	}
	if params.Normalized.ExternalID == "" {
		return nil, fmt.Errorf("external id is required")
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		IntegrationID: logger.Ptr(params.Integration.ID),
		ProjectID:     logger.Ptr(params.Integration.ProjectID),
		SourceType:    logger.Ptr(string(params.SourceType)),
	})

	event := &model.InboundEvent{
		ID:              id.New(),
		IntegrationID:   params.Integration.ID,
		ProjectID:       params.Integration.ProjectID,
		MomentID:        params.Normalized.MomentID,
		ExternalID:      params.Normalized.ExternalID,
		SourceType:      params.SourceType,
		Payload:         params.Payload,
		NormalizedScore: params.Normalized.Score,
		Status:          model.EventStatusReceived,
	}
	if params.Normalized.Score != nil {
		now := time.Now().UTC()
		event.Status = model.EventStatusProcessed
		event.ProcessedAt = &now
	}

	var (
		stored   *model.InboundEvent
		response *model.CsatResponse
		created  bool
	)

	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		var err error
		stored, created, err = sp.InboundEvents().CreateOrGet(ctx, event)
		if err != nil {
			return fmt.Errorf("recording inbound event: %w", err)
		}

		if !created || params.Normalized.Score == nil {
			return nil
		}

		response = &model.CsatResponse{
			ID:                id.New(),
			ProjectID:         params.Integration.ProjectID,
			MomentID:          params.Normalized.MomentID,
			PersonaID:         params.Normalized.PersonaID,
			IntegrationID:     logger.Ptr(params.Integration.ID),
			InboundEventID:    logger.Ptr(stored.ID),
			ExternalReference: params.Normalized.ExternalID,
			Score:             *params.Normalized.Score,
			SourceType:        params.SourceType,
			Metadata:          params.Normalized.Metadata,
		}
		if err := sp.CsatResponses().Create(ctx, response); err != nil {
			return fmt.Errorf("recording csat response: %w", err)
		}

		return nil
	}); err != nil {
		return nil, err
	}

	if !created {
		slog.InfoContext(ctx, "duplicate delivery ignored", "external_id", stored.ExternalID)
		return &IngestResult{Event: stored, Duplicated: true}, nil
	}

	result := &IngestResult{Event: stored, Response: response}

	if response != nil {
		enqueued, err := s.dispatchActions(ctx, params, response)
		if err != nil {
			// The event and response are committed; delivery will be retried
			// out of band, so the caller still gets a success.
			slog.ErrorContext(ctx, "failed to enqueue follow-up actions", "error", err)
		}
		result.Enqueued = enqueued
	}

	return result, nil
}

// dispatchActions enqueues integration-configured follow-ups for low scores.
func (s *ingestService) dispatchActions(ctx context.Context, params IngestParams, response *model.CsatResponse) (bool, error) {
	threshold := params.Config.LowScoreThreshold
	if threshold <= 0 {
		threshold = 2
	}
	if response.Score > threshold {
		return false, nil
	}

	opts := []queue.EnqueueOption{}
	if params.TraceID != "" {
		opts = append(opts, queue.WithTraceID(params.TraceID))
	}

	enqueued := false
	if params.Config.AutoCreateTicket {
		payload := OutboundActionParams{
			IntegrationID:  params.Integration.ID,
			CsatResponseID: response.ID,
			InboundEventID: *response.InboundEventID,
			MomentID:       response.MomentID,
			Score:          response.Score,
			ActionType:     model.ActionTypeCreateTicket,
		}
		if _, err := s.producer.Enqueue(ctx, queue.JobTypeOutboundAction, payload, opts...); err != nil {
			return enqueued, fmt.Errorf("enqueueing outbound action: %w", err)
		}
		enqueued = true
	}

	alert := LowScoreAlertParams{
		IntegrationID:  params.Integration.ID,
		ProjectID:      response.ProjectID,
		CsatResponseID: response.ID,
		Score:          response.Score,
		Threshold:      threshold,
	}
	if _, err := s.producer.Enqueue(ctx, queue.JobTypeLowScoreAlert, alert, opts...); err != nil {
		return enqueued, fmt.Errorf("enqueueing low-score alert: %w", err)
	}

	return true, nil
}

// ImportAnalyticsBatch normalizes and materializes a batch of analytics
// events. Each event succeeds or fails on its own; user pseudo IDs are
// anonymized before anything is stored.
func (s *ingestService) ImportAnalyticsBatch(ctx context.Context, integration *model.Integration, events []normalize.AnalyticsEvent) (*BatchResult, error) {
	if integration == nil {
		return nil, fmt.Errorf("integration is required")
	}

	var cfg model.ConnectionConfig
	if len(integration.Config) > 0 {
		if err := json.Unmarshal(integration.Config, &cfg); err != nil {
			return nil, fmt.Errorf("decoding integration config: %w", err)
		}
	}

	normalizer := normalize.NewAnalyticsEventNormalizer(cfg)
	result := &BatchResult{}

	for i, ev := range events {
		if s.anonymizer != nil && ev.UserPseudoID != "" {
			ev.UserPseudoID = s.anonymizer.Anonymize(ev.UserPseudoID)
		}

		normalized, err := normalizer.Normalize(ev)
		if err != nil {
			result.Skipped++
			continue
		}

		raw, err := json.Marshal(ev)
		if err != nil {
			result.Errors = append(result.Errors, BatchError{Index: i, Error: err.Error()})
			continue
		}

		ingested, err := s.Ingest(ctx, IngestParams{
			Integration: integration,
			Config:      cfg,
			SourceType:  model.SourceTypeAnalytics,
			Payload:     raw,
			Normalized:  normalized,
		})
		if err != nil {
			result.Errors = append(result.Errors, BatchError{Index: i, Error: err.Error()})
			continue
		}

		result.Processed++
		if ingested.Response != nil {
			result.CsatResponsesCreated++
		}
	}

	return result, nil
}
