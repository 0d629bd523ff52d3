package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"momentiq.app/pipeline/common/id"
	"momentiq.app/pipeline/common/logger"
	"momentiq.app/pipeline/internal/model"
	"momentiq.app/pipeline/internal/queue"
)

// OutboundActionParams is the payload of an outbound-action job.
type OutboundActionParams struct {
	IntegrationID  int64            `json:"integration_id"`
	CsatResponseID int64            `json:"csat_response_id"`
	InboundEventID int64            `json:"inbound_event_id"`
	MomentID       *int64           `json:"moment_id,omitempty"`
	Score          int              `json:"score"`
	ActionType     model.ActionType `json:"action_type"`
}

// LowScoreAlertParams is the payload of a low-score-alert job.
type LowScoreAlertParams struct {
	IntegrationID  int64 `json:"integration_id"`
	ProjectID      int64 `json:"project_id"`
	CsatResponseID int64 `json:"csat_response_id"`
	Score          int   `json:"score"`
	Threshold      int   `json:"threshold"`
}

// OutboundService processes follow-up jobs produced by materialization. The
// external delivery itself is provider-specific; this service records the
// action and its status transitions.
type OutboundService interface {
	HandleOutboundAction(ctx context.Context, job queue.Job) error
	HandleLowScoreAlert(ctx context.Context, job queue.Job) error
}

type outboundService struct {
	stores StoreProvider
}

func NewOutboundService(stores StoreProvider) OutboundService {
	return &outboundService{stores: stores}
}

// RegisterHandlers binds the worker's job handlers onto the queue.
func RegisterHandlers(q *queue.Queue, outbound OutboundService) {
	q.RegisterHandler(queue.JobTypeOutboundAction, outbound.HandleOutboundAction)
	q.RegisterHandler(queue.JobTypeLowScoreAlert, outbound.HandleLowScoreAlert)
}

// HandleOutboundAction records the action row and walks it through its
// delivery transitions. Deliveries are at-least-once: a redelivered job for
// an already-recorded response creates a second attempt record, which the
// downstream dispatcher reconciles by csat_response_id.
func (s *outboundService) HandleOutboundAction(ctx context.Context, job queue.Job) error {
	var params OutboundActionParams
	if err := json.Unmarshal(job.Payload, &params); err != nil {
		return fmt.Errorf("decoding outbound action payload: %w", err)
	}
	if params.IntegrationID == 0 || params.CsatResponseID == 0 {
		return fmt.Errorf("integration_id and csat_response_id are required")
	}

	actionType := params.ActionType
	if actionType == "" {
		actionType = model.ActionTypeCreateTicket
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		IntegrationID: logger.Ptr(params.IntegrationID),
	})

	action := &model.OutboundAction{
		ID:             id.New(),
		IntegrationID:  params.IntegrationID,
		MomentID:       params.MomentID,
		CsatResponseID: logger.Ptr(params.CsatResponseID),
		ActionType:     actionType,
		Payload:        job.Payload,
		Status:         model.ActionStatusPending,
	}
	if err := s.stores.OutboundActions().Create(ctx, action); err != nil {
		return fmt.Errorf("recording outbound action: %w", err)
	}

	if err := s.stores.OutboundActions().UpdateStatus(ctx, action.ID, model.ActionStatusAttempted); err != nil {
		return fmt.Errorf("marking action attempted: %w", err)
	}

	// Provider delivery happens here when an outbound transport is wired.
	// Until then the action is confirmed as recorded.
	if err := s.stores.OutboundActions().UpdateStatus(ctx, action.ID, model.ActionStatusConfirmed); err != nil {
		return fmt.Errorf("marking action confirmed: %w", err)
	}

	slog.InfoContext(ctx, "outbound action recorded",
		"action_type", string(actionType),
		"csat_response_id", params.CsatResponseID,
		"score", params.Score)
	return nil
}

// HandleLowScoreAlert records a notification action for a low score.
func (s *outboundService) HandleLowScoreAlert(ctx context.Context, job queue.Job) error {
	var params LowScoreAlertParams
	if err := json.Unmarshal(job.Payload, &params); err != nil {
		return fmt.Errorf("decoding low score alert payload: %w", err)
	}
	if params.IntegrationID == 0 || params.CsatResponseID == 0 {
		return fmt.Errorf("integration_id and csat_response_id are required")
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		IntegrationID: logger.Ptr(params.IntegrationID),
		ProjectID:     logger.Ptr(params.ProjectID),
	})

	action := &model.OutboundAction{
		ID:             id.New(),
		IntegrationID:  params.IntegrationID,
		CsatResponseID: logger.Ptr(params.CsatResponseID),
		ActionType:     model.ActionTypeNotification,
		Payload:        job.Payload,
		Status:         model.ActionStatusConfirmed,
	}
	if err := s.stores.OutboundActions().Create(ctx, action); err != nil {
		return fmt.Errorf("recording alert action: %w", err)
	}

	slog.WarnContext(ctx, "low satisfaction score alert",
		"score", params.Score,
		"threshold", params.Threshold,
		"csat_response_id", params.CsatResponseID)
	return nil
}
