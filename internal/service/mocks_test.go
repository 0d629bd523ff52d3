package service_test

import (
	"context"

	"momentiq.app/pipeline/internal/model"
	"momentiq.app/pipeline/internal/queue"
	"momentiq.app/pipeline/internal/service"
	"momentiq.app/pipeline/internal/store"
)

type mockIntegrationStore struct {
	getByIDFn           func(ctx context.Context, id int64) (*model.Integration, error)
	createFn            func(ctx context.Context, integration *model.Integration) error
	updateCredentialsFn func(ctx context.Context, id int64, encrypted string) error
	setEnabledFn        func(ctx context.Context, id int64, enabled bool) error
	deleteFn            func(ctx context.Context, id int64) error
	listByProjectFn     func(ctx context.Context, projectID int64) ([]model.Integration, error)
	createCalls         int
}

func (m *mockIntegrationStore) GetByID(ctx context.Context, id int64) (*model.Integration, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockIntegrationStore) Create(ctx context.Context, integration *model.Integration) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, integration)
	}
	return nil
}

func (m *mockIntegrationStore) Update(ctx context.Context, _ *model.Integration) error {
	return nil
}

func (m *mockIntegrationStore) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	if m.setEnabledFn != nil {
		return m.setEnabledFn(ctx, id, enabled)
	}
	return nil
}

func (m *mockIntegrationStore) UpdateCredentials(ctx context.Context, id int64, encrypted string) error {
	if m.updateCredentialsFn != nil {
		return m.updateCredentialsFn(ctx, id, encrypted)
	}
	return nil
}

func (m *mockIntegrationStore) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockIntegrationStore) ListByProject(ctx context.Context, projectID int64) ([]model.Integration, error) {
	if m.listByProjectFn != nil {
		return m.listByProjectFn(ctx, projectID)
	}
	return nil, nil
}

type mockInboundEventStore struct {
	createOrGetFn func(ctx context.Context, event *model.InboundEvent) (*model.InboundEvent, bool, error)
	createCalls   int
}

func (m *mockInboundEventStore) CreateOrGet(ctx context.Context, event *model.InboundEvent) (*model.InboundEvent, bool, error) {
	m.createCalls++
	if m.createOrGetFn != nil {
		return m.createOrGetFn(ctx, event)
	}
	return event, true, nil
}

func (m *mockInboundEventStore) GetByID(ctx context.Context, id int64) (*model.InboundEvent, error) {
	return nil, store.ErrNotFound
}

func (m *mockInboundEventStore) GetByNaturalKey(ctx context.Context, integrationID int64, externalID string) (*model.InboundEvent, error) {
	return nil, store.ErrNotFound
}

func (m *mockInboundEventStore) MarkFailed(ctx context.Context, id int64) error {
	return nil
}

func (m *mockInboundEventStore) CountByProject(ctx context.Context, projectID int64) (int64, error) {
	return 0, nil
}

type mockCsatResponseStore struct {
	createFn    func(ctx context.Context, response *model.CsatResponse) error
	createCalls int
	created     []*model.CsatResponse
}

func (m *mockCsatResponseStore) Create(ctx context.Context, response *model.CsatResponse) error {
	m.createCalls++
	m.created = append(m.created, response)
	if m.createFn != nil {
		return m.createFn(ctx, response)
	}
	return nil
}

func (m *mockCsatResponseStore) GetByID(ctx context.Context, id int64) (*model.CsatResponse, error) {
	return nil, store.ErrNotFound
}

func (m *mockCsatResponseStore) GetByInboundEvent(ctx context.Context, inboundEventID int64) (*model.CsatResponse, error) {
	return nil, store.ErrNotFound
}

func (m *mockCsatResponseStore) ListByProject(ctx context.Context, projectID int64, limit int32) ([]model.CsatResponse, error) {
	return nil, nil
}

type mockOutboundActionStore struct {
	createFn       func(ctx context.Context, action *model.OutboundAction) error
	updateStatusFn func(ctx context.Context, id int64, status model.ActionStatus) error
	created        []*model.OutboundAction
	statusChanges  []model.ActionStatus
}

func (m *mockOutboundActionStore) Create(ctx context.Context, action *model.OutboundAction) error {
	m.created = append(m.created, action)
	if m.createFn != nil {
		return m.createFn(ctx, action)
	}
	return nil
}

func (m *mockOutboundActionStore) GetByID(ctx context.Context, id int64) (*model.OutboundAction, error) {
	return nil, store.ErrNotFound
}

func (m *mockOutboundActionStore) UpdateStatus(ctx context.Context, id int64, status model.ActionStatus) error {
	m.statusChanges = append(m.statusChanges, status)
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockOutboundActionStore) ListByIntegration(ctx context.Context, integrationID int64) ([]model.OutboundAction, error) {
	return nil, nil
}

type mockStoreProvider struct {
	integrations    *mockIntegrationStore
	inboundEvents   *mockInboundEventStore
	csatResponses   *mockCsatResponseStore
	outboundActions *mockOutboundActionStore
}

func newMockStoreProvider() *mockStoreProvider {
	return &mockStoreProvider{
		integrations:    &mockIntegrationStore{},
		inboundEvents:   &mockInboundEventStore{},
		csatResponses:   &mockCsatResponseStore{},
		outboundActions: &mockOutboundActionStore{},
	}
}

func (m *mockStoreProvider) Integrations() store.IntegrationStore {
	return m.integrations
}

func (m *mockStoreProvider) InboundEvents() store.InboundEventStore {
	return m.inboundEvents
}

func (m *mockStoreProvider) CsatResponses() store.CsatResponseStore {
	return m.csatResponses
}

func (m *mockStoreProvider) OutboundActions() store.OutboundActionStore {
	return m.outboundActions
}

type mockTxRunner struct {
	provider *mockStoreProvider
	withTxFn func(ctx context.Context, fn func(stores service.StoreProvider) error) error
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(stores service.StoreProvider) error) error {
	if m.withTxFn != nil {
		return m.withTxFn(ctx, fn)
	}
	return fn(m.provider)
}

type enqueuedJob struct {
	jobType queue.JobType
	payload any
}

type mockProducer struct {
	enqueueFn func(ctx context.Context, jobType queue.JobType, payload any, opts ...queue.EnqueueOption) (string, error)
	enqueued  []enqueuedJob
}

func (m *mockProducer) Enqueue(ctx context.Context, jobType queue.JobType, payload any, opts ...queue.EnqueueOption) (string, error) {
	m.enqueued = append(m.enqueued, enqueuedJob{jobType: jobType, payload: payload})
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, jobType, payload, opts...)
	}
	return "job-1", nil
}
