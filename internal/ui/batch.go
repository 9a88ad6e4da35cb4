package ui

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"mcpdesk/internal/domain"
)

// BatchResult describes a committed batch mutation. Category is set only for moves.
type BatchResult struct {
	Scope    ToolScope
	ToolIDs  []domain.ToolID
	Enabled  bool
	Category string
}

// BatchMutator toggles the enabled flag of every tool in a scope with an optimistic local
// update that is rolled back if the remote call fails.
type BatchMutator struct {
	store   *ToolStore
	remote  domain.ToolRemote
	logger  *zap.Logger
	metrics domain.Metrics
	events  *EventHub
}

func NewBatchMutator(store *ToolStore, remote domain.ToolRemote, logger *zap.Logger, metrics domain.Metrics, events *EventHub) *BatchMutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	return &BatchMutator{
		store:   store,
		remote:  remote,
		logger:  logger.Named("batch"),
		metrics: metrics,
		events:  events,
	}
}

// SetEnabled resolves scope against the current tool collection and sets every covered tool
// to enabled. A scope that covers no tools is rejected without a remote call. Once issued,
// the remote call is not cancelled by ctx.
func (m *BatchMutator) SetEnabled(ctx context.Context, scope ToolScope, enabled bool) (BatchResult, error) {
	const op = "batch.set_enabled"
	kind := scope.mutationKind()

	ids, err := m.resolve(op, scope)
	if err != nil {
		return BatchResult{}, err
	}

	var change flagChange
	result := BatchResult{Scope: scope, ToolIDs: ids, Enabled: enabled}
	record, err := Optimistic(ctx,
		func() { change = m.store.beginFlags(ids, enabled) },
		func() { m.store.rollbackFlags(change) },
		func(ctx context.Context) (*domain.Tool, error) {
			return m.call(ctx, scope, ids, enabled)
		},
	)
	if err != nil {
		m.metrics.ObserveMutation(kind, domain.MutationRolledBack, len(ids))
		m.logger.Warn("toggle rolled back",
			zap.String("scope", scope.String()),
			zap.Int("tools", len(ids)),
			zap.Bool("enabled", enabled),
			zap.Error(err),
		)
		m.events.Publish(EventMutationFailed, MutationEvent{
			Kind:    kind,
			Target:  scope.String(),
			Enabled: enabled,
			ToolIDs: ids,
			Error:   MapDomainError(err),
		})
		return BatchResult{}, domain.Wrap(domain.CodeInternal, op, err)
	}

	m.store.commitFlags(change)
	if record != nil {
		m.store.Apply(*record)
	}
	m.metrics.ObserveMutation(kind, domain.MutationCommitted, len(ids))
	m.events.Publish(EventMutationCommitted, MutationEvent{
		Kind:    kind,
		Target:  scope.String(),
		Enabled: enabled,
		ToolIDs: ids,
	})
	return result, nil
}

// SetCategory moves every tool in scope to category, with the same call-time resolution,
// optimistic update and rollback as SetEnabled. An empty category is rejected.
func (m *BatchMutator) SetCategory(ctx context.Context, scope ToolScope, category string) (BatchResult, error) {
	const op = "batch.set_category"
	kind := scope.mutationKind()

	category = strings.TrimSpace(category)
	if category == "" {
		m.metrics.ObserveMutation(kind, domain.MutationRejected, 0)
		return BatchResult{}, domain.Validation(op, "category must not be empty")
	}
	ids, err := m.resolve(op, scope)
	if err != nil {
		return BatchResult{}, err
	}

	var prev map[domain.ToolID]string
	record, err := Optimistic(ctx,
		func() { prev = m.store.setCategories(ids, category) },
		func() { m.store.restoreCategories(prev) },
		func(ctx context.Context) (*domain.Tool, error) {
			req := domain.ToolBatchUpdateRequest{ToolIDs: ids, Category: category}
			if scope.Level == ScopeTool && len(ids) == 1 {
				return m.updateOne(ctx, ids[0], domain.ToolUpdateRequest{Category: category})
			}
			return nil, m.remote.BatchUpdateTools(ctx, req)
		},
	)
	if err != nil {
		m.metrics.ObserveMutation(kind, domain.MutationRolledBack, len(ids))
		m.logger.Warn("category move rolled back",
			zap.String("scope", scope.String()),
			zap.Int("tools", len(ids)),
			zap.String("category", category),
			zap.Error(err),
		)
		m.events.Publish(EventMutationFailed, MutationEvent{
			Kind:     kind,
			Target:   scope.String(),
			Category: category,
			ToolIDs:  ids,
			Error:    MapDomainError(err),
		})
		return BatchResult{}, domain.Wrap(domain.CodeInternal, op, err)
	}

	if record != nil {
		m.store.Apply(*record)
	}
	m.metrics.ObserveMutation(kind, domain.MutationCommitted, len(ids))
	m.events.Publish(EventMutationCommitted, MutationEvent{
		Kind:     kind,
		Target:   scope.String(),
		Category: category,
		ToolIDs:  ids,
	})
	return BatchResult{Scope: scope, ToolIDs: ids, Category: category}, nil
}

func (m *BatchMutator) resolve(op string, scope ToolScope) ([]domain.ToolID, error) {
	ids := m.store.Resolve(scope)
	if len(ids) > 0 {
		return ids, nil
	}
	m.metrics.ObserveMutation(scope.mutationKind(), domain.MutationRejected, 0)
	if scope.Level == ScopeTool {
		return nil, domain.E(domain.CodeValidation, op, scope.String()+" is not loaded", domain.ErrUnknownTool)
	}
	return nil, domain.E(domain.CodeValidation, op, scope.String()+" matched no tools", domain.ErrEmptyScope)
}

func (m *BatchMutator) updateOne(ctx context.Context, id domain.ToolID, req domain.ToolUpdateRequest) (*domain.Tool, error) {
	tool, err := m.remote.UpdateTool(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if tool.ID != id {
		return nil, nil
	}
	return &tool, nil
}

func (m *BatchMutator) call(ctx context.Context, scope ToolScope, ids []domain.ToolID, enabled bool) (*domain.Tool, error) {
	value := enabled
	if scope.Level == ScopeTool && len(ids) == 1 {
		return m.updateOne(ctx, ids[0], domain.ToolUpdateRequest{Enabled: &value})
	}
	return nil, m.remote.BatchUpdateTools(ctx, domain.ToolBatchUpdateRequest{ToolIDs: ids, Enabled: &value})
}
