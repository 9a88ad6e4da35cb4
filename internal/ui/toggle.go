package ui

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mcpdesk/internal/domain"
)

// ToggleReconciler sets a server's own enabled flag. The collaborator only exposes a flip, so
// the current value is checked first and equal requests are no-ops.
type ToggleReconciler struct {
	sync    *Synchronizer
	remote  domain.ServerRemote
	logger  *zap.Logger
	metrics domain.Metrics
	events  *EventHub
}

func NewToggleReconciler(sync *Synchronizer, remote domain.ServerRemote, logger *zap.Logger, metrics domain.Metrics, events *EventHub) *ToggleReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	return &ToggleReconciler{
		sync:    sync,
		remote:  remote,
		logger:  logger.Named("toggle"),
		metrics: metrics,
		events:  events,
	}
}

// SetEnabled sets server id to enabled and returns the resulting record.
func (r *ToggleReconciler) SetEnabled(ctx context.Context, id domain.ServerID, enabled bool) (domain.Server, error) {
	const op = "toggle.set_enabled"

	current, onPage := r.sync.Server(id)
	if !onPage {
		srv, err := r.remote.GetServer(ctx, id)
		if err != nil {
			r.metrics.ObserveMutation(domain.MutationToggle, domain.MutationRejected, 0)
			return domain.Server{}, domain.Wrap(domain.CodeNotFound, op, err)
		}
		current = srv
	}
	if current.Enabled == enabled {
		r.metrics.ObserveMutation(domain.MutationToggle, domain.MutationNoop, 1)
		return current, nil
	}

	prev := current.Enabled
	updated, err := Optimistic(ctx,
		func() { r.sync.PatchServer(id, func(s *domain.Server) { s.Enabled = enabled }) },
		func() { r.sync.PatchServer(id, func(s *domain.Server) { s.Enabled = prev }) },
		func(ctx context.Context) (domain.Server, error) { return r.remote.ToggleServer(ctx, id) },
	)
	if err != nil {
		r.metrics.ObserveMutation(domain.MutationToggle, domain.MutationRolledBack, 1)
		r.logger.Warn("server toggle rolled back", zap.Uint("server_id", uint(id)), zap.Bool("enabled", enabled), zap.Error(err))
		r.events.Publish(EventMutationFailed, MutationEvent{
			Kind:    domain.MutationToggle,
			Target:  current.Name,
			Enabled: enabled,
			Error:   MapDomainError(err),
		})
		return domain.Server{}, domain.Wrap(domain.CodeInternal, op, err)
	}

	if updated.ID == 0 {
		updated = current.Clone()
		updated.Enabled = enabled
	}
	if updated.Enabled != enabled {
		// The local value was stale: the remote already held the requested value and the flip
		// undid it.
		r.logger.Warn("server toggle settled on a different value, flipping again",
			zap.Uint("server_id", uint(id)),
			zap.Bool("requested", enabled),
			zap.Bool("remote", updated.Enabled),
		)
		retried, err := r.remote.ToggleServer(context.WithoutCancel(ctx), id)
		switch {
		case err == nil && retried.ID != 0:
			updated = retried
		case err == nil:
			updated.Enabled = !updated.Enabled
		}
		if err != nil || updated.Enabled != enabled {
			failure := domain.E(domain.CodeRemote, op, fmt.Sprintf("server %d is enabled=%t after toggling", id, updated.Enabled), err)
			r.sync.PatchServer(id, func(s *domain.Server) { *s = updated.Clone() })
			r.metrics.ObserveMutation(domain.MutationToggle, domain.MutationRolledBack, 1)
			r.events.Publish(EventMutationFailed, MutationEvent{
				Kind:    domain.MutationToggle,
				Target:  current.Name,
				Enabled: enabled,
				Error:   MapDomainError(failure),
			})
			return domain.Server{}, failure
		}
	}
	r.sync.PatchServer(id, func(s *domain.Server) { *s = updated.Clone() })
	r.metrics.ObserveMutation(domain.MutationToggle, domain.MutationCommitted, 1)
	r.events.Publish(EventMutationCommitted, MutationEvent{
		Kind:    domain.MutationToggle,
		Target:  updated.Name,
		Enabled: updated.Enabled,
	})
	return updated, nil
}
