//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"mcpdesk/internal/domain"
	"mcpdesk/internal/infra/remote"
	"mcpdesk/internal/infra/telemetry"
)

var CoreInfraSet = wire.NewSet(
	NewLogging,
	NewLogger,
	NewMetricsRegistry,
	NewMetrics,
	NewHealthTracker,
	wire.Bind(new(domain.Metrics), new(*telemetry.PrometheusMetrics)),
)

var ConsoleSet = wire.NewSet(
	NewRemoteClient,
	wire.Bind(new(domain.Remote), new(*remote.Client)),
	NewEventHub,
	NewConsole,
	NewViewCache,
)

var SessionSet = wire.NewSet(
	CoreInfraSet,
	ConsoleSet,
	wire.Struct(new(SessionOptions), "*"),
	NewSession,
)
