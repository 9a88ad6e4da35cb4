//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"mcpdesk/internal/infra/config"
)

func InitializeSession(cfg config.Config) (*Session, func(), error) {
	wire.Build(SessionSet)
	return nil, nil, nil
}
