//go:build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/trackimpact/support-api/internal/domain"
	"github.com/trackimpact/support-api/internal/infrastructure"
	"github.com/trackimpact/support-api/internal/interfaces"
)

func CreateApplication() (*Application, func(), error) {
	wire.Build(
		domain.ServiceProvider,
		infrastructure.InfrastructureProvider,
		interfaces.InterfacesProvider,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil, nil
}
