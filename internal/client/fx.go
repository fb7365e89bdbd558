package client

import (
	"github.com/agencyops/renewd/internal/client/repository"
	"github.com/agencyops/renewd/internal/client/service"
	"go.uber.org/fx"
)

var Module = fx.Module("client.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
