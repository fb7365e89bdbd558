package dispatch

import (
	"github.com/agencyops/renewd/internal/dispatch/repository"
	"github.com/agencyops/renewd/internal/dispatch/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dispatch.coordinator",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
