package asset

import (
	"github.com/agencyops/renewd/internal/asset/repository"
	"github.com/agencyops/renewd/internal/asset/service"
	"go.uber.org/fx"
)

var Module = fx.Module("asset.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
