package renewal

import (
	"github.com/agencyops/renewd/internal/renewal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("renewal.coordinator",
	fx.Provide(service.New),
)
