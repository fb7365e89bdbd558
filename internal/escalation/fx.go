package escalation

import (
	"github.com/agencyops/renewd/internal/escalation/repository"
	"github.com/agencyops/renewd/internal/escalation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("escalation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
