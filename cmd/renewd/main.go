package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/agencyops/renewd/internal/migration"
	"github.com/agencyops/renewd/internal/observability"
	"github.com/agencyops/renewd/internal/server"
	"github.com/agencyops/renewd/pkg/db"
)

// renewd runs as a single process: the HTTP API, the scheduler loop and
// the dispatch workers share one fx application.
func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
