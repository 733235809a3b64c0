package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/craftlane/entrypay/internal/clock"
	"github.com/craftlane/entrypay/internal/config"
	"github.com/craftlane/entrypay/internal/migration"
	"github.com/craftlane/entrypay/internal/observability"
	"github.com/craftlane/entrypay/internal/server"
	"github.com/craftlane/entrypay/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
