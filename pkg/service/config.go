package service

import (
	"github.com/romashorodok/collab-relay/pkg/variables"
	"go.uber.org/fx"
)

func config() (*variables.Config, error) {
	variables.LoadDotEnv()
	return variables.Load()
}

var ConfigModule = fx.Module("config", fx.Provide(
	config,
))
