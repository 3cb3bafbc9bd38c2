package service

import (
	"io"
	"log/slog"
	"os"

	"github.com/romashorodok/collab-relay/pkg/variables"
	"go.uber.org/fx"
)

type logger_Params struct {
	fx.In

	Config *variables.Config
}

var loggerWriter io.Writer = os.Stdout

func logger(params logger_Params) *slog.Logger {
	return slog.New(slog.NewJSONHandler(loggerWriter, &slog.HandlerOptions{
		AddSource: false,
		Level:     params.Config.LogLevel,
	}))
}

var LoggerModule = fx.Module("logger", fx.Provide(
	logger,
))
