package main

import (
	"log/slog"

	"github.com/romashorodok/collab-relay/internal/relay"
	"github.com/romashorodok/collab-relay/internal/room"
	"github.com/romashorodok/collab-relay/internal/session"
	"github.com/romashorodok/collab-relay/pkg/protocol"
	"github.com/romashorodok/collab-relay/pkg/service"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func main() {
	fx.New(
		fx.Provide(
			room.NewManager,
			room.NewRoomNotifier,
			relay.New,

			protocol.AsHttpController(session.NewSessionController),
			protocol.AsHttpController(room.NewRoomController),
		),

		service.ConfigModule,
		service.LoggerModule,
		service.HttpModule,

		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),
	).Run()
}
