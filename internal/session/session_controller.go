package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v4"
	"github.com/romashorodok/collab-relay/internal/relay"
	"github.com/romashorodok/collab-relay/internal/room"
	"github.com/romashorodok/collab-relay/pkg/protocol"
	"github.com/romashorodok/collab-relay/pkg/variables"
	"github.com/romashorodok/collab-relay/pkg/wsutils"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

var ErrServerShutdown = errors.New("server shutdown")

type sessionController struct {
	logger   *slog.Logger
	relay    *relay.Relay
	upgrader websocket.Upgrader
	config   *variables.Config

	ctx    context.Context
	cancel context.CancelCauseFunc
}

// SessionControllerConnect upgrades the request and serves the connection
// until either side closes it. The optional :roomId path parameter is the
// default room of join events.
func (ctrl *sessionController) SessionControllerConnect(c echo.Context) error {
	conn, err := ctrl.upgrader.Upgrade(c.Response().Writer, c.Request(), nil)
	if err != nil {
		// upgrader already replied with an http error
		ctrl.logger.Error("unable upgrade request",
			slog.String("remote", c.RealIP()),
			slog.String("err", err.Error()),
		)
		return nil
	}

	w := wsutils.NewThreadSafeWriter(conn, ctrl.config.WriteWait)
	p := newPeer(uuid.NewString(), w, ctrl.config.OutboxSize)
	logger := ctrl.logger.With(slog.String("connId", p.id))

	if err := ctrl.relay.Connect(p.id, p); err != nil {
		logger.Error("unable register connection", slog.String("err", err.Error()))
		_ = w.Close()
		return nil
	}
	logger.Info("connection open", slog.String("remote", conn.RemoteAddr().String()))

	g, ctx := errgroup.WithContext(ctrl.ctx)
	g.Go(func() error {
		return ctrl.writePump(ctx, p)
	})
	g.Go(func() error {
		defer p.close()
		defer ctrl.relay.Disconnect(p.id)
		return ctrl.readPump(p, c.Param("roomId"), logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug("connection closed with error", slog.String("err", err.Error()))
	}
	logger.Info("connection closed", slog.Uint64("dropped", p.dropped.Load()))
	return nil
}

func (ctrl *sessionController) readPump(p *peer, defaultRoom protocol.RoomID, logger *slog.Logger) error {
	defer p.ws.Close()

	pongWait := ctrl.config.PongWait
	p.ws.SetReadLimit(ctrl.config.MaxMessageSize)
	_ = p.ws.SetReadDeadline(time.Now().Add(pongWait))
	p.ws.SetPongHandler(func(string) error {
		return p.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := p.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Error("read error", slog.String("err", err.Error()))
				return err
			}
			return nil
		}
		ctrl.handleFrame(p, defaultRoom, frame, logger)
	}
}

func (ctrl *sessionController) handleFrame(p *peer, defaultRoom protocol.RoomID, frame []byte, logger *slog.Logger) {
	var msg protocol.Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		ctrl.wsError(p, "", errors.Join(protocol.ErrMalformedEvent, err), logger)
		return
	}

	event, err := protocol.DecodeMessage(msg)
	if err != nil {
		ctrl.wsError(p, msg.Event, err, logger)
		return
	}

	if join, ok := event.(protocol.JoinEvent); ok && join.RoomID == "" {
		if defaultRoom == "" {
			ctrl.wsError(p, msg.Event, protocol.ErrMissingRoomID, logger)
			return
		}
		join.RoomID = defaultRoom
		event = join
	}

	err = ctrl.relay.Handle(p.id, event)
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrNoRoute), errors.Is(err, relay.ErrPeerGone):
		logger.Debug("drop event", slog.String("event", string(msg.Event)), slog.String("reason", err.Error()))
	case event.Name() == protocol.EventJoin:
		ctrl.wsError(p, msg.Event, err, logger)
	default:
		logger.Warn("handle event", slog.String("event", string(msg.Event)), slog.String("err", err.Error()))
	}
}

// wsError reports a rejected event to its sender. The connection stays open.
func (ctrl *sessionController) wsError(p *peer, event protocol.EventName, err error, logger *slog.Logger) {
	logger.Warn("malformed event", slog.String("event", string(event)), slog.String("err", err.Error()))

	frame, encodeErr := protocol.Encode(protocol.EventError, protocol.ErrorPayload{
		Event:   event,
		Message: errorMessage(err),
	})
	if encodeErr != nil {
		return
	}
	_ = p.Send(frame)
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, protocol.ErrMissingDisplayName), errors.Is(err, room.ErrDisplayNameEmpty):
		return "display name is required"
	case errors.Is(err, protocol.ErrMissingRoomID), errors.Is(err, room.ErrRoomIDIsEmpty):
		return "room id is required"
	case errors.Is(err, protocol.ErrUnknownEvent):
		return "unknown event"
	}
	return "wrong data format"
}

func (ctrl *sessionController) writePump(ctx context.Context, p *peer) error {
	ticker := time.NewTicker(ctrl.config.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.ws.Close()
	}()

	for {
		select {
		case frame := <-p.outbox:
			if err := p.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				p.close()
				return err
			}
		case <-ticker.C:
			if err := p.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.close()
				return err
			}
		case <-p.done:
			_ = p.ws.CloseGracefully()
			return nil
		case <-ctx.Done():
			_ = p.ws.CloseGracefully()
			return nil
		}
	}
}

func (ctrl *sessionController) Resolve(c *echo.Echo) error {
	c.GET("/ws", ctrl.SessionControllerConnect)
	c.GET("/rooms/:roomId/ws", ctrl.SessionControllerConnect)
	return nil
}

var _ protocol.HttpResolvable = (*sessionController)(nil)

type NewSessionControllerParams struct {
	fx.In
	Lifecycle fx.Lifecycle

	Config *variables.Config
	Logger *slog.Logger
	Relay  *relay.Relay
}

func NewSessionController(params NewSessionControllerParams) *sessionController {
	ctx, cancel := context.WithCancelCause(context.Background())

	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			cancel(ErrServerShutdown)
			return nil
		},
	})

	return &sessionController{
		logger: params.Logger,
		relay:  params.Relay,
		config: params.Config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     wsutils.CheckOrigin(params.Config.AllowedOrigins),
		},
		ctx:    ctx,
		cancel: cancel,
	}
}
