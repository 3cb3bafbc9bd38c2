package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v4"
	"github.com/romashorodok/collab-relay/pkg/controller/room"
	"github.com/romashorodok/collab-relay/pkg/protocol"
	"github.com/romashorodok/collab-relay/pkg/variables"
	"github.com/romashorodok/collab-relay/pkg/wsutils"
	"go.uber.org/fx"
)

type roomController struct {
	logger       *slog.Logger
	manager      *Manager
	roomNotifier *RoomNotifier
	upgrader     websocket.Upgrader
	config       *variables.Config
	spec         *openapi3.T

	ctx context.Context
}

func NullableRoomID(roomID *string) string {
	if roomID != nil && *roomID != "" {
		return *roomID
	}
	return uuid.NewString()
}

func participants(members []protocol.Member) []room.Participant {
	result := make([]room.Participant, 0, len(members))
	for _, m := range members {
		result = append(result, room.Participant{
			SocketId: m.SocketID,
			Username: m.Username,
		})
	}
	return result
}

func (ctrl *roomController) RoomControllerRoomList(c echo.Context) error {
	rooms := ctrl.manager.ListRoom()
	result := make([]room.Room, 0, len(rooms))
	for _, info := range rooms {
		result = append(result, room.Room{
			RoomId:       info.RoomID,
			Participants: participants(info.Participants),
		})
	}
	return c.JSON(http.StatusOK, room.RoomListResponse{
		Rooms: result,
	})
}

func (ctrl *roomController) RoomControllerRoomGet(c echo.Context, roomId string) error {
	return c.JSON(http.StatusOK, room.Room{
		RoomId:       roomId,
		Participants: participants(ctrl.manager.MembersOf(roomId)),
	})
}

// RoomControllerRoomCreate hands out a room id. The room itself appears on
// its first join.
func (ctrl *roomController) RoomControllerRoomCreate(c echo.Context) error {
	var request room.RoomControllerRoomCreateJSONRequestBody
	if c.Request().ContentLength != 0 {
		if err := json.NewDecoder(c.Request().Body).Decode(&request); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "wrong data format").SetInternal(err)
		}
	}

	return c.JSON(http.StatusCreated, room.RoomCreateResponse{
		RoomId: NullableRoomID(request.RoomId),
	})
}

func (ctrl *roomController) RoomControllerHealth(c echo.Context) error {
	rooms, connections := ctrl.manager.Stats()
	return c.JSON(http.StatusOK, room.HealthResponse{
		Status:      "ok",
		Rooms:       int32(rooms),
		Connections: int32(connections),
	})
}

func (ctrl *roomController) RoomControllerRoomNotifier(c echo.Context) error {
	conn, err := ctrl.upgrader.Upgrade(c.Response().Writer, c.Request(), nil)
	if err != nil {
		ctrl.logger.Error("unable upgrade notifier request", slog.String("err", err.Error()))
		return nil
	}

	w := wsutils.NewThreadSafeWriter(conn, ctrl.config.WriteWait)
	defer w.Close()

	id := uuid.NewString()
	ctrl.roomNotifier.Listen(id, w)
	defer ctrl.roomNotifier.Stop(id)

	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctrl.ctx.Done():
			_ = w.CloseGracefully()
		case <-closed:
		}
	}()

	ctrl.writeRooms(w)

	// the lobby sends nothing, reading only detects the close
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return nil
		}
	}
}

func (ctrl *roomController) writeRooms(w *wsutils.ThreadSafeWriter) {
	frame, err := protocol.Encode(protocol.EventUpdateRooms, protocol.UpdateRoomsPayload{
		Rooms: ctrl.manager.ListRoom(),
	})
	if err != nil {
		return
	}
	if err := w.WriteMessage(websocket.TextMessage, frame); err != nil {
		ctrl.logger.Debug("notifier write", slog.String("err", err.Error()))
	}
}

func (ctrl *roomController) RoomControllerOpenAPI(c echo.Context) error {
	return c.JSON(http.StatusOK, ctrl.spec)
}

func (ctrl *roomController) Resolve(c *echo.Echo) error {
	spec, err := room.GetSwagger()
	if err != nil {
		return err
	}
	spec.Servers = nil
	ctrl.spec = spec

	go ctrl.roomNotifier.OnUpdateRooms(ctrl.ctx, ctrl.writeRooms)

	room.RegisterHandlers(c, ctrl)
	c.GET("/rooms/notifier", ctrl.RoomControllerRoomNotifier)
	c.GET("/openapi.json", ctrl.RoomControllerOpenAPI)
	return nil
}

var (
	_ room.ServerInterface    = (*roomController)(nil)
	_ protocol.HttpResolvable = (*roomController)(nil)
)

type NewRoomControllerParams struct {
	fx.In
	Lifecycle fx.Lifecycle

	Config       *variables.Config
	Logger       *slog.Logger
	Manager      *Manager
	RoomNotifier *RoomNotifier
}

func NewRoomController(params NewRoomControllerParams) *roomController {
	ctx, cancel := context.WithCancelCause(context.Background())
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			cancel(ErrNotifierStopped)
			return nil
		},
	})

	return &roomController{
		logger:       params.Logger,
		manager:      params.Manager,
		roomNotifier: params.RoomNotifier,
		config:       params.Config,
		upgrader: websocket.Upgrader{
			CheckOrigin: wsutils.CheckOrigin(params.Config.AllowedOrigins),
		},
		ctx: ctx,
	}
}
