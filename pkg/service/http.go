package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/romashorodok/collab-relay/pkg/protocol"
	"github.com/romashorodok/collab-relay/pkg/variables"
	"go.uber.org/fx"
)

type httpServer_Params struct {
	fx.In
	Lifecycle fx.Lifecycle

	Controllers []protocol.HttpResolvable `group:"http.controller"`
	Config      *variables.Config
	Logger      *slog.Logger
}

func httpErrorHandler(e *echo.Echo, logger *slog.Logger) func(err error, c echo.Context) {
	return func(err error, c echo.Context) {
		logger.Error(err.Error(),
			slog.String("method", c.Request().Method),
			slog.String("path", c.Request().URL.Path),
		)
		e.DefaultHTTPErrorHandler(err, c)
	}
}

func newRouter(params httpServer_Params) (*echo.Echo, error) {
	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = httpErrorHandler(router, params.Logger)

	router.Use(middleware.Recover())
	router.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: params.Config.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))

	for _, controller := range params.Controllers {
		if err := controller.Resolve(router); err != nil {
			return nil, err
		}
	}
	return router, nil
}

func httpServer(params httpServer_Params) error {
	router, err := newRouter(params)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%s", params.Config.HTTPPort)
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				params.Logger.Info("http server listening", slog.String("addr", addr))
				if err := router.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					params.Logger.Error("http server stopped", slog.String("err", err.Error()))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return router.Shutdown(ctx)
		},
	})
	return nil
}

var HttpModule = fx.Module("http", fx.Invoke(httpServer))
