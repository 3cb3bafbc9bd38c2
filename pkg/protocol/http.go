package protocol

import (
	echo "github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const httpControllerTag = `group:"http.controller"`

type HttpRouter = *echo.Echo

// HttpResolvable mounts a controller's routes on the shared router.
type HttpResolvable interface {
	Resolve(HttpRouter) error
}

// AsHttpController registers a constructor result in the http.controller
// group consumed by the http module.
func AsHttpController(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(HttpResolvable)),
		fx.ResultTags(httpControllerTag),
	)
}
