package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	applogger "ValueFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover turns handler panics into logged 500 responses so one bad
// request cannot take the server down.
func Recover(log *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("%v", r)
				}
				log.Error("panic recovered",
					applogger.Error(err),
					applogger.String("path", c.Path()),
					applogger.String("stack", string(debug.Stack())),
				)
				_ = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"status":  http.StatusInternalServerError,
					"message": "Internal Server Error",
				})
			}()
			return next(c)
		}
	}
}
