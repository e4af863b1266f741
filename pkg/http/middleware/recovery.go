package middleware

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
)

// Recover catches handler panics, logs the stack, and answers 500 instead
// of dropping the connection.
func Recover() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				recoverPanic(c, r)
			}()
			return next(c)
		}
	}
}

func recoverPanic(c echo.Context, r interface{}) {
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%v", r)
	}
	log.Printf("PANIC: %v\n%s", err, debug.Stack())
	_ = c.JSON(http.StatusInternalServerError, echo.Map{
		"status":  http.StatusInternalServerError,
		"message": "Internal Server Error",
	})
}
