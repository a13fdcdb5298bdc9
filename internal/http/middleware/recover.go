package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

// Recover turns a panicking handler into an error for the app's ErrorHandler
// and logs the stack. Register it after Logger and the metrics middleware so
// they observe the resulting 500.
func Recover(log *logrus.Logger) fiber.Handler {
	return fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			rid, _ := c.Locals(RequestIDLocalKey).(string)
			log.WithFields(logrus.Fields{
				"request_id": rid,
				"method":     c.Method(),
				"path":       c.Path(),
				"panic":      fmt.Sprint(e),
				"stack":      string(debug.Stack()),
			}).Error("handler panic")
		},
	})
}
