package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/cpabot/core/logger"
	tghelpers "github.com/m3rciful/cpabot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// PanicNotice is shown to a user whose button press crashed a handler.
const PanicNotice = "Something went wrong, please try again."

// RecoverMiddleware turns a handler panic into an error log line tagged with the
// update's rid. A pending callback is answered so the client stops spinning.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelError, "tg.panic",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(fmt.Sprint(r), 256)),
				slog.String("stack", string(debug.Stack())),
			)
			_ = tghelpers.Alert(c, PanicNotice)
			err = nil
		}()
		return next(c)
	}
}
