// Package logger sets up the process-wide zerolog logger and the gin
// request logging middleware.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init builds the logger, installs it as the zerolog global and returns it.
// format is "json" or "console"; verbose enables debug level.
func Init(format string, verbose bool) zerolog.Logger {
	return InitTo(os.Stdout, format, verbose)
}

func InitTo(out io.Writer, format string, verbose bool) zerolog.Logger {
	var w io.Writer = out
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	log.Logger = l
	return l
}

// Requests logs one line per handled request.
func Requests(l zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		var evt *zerolog.Event
		switch {
		case status >= 500:
			evt = l.Error()
		case status >= 400:
			evt = l.Warn()
		default:
			evt = l.Info()
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.ByType(gin.ErrorTypePrivate).String())
		}
		evt.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Int("size", c.Writer.Size()).
			Msg("request")
	}
}
