// Package logging contains data structures useful to implement logging
// across redisconn in a Docker friendly way.
package logging

import (
	golog "log"
	"net/http"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/gorilla/handlers"
)

// Logger is a logger that logs messages on the standard error
// in a structured JSON format, to simplify processing.
var Logger = log.Logger{
	Handler: json.New(os.Stderr),
	Level:   log.InfoLevel,
}

// SetLevel changes the minimum level emitted by Logger. Unknown names
// leave the level unchanged and return the parse error.
func SetLevel(name string) error {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return err
	}
	Logger.Level = lvl
	return nil
}

// MakeAccessLogHandler wraps |handler| with another handler that logs
// access to each resource on the standard output. Access logs use the
// Apache common log format rather than JSON.
func MakeAccessLogHandler(handler http.Handler) http.Handler {
	return handlers.LoggingHandler(golog.Writer(), handler)
}
