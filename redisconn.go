package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-lab/go/httpx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/go/warnonerror"

	"github.com/m-lab/redisconn/logging"
	"github.com/m-lab/redisconn/redis"
)

// Flags that can be passed in on the command line, or as the matching
// upper-case environment variable.
var (
	healthAddr = flag.String("health-addr", ":8080", "The address and port to use for the health endpoint")
	logLevel   = flag.String("log-level", "info", "Minimum level of JSON logs written to stderr")

	// Context for the whole program.
	ctx, cancel = context.WithCancel(context.Background())
)

// stateReporter is the part of *redis.Handle used by the health endpoint.
type stateReporter interface {
	IsOpen() bool
}

// healthHandler answers 200 while the handle is open and 503 otherwise.
func healthHandler(h stateReporter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if !h.IsOpen() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("closed\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("open\n"))
	})
}

func main() {
	redisCfg, err := redis.LoadConfig(flag.CommandLine, os.Args[1:])
	rtx.Must(err, "Could not load configuration")
	rtx.Must(logging.SetLevel(*logLevel), "Bad log level %q", *logLevel)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
	}()

	promSrv := prometheusx.MustServeMetrics()
	defer warnonerror.Close(promSrv, "Could not close metrics server")

	handle := redis.New(redisCfg)
	rtx.Must(handle.Connect(ctx), "Could not connect to redis at %s", redisCfg.Addr())

	mux := http.NewServeMux()
	mux.Handle("/health", healthHandler(handle))
	healthSrv := &http.Server{
		Addr:    *healthAddr,
		Handler: logging.MakeAccessLogHandler(mux),
	}
	rtx.Must(httpx.ListenAndServeAsync(healthSrv), "Could not start health server")
	defer warnonerror.Close(healthSrv, "Could not close health server")
	logging.Logger.Info("Serving health on " + healthSrv.Addr)

	<-ctx.Done()

	// ctx is already canceled here.
	if err := handle.Disconnect(context.Background()); err != nil {
		logging.Logger.WithError(err).Warn("Disconnect failed")
	}
}
