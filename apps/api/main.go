package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	dig_container "github.com/BISHOP-X/BABCOCK-VPL/apps/api/di/dig"
	echoapi "github.com/BISHOP-X/BABCOCK-VPL/apps/api/echo"
	"github.com/BISHOP-X/BABCOCK-VPL/core"
	appfs "github.com/BISHOP-X/BABCOCK-VPL/fs"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		closers dig_container.ClosersParam,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.ParseEmailTemplates(appfs.FS, apiLogger, true)

		defer func() {
			for _, closer := range closers.Closers {
				if closer == nil {
					continue
				}
				if err := closer.Close(); err != nil {
					apiLogger.Error(fmt.Sprintf("failed to close: %v", err), err)
				}
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)
		expvar.NewString("storage").Set(conf.Storage.Driver)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start API Service

		go server.Start()
		apiLogger.Info("API listening on " + conf.Address())

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
