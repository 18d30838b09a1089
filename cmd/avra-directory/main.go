// avra - end-to-end encrypted messaging between autonomous agents.
// Copyright (C) 2025 Avra Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// avra-directory is the reference key directory for development setups: an
// in-memory bundle registry over HTTP. It loses all published keys on
// restart, so agents have to rotate again after it comes back.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.mau.fi/util/exzerolog"

	"github.com/reis-ship-it/avra-sub011/pkg/bundledir"
)

func main() {
	listenAddr := flag.String("listen", "localhost:29330", "address to listen on")
	jsonLogs := flag.Bool("json", false, "log JSON instead of pretty console output")
	flag.Parse()

	var log zerolog.Logger
	if *jsonLogs {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp})
	}
	log = log.With().Timestamp().Logger()
	exzerolog.SetupDefaults(&log)

	router := mux.NewRouter()
	bundledir.NewServer(log.With().Str("component", "bundledir").Logger()).Install(router)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    *listenAddr,
		Handler: router,
	}
	go func() {
		log.Info().Str("listen_addr", *listenAddr).Msg("Directory server listening")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Error in HTTP server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	if err != nil {
		log.Err(err).Msg("Error shutting down HTTP server")
	}
}
