// Package api serves a Fridge to other processes over HTTP, on a unix
// socket or a TCP address.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"kkv/fridge"
)

const shutdownTimeout = 5 * time.Second

// Store API: lifecycle, entries and metrics
type Api struct {
	Network string
	Address string
	DataDir string // Reported in the host disk stats
	Fridge  *fridge.Fridge
	Router  *chi.Mux
}

// Handler returns the router of the API, building it on first use
func (a *Api) Handler() http.Handler {
	if a.Router == nil {
		a.initRouter()
	}
	return a.Router
}

// Serve the API until ctx is done. Blocked gets are interrupted on shutdown.
func (a *Api) Serve(ctx context.Context) error {
	l, err := a.listen()
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(l)
	}()
	log.Info().Str("network", a.Network).Str("address", a.Address).Msg("api listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("api server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server error: %w", err)
	}
	log.Info().Msg("api stopped")
	return nil
}

func (a *Api) listen() (net.Listener, error) {
	if a.Network == "unix" {
		// A socket left behind by a previous run would fail the bind
		if err := os.Remove(a.Address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}
	l, err := net.Listen(a.Network, a.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s %s: %w", a.Network, a.Address, err)
	}
	return l, nil
}

func (a *Api) initRouter() {
	a.Router = chi.NewRouter()
	a.Router.Use(requestLogger)
	a.Router.Post("/init", a.initHandler)
	a.Router.Post("/destroy", a.destroyHandler)
	a.Router.Route("/entries", func(r chi.Router) {
		r.Put("/{key}", a.putHandler)
		r.Get("/{key}", a.getHandler)
	})
	a.Router.Route("/metrics", func(r chi.Router) {
		r.Get("/", a.metricsHandler)
	})
}
