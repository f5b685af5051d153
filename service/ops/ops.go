// Package ops serves the operational HTTP surface: Prometheus metrics,
// health, an aggregated depth view built from the publisher's shadow
// books, and the websocket delta stream. None of it sits anywhere near
// the matching path.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"matchbox/domain/types"
	"matchbox/marketdata"
)

// Server is the ops HTTP listener.
type Server struct {
	srv         *http.Server
	shadow      *marketdata.Shadow
	depthLevels int
	sample      func()
	log         *slog.Logger
	stop        chan struct{}
}

// New builds the ops server. sample is invoked once a second to refresh
// gauges (ring depths); pass nil to skip.
func New(addr string, shadow *marketdata.Shadow, ws *marketdata.WSBridge, depthLevels int, sample func(), log *slog.Logger) *Server {
	s := &Server{
		shadow:      shadow,
		depthLevels: depthLevels,
		sample:      sample,
		log:         log.With("component", "ops"),
		stop:        make(chan struct{}),
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/depth/{ticker}", s.handleDepth)
	if ws != nil {
		r.Handle("/ws", ws)
	}
	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Start serves in the background and starts the gauge sampler.
func (s *Server) Start() {
	go func() {
		s.log.Info("ops server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("ops server failed", "err", err)
		}
	}()
	if s.sample != nil {
		go func() {
			t := time.NewTicker(time.Second)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					s.sample()
				case <-s.stop:
					return
				}
			}
		}()
	}
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) {
	close(s.stop)
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn("ops shutdown", "err", err)
	}
}

func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	t, err := strconv.ParseUint(chi.URLParam(r, "ticker"), 10, 32)
	if err != nil || t >= types.MaxTickers {
		http.Error(w, "bad ticker", http.StatusBadRequest)
		return
	}
	levels := s.depthLevels
	if q := r.URL.Query().Get("levels"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			levels = n
		}
	}
	view := s.shadow.Depth(types.TickerID(t), levels)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}
