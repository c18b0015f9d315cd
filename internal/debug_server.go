// Package internal holds the operator-facing debug HTTP server.
package internal

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
)

const defaultInspectLimit = 50

type StatsProvider func() map[string]any

// InspectRow is one message as shown by /inspect.
type InspectRow struct {
	ID       uint64 `json:"id"`
	Author   string `json:"author"`
	Text     string `json:"text,omitempty"`
	ImageRef string `json:"image_ref,omitempty"`
	At       string `json:"at"`
}

// DebugServer serves /metrics, /healthz, /stats and /inspect.
type DebugServer struct {
	log    *slog.Logger
	server *http.Server
}

func NewDebugServer(log *slog.Logger, address string, gatherer prometheus.Gatherer,
	repository contract.IMessageRepository, tail func() domain.MessageID,
	statsProvider StatsProvider) *DebugServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		stats := map[string]any{}
		if statsProvider != nil {
			stats = statsProvider()
		}
		writeJSON(w, stats)
	})
	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		rows, err := inspect(r, repository, tail())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, rows)
	})
	return &DebugServer{
		log: log,
		server: &http.Server{
			Addr:              address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler is exposed for tests.
func (d *DebugServer) Handler() http.Handler { return d.server.Handler }

// Start serves in the background until Shutdown.
func (d *DebugServer) Start() {
	go func() {
		d.log.Info("Starting debug server", "address", d.server.Addr)
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Error("Debug server stopped", "error", err)
		}
	}()
}

func (d *DebugServer) Shutdown(ctx context.Context) error {
	return d.server.Shutdown(ctx)
}

// inspect returns the last messages of the log, newest last.
// ?after=<id> starts after a given id, ?limit=<n> bounds the page.
func inspect(r *http.Request, repository contract.IMessageRepository, tail domain.MessageID) ([]InspectRow, error) {
	limit := defaultInspectLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid limit %q", raw)
		}
		limit = n
	}
	after := domain.Beginning
	if tail > domain.MessageID(limit) {
		after = tail - domain.MessageID(limit)
	}
	if raw := r.URL.Query().Get("after"); raw != "" {
		id, err := domain.ParseMessageID(raw)
		if err != nil {
			return nil, err
		}
		after = id
	}

	messages, err := repository.GetMessages(after, tail, limit)
	if err != nil {
		return nil, err
	}
	return lo.Map(messages, func(m domain.Message, _ int) InspectRow {
		return InspectRow{
			ID:       uint64(m.ID),
			Author:   m.Author,
			Text:     m.Text,
			ImageRef: m.ImageRef,
			At:       m.At.Format(time.RFC3339),
		}
	}), nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
