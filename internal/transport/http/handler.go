package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"fleet-monitor/reconciler/internal/domain"
	"fleet-monitor/reconciler/internal/reconcile"
)

const maxBodyBytes = 8 << 20

type BatchProcessor interface {
	Process(ctx context.Context, batch []domain.TelemetryEvent) (reconcile.BatchResult, error)
}

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	processor BatchProcessor
	maxEvents int
	deps      map[string]Pinger
	logger    *slog.Logger
}

func NewHandler(p BatchProcessor, maxEvents int, deps map[string]Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{processor: p, maxEvents: maxEvents, deps: deps, logger: logger}
}

// Routes mounts the batch endpoint behind auth and the health check.
func (h *Handler) Routes(mux *http.ServeMux, authMW *AuthMiddleware) {
	mux.Handle("POST /v1/telemetry/batches", authMW.Wrap(http.HandlerFunc(h.handleBatch)))
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

type groupResponse struct {
	VehicleID    string   `json:"vehicleId"`
	OdometerHigh float64  `json:"odometerHigh"`
	Outcome      string   `json:"outcome"`
	TripID       string   `json:"tripId,omitempty"`
	TripStatus   string   `json:"tripStatus,omitempty"`
	Alerts       []string `json:"alerts,omitempty"`
	Error        string   `json:"error,omitempty"`
}

type batchResponse struct {
	Groups  []groupResponse `json:"groups"`
	Dropped int             `json:"dropped"`
	Failed  int             `json:"failed"`
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	events, err := decodeBatch(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(events) > h.maxEvents {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("batch has %d events, limit is %d", len(events), h.maxEvents))
		return
	}

	res, err := h.processor.Process(r.Context(), events)

	resp := batchResponse{
		Groups:  make([]groupResponse, 0, len(res.Groups)),
		Dropped: res.Dropped,
		Failed:  res.Failed(),
	}
	for _, g := range res.Groups {
		gr := groupResponse{
			VehicleID:    g.VehicleID,
			OdometerHigh: g.OdometerHigh,
			Outcome:      string(g.Status),
			TripID:       g.TripID,
			TripStatus:   string(g.TripStatus),
		}
		for _, a := range g.Alerts {
			gr.Alerts = append(gr.Alerts, string(a.Kind))
		}
		if g.Err != nil {
			gr.Error = g.Err.Error()
		}
		resp.Groups = append(resp.Groups, gr)
	}

	status := http.StatusOK
	if err != nil {
		// Some groups failed; the feed should redeliver the batch.
		status = http.StatusMultiStatus
		h.logger.Warn("batch partially failed",
			"source", SourceFromContext(r.Context()),
			"failed", resp.Failed,
			"groups", len(resp.Groups),
		)
	}
	writeJSON(w, status, resp)
}

// decodeBatch accepts either a bare JSON array of events or an object with
// an "events" array.
func decodeBatch(body io.Reader) ([]domain.TelemetryEvent, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	var events []domain.TelemetryEvent
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, fmt.Errorf("invalid batch: %w", err)
		}
		return events, nil
	}

	var wrapped struct {
		Events []domain.TelemetryEvent `json:"events"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("invalid batch: %w", err)
	}
	return wrapped.Events, nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	healthy := true
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"healthy": healthy,
		"checks":  checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
