// Package httpapi is the inbound HTTP/SSE control surface (spec §6):
// start/stop/clear/status over JSON, and a Server-Sent Events stream of
// the bus's four topics. Grounded on internal/web/web.go's route
// registration style (http.ServeMux, one handler method per route) and
// tombee-conductor's StreamEvents handler for the SSE shape.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cloudphone/internal/cloudphone/bus"
	"cloudphone/internal/cloudphone/csvimport"
	"cloudphone/internal/cloudphone/metrics"
	"cloudphone/internal/cloudphone/orchestrator"
	"cloudphone/internal/cloudphone/store"
	"cloudphone/pkg/cloudphone"
)

const pingInterval = 30 * time.Second

// Handler serves the workflow control and status endpoints.
type Handler struct {
	orch  *orchestrator.Orchestrator
	store *store.Store
	bus   *bus.Bus
}

// New constructs a Handler and registers its routes on mux.
func New(orch *orchestrator.Orchestrator, st *store.Store, b *bus.Bus) http.Handler {
	h := &Handler{orch: orch, store: st, bus: b}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /workflow/start", h.handleStart)
	mux.HandleFunc("POST /workflow/stop", h.handleStop)
	mux.HandleFunc("POST /workflow/clear", h.handleClear)
	mux.HandleFunc("GET /workflow/status", h.handleStatus)
	mux.HandleFunc("GET /events", h.handleEvents)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// startRequest mirrors the POST /workflow/start body (spec §6), plus the
// fields WorkflowConfig needs that spec.md's distilled body omitted
// (SPEC_FULL §6).
type startRequest struct {
	APIToken              string                `json:"apiToken"`
	GroupName             string                `json:"groupName"`
	AccountData           string                `json:"accountData"`
	IGAppVersionID        string                `json:"igAppVersionId"`
	PackageName           string                `json:"packageName"`
	Platform              cloudphone.Platform   `json:"platform"`
	ConcurrencyLimit      int                   `json:"concurrencyLimit"`
	MaxRetriesPerStage    int                   `json:"maxRetriesPerStage"`
	BaseBackoffSeconds    int                   `json:"baseBackoffSeconds"`
	PollIntervalSeconds   int                   `json:"pollIntervalSeconds"`
	PollTimeoutSeconds    int                   `json:"pollTimeoutSeconds"`
	WorkflowType          cloudphone.WorkflowType `json:"workflowType"`
	CustomLoginFlowID     string                `json:"customLoginFlowId"`
	CustomLoginFlowParams []string              `json:"customLoginFlowParams"`
	SetupFlowIDs          map[string]string     `json:"setupFlowIds"`
	WarmupParams          cloudphone.WarmupParams `json:"warmupParams"`
	CustomTaskOrder       []string              `json:"customTaskOrder"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	accounts, err := csvimport.Parse(req.AccountData)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid accountData: %v", err), http.StatusBadRequest)
		return
	}

	cfg := cloudphone.WorkflowConfig{
		APIToken:            req.APIToken,
		GroupName:           req.GroupName,
		Accounts:            accounts,
		AppVersionID:        req.IGAppVersionID,
		PackageName:         req.PackageName,
		Platform:            req.Platform,
		ConcurrencyLimit:    req.ConcurrencyLimit,
		MaxRetriesPerStage:  req.MaxRetriesPerStage,
		BaseBackoffSeconds:  req.BaseBackoffSeconds,
		PollIntervalSeconds: req.PollIntervalSeconds,
		PollTimeoutSeconds:  req.PollTimeoutSeconds,
		WorkflowType:        req.WorkflowType,
		CustomLoginFlowID:   req.CustomLoginFlowID,
		CustomLoginFlowKeys: req.CustomLoginFlowParams,
		SetupFlowIDs:        req.SetupFlowIDs,
		WarmupParams:        req.WarmupParams,
		CustomTaskOrder:     req.CustomTaskOrder,
	}
	if cfg.WorkflowType == "" {
		cfg.WorkflowType = cloudphone.WorkflowWarmup
	}
	if cfg.Platform == "" {
		cfg.Platform = cloudphone.PlatformInstagram
	}

	if err := h.orch.Start(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.orch.Stop()
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.Clear(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// statusResponse is the GET /workflow/status snapshot (spec §6).
type statusResponse struct {
	Status     cloudphone.WorkflowStatus  `json:"status"`
	Phones     []cloudphone.PhoneJob      `json:"phones"`
	Results    cloudphone.ResultsSummary  `json:"results"`
	Logs       []cloudphone.LogEntry      `json:"logs"`
	StartedAt  *time.Time                 `json:"startedAt,omitempty"`
	CompletedAt *time.Time                `json:"completedAt,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	started, completed := h.store.Timestamps()
	resp := statusResponse{
		Status:      h.store.Status(),
		Phones:      h.store.Jobs(),
		Results:     h.store.GetResultsSummary(),
		Logs:        h.store.GetLogs(100),
		StartedAt:   started,
		CompletedAt: completed,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id, ch, err := h.bus.Subscribe()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer h.bus.Unsubscribe(id)

	writeEvent(w, bus.Event{Topic: bus.TopicWorkflowStatus, Payload: bus.WorkflowStatusEvent{Status: h.store.Status()}})
	for _, job := range h.store.Jobs() {
		writeEvent(w, bus.Event{Topic: bus.TopicPhoneUpdate, Payload: job})
	}
	flusher.Flush()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev bus.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
