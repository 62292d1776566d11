package receiver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/calebrw/taskgate/internal/idempotency"
	"github.com/calebrw/taskgate/internal/metrics"
	"github.com/calebrw/taskgate/internal/store"
	"github.com/calebrw/taskgate/internal/tracing"
	"github.com/calebrw/taskgate/internal/work"
)

type response struct {
	Status   string `json:"status"`
	TaskName string `json:"taskName,omitempty"`
	Message  string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// Routes registers the webhook and admin endpoints on mux.
func (c *Coordinator) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/invoices", c.handleWebhook)
	mux.HandleFunc("GET /admin/records/{eventID}", c.handleGetRecord)
	mux.HandleFunc("DELETE /admin/records/{eventID}", c.handleDeleteRecord)
}

// handleWebhook accepts one push-queue delivery. The caller only ever sees
// 2xx (done, success or duplicate) or 4xx (reject or retry); ambiguous
// outcomes are resolved internally rather than exposed as 5xx, which could
// trigger retry storms.
func (c *Coordinator) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "receiver.webhook")
	defer span.End()

	taskName := r.Header.Get(c.queueCfg.TaskNameHeader)
	if taskName == "" {
		// No task header means the call did not come from the queue.
		metrics.RecordDelivery("rejected")
		writeJSON(w, http.StatusForbidden, response{Status: "rejected", Message: "unauthorized"})
		return
	}

	retryCount := 0
	if v := r.Header.Get(c.queueCfg.RetryCountHeader); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			retryCount = n
		}
	}

	c.log.WithContext(ctx).WithTask(taskName).WithField("retry_count", retryCount).
		Info("delivery received")

	var items []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil || len(items) == 0 {
		metrics.RecordDelivery("rejected")
		writeJSON(w, http.StatusBadRequest, response{Status: "rejected", Message: "invalid JSON body"})
		return
	}

	var head struct {
		EventID string `json:"eventId"`
	}
	if err := json.Unmarshal(items[0], &head); err != nil || strings.TrimSpace(head.EventID) == "" {
		metrics.RecordDelivery("rejected")
		writeJSON(w, http.StatusBadRequest, response{Status: "rejected", Message: "missing event id"})
		return
	}

	d := work.Delivery{
		EventID:    head.EventID,
		TaskName:   taskName,
		RetryCount: retryCount,
		Payload:    items[0],
	}

	outcome, err := c.Process(ctx, d)
	switch outcome {
	case OutcomeDuplicate:
		writeJSON(w, http.StatusOK, response{Status: "duplicate", Message: "webhook already processed"})
	case OutcomeSuccess:
		writeJSON(w, http.StatusOK, response{Status: "success", TaskName: c.TaskPath(taskName)})
	case OutcomeAbandoned:
		writeJSON(w, http.StatusBadRequest, response{Status: "abandoned", Message: errText(err)})
	default:
		// Retryable: the queue applies its own backoff and redelivers.
		writeJSON(w, http.StatusBadRequest, response{Status: "retry", Message: errText(err)})
	}
}

// handleGetRecord exposes the raw idempotency record for an event id, as an
// operator escape hatch for inspecting the gate state.
func (c *Coordinator) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	rec, err := c.records.Get(r.Context(), idempotency.Key(eventID))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, response{Status: "not_found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, response{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteRecord clears a record, reopening the gate for its event.
// Intended for recovering records stuck in PROCESSING after a failed revert.
func (c *Coordinator) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	c.log.WithContext(r.Context()).WithEvent(eventID).Warn("admin record deletion requested")
	c.gate.Revert(r.Context(), eventID)
	w.WriteHeader(http.StatusNoContent)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
