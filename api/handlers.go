/*
handlers.go - HTTP API handlers for the purchase transaction service

PURPOSE:
  Exposes the transaction query engine via REST API. Handles HTTP
  request/response and JSON serialization, and is the only layer that turns
  typed engine errors into status codes and messages.

ENDPOINTS:
  Transactions:
    GET    /api/purchases/transactions  Paginated grouped purchases

  Health:
    GET    /api/health                  Schema version and row counts

  Admin:
    POST   /api/admin/backups           Run a backup now
    GET    /api/admin/backups/status    Backup scheduler state

  Scenarios (dev only):
    GET    /api/scenarios               List demo data sets
    POST   /api/scenarios/load          Reset and load a demo data set

QUERY PARAMETERS (transactions):
  startDate, endDate  YYYY-MM-DD or RFC3339; endDate is inclusive
  ownerId / memberId  Restrict to one member
  search              Purchase number, member name or member code
  page, limit         1-based page; limit is clamped to the maximum

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid query parameters
  - 504: A store call timed out; narrow the date range
  - 500: Store or member lookup failure
  No partial transactions are ever returned with an error.

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Response data structures
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/Prider/buy-rubber-sub000/logging"
	"github.com/Prider/buy-rubber-sub000/purchase"
	"github.com/Prider/buy-rubber-sub000/store/sqlite"
)

// TimeoutMessage is returned with 504 responses.
const TimeoutMessage = "query timeout, narrow the date range"

// StatusClientClosedRequest is logged when the caller disconnects before
// the query finishes.
const StatusClientClosedRequest = 499

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *purchase.Engine
	Store     *sqlite.Store
	Scheduler *BackupScheduler

	// currentScenario is the last demo data set loaded; guarded by scenarioMu.
	scenarioMu      sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(engine *purchase.Engine, store *sqlite.Store, scheduler *BackupScheduler) *Handler {
	return &Handler{
		Engine:    engine,
		Store:     store,
		Scheduler: scheduler,
	}
}

// =============================================================================
// TRANSACTION ENDPOINTS
// =============================================================================

// ListTransactions returns one page of grouped purchase transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q, err := purchase.ParseQuery(r.URL.Query(), h.Engine.Limits())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	res, err := h.Engine.Query(r.Context(), q)
	if err != nil {
		if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
			log := logging.FromContext(r.Context())
			log.Debug().Msg("client went away")
			w.WriteHeader(StatusClientClosedRequest)
			return
		}
		status, message := classifyQueryError(err)
		writeError(w, status, message, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionListResponse(res))
}

// classifyQueryError maps engine errors to an HTTP status and message.
func classifyQueryError(err error) (int, string) {
	switch {
	case purchase.IsTimeout(err):
		return http.StatusGatewayTimeout, TimeoutMessage
	case purchase.IsClientError(err):
		return http.StatusBadRequest, "Invalid query parameters"
	default:
		return http.StatusInternalServerError, "Failed to load transactions"
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports schema version and table sizes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	version, err := h.Store.SchemaVersion()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database not ready", err)
		return
	}
	counts, err := h.Store.Counts(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database not ready", err)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		SchemaVersion: version,
		Members:       counts.Members,
		Purchases:     counts.Purchases,
		Expenses:      counts.Expenses,
	})
}

// =============================================================================
// BACKUP ENDPOINTS
// =============================================================================

// TriggerBackup runs a backup immediately.
func (h *Handler) TriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Backups are not configured", nil)
		return
	}

	runID, path, err := h.Scheduler.RunNow(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Backup failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, BackupResponse{RunID: runID, Path: path})
}

// BackupStatus returns the backup scheduler state.
func (h *Handler) BackupStatus(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Backups are not configured", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.Scheduler.Status())
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
