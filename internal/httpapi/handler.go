// Package httpapi exposes the ledger over HTTP behind the identity guard.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/sheikh-saqib/split-ledger-gateway/internal/identity"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/ledger"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/models"
)

const maxBodyBytes = 1 << 20

// LedgerService is the part of *ledger.Ledger the handlers call.
type LedgerService interface {
	PostSplit(ctx context.Context, req ledger.SplitRequest) (models.Transaction, bool, error)
	GetSummary(ctx context.Context, subjectID string) (models.Summary, error)
	Page(ctx context.Context, subjectID string, limit int, cursor *models.Cursor) (models.Page, error)
}

// Authorizer wraps protected handlers.
type Authorizer interface {
	Middleware(next http.Handler) http.Handler
}

type Handler struct {
	mux    *http.ServeMux
	ledger LedgerService
	logger *slog.Logger
}

// NewHandler registers routes. Everything under /api/ passes through guard.
func NewHandler(svc LedgerService, guard Authorizer, logger *slog.Logger) http.Handler {
	h := &Handler{
		mux:    http.NewServeMux(),
		ledger: svc,
		logger: identity.ResolveLogger(logger),
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/transactions", h.handleTransactions)
	api.HandleFunc("POST /api/execute_split", h.handleExecuteSplit)
	api.HandleFunc("GET /api/vault_summary", h.handleVaultSummary)
	api.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "endpoint not found")
	})

	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.Handle("/api/", guard.Middleware(api))
	return withCORS(h.mux)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	subjectID := identity.SubjectIDFromContext(r.Context())
	query := r.URL.Query()

	limit := ledger.DefaultPageLimit
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < ledger.MinPageLimit || parsed > ledger.MaxPageLimit {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", ledger.ErrInvalidLimit.Error())
			return
		}
		limit = parsed
	}

	cursor, err := parseCursor(query.Get("cursor_timestamp"), query.Get("cursor_sequence_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CURSOR", err.Error())
		return
	}

	page, err := h.ledger.Page(r.Context(), subjectID, limit, cursor)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page))
}

var errCursorPair = errors.New("cursor_timestamp and cursor_sequence_id must be supplied together")

// parseCursor requires both halves or neither; a missing half is never guessed.
func parseCursor(rawTS, rawSeq string) (*models.Cursor, error) {
	rawTS, rawSeq = strings.TrimSpace(rawTS), strings.TrimSpace(rawSeq)
	if rawTS == "" && rawSeq == "" {
		return nil, nil
	}
	if rawTS == "" || rawSeq == "" {
		return nil, errCursorPair
	}
	ts, err := models.ParseTimestamp(rawTS)
	if err != nil {
		return nil, errors.New("cursor_timestamp is not a valid timestamp")
	}
	seq, err := strconv.ParseInt(rawSeq, 10, 64)
	if err != nil || seq < 1 {
		return nil, errors.New("cursor_sequence_id must be a positive integer")
	}
	return &models.Cursor{Timestamp: ts, SequenceID: seq}, nil
}

func (h *Handler) handleExecuteSplit(w http.ResponseWriter, r *http.Request) {
	subjectID := identity.SubjectIDFromContext(r.Context())

	var req splitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return
	}

	tx, replayed, err := h.ledger.PostSplit(r.Context(), ledger.SplitRequest{
		SubjectID:      subjectID,
		Amount:         req.Amount,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, splitResponse{
		Status:     "committed",
		ResolvedID: tx.SubjectID,
		Policy:     "60/30/10",
		Split: splitShares{
			Creator: tx.CreatorShare.StringFixed(2),
			Pool:    tx.PoolShare.StringFixed(2),
			Fee:     tx.FeeShare.StringFixed(2),
		},
		SequenceID: tx.SequenceID,
		Amount:     tx.Amount,
		Timestamp:  models.FormatTimestamp(tx.CreatedAt),
		Replayed:   replayed,
	})
}

func (h *Handler) handleVaultSummary(w http.ResponseWriter, r *http.Request) {
	subjectID := identity.SubjectIDFromContext(r.Context())
	summary, err := h.ledger.GetSummary(r.Context(), subjectID)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		SubjectID:    summary.SubjectID,
		CreatorTotal: summary.CreatorTotal.StringFixed(2),
		PoolTotal:    summary.PoolTotal.StringFixed(2),
		Transactions: summary.Count,
	})
}

func (h *Handler) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "INVALID_MAGNITUDE", err.Error())
	case errors.Is(err, ledger.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "INVALID_LIMIT", err.Error())
	case errors.Is(err, ledger.ErrSubjectRequired):
		writeError(w, http.StatusForbidden, identity.CodeNoCredential, err.Error())
	default:
		h.logger.Error("ledger request failed",
			"event", "ledger_request_failed",
			"module", "internal/httpapi",
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "ledger unavailable")
	}
}

var allowedOrigin = regexp.MustCompile(`^https?://`)

var allowedHeaders = strings.Join([]string{
	"Authorization",
	"Content-Type",
	"Idempotency-Key",
	identity.HeaderTONCredential,
	identity.HeaderBackupCredential,
}, ", ")

// withCORS answers preflight requests and decorates responses for browser
// origins. Preflights never reach the guard.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowedOrigin.MatchString(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
