package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"quiz-eval-service/internal/domain"
)

// Evaluator runs one evaluation request through the pipeline.
type Evaluator interface {
	Evaluate(ctx context.Context, req domain.Request) (domain.Outcome, error)
}

// Reporter reads aggregate results.
type Reporter interface {
	Domain(ctx context.Context, name string) (domain.DomainReport, error)
	Overall(ctx context.Context) (domain.OverallReport, error)
}

type APIHandler struct {
	evaluator Evaluator
	reporter  Reporter
	logger    *zap.Logger
}

func NewAPIHandler(evaluator Evaluator, reporter Reporter, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{evaluator: evaluator, reporter: reporter, logger: logger}
}

const maxAskBodyBytes = 1 << 20

type errorBody struct {
	Error            string `json:"error"`
	ReceivedResponse string `json:"receivedResponse,omitempty"`
}

// Ask handles POST /api/ask.
func (h *APIHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req domain.Request
	r.Body = http.MaxBytesReader(w, r.Body, maxAskBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "Request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}

	// A started pipeline runs to completion even if the caller goes away.
	out, err := h.evaluator.Evaluate(context.WithoutCancel(r.Context()), req)
	var invalid *domain.InvalidResponseError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, out)
	case errors.Is(err, domain.ErrUnknownDomain):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid or missing domain. Must be one of: " + knownDomains()})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:            "Invalid model response - must be a single letter (a, b, c, or d)",
			ReceivedResponse: invalid.Raw,
		})
	default:
		h.logger.Error("evaluation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to process question"})
	}
}

// Results handles GET /api/results[?domain=].
func (h *APIHandler) Results(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("domain")
	if name == "" {
		report, err := h.reporter.Overall(r.Context())
		if err != nil {
			h.logger.Error("failed to fetch overall results", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to fetch data"})
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	report, err := h.reporter.Domain(r.Context(), name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case errors.Is(err, domain.ErrUnknownDomain):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid domain"})
	default:
		h.logger.Error("failed to fetch domain results", zap.String("domain", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to fetch data"})
	}
}

// Add handles GET /api/add?a=&b=.
func (h *APIHandler) Add(w http.ResponseWriter, r *http.Request) {
	a, errA := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("a")))
	b, errB := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("b")))
	if errA != nil || errB != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid inputs - a and b must be numbers"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"result": a + b})
}

func knownDomains() string {
	names := make([]string, 0, 3)
	for _, d := range domain.All() {
		names = append(names, d.String())
	}
	return strings.Join(names, ", ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
