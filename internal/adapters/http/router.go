package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/annual-report-rag/internal/config"
	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
	"github.com/kirillkom/annual-report-rag/internal/observability/metrics"
)

const maxRequestBody = 1 << 20

type Router struct {
	cfg      config.Config
	answerer ports.QuestionAnswerer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewRouter(
	cfg config.Config,
	answerer ports.QuestionAnswerer,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		answerer: answerer,
		metrics:  m,
		logger:   logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/answers", rt.answer)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIQueueWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler, rt.logger)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type answerRequest struct {
	Question string `json:"question"`
	Kind     string `json:"kind"`
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	var req answerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, errors.New("invalid json"))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("question is required"))
		return
	}
	kind, err := domain.ParseAnswerKind(req.Kind)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	if rt.cfg.APIRequestTimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(rt.cfg.APIRequestTimeoutSec)*time.Second)
		defer cancel()
	}

	record, err := rt.answerer.Answer(ctx, domain.Question{Text: req.Question, Kind: kind})
	if err != nil {
		rt.logger.Error("answer_failed",
			"request_id", requestIDFromContext(r.Context()),
			"kind", kind,
			"error", err,
		)
		writeError(w, r, mapErrorToHTTPStatus(err), err)
		return
	}
	if record.References == nil {
		record.References = []domain.Reference{}
	}
	writeJSON(w, http.StatusOK, record)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, status, map[string]string{
		"error":      err.Error(),
		"request_id": requestIDFromContext(r.Context()),
	})
}
