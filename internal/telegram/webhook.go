package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/markusylisiurunen/rolodex/internal/logger"
	"github.com/markusylisiurunen/rolodex/internal/metrics"
)

const (
	WebhookPath  = "/webhook"
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// Webhook receives updates pushed by Telegram. Handling continues on the base context after the
// delivery is acknowledged so slow agent runs never cause Telegram to redeliver.
type Webhook struct {
	base       context.Context
	dispatcher Dispatcher
	secret     string
	metrics    *metrics.Metrics
	logger     logger.Logger
}

type WebhookOption func(*Webhook)

// WithSecret rejects deliveries whose secret token header does not match.
func WithSecret(secret string) WebhookOption {
	return func(w *Webhook) { w.secret = secret }
}

func WithWebhookMetrics(m *metrics.Metrics) WebhookOption {
	return func(w *Webhook) { w.metrics = m }
}

func WithWebhookLogger(l logger.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

func NewWebhook(base context.Context, dispatcher Dispatcher, opts ...WebhookOption) *Webhook {
	w := &Webhook{base: base, dispatcher: dispatcher, logger: logger.NoOp()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Webhook) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Post(WebhookPath, w.handleUpdate)
	r.Get("/healthz", w.handleHealth)
	if w.metrics != nil {
		r.Handle("/metrics", w.metrics.Handler())
	}
	return r
}

type webhookResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (w *Webhook) handleUpdate(rw http.ResponseWriter, r *http.Request) {
	if w.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(w.secret)) != 1 {
			w.logger.Warn("rejected webhook delivery from %s: bad secret token", r.RemoteAddr)
			writeJSON(rw, http.StatusUnauthorized, webhookResponse{Status: "error", Error: "unauthorized"})
			return
		}
	}
	var update Update
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 1<<20)).Decode(&update); err != nil {
		writeJSON(rw, http.StatusBadRequest, webhookResponse{Status: "error", Error: "invalid JSON body"})
		return
	}
	w.logger.Debug("webhook delivered update %d", update.UpdateID)
	w.dispatcher.Dispatch(w.base, update)
	writeJSON(rw, http.StatusOK, webhookResponse{Status: "ok"})
}

func (w *Webhook) handleHealth(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, webhookResponse{Status: "ok"})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
