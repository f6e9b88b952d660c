// Package httpapi exposes health, metrics, the Telegram webhook and the public
// configuration read by the web mini-app.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"RifasCuba/internal/ledger"
	"RifasCuba/internal/notifier"
)

// SecretHeader carries the webhook secret Telegram was registered with.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// maxUpdateBytes bounds a webhook body.
const maxUpdateBytes = 1 << 20

type Pinger interface {
	Ping(ctx context.Context) error
}

type ConfigSource interface {
	PublicSnapshot(ctx context.Context, activeOnly bool) (ledger.Snapshot, error)
}

// Submitter accepts updates for asynchronous handling.
type Submitter interface {
	Submit(u notifier.Update) bool
}

type Options struct {
	CORSOrigins []string
	// WebhookSecret enables POST /webhook when set.
	WebhookSecret string
}

type Server struct {
	db      Pinger
	config  ConfigSource
	updates Submitter
	opts    Options
	log     *zap.Logger
}

func New(db Pinger, config ConfigSource, updates Submitter, opts Options, log *zap.Logger) *Server {
	return &Server{db: db, config: config, updates: updates, opts: opts, log: log}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(recoverPanics(s.log))
	r.Use(requestLogging(s.log))
	r.Use(corsMiddleware(s.opts.CORSOrigins))

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if s.opts.WebhookSecret != "" {
		r.HandleFunc("/webhook", s.webhook).Methods(http.MethodPost)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/config", s.publicConfig).Methods(http.MethodGet, http.MethodOptions)
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		respondWithError(w, http.StatusServiceUnavailable, "db_unavailable", "database unreachable")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// webhook accepts one Telegram update. It answers 200 as soon as the update
// is queued; throttled updates are acknowledged too so Telegram does not
// redeliver them.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(SecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.WebhookSecret)) != 1 {
		respondWithError(w, http.StatusUnauthorized, "bad_secret", "invalid webhook secret")
		return
	}
	u, err := notifier.DecodeUpdate(http.MaxBytesReader(w, r.Body, maxUpdateBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "bad_update", "malformed update")
		return
	}
	if !s.updates.Submit(u) {
		s.log.Debug("webhook update dropped", zap.Int64("update_id", u.UpdateID))
	}
	w.WriteHeader(http.StatusOK)
}

type priceView struct {
	CUP string `json:"cup"`
	USD string `json:"usd"`
}

type methodView struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Card    string `json:"card,omitempty"`
	Confirm string `json:"confirm,omitempty"`
}

type configView struct {
	Rate            string               `json:"exchange_rate"`
	Prices          map[string]priceView `json:"prices"`
	DepositMethods  []methodView         `json:"deposit_methods"`
	WithdrawMethods []methodView         `json:"withdraw_methods"`
}

// publicConfig serves what the mini-app needs to price bets and show payment
// details. Withdrawal methods expose only their names.
func (s *Server) publicConfig(w http.ResponseWriter, r *http.Request) {
	snap, err := s.config.PublicSnapshot(r.Context(), true)
	if err != nil {
		s.log.Error("load public config", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "config_unavailable", "configuration unavailable")
		return
	}
	view := configView{
		Rate:            snap.Rate.String(),
		Prices:          make(map[string]priceView, len(snap.Prices)),
		DepositMethods:  []methodView{},
		WithdrawMethods: []methodView{},
	}
	for bt, p := range snap.Prices {
		view.Prices[string(bt)] = priceView{CUP: p.CUP.String(), USD: p.USD.String()}
	}
	for _, m := range snap.Deposit {
		view.DepositMethods = append(view.DepositMethods, methodView{ID: m.ID, Name: m.Name, Card: m.Card, Confirm: m.Confirm})
	}
	for _, m := range snap.Withdraw {
		view.WithdrawMethods = append(view.WithdrawMethods, methodView{ID: m.ID, Name: m.Name})
	}
	sortMethods(view.DepositMethods)
	sortMethods(view.WithdrawMethods)
	respondWithJSON(w, http.StatusOK, view)
}

func sortMethods(ms []methodView) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, errorResponse{Error: code, Message: message})
}
