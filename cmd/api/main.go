package main

import (
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/adesina/coopledger/pkg/amortize"
	"github.com/adesina/coopledger/pkg/ledger"
	"github.com/adesina/coopledger/pkg/logging"
	"github.com/adesina/coopledger/pkg/models"
	"github.com/adesina/coopledger/pkg/store"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coopledger_http_requests_total",
	Help: "HTTP requests served, by route and method.",
}, []string{"route", "method"})

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
}

func NewServer(s store.Storage) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s),
		storage: s,
	}
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Plan not found", http.StatusNotFound)
	case errors.Is(err, amortize.ErrInvalidTerms),
		errors.Is(err, ledger.ErrNonPositiveAmount),
		errors.Is(err, ledger.ErrPlanNotActive):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func planID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	return id, err == nil
}

type planRequest struct {
	MemberKey         string          `json:"member_key"`
	PropertyTitle     string          `json:"property_title"`
	Price             decimal.Decimal `json:"price"`
	Principal         decimal.Decimal `json:"principal"`
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent"`
	TenureMonths      int             `json:"tenure_months"`
	TenureYears       int             `json:"tenure_years"`
	StartDate         time.Time       `json:"start_date"`
}

// tenure returns the tenure in months, converting a years figure when no
// month count was supplied.
func (r planRequest) tenure() int {
	if r.TenureMonths == 0 && r.TenureYears > 0 {
		return r.TenureYears * 12
	}
	return r.TenureMonths
}

func (s *Server) createPlanHandler(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	terms := amortize.Terms{
		Principal:         req.Principal,
		AnnualRatePercent: req.AnnualRatePercent,
		TenureMonths:      req.tenure(),
	}
	start := req.StartDate
	if start.IsZero() {
		start = time.Now()
	}

	plan, err := s.ledger.CreatePlan(req.MemberKey, req.PropertyTitle, req.Price, terms, start)
	if err != nil {
		slog.Error("create plan failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) getPlanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(r)
	if !ok {
		http.Error(w, "Invalid plan ID", http.StatusBadRequest)
		return
	}

	plan, err := s.ledger.GetPlan(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) listPlansHandler(w http.ResponseWriter, r *http.Request) {
	var (
		plans []*models.PaymentPlan
		err   error
	)
	if member := r.URL.Query().Get("member"); member != "" {
		plans, err = s.ledger.GetPlansForMember(member)
	} else {
		plans, err = s.ledger.GetAllPlans()
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) updatePlanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(r)
	if !ok {
		http.Error(w, "Invalid plan ID", http.StatusBadRequest)
		return
	}

	var plan models.PaymentPlan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	plan.ID = id // Ensure ID from URL is used

	if err := s.ledger.UpdatePlan(&plan); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) deletePlanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(r)
	if !ok {
		http.Error(w, "Invalid plan ID", http.StatusBadRequest)
		return
	}

	if err := s.ledger.DeletePlan(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(r)
	if !ok {
		http.Error(w, "Invalid plan ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Amount    decimal.Decimal     `json:"amount"`
		Method    string              `json:"method"`
		Status    models.RecordStatus `json:"status"`
		Timestamp *time.Time          `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		req.Status = models.RecordStatusCompleted
	}

	payment, err := s.ledger.RecordPayment(id, req.Amount, req.Method, req.Status, req.Timestamp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (s *Server) recordLedgerEntryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(r)
	if !ok {
		http.Error(w, "Invalid plan ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Amount    decimal.Decimal        `json:"amount"`
		Direction models.LedgerDirection `json:"direction"`
		Source    string                 `json:"source"`
		Status    models.RecordStatus    `json:"status"`
		PaidAt    *time.Time             `json:"paid_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Direction == "" {
		req.Direction = models.DirectionCredit
	}
	if req.Status == "" {
		req.Status = models.RecordStatusCompleted
	}

	entry, err := s.ledger.RecordLedgerCredit(id, req.Amount, req.Direction, req.Source, req.Status, req.PaidAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) approveScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(r)
	if !ok {
		http.Error(w, "Invalid plan ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Kind models.ScheduleKind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	approval, err := s.ledger.ApproveSchedule(id, req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, approval)
}

func (s *Server) planScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(r)
	if !ok {
		http.Error(w, "Invalid plan ID", http.StatusBadRequest)
		return
	}

	schedule, err := s.ledger.PlanSchedule(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (s *Server) planTimelineHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(r)
	if !ok {
		http.Error(w, "Invalid plan ID", http.StatusBadRequest)
		return
	}

	timeline, err := s.ledger.PlanTimeline(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

func (s *Server) planMilestonesHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(r)
	if !ok {
		http.Error(w, "Invalid plan ID", http.StatusBadRequest)
		return
	}

	report, stats, err := s.ledger.PlanMilestones(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"milestones": report,
		"stats":      stats,
	})
}

func (s *Server) previewHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Principal         decimal.Decimal `json:"principal"`
		AnnualRatePercent decimal.Decimal `json:"annual_rate_percent"`
		TenureMonths      int             `json:"tenure_months"`
		TenureYears       int             `json:"tenure_years"`
		StartDate         *time.Time      `json:"start_date"`
		IncludeSchedule   bool            `json:"include_schedule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tenure := req.TenureMonths
	if tenure == 0 && req.TenureYears > 0 {
		tenure = req.TenureYears * 12
	}
	terms := amortize.Terms{
		Principal:         req.Principal,
		AnnualRatePercent: req.AnnualRatePercent,
		TenureMonths:      tenure,
	}

	payment, err := s.ledger.PreviewPayment(terms)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{"monthly_payment": payment}
	if req.IncludeSchedule {
		start := time.Now()
		if req.StartDate != nil {
			start = *req.StartDate
		}
		schedule, err := amortize.Schedule(terms, start, nil)
		if err != nil {
			writeError(w, err)
			return
		}
		resp["schedule"] = schedule
	}
	writeJSON(w, http.StatusOK, resp)
}

// countRequests records per-route request counts for /metrics.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		requestsTotal.WithLabelValues(route, r.Method).Inc()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(countRequests)

	router.HandleFunc("/plans", s.listPlansHandler).Methods("GET")
	router.HandleFunc("/plans", s.createPlanHandler).Methods("POST")
	router.HandleFunc("/plans/{id}", s.getPlanHandler).Methods("GET")
	router.HandleFunc("/plans/{id}", s.updatePlanHandler).Methods("PUT")
	router.HandleFunc("/plans/{id}", s.deletePlanHandler).Methods("DELETE")
	router.HandleFunc("/plans/{id}/payments", s.recordPaymentHandler).Methods("POST")
	router.HandleFunc("/plans/{id}/ledger-entries", s.recordLedgerEntryHandler).Methods("POST")
	router.HandleFunc("/plans/{id}/approvals", s.approveScheduleHandler).Methods("POST")
	router.HandleFunc("/plans/{id}/schedule", s.planScheduleHandler).Methods("GET")
	router.HandleFunc("/plans/{id}/timeline", s.planTimelineHandler).Methods("GET")
	router.HandleFunc("/plans/{id}/milestones", s.planMilestonesHandler).Methods("GET")
	router.HandleFunc("/amortization/preview", s.previewHandler).Methods("POST")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	dbPath := flag.String("db", "coopledger.db", "path to the SQLite database")
	flag.Parse()

	logging.Setup()

	sqliteStore, err := store.NewSQLiteStore(*dbPath)
	if err != nil {
		slog.Error("failed to initialize SQLite store", "error", err)
		os.Exit(1)
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore)

	slog.Info("server starting", "addr", *addr)
	if err := http.ListenAndServe(*addr, server.routes()); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
