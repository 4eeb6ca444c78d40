package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adesina/coopledger/pkg/models"
	"github.com/adesina/coopledger/pkg/progress"
	"github.com/adesina/coopledger/pkg/store"
)

func setupTestServer(t *testing.T) (*Server, string) {
	dbFile := "test_api_plans.db"
	os.Remove(dbFile)

	s, err := store.NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	return NewServer(s), dbFile
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewBuffer(raw))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func createTestPlan(t *testing.T, server *Server) models.PaymentPlan {
	router := server.routes()
	rr := postJSON(t, router, "/plans", map[string]any{
		"member_key":          "test_member",
		"property_title":      "Unit 4B",
		"price":               4000000.0,
		"principal":           4000000.0,
		"annual_rate_percent": 12.0,
		"tenure_years":        2,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var plan models.PaymentPlan
	json.Unmarshal(rr.Body.Bytes(), &plan)
	return plan
}

func TestAPI_CreateAndGetPlan(t *testing.T) {
	server, dbFile := setupTestServer(t)
	defer os.Remove(dbFile)
	defer server.storage.Close()

	router := server.routes()
	plan := createTestPlan(t, server)

	// tenure_years converts to months
	if plan.TenureMonths != 24 {
		t.Errorf("Expected tenure 24 months, got %d", plan.TenureMonths)
	}

	req := httptest.NewRequest("GET", "/plans/"+plan.ID.String(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var fetched models.PaymentPlan
	json.Unmarshal(rr.Body.Bytes(), &fetched)
	if fetched.ID != plan.ID {
		t.Errorf("Expected ID %s, got %s", plan.ID, fetched.ID)
	}
}

func TestAPI_CreatePlan_InvalidTerms(t *testing.T) {
	server, dbFile := setupTestServer(t)
	defer os.Remove(dbFile)
	defer server.storage.Close()

	rr := postJSON(t, server.routes(), "/plans", map[string]any{
		"member_key":     "test_member",
		"property_title": "Unit 4B",
		"price":          4000000.0,
		"principal":      0.0,
		"tenure_months":  12,
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestAPI_RecordPaymentAndMilestones(t *testing.T) {
	server, dbFile := setupTestServer(t)
	defer os.Remove(dbFile)
	defer server.storage.Close()

	router := server.routes()
	plan := createTestPlan(t, server)

	t1 := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	rr := postJSON(t, router, "/plans/"+plan.ID.String()+"/payments", map[string]any{
		"amount":    2000000.0,
		"method":    "wallet",
		"status":    "completed",
		"timestamp": t1,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var payment models.PaymentRecord
	json.Unmarshal(rr.Body.Bytes(), &payment)
	if !payment.Amount.Equal(decimal.NewFromInt(2000000)) {
		t.Errorf("Expected amount 2000000, got %s", payment.Amount)
	}

	req := httptest.NewRequest("GET", "/plans/"+plan.ID.String()+"/milestones", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var resp struct {
		Milestones progress.MilestoneReport `json:"milestones"`
		Stats      progress.Summary         `json:"stats"`
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)

	// 2M of 4M paid: 25% and 50% achieved, 75% and 100% not.
	achieved := map[int]bool{25: true, 50: true, 75: false, 100: false}
	for _, m := range resp.Milestones.Milestones {
		if m.Achieved != achieved[m.Percent] {
			t.Errorf("Milestone %d: expected achieved=%v, got %v", m.Percent, achieved[m.Percent], m.Achieved)
		}
	}
	if resp.Stats.Count != 1 {
		t.Errorf("Expected 1 completed payment, got %d", resp.Stats.Count)
	}
}

func TestAPI_Timeline(t *testing.T) {
	server, dbFile := setupTestServer(t)
	defer os.Remove(dbFile)
	defer server.storage.Close()

	router := server.routes()
	plan := createTestPlan(t, server)

	postJSON(t, router, "/plans/"+plan.ID.String()+"/approvals", map[string]any{"kind": "mortgage"})

	req := httptest.NewRequest("GET", "/plans/"+plan.ID.String()+"/timeline", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var timeline []models.TimelineEvent
	json.Unmarshal(rr.Body.Bytes(), &timeline)

	// plan setup + schedule approval
	if len(timeline) != 2 {
		t.Fatalf("Expected 2 timeline events, got %d", len(timeline))
	}
	if timeline[0].Type != models.EventTypeScheduleApproval {
		t.Errorf("Expected schedule_approval first, got %s", timeline[0].Type)
	}
	if timeline[1].Type != models.EventTypePlanSetup {
		t.Errorf("Expected plan_setup last, got %s", timeline[1].Type)
	}
}

func TestAPI_AmortizationPreview(t *testing.T) {
	server, dbFile := setupTestServer(t)
	defer os.Remove(dbFile)
	defer server.storage.Close()

	rr := postJSON(t, server.routes(), "/amortization/preview", map[string]any{
		"principal":           1000000.0,
		"annual_rate_percent": 12.0,
		"tenure_months":       12,
		"include_schedule":    true,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		MonthlyPayment decimal.Decimal        `json:"monthly_payment"`
		Schedule       []models.ScheduleEntry `json:"schedule"`
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)

	if !resp.MonthlyPayment.Equal(decimal.RequireFromString("88848.79")) {
		t.Errorf("Expected payment 88848.79, got %s", resp.MonthlyPayment)
	}
	if len(resp.Schedule) != 12 {
		t.Errorf("Expected 12 schedule entries, got %d", len(resp.Schedule))
	}
}

func TestAPI_GetPlanNotFound(t *testing.T) {
	server, dbFile := setupTestServer(t)
	defer os.Remove(dbFile)
	defer server.storage.Close()

	req := httptest.NewRequest("GET", "/plans/00000000-0000-0000-0000-000000000000", nil)
	rr := httptest.NewRecorder()
	server.routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}
