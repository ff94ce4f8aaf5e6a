package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"

	"signal-bridge/internal/account"
	"signal-bridge/internal/audit"
	"signal-bridge/internal/events"
	"signal-bridge/internal/executor"
	"signal-bridge/internal/strategy"
	"signal-bridge/pkg/db"
	"signal-bridge/pkg/exchange"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeKeys swaps AES for a reversible prefix so tests can assert on both
// sides of the encrypt/decrypt boundary.
type fakeKeys struct{}

func (fakeKeys) Encrypt(plaintext string) (string, error) { return "enc:" + plaintext, nil }
func (fakeKeys) Decrypt(ciphertext string) (string, error) {
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

type fakeVenue struct {
	accountID string
	failEntry map[string]bool
}

func (v fakeVenue) PlaceOrder(_ context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	if !req.ReduceOnly && v.failEntry[v.accountID] {
		return exchange.OrderResult{}, &exchange.VenueError{Code: 110007, Message: "insufficient balance"}
	}
	return exchange.OrderResult{OrderID: "ord-" + v.accountID}, nil
}
func (v fakeVenue) CancelOrder(context.Context, string, string) error { return nil }
func (v fakeVenue) GetPositions(context.Context, string) ([]exchange.Position, error) {
	return nil, nil
}
func (v fakeVenue) ClosePosition(context.Context, string) error { return nil }
func (v fakeVenue) CloseAllPositions(context.Context) ([]exchange.CloseResult, error) {
	return nil, nil
}
func (v fakeVenue) SetLeverage(context.Context, string, int) error { return nil }

// newTestServer wires the full stack against in-memory SQLite and a fake
// venue, seeded with one owner, two accounts and one long-only strategy.
func newTestServer(t *testing.T, failEntry map[string]bool) (*Server, *db.Queries) {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	q := database.Queries()
	ctx := context.Background()

	if err := q.CreateUser(ctx, db.User{ID: "u1", Email: "u1@test.local", PasswordHash: "x"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	for _, id := range []string{"a1", "a2"} {
		if err := q.CreateAccount(ctx, db.Account{
			ID: id, UserID: "u1", Name: "acct-" + id,
			APIKey: "enc:key-" + id, APISecret: "enc:secret-" + id,
		}); err != nil {
			t.Fatalf("seed account %s: %v", id, err)
		}
	}
	if err := q.CreateStrategy(ctx, db.Strategy{
		ID: "st1", UserID: "u1", Name: "Alpha", Direction: "long", Enabled: true,
		Links: []db.AccountLink{
			{AccountID: "a1", Enabled: true, RiskBudget: 1000},
			{AccountID: "a2", Enabled: true, RiskBudget: 500},
		},
	}); err != nil {
		t.Fatalf("seed strategy: %v", err)
	}

	bus := events.NewBus()
	orch := &executor.Orchestrator{
		Creds: account.NewResolver(q, fakeKeys{}),
		NewVenue: func(creds *account.Credentials) exchange.Venue {
			return fakeVenue{accountID: creds.AccountID, failEntry: failEntry}
		},
		Bus: bus,
	}
	resolver := strategy.NewResolver(strategy.SQLRepository{Queries: q})
	recorder := audit.NewRecorder(q, bus)

	return NewServer(database, bus, resolver, orch, recorder, fakeKeys{}, "test-jwt-secret"), q
}

// reqCounter spreads test requests over distinct client IPs so the per-IP
// rate limiter never throttles the suite.
var reqCounter atomic.Int64

func newRequest(method, path string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	n := reqCounter.Add(1)
	req.RemoteAddr = fmt.Sprintf("10.1.%d.%d:5000", n/250, n%250+1)
	return req
}

func post(t *testing.T, s *Server, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := newRequest(http.MethodPost, path, body)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

const validSignal = `{"strategy":"Alpha","symbol":"btcusdt","action":"buy","entry":45000,"sl":"44000","tp":47000}`

func TestWebhookUnknownOwner(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := post(t, s, "/webhook/nobody", validSignal, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if decode(t, w)["code"] != "UNKNOWN_OWNER" {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestWebhookMissingFieldIsAudited(t *testing.T) {
	s, q := newTestServer(t, nil)

	w := post(t, s, "/webhook/u1", `{"strategy":"Alpha","symbol":"BTCUSDT","action":"buy","entry":45000}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decode(t, w)
	if body["code"] != "INVALID_SIGNAL" || !strings.Contains(body["error"].(string), "sl") {
		t.Errorf("body = %s", w.Body.String())
	}

	rows, err := q.ListAuditsByUser(context.Background(), "u1", 10)
	if err != nil || len(rows) != 1 {
		t.Fatalf("audits = %d rows, err %v; want 1 row", len(rows), err)
	}
	if rows[0].Status != "error" {
		t.Errorf("audit status = %q, want error", rows[0].Status)
	}
}

func TestWebhookUnknownStrategy(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := post(t, s, "/webhook/u1", strings.Replace(validSignal, "Alpha", "Nope", 1), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if decode(t, w)["code"] != "STRATEGY_NOT_FOUND" {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestWebhookDirectionMismatch(t *testing.T) {
	s, q := newTestServer(t, nil)

	// Alpha is long-only; a sell signal is rejected and audited
	w := post(t, s, "/webhook/u1", `{"strategy":"Alpha","symbol":"BTCUSDT","action":"sell","entry":45000,"sl":"46000"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if decode(t, w)["code"] != "DIRECTION_MISMATCH" {
		t.Errorf("body = %s", w.Body.String())
	}

	rows, _ := q.ListAuditsByUser(context.Background(), "u1", 10)
	if len(rows) != 1 || rows[0].Status != "error" {
		t.Errorf("audit rows = %+v", rows)
	}
}

func TestWebhookNoEnabledAccountsAcknowledges(t *testing.T) {
	s, q := newTestServer(t, nil)
	if err := q.UpsertStrategySeed(context.Background(), db.Strategy{
		ID: "st2", UserID: "u1", Name: "Alpha", Direction: "long", Enabled: true,
		Links: []db.AccountLink{{AccountID: "a1", Enabled: false, RiskBudget: 1000}},
	}); err != nil {
		t.Fatalf("disable links: %v", err)
	}

	w := post(t, s, "/webhook/u1", validSignal, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 acknowledgment", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "error" {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestWebhookFullExecution(t *testing.T) {
	s, q := newTestServer(t, nil)

	w := post(t, s, "/webhook/u1", validSignal, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["status"] != "success" {
		t.Errorf("status = %v, want success", body["status"])
	}
	results := body["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("expected 2 per-account results, got %d", len(results))
	}
	first := results[0].(map[string]any)
	if first["account_id"] != "a1" || first["success"] != true || first["order_id"] != "ord-a1" {
		t.Errorf("results[0] = %v", first)
	}
	if first["symbol"] != "BTCUSDT" {
		t.Errorf("symbol not normalized: %v", first["symbol"])
	}

	rows, err := q.ListAuditsByUser(context.Background(), "u1", 10)
	if err != nil || len(rows) != 1 {
		t.Fatalf("audits = %d rows, err %v", len(rows), err)
	}
	row := rows[0]
	if row.Status != "success" || row.Message != "2/2 accounts succeeded" {
		t.Errorf("audit row = %+v", row)
	}
	if row.Payload != validSignal {
		t.Errorf("payload not stored verbatim: %q", row.Payload)
	}
	if strings.Contains(row.Results, "key-a1") || strings.Contains(row.Results, "secret-a1") {
		t.Error("credential material leaked into the audit trail")
	}
}

func TestWebhookPartialFailure(t *testing.T) {
	s, q := newTestServer(t, map[string]bool{"a2": true})

	w := post(t, s, "/webhook/u1", validSignal, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["status"] != "partial" {
		t.Errorf("status = %v, want partial", body["status"])
	}

	rows, _ := q.ListAuditsByUser(context.Background(), "u1", 10)
	if len(rows) != 1 || rows[0].Status != "partial" || rows[0].Message != "1/2 accounts succeeded" {
		t.Errorf("audit rows = %+v", rows)
	}
}

func TestWebhookUsageDoc(t *testing.T) {
	s, _ := newTestServer(t, nil)

	req := newRequest(http.MethodGet, "/webhook/u1", "")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if decode(t, w)["method"] != "POST" {
		t.Errorf("body = %s", w.Body.String())
	}
}
