package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sproutfin/matchback/internal/audit"
	"github.com/sproutfin/matchback/internal/config"
	"github.com/sproutfin/matchback/internal/database"
	"github.com/sproutfin/matchback/internal/ledger"
	"github.com/sproutfin/matchback/internal/metrics"
	"github.com/sproutfin/matchback/internal/notifier"
	"github.com/sproutfin/matchback/internal/payments"
	"github.com/sproutfin/matchback/internal/processor"
	"github.com/sproutfin/matchback/internal/pubsub"
	"github.com/sproutfin/matchback/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	testSaveID = "4f5f2f3a-9d4e-4a6b-8c1d-2e3f4a5b6c7d"
	testUserID = "8a9b0c1d-2e3f-4a5b-6c7d-8e9f0a1b2c3d"
)

type serverFixture struct {
	server  *Server
	rules   rules.RuleStore
	ledger  ledger.LedgerStore
	gateway *payments.MockGateway
}

// setupTestServer initializes a new server with a test database and mock
// collaborators for the payment gateway, notifier and pub/sub.
func setupTestServer(t *testing.T) *serverFixture {
	t.Helper()

	db, dbTeardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)
	t.Cleanup(dbTeardown)

	ruleStore := rules.New(db, nil)
	ledgerStore := ledger.New(db)
	metricsStore := metrics.New(db)

	reg := prometheus.NewRegistry()
	metricsSvc := metrics.NewService(reg)
	metricsHandler := metrics.NewMetricsHandler(reg)

	gateway := payments.NewMock()
	proc := processor.New(ruleStore, ledgerStore, gateway, notifier.NewMock(), audit.NewMock(), pubsub.NewMock("TEST"), metricsSvc)

	server := NewServer(ruleStore, ledgerStore, metricsSvc, metricsStore, metricsHandler, config.Config{}, proc, pubsub.NewMock("TEST"))
	return &serverFixture{server: server, rules: ruleStore, ledger: ledgerStore, gateway: gateway}
}

func (f *serverFixture) seedRule(t *testing.T, percent int, capWeekly int64, paymentMethodID string) *rules.MatchRule {
	t.Helper()
	require.NoError(t, f.rules.UpsertSponsor(rules.Sponsor{ID: "sponsor-1", Name: "Acme", PaymentMethodID: paymentMethodID}))
	rule := &rules.MatchRule{
		ID:              "rule-1",
		SponsorID:       "sponsor-1",
		RecipientUserID: testUserID,
		Percent:         percent,
		CapCentsWeekly:  capWeekly,
		AssetType:       rules.AssetCash,
		Status:          rules.StatusActive,
	}
	require.NoError(t, f.rules.CreateRule(rule))
	return rule
}

func postJSON(t *testing.T, server *Server, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest("POST", path, bytes.NewReader(body))
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)
	return rr
}

func TestHealthCheckHandler(t *testing.T) {
	f := setupTestServer(t)

	req, err := http.NewRequest("GET", "/health", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	f.server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "handler returned wrong status code")
	assert.Equal(t, "OK!", rr.Body.String(), "handler returned unexpected body")
}

func TestProcessSaveHandler(t *testing.T) {
	t.Run("processes a save and charges the sponsor", func(t *testing.T) {
		f := setupTestServer(t)
		f.seedRule(t, 50, 1000, "pm_123")

		rr := postJSON(t, f.server, "/process", map[string]any{
			"save_event_id": testSaveID,
			"user_id":       testUserID,
			"amount_cents":  2400,
		})

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp struct {
			Message string            `json:"message"`
			Result  *processor.Result `json:"result"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "Save event processed.", resp.Message)
		require.Len(t, resp.Result.Outcomes, 1)
		assert.Equal(t, processor.OutcomeSucceeded, resp.Result.Outcomes[0].Status)
		assert.Equal(t, int64(1000), resp.Result.Outcomes[0].MatchAmountCents)

		events, err := f.ledger.ListForRecipient(testUserID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, ledger.ChargeSucceeded, events[0].ChargeStatus)
	})

	t.Run("rejects malformed input with 400 and no writes", func(t *testing.T) {
		f := setupTestServer(t)
		f.seedRule(t, 50, 1000, "pm_123")

		rr := postJSON(t, f.server, "/process", map[string]any{
			"save_event_id": testSaveID,
			"user_id":       "not-a-uuid",
			"amount_cents":  100,
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Contains(t, resp["error"], "user_id")

		events, err := f.ledger.ListForRecipient(testUserID)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("no active rules is a 200 no-op", func(t *testing.T) {
		f := setupTestServer(t)

		rr := postJSON(t, f.server, "/process", map[string]any{
			"save_event_id": testSaveID,
			"user_id":       testUserID,
			"amount_cents":  100,
		})

		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Result *processor.Result `json:"result"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Empty(t, resp.Result.Outcomes)
	})

	t.Run("returns 429 once the burst limit is hit", func(t *testing.T) {
		f := setupTestServer(t)
		f.seedRule(t, 50, 1_000_000, "pm_123")

		for i := 0; i < 10; i++ {
			event := &ledger.MatchEvent{
				ID:                  fmt.Sprintf("evt-%d", i),
				MatchRuleID:         "rule-1",
				SaveEventID:         fmt.Sprintf("save-%d", i),
				SponsorID:           "sponsor-1",
				RecipientUserID:     testUserID,
				OriginalAmountCents: 100,
				MatchAmountCents:    50,
				CreatedAt:           time.Now(),
			}
			require.NoError(t, f.ledger.InsertCapped(event, time.Now().Add(-time.Hour), 1_000_000))
		}

		rr := postJSON(t, f.server, "/process", map[string]any{
			"save_event_id": testSaveID,
			"user_id":       testUserID,
			"amount_cents":  100,
		})

		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Contains(t, resp["error"], "rate limit")

		events, err := f.ledger.ListForRecipient(testUserID)
		require.NoError(t, err)
		assert.Len(t, events, 10, "the rejected call must not create an event")
	})
}

func TestRulesHandler(t *testing.T) {
	t.Run("creates and lists rules", func(t *testing.T) {
		f := setupTestServer(t)
		require.NoError(t, f.rules.UpsertSponsor(rules.Sponsor{ID: "sponsor-1", Name: "Acme"}))

		rr := postJSON(t, f.server, "/rules", map[string]any{
			"sponsor_id":        "sponsor-1",
			"recipient_user_id": testUserID,
			"percent":           25,
			"cap_cents_weekly":  5000,
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var created rules.MatchRule
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, rules.StatusActive, created.Status, "status defaults to active")
		assert.Equal(t, rules.AssetCash, created.AssetType, "asset type defaults to CASH")

		req, err := http.NewRequest("GET", "/rules?user_id="+testUserID, nil)
		require.NoError(t, err)
		listRR := httptest.NewRecorder()
		f.server.Router.ServeHTTP(listRR, req)

		require.Equal(t, http.StatusOK, listRR.Code)
		var listed []rules.MatchRule
		require.NoError(t, json.Unmarshal(listRR.Body.Bytes(), &listed))
		require.Len(t, listed, 1)
		assert.Equal(t, created.ID, listed[0].ID)
	})

	t.Run("rejects a rule with an out-of-range percent", func(t *testing.T) {
		f := setupTestServer(t)

		rr := postJSON(t, f.server, "/rules", map[string]any{
			"sponsor_id":        "sponsor-1",
			"recipient_user_id": testUserID,
			"percent":           150,
			"cap_cents_weekly":  5000,
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("requires user_id for listing", func(t *testing.T) {
		f := setupTestServer(t)

		req, err := http.NewRequest("GET", "/rules", nil)
		require.NoError(t, err)
		rr := httptest.NewRecorder()
		f.server.Router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRuleStatusHandler(t *testing.T) {
	f := setupTestServer(t)
	rule := f.seedRule(t, 50, 1000, "pm_123")

	rr := postJSON(t, f.server, "/rules/status", map[string]any{
		"rule_id": rule.ID,
		"status":  "paused",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	active, err := f.rules.GetActiveRules(testUserID)
	require.NoError(t, err)
	assert.Empty(t, active, "paused rule must no longer be active")
}

func TestUpsertSponsorHandler(t *testing.T) {
	f := setupTestServer(t)

	rr := postJSON(t, f.server, "/sponsors", map[string]any{
		"id":                "sponsor-1",
		"name":              "Acme",
		"payment_method_id": "pm_123",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	sponsor, err := f.rules.GetSponsor("sponsor-1")
	require.NoError(t, err)
	assert.Equal(t, "pm_123", sponsor.PaymentMethodID)

	rr = postJSON(t, f.server, "/sponsors", map[string]any{"id": "sponsor-2"})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "name is required")
}

func TestListEventsHandler(t *testing.T) {
	f := setupTestServer(t)

	req, err := http.NewRequest("GET", "/events", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	f.server.Router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req, err = http.NewRequest("GET", "/events?user_id="+testUserID, nil)
	require.NoError(t, err)
	rr = httptest.NewRecorder()
	f.server.Router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var events []ledger.MatchEvent
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
	assert.Empty(t, events)
}

func TestStatsHandler(t *testing.T) {
	f := setupTestServer(t)
	f.seedRule(t, 50, 1000, "pm_123")

	rr := postJSON(t, f.server, "/process", map[string]any{
		"save_event_id": testSaveID,
		"user_id":       testUserID,
		"amount_cents":  2400,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	req, err := http.NewRequest("GET", "/stats", nil)
	require.NoError(t, err)
	statsRR := httptest.NewRecorder()
	f.server.Router.ServeHTTP(statsRR, req)

	require.Equal(t, http.StatusOK, statsRR.Code)
	var stats map[string]int
	require.NoError(t, json.Unmarshal(statsRR.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats[metrics.KeySavesProcessed])
	assert.Equal(t, 1, stats[metrics.KeyChargesSucceeded])
}

func TestRetryPendingHandler(t *testing.T) {
	f := setupTestServer(t)
	// Sponsor starts without a payment method, so the match stays pending.
	f.seedRule(t, 50, 1000, "")

	rr := postJSON(t, f.server, "/process", map[string]any{
		"save_event_id": testSaveID,
		"user_id":       testUserID,
		"amount_cents":  1000,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	pending, err := f.ledger.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// Attach a payment method and sweep.
	require.NoError(t, f.rules.UpsertSponsor(rules.Sponsor{ID: "sponsor-1", Name: "Acme", PaymentMethodID: "pm_123"}))

	retryRR := postJSON(t, f.server, "/retry-pending", map[string]any{})
	require.Equal(t, http.StatusOK, retryRR.Code, retryRR.Body.String())

	var resp struct {
		Result *processor.RetryResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(retryRR.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Result.Attempted)
	assert.Equal(t, 1, resp.Result.Succeeded)

	pending, err = f.ledger.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRetryChargeHandler(t *testing.T) {
	f := setupTestServer(t)
	f.seedRule(t, 50, 10000, "pm_123")

	event := &ledger.MatchEvent{
		ID:                  "evt-1",
		MatchRuleID:         "rule-1",
		SaveEventID:         testSaveID,
		SponsorID:           "sponsor-1",
		RecipientUserID:     testUserID,
		OriginalAmountCents: 1000,
		MatchAmountCents:    500,
		CreatedAt:           time.Now(),
	}
	require.NoError(t, f.ledger.InsertCapped(event, time.Now().Add(-time.Hour), 10000))

	payload, err := msgpack.Marshal(event)
	require.NoError(t, err)
	rr := postJSON(t, f.server, "/pubsub/retry-charge", map[string]any{
		"subscription": "retry-charge-sub",
		"message": map[string]string{
			"data": base64.StdEncoding.EncodeToString(payload),
		},
	})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "OK", rr.Body.String())

	stored, err := f.ledger.GetEvent("evt-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.ChargeSucceeded, stored.ChargeStatus)
	assert.Equal(t, "ch_mock", stored.PaymentReference)
}
