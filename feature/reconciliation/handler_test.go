package reconciliation

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"recon-engine/core/recon"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testDay = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func setupTestApp(t *testing.T) (*fiber.App, *Service) {
	t.Helper()
	engine := recon.NewEngine(zap.NewNop())
	t.Cleanup(engine.Close)

	app := fiber.New()
	f := NewFeature(engine, zap.NewNop())
	require.NoError(t, f.Load(app))
	return app, f.Service()
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func internalPayload() []recon.InternalRecord {
	return []recon.InternalRecord{
		{
			TransactionID: "TXN-001",
			OrderRef:      "ORD-001",
			Amount:        decimal.RequireFromString("100.00"),
			Currency:      "USD",
			Timestamp:     testDay,
		},
	}
}

func externalPayload() []recon.ExternalRecord {
	return []recon.ExternalRecord{
		{
			ReferenceID: "EXT-001",
			Amount:      decimal.RequireFromString("100.00"),
			Currency:    "USD",
			SettledAt:   testDay,
			Description: "settlement TXN-001",
		},
	}
}

func TestHandleIngest(t *testing.T) {
	app, _ := setupTestApp(t)

	status, raw := doJSON(t, app, "POST", "/reconciliation/internal", internalPayload())
	assert.Equal(t, fiber.StatusAccepted, status)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, float64(1), body["accepted"])
	assert.Equal(t, float64(0), body["dropped"])

	status, _ = doJSON(t, app, "POST", "/reconciliation/external", externalPayload())
	assert.Equal(t, fiber.StatusAccepted, status)
}

func TestHandleIngest_BadPayload(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest("POST", "/reconciliation/internal", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleIngest_DropsInvalid(t *testing.T) {
	app, _ := setupTestApp(t)

	records := append(internalPayload(), recon.InternalRecord{
		// Missing transaction id, must be dropped not fatal
		Amount:   decimal.RequireFromString("5.00"),
		Currency: "USD",
	})

	status, raw := doJSON(t, app, "POST", "/reconciliation/internal", records)
	assert.Equal(t, fiber.StatusAccepted, status)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, float64(1), body["accepted"])
	assert.Equal(t, float64(1), body["dropped"])
}

func TestHandleStartRun_WaitReturnsSummary(t *testing.T) {
	app, _ := setupTestApp(t)

	doJSON(t, app, "POST", "/reconciliation/internal", internalPayload())
	doJSON(t, app, "POST", "/reconciliation/external", externalPayload())

	status, raw := doJSON(t, app, "POST", "/reconciliation/runs?wait=true", nil)
	require.Equal(t, fiber.StatusOK, status, string(raw))

	var summary recon.Summary
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, 1, summary.MatchedCount)
	assert.Equal(t, 0, summary.DiscrepancyCount)
	assert.InDelta(t, 100.0, summary.MatchRate, 0.001)
}

func TestHandleStartRun_NoWait(t *testing.T) {
	app, svc := setupTestApp(t)

	doJSON(t, app, "POST", "/reconciliation/internal", internalPayload())
	doJSON(t, app, "POST", "/reconciliation/external", externalPayload())

	status, _ := doJSON(t, app, "POST", "/reconciliation/runs", nil)
	assert.Equal(t, fiber.StatusAccepted, status)

	// The run finishes shortly after; poll state instead of sleeping blind.
	require.Eventually(t, func() bool {
		state, _ := svc.State()
		return state == recon.StateCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHandleStartBatch(t *testing.T) {
	app, _ := setupTestApp(t)

	batches := []recon.Batch{
		{Internal: internalPayload(), External: externalPayload()},
		{Internal: internalPayload(), External: externalPayload()},
	}

	status, raw := doJSON(t, app, "POST", "/reconciliation/batches?wait=true", batches)
	require.Equal(t, fiber.StatusOK, status, string(raw))

	var summaries []recon.Summary
	require.NoError(t, json.Unmarshal(raw, &summaries))
	assert.Len(t, summaries, 2)
}

func TestHandleState(t *testing.T) {
	app, _ := setupTestApp(t)

	status, raw := doJSON(t, app, "GET", "/reconciliation/state", nil)
	assert.Equal(t, fiber.StatusOK, status)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, string(recon.StateIdle), body["state"])
}

func TestHandleSummary_NoRuns(t *testing.T) {
	app, _ := setupTestApp(t)

	status, _ := doJSON(t, app, "GET", "/reconciliation/summary", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestHandleReport(t *testing.T) {
	app, _ := setupTestApp(t)

	doJSON(t, app, "POST", "/reconciliation/internal", internalPayload())
	doJSON(t, app, "POST", "/reconciliation/external", externalPayload())
	status, _ := doJSON(t, app, "POST", "/reconciliation/runs?wait=true", nil)
	require.Equal(t, fiber.StatusOK, status)

	t.Run("PlainText", func(t *testing.T) {
		status, raw := doJSON(t, app, "GET", "/reconciliation/reports/summary", nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Contains(t, string(raw), "=== RECONCILIATION REPORT: SUMMARY ===")
	})

	t.Run("JSON", func(t *testing.T) {
		status, raw := doJSON(t, app, "GET", "/reconciliation/reports/summary?format=json", nil)
		require.Equal(t, fiber.StatusOK, status)

		var report recon.Report
		require.NoError(t, json.Unmarshal(raw, &report))
		assert.Equal(t, recon.ReportSummary, report.Kind)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		status, _ := doJSON(t, app, "GET", "/reconciliation/reports/bogus", nil)
		assert.Equal(t, fiber.StatusBadRequest, status)
	})
}

func TestHandleReport_NoRuns(t *testing.T) {
	app, _ := setupTestApp(t)

	status, _ := doJSON(t, app, "GET", "/reconciliation/reports/summary", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestHandleUnresolved_Empty(t *testing.T) {
	app, _ := setupTestApp(t)

	doJSON(t, app, "POST", "/reconciliation/internal", internalPayload())
	doJSON(t, app, "POST", "/reconciliation/external", externalPayload())
	status, _ := doJSON(t, app, "POST", "/reconciliation/runs?wait=true", nil)
	require.Equal(t, fiber.StatusOK, status)

	status, raw := doJSON(t, app, "GET", "/reconciliation/discrepancies/unresolved", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, "[]", string(raw))
}

func TestHandleMetrics(t *testing.T) {
	app, _ := setupTestApp(t)

	doJSON(t, app, "POST", "/reconciliation/internal", internalPayload())

	status, raw := doJSON(t, app, "GET", "/reconciliation/metrics", nil)
	assert.Equal(t, fiber.StatusOK, status)

	var metrics recon.Metrics
	require.NoError(t, json.Unmarshal(raw, &metrics))
	assert.Equal(t, int64(1), metrics.InternalIngested)
}
