package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pbtavares/gympay/internal/gateway"
	"github.com/pbtavares/gympay/internal/notify"
	"github.com/pbtavares/gympay/internal/report"
	"github.com/pbtavares/gympay/internal/service"
	"github.com/pbtavares/gympay/internal/storage/sqlite"
)

// setupTestServer wires the RPC handler over a temp SQLite store with an
// always-approving card gateway.
func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "gympay-api-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	authorizer := gateway.NewSimulatedAuthorizer(
		gateway.WithDecider(gateway.DeciderFunc(func(context.Context) (bool, error) { return true, nil })),
	)
	payments := service.NewPaymentService(store, notify.LogDispatcher{}, authorizer)
	reconciler := service.NewReconciler(store, notify.LogDispatcher{})
	reports := report.NewBuilder(store)

	mux := http.NewServeMux()
	NewHandler(payments, reconciler, reports).RegisterRoutes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func call(t *testing.T, server *httptest.Server, method string, params interface{}) (json.RawMessage, *RPCError) {
	t.Helper()

	rawParams, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: "2.0", Method: method, Params: rawParams, ID: 1})
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	resp, err := http.Post(server.URL+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("rpc call failed: %v", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return envelope.Result, envelope.Error
}

func TestRPCPaymentLifecycle(t *testing.T) {
	server := setupTestServer(t)

	// Create a PIX charge.
	result, rpcErr := call(t, server, "payment.create", map[string]interface{}{
		"academy_id":  "alpha",
		"student_id":  "stu-1",
		"amount":      "150.00",
		"description": "Mensalidade",
		"due_date":    "2026-05-15",
		"method":      "pix",
	})
	if rpcErr != nil {
		t.Fatalf("payment.create failed: %+v", rpcErr)
	}

	var created PaymentView
	if err := json.Unmarshal(result, &created); err != nil {
		t.Fatalf("failed to decode payment: %v", err)
	}
	if created.ID == "" || created.Status != "pending" {
		t.Fatalf("unexpected created payment: %+v", created)
	}
	if created.Pix == nil || created.Pix.QRCode == "" {
		t.Fatal("expected pix payload")
	}

	// Reconcile one day past due: the charge goes overdue.
	result, rpcErr = call(t, server, "reconcile.run", map[string]interface{}{
		"academy_id": "alpha",
		"date":       "2026-05-16",
	})
	if rpcErr != nil {
		t.Fatalf("reconcile.run failed: %+v", rpcErr)
	}
	var sweep struct {
		Transitioned int `json:"transitioned"`
	}
	if err := json.Unmarshal(result, &sweep); err != nil {
		t.Fatal(err)
	}
	if sweep.Transitioned != 1 {
		t.Fatalf("transitioned = %d, want 1", sweep.Transitioned)
	}

	// Confirm the overdue charge.
	result, rpcErr = call(t, server, "payment.confirm", map[string]interface{}{
		"academy_id": "alpha",
		"payment_id": created.ID,
	})
	if rpcErr != nil {
		t.Fatalf("payment.confirm failed: %+v", rpcErr)
	}
	var confirmed PaymentView
	if err := json.Unmarshal(result, &confirmed); err != nil {
		t.Fatal(err)
	}
	if confirmed.Status != "paid" || confirmed.PaidDate == nil {
		t.Fatalf("unexpected confirmed payment: %+v", confirmed)
	}

	// Stats reflect the paid charge.
	result, rpcErr = call(t, server, "stats.student", map[string]interface{}{
		"academy_id": "alpha",
		"student_id": "stu-1",
	})
	if rpcErr != nil {
		t.Fatalf("stats.student failed: %+v", rpcErr)
	}
	var sv StatsView
	if err := json.Unmarshal(result, &sv); err != nil {
		t.Fatal(err)
	}
	if sv.Total != 1 || sv.Paid != 1 || sv.PaymentRate != 100 {
		t.Fatalf("unexpected stats: %+v", sv)
	}
}

func TestRPCCardCheckout(t *testing.T) {
	server := setupTestServer(t)

	result, rpcErr := call(t, server, "payment.create", map[string]interface{}{
		"academy_id": "alpha",
		"student_id": "stu-2",
		"amount":     "200.00",
		"due_date":   "2026-05-20",
		"method":     "credit_card",
	})
	if rpcErr != nil {
		t.Fatalf("payment.create failed: %+v", rpcErr)
	}
	var created PaymentView
	if err := json.Unmarshal(result, &created); err != nil {
		t.Fatal(err)
	}

	result, rpcErr = call(t, server, "payment.payWithCard", map[string]interface{}{
		"academy_id": "alpha",
		"payment_id": created.ID,
		"card": map[string]string{
			"number": "4111111111111111",
			"cvv":    "123",
			"expiry": "12/30",
		},
	})
	if rpcErr != nil {
		t.Fatalf("payment.payWithCard failed: %+v", rpcErr)
	}
	var paid PaymentView
	if err := json.Unmarshal(result, &paid); err != nil {
		t.Fatal(err)
	}
	if paid.Status != "paid" || paid.TransactionID == "" {
		t.Fatalf("unexpected paid payment: %+v", paid)
	}

	// Short card number surfaces as a validation error.
	_, rpcErr = call(t, server, "payment.payWithCard", map[string]interface{}{
		"academy_id": "alpha",
		"payment_id": created.ID,
		"card": map[string]string{
			"number": "4111",
			"cvv":    "123",
			"expiry": "12/30",
		},
	})
	// The payment is already paid, so this is a no-op success, not an error.
	if rpcErr != nil {
		t.Fatalf("charging a paid payment must be a no-op: %+v", rpcErr)
	}
}

func TestRPCSubscriptionAndReport(t *testing.T) {
	server := setupTestServer(t)

	result, rpcErr := call(t, server, "subscription.create", map[string]interface{}{
		"academy_id":   "alpha",
		"student_id":   "stu-3",
		"amount":       "120.00",
		"description":  "Plano anual",
		"start_date":   "2026-01-31",
		"installments": 3,
	})
	if rpcErr != nil {
		t.Fatalf("subscription.create failed: %+v", rpcErr)
	}
	var sub struct {
		RecurringID  string         `json:"recurring_id"`
		Installments []*PaymentView `json:"installments"`
	}
	if err := json.Unmarshal(result, &sub); err != nil {
		t.Fatal(err)
	}
	if len(sub.Installments) != 3 {
		t.Fatalf("installments = %d, want 3", len(sub.Installments))
	}
	if sub.Installments[1].DueDate != "2026-02-28" {
		t.Errorf("second installment due %s, want 2026-02-28", sub.Installments[1].DueDate)
	}

	result, rpcErr = call(t, server, "report.financial", map[string]interface{}{
		"academy_id": "alpha",
		"from":       "2026-01-01",
		"to":         "2026-03-31",
	})
	if rpcErr != nil {
		t.Fatalf("report.financial failed: %+v", rpcErr)
	}
	var rv ReportView
	if err := json.Unmarshal(result, &rv); err != nil {
		t.Fatal(err)
	}
	if len(rv.Months) != 3 {
		t.Fatalf("months = %d, want 3", len(rv.Months))
	}
	if rv.Months["2026-01"].PendingAmount != "120.00" {
		t.Errorf("jan pending = %s", rv.Months["2026-01"].PendingAmount)
	}
}

func TestRPCErrors(t *testing.T) {
	server := setupTestServer(t)

	t.Run("unknown method", func(t *testing.T) {
		_, rpcErr := call(t, server, "payment.destroy", map[string]string{"academy_id": "alpha"})
		if rpcErr == nil || rpcErr.Code != CodeMethodNotFound {
			t.Fatalf("expected method-not-found, got %+v", rpcErr)
		}
	})

	t.Run("missing params", func(t *testing.T) {
		_, rpcErr := call(t, server, "payment.create", map[string]string{})
		if rpcErr == nil || rpcErr.Code != CodeInvalidParams {
			t.Fatalf("expected invalid-params, got %+v", rpcErr)
		}
	})

	t.Run("unknown payment", func(t *testing.T) {
		_, rpcErr := call(t, server, "payment.confirm", map[string]string{
			"academy_id": "alpha",
			"payment_id": "nope",
		})
		if rpcErr == nil || rpcErr.Code != CodeNotFound {
			t.Fatalf("expected not-found, got %+v", rpcErr)
		}
	})

	t.Run("bad amount", func(t *testing.T) {
		_, rpcErr := call(t, server, "payment.create", map[string]interface{}{
			"academy_id": "alpha",
			"student_id": "stu-1",
			"amount":     "abc",
			"due_date":   "2026-05-15",
			"method":     "pix",
		})
		if rpcErr == nil || rpcErr.Code != CodeInvalidParams {
			t.Fatalf("expected invalid-params, got %+v", rpcErr)
		}
	})

	t.Run("negative amount is a domain validation error", func(t *testing.T) {
		_, rpcErr := call(t, server, "payment.create", map[string]interface{}{
			"academy_id": "alpha",
			"student_id": "stu-1",
			"amount":     "-5",
			"due_date":   "2026-05-15",
			"method":     "pix",
		})
		if rpcErr == nil || rpcErr.Code != CodeValidation {
			t.Fatalf("expected validation error, got %+v", rpcErr)
		}
	})
}
