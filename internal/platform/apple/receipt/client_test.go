package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
	"github.com/yungbote/charity-iap-backend/internal/platform/retry"
)

type appleStub struct {
	hits   atomic.Int32
	body   string
	status int
	seen   atomic.Value
}

func (s *appleStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.seen.Store(req)
		if s.status != 0 {
			w.WriteHeader(s.status)
		}
		_, _ = w.Write([]byte(s.body))
	}
}

func newClient(t *testing.T, prod, sandbox *appleStub) *Client {
	t.Helper()
	prodSrv := httptest.NewServer(prod.handler())
	t.Cleanup(prodSrv.Close)
	sandboxURL := "http://127.0.0.1:1/unused"
	if sandbox != nil {
		sbSrv := httptest.NewServer(sandbox.handler())
		t.Cleanup(sbSrv.Close)
		sandboxURL = sbSrv.URL
	}
	return New(Config{
		SharedSecret:  "shh",
		ProductionURL: prodSrv.URL,
		SandboxURL:    sandboxURL,
		Timeout:       2 * time.Second,
	}, logger.Nop())
}

const okBody = `{
  "status": 0,
  "environment": "Production",
  "receipt": {"bundle_id": "com.example.app", "in_app": [
    {"transaction_id": "1000", "original_transaction_id": "1000", "product_id": "coins.small", "purchase_date_ms": "1700000000000"}
  ]},
  "latest_receipt_info": [
    {"transaction_id": "2000", "original_transaction_id": "2000", "product_id": "coins.large", "purchase_date_ms": 1700000500000}
  ]
}`

func TestVerifySuccess(t *testing.T) {
	prod := &appleStub{body: okBody}
	c := newClient(t, prod, nil)

	got, err := c.Verify(context.Background(), VerifyRequest{ReceiptData: "abc", TransactionID: "1000"})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.ProductID != "coins.small" {
		t.Fatalf("product: want=%q got=%q", "coins.small", got.ProductID)
	}
	if !got.PurchasedAt.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("purchasedAt: want=%v got=%v", time.UnixMilli(1700000000000).UTC(), got.PurchasedAt)
	}
	req, _ := prod.seen.Load().(map[string]interface{})
	if req["receipt-data"] != "abc" || req["password"] != "shh" || req["exclude-old-transactions"] != true {
		t.Fatalf("request body: got=%v", req)
	}
}

func TestVerifyFindsLatestReceiptInfo(t *testing.T) {
	c := newClient(t, &appleStub{body: okBody}, nil)
	got, err := c.Verify(context.Background(), VerifyRequest{ReceiptData: "abc", TransactionID: "2000"})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.ProductID != "coins.large" || !got.PurchasedAt.Equal(time.UnixMilli(1700000500000)) {
		t.Fatalf("latest_receipt_info match: got=%+v", got)
	}
}

func TestVerifyWithoutTransactionIDPicksNewestForProduct(t *testing.T) {
	c := newClient(t, &appleStub{body: okBody}, nil)
	got, err := c.Verify(context.Background(), VerifyRequest{ReceiptData: "abc", ProductID: "coins.large"})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.TransactionID != "2000" {
		t.Fatalf("transaction: want=%q got=%q", "2000", got.TransactionID)
	}
}

func TestVerifySandboxFallback(t *testing.T) {
	prod := &appleStub{body: `{"status": 21007}`}
	sandbox := &appleStub{body: strings.Replace(okBody, "Production", "Sandbox", 1)}
	c := newClient(t, prod, sandbox)

	got, err := c.Verify(context.Background(), VerifyRequest{ReceiptData: "abc", TransactionID: "1000"})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if prod.hits.Load() != 1 || sandbox.hits.Load() != 1 {
		t.Fatalf("hits: want prod=1 sandbox=1 got prod=%d sandbox=%d", prod.hits.Load(), sandbox.hits.Load())
	}
	if got.Environment != "Sandbox" {
		t.Fatalf("environment: want=%q got=%q", "Sandbox", got.Environment)
	}
}

func TestVerifySandboxRejectionIsAuthoritative(t *testing.T) {
	prod := &appleStub{body: `{"status": 21007}`}
	sandbox := &appleStub{body: `{"status": 21003}`}
	c := newClient(t, prod, sandbox)

	_, err := c.Verify(context.Background(), VerifyRequest{ReceiptData: "abc", TransactionID: "1000"})
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) || gwErr.Status != 21003 {
		t.Fatalf("want gateway status 21003, got=%v", err)
	}
	if retry.IsRetryable(err) {
		t.Fatalf("21003 should be terminal")
	}
	if sandbox.hits.Load() != 1 {
		t.Fatalf("sandbox hits: want=1 got=%d", sandbox.hits.Load())
	}
}

func TestVerifyClassifiesStatuses(t *testing.T) {
	cases := []struct {
		body      string
		retryable bool
	}{
		{`{"status": 21002}`, true},
		{`{"status": 21005}`, true},
		{`{"status": 21009}`, true},
		{`{"status": 21150}`, true},
		{`{"status": 21199, "is-retryable": true}`, true},
		{`{"status": 21003}`, false},
		{`{"status": 21010}`, false},
	}
	for _, tc := range cases {
		c := newClient(t, &appleStub{body: tc.body}, nil)
		_, err := c.Verify(context.Background(), VerifyRequest{ReceiptData: "abc", TransactionID: "1"})
		if err == nil {
			t.Fatalf("%s: expected error", tc.body)
		}
		if got := retry.IsRetryable(err); got != tc.retryable {
			t.Fatalf("%s retryable: want=%v got=%v", tc.body, tc.retryable, got)
		}
		if !strings.Contains(err.Error(), "apple receipt verification failed with status") {
			t.Fatalf("%s message: got=%q", tc.body, err.Error())
		}
	}
}

func TestVerifyServerErrorIsRetryable(t *testing.T) {
	c := newClient(t, &appleStub{status: http.StatusServiceUnavailable, body: "down"}, nil)
	_, err := c.Verify(context.Background(), VerifyRequest{ReceiptData: "abc", TransactionID: "1"})
	if !retry.IsRetryable(err) {
		t.Fatalf("5xx should be retryable, got=%v", err)
	}
}

func TestVerifyUnreachableIsRetryable(t *testing.T) {
	c := New(Config{ProductionURL: "http://127.0.0.1:1/verifyReceipt", Timeout: time.Second}, logger.Nop())
	_, err := c.Verify(context.Background(), VerifyRequest{ReceiptData: "abc", TransactionID: "1"})
	if !retry.IsRetryable(err) {
		t.Fatalf("connection refused should be retryable, got=%v", err)
	}
}

func TestVerifyTransactionMissing(t *testing.T) {
	c := newClient(t, &appleStub{body: okBody}, nil)
	_, err := c.Verify(context.Background(), VerifyRequest{ReceiptData: "abc", TransactionID: "9999"})
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("want=%v got=%v", ErrTransactionNotFound, err)
	}
	if retry.IsRetryable(err) {
		t.Fatalf("missing transaction should be terminal")
	}
}

func TestVerifyMissingPurchaseDateUsesClock(t *testing.T) {
	body := `{"status":0,"receipt":{"in_app":[{"transaction_id":"1","product_id":"p"}]}}`
	fixed := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	c := newClient(t, &appleStub{body: body}, nil).WithClock(func() time.Time { return fixed })
	got, err := c.Verify(context.Background(), VerifyRequest{ReceiptData: "abc", TransactionID: "1"})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !got.PurchasedAt.Equal(fixed) {
		t.Fatalf("purchasedAt: want=%v got=%v", fixed, got.PurchasedAt)
	}
}

func TestVerifyIgnoresBadDateOnUnrelatedEntry(t *testing.T) {
	body := `{"status":0,"receipt":{"in_app":[
    {"transaction_id":"1","product_id":"p","purchase_date_ms":"garbage"},
    {"transaction_id":"2","product_id":"p","purchase_date_ms":"1700000000000"}
  ]},"latest_receipt_info":[{"transaction_id":"3","product_id":"q","purchase_date_ms":"not-a-number"}]}`
	c := newClient(t, &appleStub{body: body}, nil)

	got, err := c.Verify(context.Background(), VerifyRequest{ReceiptData: "abc", TransactionID: "2"})
	if err != nil {
		t.Fatalf("Verify by id: %v", err)
	}
	if !got.PurchasedAt.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("purchasedAt: want=%v got=%v", time.UnixMilli(1700000000000).UTC(), got.PurchasedAt)
	}

	got, err = c.Verify(context.Background(), VerifyRequest{ReceiptData: "abc", ProductID: "p"})
	if err != nil {
		t.Fatalf("Verify by product: %v", err)
	}
	if got.TransactionID != "2" {
		t.Fatalf("transaction: want=%q got=%q", "2", got.TransactionID)
	}
}

func TestVerifyBadDateOnMatchedEntryIsTerminal(t *testing.T) {
	body := `{"status":0,"receipt":{"in_app":[{"transaction_id":"1","product_id":"p","purchase_date_ms":"garbage"}]}}`
	c := newClient(t, &appleStub{body: body}, nil)

	_, err := c.Verify(context.Background(), VerifyRequest{ReceiptData: "abc", TransactionID: "1"})
	if err == nil || !strings.Contains(err.Error(), "invalid purchase_date_ms") {
		t.Fatalf("want invalid purchase_date_ms, got=%v", err)
	}
	if retry.IsRetryable(err) {
		t.Fatalf("bad purchase date should be terminal")
	}
}
