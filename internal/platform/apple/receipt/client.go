// Package receipt exchanges legacy App Store receipts with Apple's
// verifyReceipt endpoint and classifies the outcome as transient or final.
package receipt

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/awa/go-iap/appstore"

	"github.com/yungbote/charity-iap-backend/internal/platform/logger"
)

const DefaultTimeout = 10 * time.Second

type Config struct {
	SharedSecret  string
	ProductionURL string
	SandboxURL    string
	Timeout       time.Duration
}

type VerifyRequest struct {
	ReceiptData string
	// TransactionID is the store transaction the purchase expects. When empty the
	// newest transaction for ProductID is used.
	TransactionID string
	ProductID     string
}

type VerifiedTransaction struct {
	TransactionID         string
	OriginalTransactionID string
	ProductID             string
	PurchasedAt           time.Time
	Environment           string
}

type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (*VerifiedTransaction, error)
}

type Client struct {
	iap          *appstore.Client
	sharedSecret string
	timeout      time.Duration
	now          func() time.Time
	log          *logger.Logger
}

func New(cfg Config, baseLog *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	iap := appstore.NewWithClient(&http.Client{Timeout: timeout})
	if u := strings.TrimSpace(cfg.ProductionURL); u != "" {
		iap.ProductionURL = u
	}
	if u := strings.TrimSpace(cfg.SandboxURL); u != "" {
		iap.SandboxURL = u
	}
	return &Client{
		iap:          iap,
		sharedSecret: cfg.SharedSecret,
		timeout:      timeout,
		now:          time.Now,
		log:          baseLog.With("client", "AppleReceiptClient"),
	}
}

// WithClock replaces the clock used when Apple omits the purchase date.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Verify posts the receipt to production. A 21007 answer is resubmitted once to
// the sandbox endpoint by the underlying client and the sandbox answer wins.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*VerifiedTransaction, error) {
	if strings.TrimSpace(req.ReceiptData) == "" {
		return nil, terminal(errors.New("receipt data is empty"))
	}
	// Covers both the production call and the sandbox redirect.
	ctx, cancel := context.WithTimeout(ctx, 2*c.timeout)
	defer cancel()

	var resp Response
	err := c.iap.Verify(ctx, appstore.IAPRequest{
		ReceiptData:            req.ReceiptData,
		Password:               c.sharedSecret,
		ExcludeOldTransactions: true,
	}, &resp)
	if err != nil {
		c.log.Warn("receipt exchange failed", "error", err)
		return nil, transportError(err)
	}
	if resp.Status != 0 {
		retryable := isRetryableStatus(resp.Status) || resp.IsRetryable
		c.log.Info("receipt rejected", "status", resp.Status, "environment", resp.Environment, "retryable", retryable)
		return nil, statusError(resp.Status, retryable)
	}

	tx, ok := resp.find(req.TransactionID, req.ProductID)
	if !ok {
		return nil, terminal(ErrTransactionNotFound)
	}
	purchasedAt, present, err := tx.PurchaseDateMS.Time()
	if err != nil {
		return nil, terminal(err)
	}
	if !present {
		purchasedAt = c.now().UTC()
	}
	return &VerifiedTransaction{
		TransactionID:         tx.TransactionID,
		OriginalTransactionID: tx.OriginalTransactionID,
		ProductID:             tx.ProductID,
		PurchasedAt:           purchasedAt,
		Environment:           resp.Environment,
	}, nil
}

// 21002 malformed/temporary, 21005 server unavailable, 21009 internal data
// access error, 21100-21199 internal errors Apple asks callers to retry.
func isRetryableStatus(status int) bool {
	switch {
	case status == 21002, status == 21005, status == 21009:
		return true
	case status >= 21100 && status <= 21199:
		return true
	default:
		return false
	}
}
