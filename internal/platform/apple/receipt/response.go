package receipt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// millis accepts both the quoted and the bare numeric form of a *_ms field.
type millis string

func (m *millis) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*m = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*m = millis(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*m = millis(n.String())
	return nil
}

// Time returns ok=false when the field is absent.
func (m millis) Time() (time.Time, bool, error) {
	if m == "" {
		return time.Time{}, false, nil
	}
	n, err := strconv.ParseInt(string(m), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid purchase_date_ms %q", string(m))
	}
	return time.UnixMilli(n).UTC(), true, nil
}

type Transaction struct {
	TransactionID         string `json:"transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	ProductID             string `json:"product_id"`
	Quantity              string `json:"quantity"`
	PurchaseDateMS        millis `json:"purchase_date_ms"`
}

type Receipt struct {
	BundleID string        `json:"bundle_id"`
	InApp    []Transaction `json:"in_app"`
}

// Response is the subset of the verifyReceipt body this service reads.
type Response struct {
	Status            int           `json:"status"`
	Environment       string        `json:"environment"`
	IsRetryable       bool          `json:"is-retryable"`
	Receipt           *Receipt      `json:"receipt"`
	LatestReceiptInfo []Transaction `json:"latest_receipt_info"`
}

func (r *Response) inApp() []Transaction {
	if r.Receipt == nil {
		return nil
	}
	return r.Receipt.InApp
}

// find looks in the receipt's own in-app list first, then the latest info.
// Without a transaction id the most recent purchase of productID is chosen;
// entries whose purchase date does not parse are skipped in that search.
func (r *Response) find(transactionID, productID string) (*Transaction, bool) {
	lists := [][]Transaction{r.inApp(), r.LatestReceiptInfo}
	if transactionID != "" {
		for _, list := range lists {
			for i := range list {
				if list[i].TransactionID == transactionID {
					return &list[i], true
				}
			}
		}
		return nil, false
	}
	if productID == "" {
		return nil, false
	}
	var best *Transaction
	var bestAt time.Time
	for _, list := range lists {
		for i := range list {
			if list[i].ProductID != productID {
				continue
			}
			at, _, err := list[i].PurchaseDateMS.Time()
			if err != nil {
				continue
			}
			if best == nil || at.After(bestAt) {
				best, bestAt = &list[i], at
			}
		}
	}
	return best, best != nil
}
