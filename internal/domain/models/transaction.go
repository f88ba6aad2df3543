package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus represents the outcome of a gateway call as recorded locally.
// StatusUndefined means the outcome is unknown (typically a timeout talking to
// the gateway) and the record is a candidate for reconciliation.
type TransactionStatus string

const (
	StatusProcessed TransactionStatus = "PROCESSED"
	StatusError     TransactionStatus = "ERROR"
	StatusUndefined TransactionStatus = "UNDEFINED"
	StatusCanceled  TransactionStatus = "CANCELED"
)

// TransactionType represents the kind of gateway call that was attempted
type TransactionType string

const (
	TypeAuthorize TransactionType = "AUTHORIZE"
	TypeCapture   TransactionType = "CAPTURE"
	TypePurchase  TransactionType = "PURCHASE"
	TypeVoid      TransactionType = "VOID"
	TypeCredit    TransactionType = "CREDIT"
	TypeRefund    TransactionType = "REFUND"
)

// Well-known property keys carried on transaction records
const (
	// PropertyResponseID is the identifier of the persisted gateway response
	// row backing this record. Records missing it cannot be repaired.
	PropertyResponseID = "gatewayResponseId"

	// PropertyAuthorization is the raw authorization string returned by the
	// gateway ("<merchant reference code>;<request id>;...").
	PropertyAuthorization = "authorization"

	// PropertyAuthCode is the issuer authorization code, when present.
	PropertyAuthCode = "authCode"
)

// Property is one entry of the ordered gateway metadata attached to a record
type Property struct {
	Key   string
	Value string
}

// FindProperty returns the value for key, preserving first-match semantics
// over the ordered property list.
func FindProperty(props []Property, key string) (string, bool) {
	for _, p := range props {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// TransactionRecord is the local record of one attempted gateway call.
// Exactly one record exists per attempt; status only ever moves from
// UNDEFINED to PROCESSED, ERROR or CANCELED.
type TransactionRecord struct {
	ID                      string
	PaymentID               string
	TenantID                string
	ExternalKey             string
	Type                    TransactionType
	Status                  TransactionStatus
	Amount                  decimal.Decimal
	Currency                string
	FirstPaymentReferenceID string
	Properties              []Property
	CreatedAt               time.Time
}

// Property looks up a gateway metadata value on this record
func (t *TransactionRecord) Property(key string) (string, bool) {
	return FindProperty(t.Properties, key)
}

// IsInitiating returns true for transaction types that open a payment and
// carry the merchant reference code the gateway keys its reports on.
func (t *TransactionRecord) IsInitiating() bool {
	return t.Type == TypeAuthorize || t.Type == TypePurchase || t.Type == TypeCredit
}

// GatewayResponseRow is the persisted row backing a TransactionRecord.
// The reconciliation core never creates rows; it cancels them, overwrites
// their outcome from a report, or rebinds them to a synthetic transaction id.
type GatewayResponseRow struct {
	ID            string
	TransactionID string
	PaymentID     string
	TenantID      string
	Success       bool
	Canceled      bool
	ReferenceID   string
	Message       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Account is the slice of the account collaborator this core needs: an email
// address to backfill on outbound gateway calls.
type Account struct {
	ID    string
	Email string
}
