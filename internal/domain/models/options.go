package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Defaults for the per-call tunables
const (
	DefaultJanitorDelayThreshold = 5 * time.Minute
	DefaultCancelThreshold       = time.Hour
	DefaultAutoCreditThreshold   = 60 * 24 * time.Hour
)

// DefaultForceValidationAmount is one unit of currency
var DefaultForceValidationAmount = decimal.NewFromInt(1)

// CallOptions carries the tunables a caller may attach to a single gateway
// call or payment-info read. Zero values mean "use the default"; see
// Normalized.
type CallOptions struct {
	// OrderID is an explicit merchant reference code overriding derivation
	// from transaction data.
	OrderID string

	// JanitorDelayThreshold is the minimum age of an UNDEFINED record before
	// the janitor attempts a fix.
	JanitorDelayThreshold time.Duration

	// CancelThreshold is the age past which a still-unconfirmed record is
	// declared dead instead of retried.
	CancelThreshold time.Duration

	// AutoCreditThreshold is the age past which a refund is rerouted as a
	// credit.
	AutoCreditThreshold time.Duration

	DisableAutoCredit     bool
	ForceValidation       bool
	ForceValidationAmount decimal.Decimal
	BypassDuplicateCheck  bool

	// SkipGateway marks a call that will not reach the gateway at all;
	// duplicate checking is pointless for it.
	SkipGateway bool
}

// Normalized returns a copy with zero-valued tunables replaced by defaults
func (o CallOptions) Normalized() CallOptions {
	if o.JanitorDelayThreshold <= 0 {
		o.JanitorDelayThreshold = DefaultJanitorDelayThreshold
	}
	if o.CancelThreshold <= 0 {
		o.CancelThreshold = DefaultCancelThreshold
	}
	if o.AutoCreditThreshold <= 0 {
		o.AutoCreditThreshold = DefaultAutoCreditThreshold
	}
	if o.ForceValidationAmount.IsZero() {
		o.ForceValidationAmount = DefaultForceValidationAmount
	}
	return o
}

// CallOptionsFromMap parses the loose string-property form some callers use.
// Threshold values are in seconds. Unknown keys are ignored and unparsable
// values keep their defaults.
func CallOptionsFromMap(props map[string]string) CallOptions {
	var o CallOptions
	o.OrderID = props["order_id"]
	o.JanitorDelayThreshold = secondsOrZero(props["janitor_delay_threshold"])
	o.CancelThreshold = secondsOrZero(props["cancel_threshold"])
	o.AutoCreditThreshold = secondsOrZero(props["auto_credit_threshold"])
	o.DisableAutoCredit = boolOrFalse(props["disable_auto_credit"])
	o.ForceValidation = boolOrFalse(props["force_validation"])
	o.BypassDuplicateCheck = boolOrFalse(props["bypass_duplicate_check"])
	o.SkipGateway = boolOrFalse(props["skip_gw"])
	if v := props["force_validation_amount"]; v != "" {
		if amount, err := decimal.NewFromString(v); err == nil {
			o.ForceValidationAmount = amount
		}
	}
	return o
}

func secondsOrZero(v string) time.Duration {
	if v == "" {
		return 0
	}
	seconds, err := strconv.ParseInt(v, 10, 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func boolOrFalse(v string) bool {
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}
