package models

// ReportingConfig holds the per-tenant credentials for the gateway's
// on-demand reporting API. A tenant without one gets no duplicate checking
// and no reconciliation; both degrade to no-ops.
type ReportingConfig struct {
	BaseURL    string `json:"base_url"`
	MerchantID string `json:"merchant_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`

	// CheckForDuplicates gates the pre-call duplicate guard without
	// disabling janitor lookups.
	CheckForDuplicates bool `json:"check_for_duplicates"`
}
