package models

// Report is the result of a remote single-transaction report lookup for one
// merchant reference code and date.
type Report struct {
	MerchantReferenceCode string
	RequestID             string
	Success               bool
	RowCount              int
}

// Empty returns true when the gateway has no matching record for the queried
// date. This is distinct from the lookup itself failing (see ReportResult).
func (r *Report) Empty() bool {
	return r.RowCount == 0
}

// ReportOutcome distinguishes "the lookup could not be performed" from "the
// lookup worked and found nothing". Treating a transport failure as a
// non-match would make the janitor cancel payments it knows nothing about.
type ReportOutcome int

const (
	// ReportUnavailable means reporting is not configured, was bypassed, or
	// the transport call failed. Retry/defer signal.
	ReportUnavailable ReportOutcome = iota

	// ReportEmpty means the lookup succeeded and no matching record exists
	// remotely for the queried date.
	ReportEmpty

	// ReportFound means the lookup succeeded and returned a record.
	ReportFound
)

// ReportResult is the tagged result of a report lookup
type ReportResult struct {
	Outcome ReportOutcome
	Report  *Report
}

// UnavailableReport builds the "no information" result
func UnavailableReport() ReportResult {
	return ReportResult{Outcome: ReportUnavailable}
}

// EmptyReport builds the "lookup worked, nothing there" result
func EmptyReport() ReportResult {
	return ReportResult{Outcome: ReportEmpty}
}

// FoundReport wraps a non-empty report
func FoundReport(r *Report) ReportResult {
	return ReportResult{Outcome: ReportFound, Report: r}
}

// Unavailable returns true when the lookup could not be performed
func (r ReportResult) Unavailable() bool {
	return r.Outcome == ReportUnavailable
}

// Found returns true when a matching record was returned
func (r ReportResult) Found() bool {
	return r.Outcome == ReportFound
}
