package cybersource

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	adapterports "github.com/paybridge/gateway-reconciler/internal/adapters/ports"
	"github.com/paybridge/gateway-reconciler/internal/domain/models"
	"github.com/paybridge/gateway-reconciler/internal/domain/ports"
)

// ReportClientConfig contains configuration for the on-demand report client
type ReportClientConfig struct {
	BaseURL    string // e.g., "https://ebc.cybersource.com/ebc/Query"
	MerchantID string
	Username   string
	Password   string
	Timeout    time.Duration
}

// DefaultReportClientConfig returns default configuration
func DefaultReportClientConfig() *ReportClientConfig {
	return &ReportClientConfig{
		BaseURL: "https://ebc.cybersource.com/ebc/Query",
		Timeout: 30 * time.Second,
	}
}

// reportClient implements the ReportClient port against the gateway's
// on-demand single transaction report API
type reportClient struct {
	config     *ReportClientConfig
	httpClient adapterports.HTTPClient
	logger     ports.Logger
}

// NewReportClient creates a new on-demand report client
func NewReportClient(
	config *ReportClientConfig,
	httpClient adapterports.HTTPClient,
	logger ports.Logger,
) ports.ReportClient {
	return &reportClient{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

// On-demand report response structures (transaction detail report v1.7)
type reportEnvelope struct {
	XMLName  xml.Name        `xml:"Report"`
	Requests []reportRequest `xml:"Requests>Request"`
}

type reportRequest struct {
	RequestID               string        `xml:"RequestID,attr"`
	MerchantReferenceNumber string        `xml:"MerchantReferenceNumber,attr"`
	Replies                 []reportReply `xml:"ApplicationReplies>ApplicationReply"`
}

type reportReply struct {
	Name  string `xml:"Name,attr"`
	RCode string `xml:"RCode"`
	RFlag string `xml:"RFlag"`
	RMsg  string `xml:"RMsg"`
}

// SingleTransactionReport queries the report for one merchant reference code
// on the given settlement date
func (c *reportClient) SingleTransactionReport(ctx context.Context, merchantReferenceCode string, date time.Time) (*models.Report, error) {
	form := url.Values{}
	form.Set("merchantID", c.config.MerchantID)
	form.Set("username", c.config.Username)
	form.Set("password", c.config.Password)
	form.Set("type", "transaction")
	form.Set("subtype", "transactionDetail")
	form.Set("versionNumber", "1.7")
	form.Set("targetDate", date.Format("20060102"))
	form.Set("merchantReferenceNumber", merchantReferenceCode)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("on-demand report response",
		ports.String("merchant_reference_code", merchantReferenceCode),
		ports.Int("status_code", resp.StatusCode),
		ports.String("elapsed", time.Since(startTime).String()))

	// 400 means no report exists for the target date at all; the gateway
	// answers an empty report rather than an error for a missing reference.
	if resp.StatusCode == http.StatusBadRequest {
		return &models.Report{MerchantReferenceCode: merchantReferenceCode}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("report API returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope reportEnvelope
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse report XML: %w", err)
	}

	report := &models.Report{
		MerchantReferenceCode: merchantReferenceCode,
		RowCount:              len(envelope.Requests),
	}
	if len(envelope.Requests) > 0 {
		first := envelope.Requests[0]
		report.RequestID = first.RequestID
		report.Success = replySuccessful(first.Replies)
	}
	return report, nil
}

// replySuccessful reports whether the request's first application reply
// carries the accept code
func replySuccessful(replies []reportReply) bool {
	if len(replies) == 0 {
		return false
	}
	return replies[0].RCode == "1"
}
