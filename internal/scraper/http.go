package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yonatanw/ledgerscope/internal/credential"
	"github.com/yonatanw/ledgerscope/internal/transaction"
)

// BridgeClient talks to the browser-automation runner over HTTP. The runner
// owns the actual vendor sessions; this client only ships credentials and
// options over and raw records back.
type BridgeClient struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

func NewBridgeClient(baseURL, apiToken string) *BridgeClient {
	return &BridgeClient{
		baseURL:  baseURL,
		apiToken: apiToken,
		client:   &http.Client{Timeout: 10 * time.Minute},
	}
}

type scrapeRequestBody struct {
	InstitutionID     string                  `json:"institutionId"`
	AccountNumber     string                  `json:"accountNumber"`
	Credentials       credential.Credentials  `json:"credentials"`
	StartDate         string                  `json:"startDate,omitempty"`
	TimeoutSeconds    int                     `json:"timeoutSeconds,omitempty"`
	ScreenshotOnError bool                    `json:"screenshotOnError"`
}

type scrapeResponseBody struct {
	Records []transaction.RawRecord `json:"records"`
	Error   string                  `json:"error,omitempty"`
}

func (c *BridgeClient) ScrapeAccount(ctx context.Context, req Request, opts Options) ([]transaction.RawRecord, error) {
	body := scrapeRequestBody{
		InstitutionID:     req.InstitutionID,
		AccountNumber:     req.AccountNumber,
		Credentials:       req.Credentials,
		TimeoutSeconds:    int(opts.Timeout.Seconds()),
		ScreenshotOnError: opts.ScreenshotOnError,
	}

	if !opts.StartDate.IsZero() {
		body.StartDate = opts.StartDate.Format(time.DateOnly)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding scrape request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scrape", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building scrape request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	if c.apiToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling scrape runner: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("scrape runner returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded scrapeResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding scrape response: %w", err)
	}

	if decoded.Error != "" {
		return nil, fmt.Errorf("scrape failed: %s", decoded.Error)
	}

	return decoded.Records, nil
}
