// Package permastore is the client for the external write-once
// content-addressed storage network that archived certificates are
// anchored to. A successful upload returns a publicly resolvable gateway
// locator and an opaque transaction identifier; both are stored verbatim
// on the certificate record.
package permastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the HTTP client timeout for uploads
	DefaultTimeout = 60 * time.Second

	// appTag identifies uploads from this application on the network
	appTag = "ScholarProof"
)

// ErrArchiveFailed wraps any network or credential failure during upload.
// The caller decides whether to retry; the client never retries on its own.
var ErrArchiveFailed = errors.New("permanent storage archive failed")

// Receipt is the result of a successful upload
type Receipt struct {
	// URL is the publicly resolvable gateway locator
	URL string `json:"url"`
	// TxID is the network's opaque transaction identifier
	TxID string `json:"tx_id"`
}

// Config holds configuration for the permanent storage client
type Config struct {
	// NodeURL is the upload node endpoint
	NodeURL string
	// GatewayURL is the public gateway locators are built from
	GatewayURL string
	// PrivateKey funds and signs uploads; treated as an opaque credential
	PrivateKey string
	Timeout    time.Duration
}

// Client uploads blobs to the permanent storage network
type Client struct {
	nodeURL    string
	gatewayURL string
	privateKey string
	httpClient *http.Client
}

// NewClient creates a new permanent storage client
func NewClient(config Config) (*Client, error) {
	if config.NodeURL == "" {
		return nil, fmt.Errorf("permanent storage node URL is required")
	}
	if config.GatewayURL == "" {
		return nil, fmt.Errorf("permanent storage gateway URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	return &Client{
		nodeURL:    strings.TrimSuffix(config.NodeURL, "/"),
		gatewayURL: strings.TrimSuffix(config.GatewayURL, "/"),
		privateKey: config.PrivateKey,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// uploadResponse is the node's reply to a transaction upload
type uploadResponse struct {
	ID string `json:"id"`
}

// Upload sends one blob to the network and returns its receipt. Failures
// propagate wrapped in ErrArchiveFailed and leave nothing to clean up: the
// network either accepted the transaction or it did not.
func (c *Client) Upload(ctx context.Context, data []byte, contentType string) (Receipt, error) {
	if len(data) == 0 {
		return Receipt{}, fmt.Errorf("%w: empty payload", ErrArchiveFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL+"/tx", bytes.NewReader(data))
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrArchiveFailed, err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.privateKey)
	req.Header.Set("X-App-Name", appTag)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrArchiveFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: reading response: %v", ErrArchiveFailed, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Receipt{}, fmt.Errorf("%w: node returned status %d: %s", ErrArchiveFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Receipt{}, fmt.Errorf("%w: malformed node response: %v", ErrArchiveFailed, err)
	}
	if parsed.ID == "" {
		return Receipt{}, fmt.Errorf("%w: node response has no transaction id", ErrArchiveFailed)
	}

	return Receipt{
		URL:  c.gatewayURL + "/" + parsed.ID,
		TxID: parsed.ID,
	}, nil
}
