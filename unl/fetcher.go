package unl

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xrplwatch/valtrack/logging/fields"
)

const (
	requestTimeout  = 30 * time.Second
	maxResponseSize = 8 << 20
)

// Envelope is the published validator list document. The blob is a base64
// encoded JSON payload; the outer signature is carried but not verified here.
type Envelope struct {
	PublicKey string `json:"public_key"`
	Manifest  string `json:"manifest"`
	Blob      string `json:"blob"`
	Signature string `json:"signature"`
	Version   int    `json:"version"`
}

// Blob is the decoded list payload.
type Blob struct {
	Sequence   uint32  `json:"sequence"`
	Expiration uint32  `json:"expiration"`
	Validators []Entry `json:"validators"`
}

// Entry is one listed validator: its master public key in hex and the base64
// encoded manifest binding the current signing key.
type Entry struct {
	ValidationPublicKey string `json:"validation_public_key"`
	Manifest            string `json:"manifest"`
}

// Fetcher retrieves and unwraps the validator list for one endpoint. It owns
// no retry policy; callers decide when to fetch again.
type Fetcher struct {
	logger   *zap.Logger
	client   *http.Client
	endpoint string
}

func NewFetcher(logger *zap.Logger, endpoint string) *Fetcher {
	return &Fetcher{
		logger:   logger,
		client:   &http.Client{Timeout: requestTimeout},
		endpoint: endpoint,
	}
}

// Fetch GETs the validator list and decodes envelope and blob. Any failure
// returns an error without partial results.
func (f *Fetcher) Fetch(ctx context.Context) (*Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not create request")
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch validator list")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d from %s", resp.StatusCode, f.endpoint)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "could not read response body")
	}

	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrap(err, "could not parse validator list envelope")
	}

	raw, err := base64.StdEncoding.DecodeString(envelope.Blob)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode validator list blob")
	}

	var blob Blob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, errors.Wrap(err, "could not parse validator list blob")
	}

	f.logger.Debug("fetched validator list",
		fields.Endpoint(f.endpoint),
		fields.ListSequence(blob.Sequence),
		fields.Validators(len(blob.Validators)),
		fields.Duration(time.Since(start)))

	return &blob, nil
}
