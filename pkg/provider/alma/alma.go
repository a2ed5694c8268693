// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package alma

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/failure"
	"github.com/walteh/drsholding/pkg/marc"
	"github.com/walteh/drsholding/pkg/remote"
)

const (
	bibsPath     = "/almaws/v1/bibs/"
	holdingsPath = "/holdings"

	defaultTimeout = 60 * time.Second
)

// Options configures the Alma client
type Options struct {
	// APIBase is the scheme and host of the Alma REST API
	APIBase string
	// APIKey is sent as the apikey query parameter
	APIKey string
	// SRUBase is the SRU marcxml search URL the external id is appended to
	SRUBase string
	// HTTPClient defaults to a client with a 60s timeout
	HTTPClient *http.Client
}

// 📚 Client implements remote.Catalog against Alma
type Client struct {
	apiBase string
	apiKey  string
	sruBase string
	http    *http.Client
}

var _ remote.Catalog = (*Client)(nil)

// 🏭 New creates a new Alma client
func New(opts Options) (*Client, error) {
	if opts.APIBase == "" {
		return nil, errors.New("api base is required")
	}
	if opts.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	if opts.SRUBase == "" {
		return nil, errors.New("sru base is required")
	}
	if _, err := url.Parse(opts.APIBase); err != nil {
		return nil, errors.Errorf("parsing api base: %w", err)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		apiBase: strings.TrimRight(opts.APIBase, "/"),
		apiKey:  opts.APIKey,
		sruBase: opts.SRUBase,
		http:    client,
	}, nil
}

// 🔍 ResolveExternalID runs the SRU search and reads the record identifier
func (c *Client) ResolveExternalID(ctx context.Context, externalID string) (*remote.SearchResult, error) {
	endpoint := c.sruBase + url.QueryEscape(externalID)

	body, status, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("searching for %s: %w: status %d", externalID, failure.ErrNotFound, status)
	}

	doc, err := marc.Parse(body)
	if err != nil {
		return nil, errors.Errorf("searching for %s: %w", externalID, err)
	}

	recordID, ok := doc.Find("//records/record/recordIdentifier")
	if !ok || strings.TrimSpace(recordID) == "" {
		return nil, errors.Errorf("searching for %s: %w: no record identifier in response", externalID, failure.ErrNotFound)
	}

	zerolog.Ctx(ctx).Debug().Str("external_id", externalID).Str("mms_id", recordID).Msg("resolved external id")

	return &remote.SearchResult{
		RecordID: strings.TrimSpace(recordID),
		Raw:      body,
		Document: doc,
	}, nil
}

func childText(el *etree.Element, tag string) string {
	if c := el.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

// 📋 ListHoldings returns the bib's holdings in response order
func (c *Client) ListHoldings(ctx context.Context, recordID string) (*remote.HoldingList, error) {
	endpoint := c.holdingsURL(recordID)

	body, status, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("listing holdings for %s: %w: status %d", recordID, failure.ErrTransport, status)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, errors.Errorf("listing holdings for %s: %w: %w", recordID, failure.ErrValidation, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "holdings" {
		return nil, errors.Errorf("listing holdings for %s: %w: expected a holdings document", recordID, failure.ErrValidation)
	}

	entries := root.SelectElements("holding")
	out := make([]remote.HoldingSummary, 0, len(entries))
	for _, h := range entries {
		out = append(out, remote.HoldingSummary{
			HoldingID: childText(h, "holding_id"),
			Library:   childText(h, "library"),
			Location:  childText(h, "location"),
		})
	}

	zerolog.Ctx(ctx).Debug().Str("mms_id", recordID).Int("count", len(out)).Msg("listed holdings")
	return &remote.HoldingList{Holdings: out, Raw: body}, nil
}

// 📄 GetHolding fetches and validates one holding record
func (c *Client) GetHolding(ctx context.Context, recordID, holdingID string) (*remote.Holding, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.holdingURL(recordID, holdingID), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("getting holding %s of %s: %w: status %d", holdingID, recordID, failure.ErrNotFound, status)
	}

	doc, err := marc.Parse(body)
	if err != nil {
		return nil, errors.Errorf("getting holding %s of %s: %w", holdingID, recordID, err)
	}
	if err := doc.ValidateHolding(); err != nil {
		return nil, errors.Errorf("getting holding %s of %s: %w", holdingID, recordID, err)
	}

	return &remote.Holding{
		RecordID:  recordID,
		HoldingID: holdingID,
		Raw:       body,
		Document:  doc,
	}, nil
}

// 📤 PutHolding replaces the holding; only a 200 counts as success
func (c *Client) PutHolding(ctx context.Context, recordID, holdingID string, body []byte) error {
	_, status, err := c.do(ctx, http.MethodPut, c.holdingURL(recordID, holdingID), body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.Errorf("putting holding %s of %s: %w: status %d", holdingID, recordID, failure.ErrTransport, status)
	}

	zerolog.Ctx(ctx).Info().Str("mms_id", recordID).Str("holding_id", holdingID).Msg("updated holding")
	return nil
}

func (c *Client) holdingsURL(recordID string) string {
	return c.apiBase + bibsPath + url.PathEscape(recordID) + holdingsPath
}

func (c *Client) holdingURL(recordID, holdingID string) string {
	return c.holdingsURL(recordID) + "/" + url.PathEscape(holdingID)
}

// do performs one request. The api key is added here so it never reaches error text.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, int, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, 0, errors.Errorf("parsing url: %w", err)
	}
	redacted := u.Scheme + "://" + u.Host + u.Path

	if strings.HasPrefix(endpoint, c.apiBase+bibsPath) {
		q := u.Query()
		q.Set("apikey", c.apiKey)
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, 0, errors.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	if body != nil {
		req.Header.Set("Content-Type", "application/xml")
	}

	zerolog.Ctx(ctx).Debug().Str("method", method).Str("url", redacted).Msg("calling alma")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, errors.Errorf("%s %s: %w: %s", method, redacted, failure.ErrTransport, redactErr(err, c.apiKey))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Errorf("%s %s: reading body: %w: %s", method, redacted, failure.ErrTransport, redactErr(err, c.apiKey))
	}

	return respBody, resp.StatusCode, nil
}

func redactErr(err error, secret string) string {
	msg := err.Error()
	if secret == "" {
		return msg
	}
	return strings.ReplaceAll(msg, url.QueryEscape(secret), "REDACTED")
}
