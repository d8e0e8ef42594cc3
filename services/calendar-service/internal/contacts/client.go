// Package contacts talks to the host portal's CRM contact API. Portal
// deployments disagree on response envelopes and field casing, so every
// payload goes through the normalization in normalize.go and the rest of
// the service only ever sees the clean Contact shape.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrNotFound = errors.New("contact not found")

type Contact struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  *slog.Logger
}

// NewClient returns nil when baseURL is empty; callers treat a nil
// client as "CRM linking disabled".
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
	}
}

func (c *Client) Search(ctx context.Context, portalID, query string) ([]Contact, error) {
	endpoint := fmt.Sprintf("%s/v1/crm/%s/contacts?query=%s",
		c.baseURL, url.PathEscape(portalID), url.QueryEscape(query))
	raw, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	list, err := unwrapList(raw)
	if err != nil {
		return nil, fmt.Errorf("contact search response: %w", err)
	}
	contacts := make([]Contact, 0, len(list))
	for _, item := range list {
		contact, ok := normalizeContact(item)
		if !ok {
			if c.logger != nil {
				c.logger.Debug("skipping unrecognizable contact entry", "portal_id", portalID)
			}
			continue
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

func (c *Client) Get(ctx context.Context, portalID string, id int64) (Contact, error) {
	endpoint := fmt.Sprintf("%s/v1/crm/%s/contacts/%d", c.baseURL, url.PathEscape(portalID), id)
	raw, err := c.get(ctx, endpoint)
	if err != nil {
		return Contact{}, err
	}

	contact, ok := normalizeSingle(raw)
	if !ok {
		return Contact{}, fmt.Errorf("contact %d: unrecognized response shape", id)
	}
	return contact, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("portal crm api returned %d", resp.StatusCode)
	}
	return body, nil
}
