package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/teamvault/sharecore/internal/common"
	"github.com/teamvault/sharecore/internal/logging"
)

// HTTPClient implements Client over a JSON/HTTP API.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
	log     logging.Logger
}

// NewHTTPClient builds a client for the API rooted at baseURL. The supplied
// *http.Client owns timeout and transport policy; nil means
// http.DefaultClient.
func NewHTTPClient(baseURL string, hc *http.Client, log logging.Logger) *HTTPClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      hc,
		log:     log,
	}
}

type gpgKeysResponse struct {
	ServerTime int64    `json:"server_time"`
	Keys       []GPGKey `json:"keys"`
}

func (c *HTTPClient) GPGKeysModifiedAfter(ctx context.Context, since time.Time) ([]GPGKey, time.Time, error) {
	endpoint := c.baseURL + "/gpgkeys.json"
	if !since.IsZero() {
		endpoint += "?modified_after=" + url.QueryEscape(strconv.FormatInt(since.Unix(), 10))
	}

	var resp gpgKeysResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, time.Time{}, err
	}
	return resp.Keys, time.Unix(resp.ServerTime, 0).UTC(), nil
}

type sharePayload struct {
	Permissions []PermissionChange `json:"permissions"`
	Secrets     []Secret           `json:"secrets,omitempty"`
}

type simulateResponse struct {
	Changes struct {
		Added []struct {
			User struct {
				ID string `json:"id"`
			} `json:"User"`
		} `json:"added"`
		Removed []struct {
			User struct {
				ID string `json:"id"`
			} `json:"User"`
		} `json:"removed"`
	} `json:"changes"`
}

func (c *HTTPClient) SimulateShare(ctx context.Context, acoType, acoID string, changes []PermissionChange) (*SimulationResult, error) {
	endpoint := fmt.Sprintf("%s/share/simulate/%s/%s.json", c.baseURL, url.PathEscape(acoType), url.PathEscape(acoID))

	var resp simulateResponse
	if err := c.do(ctx, http.MethodPost, endpoint, sharePayload{Permissions: changes}, &resp); err != nil {
		return nil, err
	}

	result := &SimulationResult{}
	for _, row := range resp.Changes.Added {
		result.AddedUserIDs = append(result.AddedUserIDs, row.User.ID)
	}
	for _, row := range resp.Changes.Removed {
		result.RemovedUserIDs = append(result.RemovedUserIDs, row.User.ID)
	}
	return result, nil
}

func (c *HTTPClient) CommitShare(ctx context.Context, acoType, acoID string, changes []PermissionChange, secrets []Secret) error {
	endpoint := fmt.Sprintf("%s/share/%s/%s.json", c.baseURL, url.PathEscape(acoType), url.PathEscape(acoID))
	return c.do(ctx, http.MethodPost, endpoint, sharePayload{Permissions: changes, Secrets: secrets}, nil)
}

type groupUpdatePayload struct {
	ID      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	IsAdmin *bool    `json:"is_admin,omitempty"`
	Delete  bool     `json:"delete,omitempty"`
	Secrets []Secret `json:"secrets,omitempty"`
}

func (c *HTTPClient) UpdateGroupName(ctx context.Context, groupID, name string) error {
	endpoint := fmt.Sprintf("%s/groups/%s.json", c.baseURL, url.PathEscape(groupID))
	return c.do(ctx, http.MethodPut, endpoint, groupUpdatePayload{ID: groupID, Name: name}, nil)
}

func (c *HTTPClient) UpdateGroupMember(ctx context.Context, groupID, userID string, isAdmin bool, secrets []Secret) error {
	endpoint := fmt.Sprintf("%s/groups/%s.json", c.baseURL, url.PathEscape(groupID))
	return c.do(ctx, http.MethodPut, endpoint, groupUpdatePayload{ID: userID, IsAdmin: &isAdmin, Secrets: secrets}, nil)
}

func (c *HTTPClient) DeleteGroupMember(ctx context.Context, groupID, userID string) error {
	endpoint := fmt.Sprintf("%s/groups/%s.json", c.baseURL, url.PathEscape(groupID))
	return c.do(ctx, http.MethodPut, endpoint, groupUpdatePayload{ID: userID, Delete: true}, nil)
}

// do sends one request and decodes the JSON response into out (if non-nil).
// Transport failures and 5xx map to ErrServiceUnavailable, 404 to
// ErrNotFound.
func (c *HTTPClient) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug(ctx, "api request", "method", method, "url", endpoint)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", method, endpoint, err, common.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, endpoint, common.ErrNotFound)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s %s: status %d: %w", method, endpoint, resp.StatusCode, common.ErrServiceUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%s %s: unexpected status %d", method, endpoint, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}
