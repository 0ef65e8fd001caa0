package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/screenhall/screenhall/internal/profile"
	"github.com/screenhall/screenhall/internal/provider"
)

// Profiles returns a profile store backed by the remote service. The
// returned store satisfies the same contract as the in-process stores, so
// the reconciler can run against it directly.
func (c *Client) Profiles() profile.Store {
	return &remoteProfiles{client: c}
}

type remoteProfiles struct {
	client *Client
}

func (r *remoteProfiles) Read(ctx context.Context, id string) (*profile.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.client.base+"/api/v1/profiles/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.httpClient.Do(req)
	if err != nil {
		return nil, provider.NewError(provider.CodeNetworkFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, provider.NewError(provider.CodeNetworkFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, profile.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, decodeError(resp.StatusCode, body)
	}

	var p profile.Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

func (r *remoteProfiles) Write(ctx context.Context, id string, p *profile.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.client.base+"/api/v1/profiles/"+id, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.httpClient.Do(req)
	if err != nil {
		return provider.NewError(provider.CodeNetworkFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return provider.NewError(provider.CodeNetworkFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, body)
	}
	return nil
}
