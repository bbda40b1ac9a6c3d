package keep

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

const maxResponseBytes = 16 << 20

// BridgeClient talks JSON over HTTP to a sidecar that wraps the note
// service's private protocol.
type BridgeClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewBridgeClient(baseURL string, timeout time.Duration) *BridgeClient {
	return &BridgeClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason Reason `json:"reason"`
}

type tokenResponse struct {
	MasterToken string `json:"masterToken"`
}

type notesResponse struct {
	Notes []wireNote `json:"notes"`
}

func (c *BridgeClient) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (c *BridgeClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	if strings.TrimSpace(c.BaseURL) == "" {
		return nil, errors.New("base url is empty")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := strings.TrimRight(c.BaseURL, "/") + path

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *BridgeClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er errorResponse
		if err := json.Unmarshal(b, &er); err == nil && strings.TrimSpace(er.Error) != "" {
			return statusError(resp.StatusCode, er.Reason, er.Error)
		}
		return statusError(resp.StatusCode, "", strings.TrimSpace(string(b)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *BridgeClient) post(ctx context.Context, path string, body, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *BridgeClient) token(ctx context.Context, path string, body any) (string, error) {
	var resp tokenResponse
	if err := c.post(ctx, path, body, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.MasterToken) == "" {
		return "", ErrNoMasterToken
	}
	return resp.MasterToken, nil
}

func (c *BridgeClient) Authenticate(ctx context.Context, email, password string) (string, error) {
	return c.token(ctx, "/auth/login", map[string]string{"email": email, "password": password})
}

func (c *BridgeClient) ExchangeToken(ctx context.Context, email, oauthToken string) (string, error) {
	return c.token(ctx, "/auth/exchange", map[string]string{"email": email, "oauthToken": oauthToken})
}

func (c *BridgeClient) MasterLogin(ctx context.Context, email, appPassword string) (string, error) {
	return c.token(ctx, "/auth/master-login", map[string]string{"email": email, "appPassword": appPassword})
}

// Resume verifies the stored credential and returns a session for it.
func (c *BridgeClient) Resume(ctx context.Context, email, masterToken string) (*Session, error) {
	if strings.TrimSpace(masterToken) == "" {
		return nil, &Error{Reason: ReasonAuth, Message: "missing master token"}
	}
	body := map[string]string{"email": email, "masterToken": masterToken}
	if err := c.post(ctx, "/auth/resume", body, nil); err != nil {
		return nil, err
	}
	return &Session{Email: email, MasterToken: masterToken}, nil
}

func (c *BridgeClient) FetchNotes(ctx context.Context, session *Session, opts FetchOptions) ([]Note, error) {
	if session == nil {
		return nil, errors.New("nil session")
	}
	body := map[string]any{
		"email":           session.Email,
		"masterToken":     session.MasterToken,
		"includeArchived": opts.IncludeArchived,
		"includeTrashed":  opts.IncludeTrashed,
	}
	var resp notesResponse
	if err := c.post(ctx, "/notes", body, &resp); err != nil {
		return nil, err
	}

	notes := make([]Note, 0, len(resp.Notes))
	for _, w := range resp.Notes {
		n, err := w.toNote()
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}
