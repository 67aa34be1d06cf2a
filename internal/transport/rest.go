package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agreeline/internal/result"
)

// RESTClient talks to a node's admin API over HTTP. It is the fallback
// channel when no host bridge is present or the bridge call failed.
type RESTClient struct {
	BaseURL       string
	ApplicationID string
	APIKey        string
	HTTPClient    *http.Client
	Timeout       time.Duration
}

// NewRESTClient creates a REST transport with sane defaults.
func NewRESTClient(baseURL, applicationID string) *RESTClient {
	return &RESTClient{
		BaseURL:       baseURL,
		ApplicationID: applicationID,
		Timeout:       10 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *RESTClient) CreateContext(ctx context.Context, req CreateContextRequest) (CreateContextResponse, error) {
	if c.ApplicationID == "" {
		return CreateContextResponse{}, result.Errorf(500, "application id not configured; set node.application_id or AGREELINE_APPLICATION_ID")
	}
	body := map[string]any{
		"application_id": c.ApplicationID,
		"context_name":   req.Name,
		"is_private":     req.IsPrivate,
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "contexts", body, &raw); err != nil {
		return CreateContextResponse{}, err
	}
	resp, err := decodeCreateContext(raw)
	if err != nil {
		return CreateContextResponse{}, fmt.Errorf("decode create context response: %w", err)
	}
	return resp, nil
}

func (c *RESTClient) InviteToContext(ctx context.Context, req InviteRequest) (string, error) {
	body := map[string]any{
		"context_id": req.ContextID,
		"inviter_id": req.InviterID,
		"invitee_id": req.InviteeID,
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "contexts/invite", body, &raw); err != nil {
		return "", err
	}
	payload, err := decodeInvitation(raw)
	if err != nil {
		return "", fmt.Errorf("decode invite response: %w", err)
	}
	return payload, nil
}

func (c *RESTClient) JoinContext(ctx context.Context, invitationPayload string) (JoinResponse, error) {
	body := map[string]any{
		"invitation_payload": invitationPayload,
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "contexts/join", body, &raw); err != nil {
		return JoinResponse{}, err
	}
	resp, err := decodeJoin(raw)
	if err != nil {
		return JoinResponse{}, fmt.Errorf("decode join response: %w", err)
	}
	return resp, nil
}

// VerifyContext treats a successful fetch of the context as proof of
// membership and a 404 as a plain "not joined", not an error.
func (c *RESTClient) VerifyContext(ctx context.Context, contextID string) (VerifyResponse, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, "contexts/"+url.PathEscape(contextID), nil, &raw)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return VerifyResponse{Joined: false}, nil
		}
		return VerifyResponse{}, err
	}
	return VerifyResponse{Joined: len(unwrapData(raw)) > 0}, nil
}

func (c *RESTClient) ListContexts(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "contexts", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *RESTClient) Execute(ctx context.Context, contextID, executorID, method string, args any) (json.RawMessage, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", method, err)
	}
	body := map[string]any{
		"method":              method,
		"args_json":           string(argsJSON),
		"executor_public_key": executorID,
	}
	endpoint := fmt.Sprintf("contexts/%s/execute", url.PathEscape(contextID))
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, endpoint, body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *RESTClient) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *RESTClient) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
