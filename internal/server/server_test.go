package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"testing"

	"agreeline/internal/agreement"
	"agreeline/internal/contexts"
	"agreeline/internal/db"
	"agreeline/internal/domain"
	"agreeline/internal/migrate"
	"agreeline/internal/scratch"
	"agreeline/internal/transport"
)

type stubTransport struct {
	joinErr error
}

func (s *stubTransport) CreateContext(ctx context.Context, req transport.CreateContextRequest) (transport.CreateContextResponse, error) {
	return transport.CreateContextResponse{ContextID: "ctx-1", MemberPublicKey: "pk-1"}, nil
}

func (s *stubTransport) InviteToContext(ctx context.Context, req transport.InviteRequest) (string, error) {
	return "payload-1", nil
}

func (s *stubTransport) JoinContext(ctx context.Context, payload string) (transport.JoinResponse, error) {
	if s.joinErr != nil {
		return transport.JoinResponse{}, s.joinErr
	}
	return transport.JoinResponse{ContextID: "ctx-1", MemberPublicKey: "pk-1"}, nil
}

func (s *stubTransport) VerifyContext(ctx context.Context, contextID string) (transport.VerifyResponse, error) {
	return transport.VerifyResponse{Joined: contextID == "ctx-1"}, nil
}

func (s *stubTransport) ListContexts(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[{"context_id":"ctx-1","context_name":"Deal","role":"Owner"}]`), nil
}

func (s *stubTransport) Execute(ctx context.Context, contextID, executorID, method string, args any) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	tr := &stubTransport{}
	o := agreement.New(contexts.New(tr, nil), tr, scratch.NewMemory(), nil)
	o.Logger = log.New(io.Discard, "", 0)

	handler, err := New(Config{
		Orchestrator: o,
		DB:           conn,
		BasePath:     "/v0",
		Auth: AuthConfig{
			AllowLegacyActorHeader: true,
			Logger:                 log.New(io.Discard, "", 0),
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, b
}

func actorHeaders() map[string]string {
	return map[string]string{"X-Actor-Id": "tester"}
}

func TestHealthNoAuth(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/agreements", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d body = %s", resp.StatusCode, body)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("error code = %q", envelope.Error.Code)
	}
}

func TestCreateAndListAgreements(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/agreements", map[string]string{"name": "Acme"}, actorHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d body = %s", resp.StatusCode, body)
	}
	var created domain.Agreement
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Role != domain.RoleOwner || created.Name != "Acme" {
		t.Fatalf("created = %+v", created)
	}

	resp, body = doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/agreements", nil, actorHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d body = %s", resp.StatusCode, body)
	}
	var list []domain.Agreement
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Deal" {
		t.Fatalf("list = %+v", list)
	}
}

func TestCreateDaoAgreementEndpoint(t *testing.T) {
	ts := newTestServer(t)

	reqBody := map[string]any{
		"name":            "Proj",
		"participant_ids": []string{"p1"},
		"milestones": []map[string]any{
			{"title": "M1", "kind": "manual", "amount": "10", "recipients": []string{"p1"}},
		},
		"total_funding":    "10",
		"voting_threshold": 75,
	}
	resp, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/dao/agreements", reqBody, actorHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %s", resp.StatusCode, body)
	}
	var res agreement.CompleteDaoResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.AgreementID == "" || res.Agreement.ContextID != "ctx-1" {
		t.Fatalf("result = %+v", res)
	}
}

func TestCreateAgreementValidation(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/agreements", map[string]string{"name": ""}, actorHeaders())
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d body = %s", resp.StatusCode, body)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/agreements/ctx-1/verify", nil, actorHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %s", resp.StatusCode, body)
	}
	var out struct {
		Joined bool `json:"joined"`
	}
	if err := json.Unmarshal(body, &out); err != nil || !out.Joined {
		t.Fatalf("verify = %s err = %v", body, err)
	}
}
