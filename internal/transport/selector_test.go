package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"agreeline/internal/result"
)

type fakeTransport struct {
	createErr   error
	createResp  CreateContextResponse
	createCalls int
	panics      bool
}

func (f *fakeTransport) CreateContext(ctx context.Context, req CreateContextRequest) (CreateContextResponse, error) {
	f.createCalls++
	if f.panics {
		panic("bridge exploded")
	}
	return f.createResp, f.createErr
}

func (f *fakeTransport) InviteToContext(ctx context.Context, req InviteRequest) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeTransport) JoinContext(ctx context.Context, payload string) (JoinResponse, error) {
	return JoinResponse{}, errors.New("not implemented")
}

func (f *fakeTransport) VerifyContext(ctx context.Context, contextID string) (VerifyResponse, error) {
	return VerifyResponse{}, errors.New("not implemented")
}

func (f *fakeTransport) ListContexts(ctx context.Context) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTransport) Execute(ctx context.Context, contextID, executorID, method string, args any) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}

func quietSelector(bridge, rest Transport) *Selector {
	s := NewSelector(bridge, rest)
	s.Logger = log.New(io.Discard, "", 0)
	return s
}

func TestSelectorPrefersBridge(t *testing.T) {
	bridge := &fakeTransport{createResp: CreateContextResponse{ContextID: "ctx-bridge"}}
	rest := &fakeTransport{createResp: CreateContextResponse{ContextID: "ctx-rest"}}
	s := quietSelector(bridge, rest)

	resp, err := s.CreateContext(context.Background(), CreateContextRequest{Name: "demo"})
	if err != nil {
		t.Fatalf("create context: %v", err)
	}
	if resp.ContextID != "ctx-bridge" {
		t.Fatalf("expected bridge result, got %q", resp.ContextID)
	}
	if rest.createCalls != 0 {
		t.Fatalf("rest should not be called when bridge succeeds, got %d calls", rest.createCalls)
	}
}

func TestSelectorFallsBackToREST(t *testing.T) {
	bridge := &fakeTransport{createErr: errors.New("bridge down")}
	rest := &fakeTransport{createResp: CreateContextResponse{ContextID: "ctx-rest"}}
	s := quietSelector(bridge, rest)

	resp, err := s.CreateContext(context.Background(), CreateContextRequest{Name: "demo"})
	if err != nil {
		t.Fatalf("create context: %v", err)
	}
	if resp.ContextID != "ctx-rest" {
		t.Fatalf("expected rest result after bridge failure, got %q", resp.ContextID)
	}
	if bridge.createCalls != 1 {
		t.Fatalf("bridge should be tried once, got %d calls", bridge.createCalls)
	}
}

func TestSelectorRecoversBridgePanic(t *testing.T) {
	bridge := &fakeTransport{panics: true}
	rest := &fakeTransport{createResp: CreateContextResponse{ContextID: "ctx-rest"}}
	s := quietSelector(bridge, rest)

	resp, err := s.CreateContext(context.Background(), CreateContextRequest{Name: "demo"})
	if err != nil {
		t.Fatalf("create context: %v", err)
	}
	if resp.ContextID != "ctx-rest" {
		t.Fatalf("expected rest result after bridge panic, got %q", resp.ContextID)
	}
}

func TestSelectorNormalizesFinalFailure(t *testing.T) {
	bridge := &fakeTransport{createErr: errors.New("bridge down")}
	rest := &fakeTransport{createErr: errors.New("connection refused")}
	s := quietSelector(bridge, rest)

	_, err := s.CreateContext(context.Background(), CreateContextRequest{Name: "demo"})
	if err == nil {
		t.Fatal("expected error when both transports fail")
	}
	var coded *result.Error
	if !errors.As(err, &coded) {
		t.Fatalf("expected coded error, got %T: %v", err, err)
	}
	if coded.Code != 500 {
		t.Fatalf("expected code 500, got %d", coded.Code)
	}
}

func TestSelectorNoTransport(t *testing.T) {
	s := quietSelector(nil, nil)
	_, err := s.CreateContext(context.Background(), CreateContextRequest{Name: "demo"})
	var coded *result.Error
	if !errors.As(err, &coded) || coded.Code != 500 {
		t.Fatalf("expected coded 500 error, got %v", err)
	}
}

func TestSelectorPreservesCodedErrors(t *testing.T) {
	rest := &fakeTransport{createErr: result.Errorf(404, "context not found")}
	s := quietSelector(nil, rest)

	_, err := s.CreateContext(context.Background(), CreateContextRequest{Name: "demo"})
	var coded *result.Error
	if !errors.As(err, &coded) {
		t.Fatalf("expected coded error, got %v", err)
	}
	if coded.Code != 404 {
		t.Fatalf("coded errors must pass through unchanged, got code %d", coded.Code)
	}
}
