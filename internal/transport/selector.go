package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"agreeline/internal/result"
)

// Selector routes each operation through the bridge when one is configured
// and retries over REST when the bridge call fails for any reason. Failures
// on the final channel are normalized to coded errors so callers never see a
// raw transport error.
type Selector struct {
	Bridge Transport
	REST   Transport
	Logger *log.Logger
}

// NewSelector builds a Selector. Either transport may be nil; at least one
// must be set for calls to succeed.
func NewSelector(bridge, rest Transport) *Selector {
	return &Selector{Bridge: bridge, REST: rest}
}

func (s *Selector) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// invoke runs op against the bridge first, falls back to REST, and wraps the
// final failure. Bridge panics are contained here because the bridge is
// foreign code injected by a host.
func invoke[T any](s *Selector, op string, call func(Transport) (T, error)) (T, error) {
	var zero T
	if s.Bridge != nil {
		v, err := safeCall(s.Bridge, call)
		if err == nil {
			return v, nil
		}
		s.logf("bridge %s failed, falling back to rest: %v", op, err)
	}
	if s.REST == nil {
		return zero, result.Errorf(500, "operation %s failed: no transport available", op)
	}
	v, err := safeCall(s.REST, call)
	if err != nil {
		return zero, result.Normalize(err, op)
	}
	return v, nil
}

func safeCall[T any](t Transport, call func(Transport) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return call(t)
}

func (s *Selector) CreateContext(ctx context.Context, req CreateContextRequest) (CreateContextResponse, error) {
	return invoke(s, "create context", func(t Transport) (CreateContextResponse, error) {
		return t.CreateContext(ctx, req)
	})
}

func (s *Selector) InviteToContext(ctx context.Context, req InviteRequest) (string, error) {
	return invoke(s, "invite to context", func(t Transport) (string, error) {
		return t.InviteToContext(ctx, req)
	})
}

func (s *Selector) JoinContext(ctx context.Context, invitationPayload string) (JoinResponse, error) {
	return invoke(s, "join context", func(t Transport) (JoinResponse, error) {
		return t.JoinContext(ctx, invitationPayload)
	})
}

func (s *Selector) VerifyContext(ctx context.Context, contextID string) (VerifyResponse, error) {
	return invoke(s, "verify context", func(t Transport) (VerifyResponse, error) {
		return t.VerifyContext(ctx, contextID)
	})
}

func (s *Selector) ListContexts(ctx context.Context) (json.RawMessage, error) {
	return invoke(s, "list contexts", func(t Transport) (json.RawMessage, error) {
		return t.ListContexts(ctx)
	})
}

func (s *Selector) Execute(ctx context.Context, contextID, executorID, method string, args any) (json.RawMessage, error) {
	return invoke(s, "execute "+method, func(t Transport) (json.RawMessage, error) {
		return t.Execute(ctx, contextID, executorID, method, args)
	})
}
