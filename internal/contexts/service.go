// Package contexts exposes the raw context lifecycle operations: create,
// invite, join, verify, list. Higher level agreement flows compose these.
package contexts

import (
	"context"
	"encoding/json"
	"time"

	"agreeline/internal/events"
	"agreeline/internal/transport"
)

// Service wraps a Transport (normally the Selector) and records audit events
// for the mutations it performs.
type Service struct {
	Transport transport.Transport
	Events    *events.Writer
	Now       func() time.Time
}

// New creates a Service over the given transport.
func New(t transport.Transport, w *events.Writer) *Service {
	return &Service{Transport: t, Events: w, Now: time.Now}
}

// Create creates a backend context and returns the identifiers the caller
// needs to act in it.
func (s *Service) Create(ctx context.Context, name string, isPrivate bool, metadata map[string]any) (transport.CreateContextResponse, error) {
	resp, err := s.Transport.CreateContext(ctx, transport.CreateContextRequest{
		Name:      name,
		IsPrivate: isPrivate,
		Metadata:  metadata,
	})
	if err != nil {
		return transport.CreateContextResponse{}, err
	}
	s.append(ctx, "context.created", resp.ContextID, "context", resp.ContextID, events.EventPayload{"name": name, "is_private": isPrivate})
	return resp, nil
}

// Invite produces an invitation payload the invitee can redeem with Join.
func (s *Service) Invite(ctx context.Context, contextID, inviterID, inviteeID string) (string, error) {
	payload, err := s.Transport.InviteToContext(ctx, transport.InviteRequest{
		ContextID: contextID,
		InviterID: inviterID,
		InviteeID: inviteeID,
	})
	if err != nil {
		return "", err
	}
	s.append(ctx, "context.invited", contextID, "context", contextID, events.EventPayload{"invitee_id": inviteeID})
	return payload, nil
}

// Join redeems an invitation payload.
func (s *Service) Join(ctx context.Context, invitationPayload string) (transport.JoinResponse, error) {
	resp, err := s.Transport.JoinContext(ctx, invitationPayload)
	if err != nil {
		return transport.JoinResponse{}, err
	}
	s.append(ctx, "context.joined", resp.ContextID, "context", resp.ContextID, nil)
	return resp, nil
}

// Verify reports whether the local node is a member of the context. Any
// failure along the way reads as "not joined" rather than an error.
func (s *Service) Verify(ctx context.Context, contextID string) bool {
	resp, err := s.Transport.VerifyContext(ctx, contextID)
	if err != nil {
		return false
	}
	return resp.Joined
}

// List returns the raw context listing for callers that normalize it
// themselves.
func (s *Service) List(ctx context.Context) (json.RawMessage, error) {
	return s.Transport.ListContexts(ctx)
}

func (s *Service) append(ctx context.Context, evtType, contextID, kind, id string, payload events.EventPayload) {
	if s.Events == nil {
		return
	}
	s.Events.Append(ctx, evtType, contextID, kind, id, "", payload)
}
