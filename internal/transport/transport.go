// Package transport provides the two channels through which backend context
// operations are invoked: an embedded host bridge and a REST client, plus the
// Selector that prefers the bridge and falls back to REST. Callers never learn
// which channel served a given call.
package transport

import (
	"context"
	"encoding/json"
)

// CreateContextRequest carries the inputs for context creation. Metadata is
// attached verbatim to the init payload (DAO agreements attach their
// agreement metadata here).
type CreateContextRequest struct {
	Name      string
	IsPrivate bool
	Metadata  map[string]any
}

// CreateContextResponse is the normalized creation result.
type CreateContextResponse struct {
	ContextID       string
	MemberPublicKey string
	ExecutorID      string
}

// InviteRequest identifies the inviter and invitee for an invitation payload.
type InviteRequest struct {
	ContextID string
	InviterID string
	InviteeID string
}

// JoinResponse is the normalized join result.
type JoinResponse struct {
	ContextID       string
	MemberPublicKey string
}

// VerifyResponse reports membership. Joined defaults to false whenever the
// transport cannot confirm it.
type VerifyResponse struct {
	Joined bool
}

// Transport is the uniform operation set both channels implement.
type Transport interface {
	CreateContext(ctx context.Context, req CreateContextRequest) (CreateContextResponse, error)
	InviteToContext(ctx context.Context, req InviteRequest) (string, error)
	JoinContext(ctx context.Context, invitationPayload string) (JoinResponse, error)
	VerifyContext(ctx context.Context, contextID string) (VerifyResponse, error)
	ListContexts(ctx context.Context) (json.RawMessage, error)
	Execute(ctx context.Context, contextID, executorID, method string, args any) (json.RawMessage, error)
}

// envelope is the tolerant decode target for transport responses: some node
// versions nest the useful payload under data, others return it bare, and
// field naming moved from camelCase to snake_case across releases.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

func unwrapData(raw json.RawMessage) json.RawMessage {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return env.Data
	}
	return raw
}

func decodeCreateContext(raw json.RawMessage) (CreateContextResponse, error) {
	var body struct {
		ContextID          string `json:"context_id"`
		LegacyContextID    string `json:"contextId"`
		MemberPublicKey    string `json:"member_public_key"`
		LegacyMemberPubKey string `json:"memberPublicKey"`
		ExecutorID         string `json:"executor_id"`
		LegacyExecutorID   string `json:"executorId"`
	}
	if err := json.Unmarshal(unwrapData(raw), &body); err != nil {
		return CreateContextResponse{}, err
	}
	resp := CreateContextResponse{
		ContextID:       firstNonEmpty(body.ContextID, body.LegacyContextID),
		MemberPublicKey: firstNonEmpty(body.MemberPublicKey, body.LegacyMemberPubKey),
		ExecutorID:      firstNonEmpty(body.ExecutorID, body.LegacyExecutorID),
	}
	return resp, nil
}

func decodeJoin(raw json.RawMessage) (JoinResponse, error) {
	var body struct {
		ContextID          string `json:"context_id"`
		LegacyContextID    string `json:"contextId"`
		MemberPublicKey    string `json:"member_public_key"`
		LegacyMemberPubKey string `json:"memberPublicKey"`
	}
	if err := json.Unmarshal(unwrapData(raw), &body); err != nil {
		return JoinResponse{}, err
	}
	return JoinResponse{
		ContextID:       firstNonEmpty(body.ContextID, body.LegacyContextID),
		MemberPublicKey: firstNonEmpty(body.MemberPublicKey, body.LegacyMemberPubKey),
	}, nil
}

func decodeInvitation(raw json.RawMessage) (string, error) {
	data := unwrapData(raw)
	var payload string
	if err := json.Unmarshal(data, &payload); err == nil {
		return payload, nil
	}
	var body struct {
		InvitationPayload string `json:"invitation_payload"`
		LegacyPayload     string `json:"invitationPayload"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", err
	}
	return firstNonEmpty(body.InvitationPayload, body.LegacyPayload), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
