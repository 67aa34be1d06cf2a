package transport

import (
	"context"
	"encoding/json"
	"fmt"
)

// Bridge is the host-provided call surface. When the process runs embedded in
// a host application the host injects an implementation; standalone runs leave
// it nil and the Selector goes straight to REST.
type Bridge interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// bridgeTransport adapts the uniform Transport surface onto Bridge.Call,
// shaping parameters the way the host side expects for each method.
type bridgeTransport struct {
	bridge Bridge
}

// NewBridgeTransport wraps a host bridge as a Transport.
func NewBridgeTransport(b Bridge) Transport {
	return &bridgeTransport{bridge: b}
}

func (t *bridgeTransport) CreateContext(ctx context.Context, req CreateContextRequest) (CreateContextResponse, error) {
	params := map[string]any{
		"is_private":   req.IsPrivate,
		"context_name": req.Name,
	}
	if len(req.Metadata) > 0 {
		params["metadata"] = req.Metadata
	}
	raw, err := t.bridge.Call(ctx, "create_context", params)
	if err != nil {
		return CreateContextResponse{}, err
	}
	resp, err := decodeCreateContext(raw)
	if err != nil {
		return CreateContextResponse{}, fmt.Errorf("decode create_context response: %w", err)
	}
	return resp, nil
}

func (t *bridgeTransport) InviteToContext(ctx context.Context, req InviteRequest) (string, error) {
	raw, err := t.bridge.Call(ctx, "invite_to_context", map[string]any{
		"contextId": req.ContextID,
		"inviterId": req.InviterID,
		"inviteeId": req.InviteeID,
	})
	if err != nil {
		return "", err
	}
	payload, err := decodeInvitation(raw)
	if err != nil {
		return "", fmt.Errorf("decode invite_to_context response: %w", err)
	}
	return payload, nil
}

func (t *bridgeTransport) JoinContext(ctx context.Context, invitationPayload string) (JoinResponse, error) {
	raw, err := t.bridge.Call(ctx, "join_context", map[string]any{
		"invitationPayload": invitationPayload,
	})
	if err != nil {
		return JoinResponse{}, err
	}
	resp, err := decodeJoin(raw)
	if err != nil {
		return JoinResponse{}, fmt.Errorf("decode join_context response: %w", err)
	}
	return resp, nil
}

func (t *bridgeTransport) VerifyContext(ctx context.Context, contextID string) (VerifyResponse, error) {
	raw, err := t.bridge.Call(ctx, "verify_context", map[string]any{
		"contextId": contextID,
	})
	if err != nil {
		return VerifyResponse{}, err
	}
	var body struct {
		Joined bool `json:"joined"`
	}
	if err := json.Unmarshal(unwrapData(raw), &body); err != nil {
		return VerifyResponse{}, nil
	}
	return VerifyResponse{Joined: body.Joined}, nil
}

func (t *bridgeTransport) ListContexts(ctx context.Context) (json.RawMessage, error) {
	return t.bridge.Call(ctx, "list_contexts", nil)
}

func (t *bridgeTransport) Execute(ctx context.Context, contextID, executorID, method string, args any) (json.RawMessage, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", method, err)
	}
	return t.bridge.Call(ctx, "execute", map[string]any{
		"contextId":         contextID,
		"executorPublicKey": executorID,
		"method":            method,
		"argsJson":          string(argsJSON),
	})
}
