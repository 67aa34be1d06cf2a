// Package agreement holds the top-level workflows: plain agreement creation,
// the full DAO agreement pipeline, listing, and the funding and voting
// queries that read DAO state back.
package agreement

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"agreeline/internal/contexts"
	"agreeline/internal/docs"
	"agreeline/internal/domain"
	"agreeline/internal/events"
	"agreeline/internal/milestone"
	"agreeline/internal/result"
	"agreeline/internal/scratch"
	"agreeline/internal/transport"
)

// DefaultVotingThreshold applies when a DAO agreement is submitted without an
// explicit threshold.
const DefaultVotingThreshold = 75

// agreementIDPrefix starts every synthetic DAO agreement id.
const agreementIDPrefix = "dao_agreement"

// Orchestrator sequences the backend operations behind each user intent.
type Orchestrator struct {
	Contexts  *contexts.Service
	Transport transport.Transport
	Docs      *docs.Coordinator
	Scratch   scratch.Store
	Events    *events.Writer
	Logger    *log.Logger
	Now       func() time.Time
}

// New wires an Orchestrator. The docs coordinator stores documents through
// the same transport the rest of the pipeline uses.
func New(svc *contexts.Service, t transport.Transport, store scratch.Store, w *events.Writer) *Orchestrator {
	o := &Orchestrator{
		Contexts:  svc,
		Transport: t,
		Scratch:   store,
		Events:    w,
		Now:       time.Now,
	}
	o.Docs = docs.NewCoordinator(&executeStore{transport: t}, nil)
	return o
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// executeStore persists documents by executing the backend upload method in
// the agreement's context.
type executeStore struct {
	transport transport.Transport
}

func (s *executeStore) Put(ctx context.Context, contextID, executorID string, doc docs.Stored) error {
	_, err := s.transport.Execute(ctx, contextID, executorID, "upload_document", doc)
	return err
}

// CreateAgreement creates a plain shared agreement context and joins it. The
// join is opportunistic: the creator already has access through creation, so
// a join failure is logged and swallowed.
func (o *Orchestrator) CreateAgreement(ctx context.Context, name string) (domain.Agreement, error) {
	if name == "" {
		return domain.Agreement{}, result.Errorf(400, "agreement name is required")
	}
	created, err := o.Contexts.Create(ctx, name, false, nil)
	if err != nil {
		return domain.Agreement{}, result.Normalize(err, "create agreement")
	}
	userID := effectiveUserID(created)
	if err := o.selfJoin(ctx, created.ContextID, userID); err != nil {
		o.logf("join after create failed for context %s: %v", created.ContextID, err)
	}
	agreement := domain.Agreement{
		ID:              created.ContextID,
		Name:            name,
		ContextID:       created.ContextID,
		MemberPublicKey: created.MemberPublicKey,
		Role:            domain.RoleOwner,
		JoinedAt:        o.now().UnixMilli(),
	}
	o.rememberContext(ctx, created.ContextID, userID)
	o.append(ctx, "agreement.created", created.ContextID, "agreement", created.ContextID, userID, events.EventPayload{"name": name})
	return agreement, nil
}

// CreateDaoAgreementContext creates a context carrying DAO metadata,
// initializes the DAO state in it, and joins it. Unlike the plain path,
// initialization and join failures are hard errors: DAO state is unusable
// without them.
func (o *Orchestrator) CreateDaoAgreementContext(ctx context.Context, name string) (domain.Agreement, error) {
	if name == "" {
		return domain.Agreement{}, result.Errorf(400, "agreement name is required")
	}
	created, err := o.Contexts.Create(ctx, name, false, map[string]any{
		"kind": "dao_agreement",
		"name": name,
	})
	if err != nil {
		return domain.Agreement{}, result.Normalize(err, "create dao agreement context")
	}
	userID := effectiveUserID(created)
	if _, err := o.Transport.Execute(ctx, created.ContextID, userID, "init_dao_agreement", map[string]any{
		"name": name,
	}); err != nil {
		return domain.Agreement{}, result.Normalize(err, "initialize dao agreement")
	}
	if err := o.selfJoin(ctx, created.ContextID, userID); err != nil {
		return domain.Agreement{}, result.Normalize(err, "join dao agreement context")
	}
	agreement := domain.Agreement{
		ID:              created.ContextID,
		Name:            name,
		ContextID:       created.ContextID,
		MemberPublicKey: userID,
		Role:            domain.RoleOwner,
		JoinedAt:        o.now().UnixMilli(),
	}
	o.rememberContext(ctx, created.ContextID, userID)
	o.append(ctx, "dao.context_created", created.ContextID, "agreement", created.ContextID, userID, events.EventPayload{"name": name})
	return agreement, nil
}

// CompleteDaoResult is the outcome of the end-to-end DAO pipeline.
type CompleteDaoResult struct {
	Agreement   domain.Agreement `json:"agreement"`
	AgreementID string           `json:"agreement_id"`
}

// CreateCompleteDaoAgreement runs the full pipeline: context creation, DAO
// initialization and join, milestone canonicalization, submission, then
// document upload. Steps run in that fixed order and a later step only runs
// when every prior step succeeded. A document upload failure after a
// successful submission does not roll the agreement back but still fails the
// composite call.
func (o *Orchestrator) CreateCompleteDaoAgreement(ctx context.Context, in CompleteDaoInput) (CompleteDaoResult, error) {
	agreement, err := o.CreateDaoAgreementContext(ctx, in.Name)
	if err != nil {
		return CompleteDaoResult{}, err
	}
	userID := agreement.MemberPublicKey

	canonical, err := milestone.Encode(in.Milestones, userID, o.now())
	if err != nil {
		return CompleteDaoResult{}, result.Normalize(err, "encode milestones")
	}

	participants := dedupeParticipants(userID, in.ParticipantIDs)

	funding, err := milestone.ParseAmount(in.TotalFunding)
	if err != nil {
		return CompleteDaoResult{}, result.Normalize(err, "parse total funding")
	}

	threshold := in.VotingThreshold
	if threshold == 0 {
		threshold = DefaultVotingThreshold
	}
	if threshold < 50 || threshold > 100 {
		return CompleteDaoResult{}, result.Errorf(400, "voting threshold must be between 50 and 100, got %d", threshold)
	}

	agreementID := fmt.Sprintf("%s_%s_%d", agreementIDPrefix, agreement.ContextID, o.now().UnixMilli())

	submission := map[string]any{
		"agreement_id":     agreementID,
		"name":             in.Name,
		"participants":     participants,
		"milestones":       canonical,
		"voting_threshold": threshold,
		"total_funding":    funding,
		"context_id":       agreement.ContextID,
		"user_id":          userID,
	}
	if _, err := o.Transport.Execute(ctx, agreement.ContextID, userID, "create_agreement", submission); err != nil {
		return CompleteDaoResult{}, result.Normalize(err, "submit dao agreement")
	}
	o.append(ctx, "dao.agreement_submitted", agreement.ContextID, "agreement", agreementID, userID, events.EventPayload{
		"name":         in.Name,
		"participants": len(participants),
		"milestones":   len(canonical),
	})

	if len(in.Documents) > 0 {
		if _, err := o.Docs.UploadAll(ctx, agreement.ContextID, userID, in.Documents); err != nil {
			return CompleteDaoResult{}, result.Normalize(err, "upload agreement documents")
		}
	}

	return CompleteDaoResult{Agreement: agreement, AgreementID: agreementID}, nil
}

// CompleteDaoInput carries everything CreateCompleteDaoAgreement needs.
type CompleteDaoInput struct {
	Name            string
	ParticipantIDs  []string
	Milestones      []milestone.Draft
	TotalFunding    string
	VotingThreshold int
	Documents       []domain.DocumentFile
}

// dedupeParticipants puts the creator first and drops duplicates, including
// any repeat of the creator's own id.
func dedupeParticipants(creatorID string, participantIDs []string) []string {
	out := []string{creatorID}
	seen := map[string]bool{creatorID: true}
	for _, id := range participantIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ListAgreements fetches joined contexts and normalizes them. Three response
// shapes are accepted: a bare list, {"output": list}, and {"result": list}.
// Anything else reads as an empty successful list.
func (o *Orchestrator) ListAgreements(ctx context.Context) ([]domain.Agreement, error) {
	raw, err := o.Contexts.List(ctx)
	if err != nil {
		return nil, result.Normalize(err, "list agreements")
	}
	return normalizeAgreementList(raw), nil
}

type listedContext struct {
	ContextID       string `json:"context_id"`
	LegacyContextID string `json:"contextId"`
	ContextName     string `json:"context_name"`
	AgreementName   string `json:"agreement_name"`
	Role            string `json:"role"`
	JoinedAt        int64  `json:"joined_at"`
	PrivateIdentity string `json:"private_identity"`
	SharedIdentity  string `json:"shared_identity"`
}

func normalizeAgreementList(raw json.RawMessage) []domain.Agreement {
	items, ok := extractList(raw)
	if !ok {
		return []domain.Agreement{}
	}
	out := make([]domain.Agreement, 0, len(items))
	for _, item := range items {
		var lc listedContext
		if err := json.Unmarshal(item, &lc); err != nil {
			continue
		}
		id := lc.ContextID
		if id == "" {
			id = lc.LegacyContextID
		}
		if id == "" {
			continue
		}
		name := lc.ContextName
		if name == "" {
			name = lc.AgreementName
		}
		role := lc.Role
		if role == "" {
			role = domain.RoleUnknown
		}
		out = append(out, domain.Agreement{
			ID:              id,
			Name:            name,
			ContextID:       id,
			Role:            role,
			JoinedAt:        lc.JoinedAt,
			PrivateIdentity: lc.PrivateIdentity,
			SharedIdentity:  lc.SharedIdentity,
		})
	}
	return out
}

func extractList(raw json.RawMessage) ([]json.RawMessage, bool) {
	var bare []json.RawMessage
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare, true
	}
	var wrapped struct {
		Output json.RawMessage `json:"output"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, false
	}
	for _, inner := range []json.RawMessage{wrapped.Output, wrapped.Result} {
		if len(inner) == 0 {
			continue
		}
		if err := json.Unmarshal(inner, &bare); err == nil {
			return bare, true
		}
	}
	return nil, false
}

// InviteToAgreement generates an invitation payload for a participant.
func (o *Orchestrator) InviteToAgreement(ctx context.Context, contextID, inviterID, inviteeID string) (string, error) {
	payload, err := o.Contexts.Invite(ctx, contextID, inviterID, inviteeID)
	if err != nil {
		return "", result.Normalize(err, "invite to agreement")
	}
	return payload, nil
}

// JoinAgreement redeems an invitation and remembers the joined context for
// downstream navigation.
func (o *Orchestrator) JoinAgreement(ctx context.Context, invitationPayload string) (domain.Agreement, error) {
	joined, err := o.Contexts.Join(ctx, invitationPayload)
	if err != nil {
		return domain.Agreement{}, result.Normalize(err, "join agreement")
	}
	o.rememberContext(ctx, joined.ContextID, joined.MemberPublicKey)
	o.append(ctx, "agreement.joined", joined.ContextID, "agreement", joined.ContextID, joined.MemberPublicKey, nil)
	return domain.Agreement{
		ID:              joined.ContextID,
		ContextID:       joined.ContextID,
		MemberPublicKey: joined.MemberPublicKey,
		Role:            domain.RoleSigner,
		JoinedAt:        o.now().UnixMilli(),
	}, nil
}

// VerifyAgreement reports membership, defaulting to not joined on any
// failure.
func (o *Orchestrator) VerifyAgreement(ctx context.Context, contextID string) bool {
	return o.Contexts.Verify(ctx, contextID)
}

// FundAgreement deposits funds into the agreement escrow, in micro-units.
func (o *Orchestrator) FundAgreement(ctx context.Context, contextID, userID, agreementID, amount string) error {
	micro, err := milestone.ParseAmount(amount)
	if err != nil {
		return result.Normalize(err, "parse funding amount")
	}
	_, err = o.Transport.Execute(ctx, contextID, userID, "fund_agreement", map[string]any{
		"agreement_id": agreementID,
		"amount":       micro,
	})
	if err != nil {
		return result.Normalize(err, "fund agreement")
	}
	o.append(ctx, "dao.funded", contextID, "agreement", agreementID, userID, events.EventPayload{"amount": micro})
	return nil
}

// AgreementBalance reads the escrow balance for an agreement.
func (o *Orchestrator) AgreementBalance(ctx context.Context, contextID, userID, agreementID string) (domain.AgreementBalance, error) {
	raw, err := o.Transport.Execute(ctx, contextID, userID, "get_agreement_balance", map[string]any{
		"agreement_id": agreementID,
	})
	if err != nil {
		return domain.AgreementBalance{}, result.Normalize(err, "get agreement balance")
	}
	var balance domain.AgreementBalance
	if err := json.Unmarshal(unwrapOutput(raw), &balance); err != nil {
		return domain.AgreementBalance{}, result.Errorf(500, "decode agreement balance: %v", err)
	}
	if balance.AgreementID == "" {
		balance.AgreementID = agreementID
	}
	return balance, nil
}

// MilestoneVotingStatus reads the vote tally for one milestone.
func (o *Orchestrator) MilestoneVotingStatus(ctx context.Context, contextID, userID, agreementID string, milestoneID int64) (domain.MilestoneVotingStatus, error) {
	raw, err := o.Transport.Execute(ctx, contextID, userID, "get_milestone_voting_status", map[string]any{
		"agreement_id": agreementID,
		"milestone_id": milestoneID,
	})
	if err != nil {
		return domain.MilestoneVotingStatus{}, result.Normalize(err, "get milestone voting status")
	}
	var status domain.MilestoneVotingStatus
	if err := json.Unmarshal(unwrapOutput(raw), &status); err != nil {
		return domain.MilestoneVotingStatus{}, result.Errorf(500, "decode milestone voting status: %v", err)
	}
	return status, nil
}

// unwrapOutput peels the optional {"output": ...} or {"result": ...} layer
// some execute responses carry.
func unwrapOutput(raw json.RawMessage) json.RawMessage {
	var wrapped struct {
		Output json.RawMessage `json:"output"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		if len(wrapped.Output) > 0 && string(wrapped.Output) != "null" {
			return wrapped.Output
		}
		if len(wrapped.Result) > 0 && string(wrapped.Result) != "null" {
			return wrapped.Result
		}
	}
	return raw
}

// selfJoin generates an invitation for the creator's own identity and
// redeems it, making the shared context visible in listings.
func (o *Orchestrator) selfJoin(ctx context.Context, contextID, userID string) error {
	payload, err := o.Contexts.Invite(ctx, contextID, userID, userID)
	if err != nil {
		return err
	}
	_, err = o.Contexts.Join(ctx, payload)
	return err
}

func (o *Orchestrator) rememberContext(ctx context.Context, contextID, userID string) {
	if o.Scratch == nil {
		return
	}
	if err := o.Scratch.Set(ctx, scratch.KeyAgreementContextID, contextID); err != nil {
		o.logf("persist %s: %v", scratch.KeyAgreementContextID, err)
	}
	if err := o.Scratch.Set(ctx, scratch.KeyAgreementContextUser, userID); err != nil {
		o.logf("persist %s: %v", scratch.KeyAgreementContextUser, err)
	}
}

func (o *Orchestrator) append(ctx context.Context, evtType, contextID, kind, id, actorID string, payload events.EventPayload) {
	if o.Events == nil {
		return
	}
	o.Events.Append(ctx, evtType, contextID, kind, id, actorID, payload)
}

func effectiveUserID(created transport.CreateContextResponse) string {
	if created.MemberPublicKey != "" {
		return created.MemberPublicKey
	}
	return created.ExecutorID
}
