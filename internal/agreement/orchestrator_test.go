package agreement

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"agreeline/internal/contexts"
	"agreeline/internal/domain"
	"agreeline/internal/milestone"
	"agreeline/internal/scratch"
	"agreeline/internal/transport"
)

type executeCall struct {
	contextID  string
	executorID string
	method     string
	args       any
}

type scriptedTransport struct {
	inviteErr  error
	joinErr    error
	executeErr map[string]error
	listRaw    json.RawMessage
	listErr    error
	executes   []executeCall
}

func (s *scriptedTransport) CreateContext(ctx context.Context, req transport.CreateContextRequest) (transport.CreateContextResponse, error) {
	return transport.CreateContextResponse{ContextID: "ctx-1", MemberPublicKey: "pk-creator"}, nil
}

func (s *scriptedTransport) InviteToContext(ctx context.Context, req transport.InviteRequest) (string, error) {
	if s.inviteErr != nil {
		return "", s.inviteErr
	}
	return "payload-1", nil
}

func (s *scriptedTransport) JoinContext(ctx context.Context, payload string) (transport.JoinResponse, error) {
	if s.joinErr != nil {
		return transport.JoinResponse{}, s.joinErr
	}
	return transport.JoinResponse{ContextID: "ctx-1", MemberPublicKey: "pk-creator"}, nil
}

func (s *scriptedTransport) VerifyContext(ctx context.Context, contextID string) (transport.VerifyResponse, error) {
	return transport.VerifyResponse{Joined: true}, nil
}

func (s *scriptedTransport) ListContexts(ctx context.Context) (json.RawMessage, error) {
	return s.listRaw, s.listErr
}

func (s *scriptedTransport) Execute(ctx context.Context, contextID, executorID, method string, args any) (json.RawMessage, error) {
	s.executes = append(s.executes, executeCall{contextID, executorID, method, args})
	if err := s.executeErr[method]; err != nil {
		return nil, err
	}
	return json.RawMessage(`{}`), nil
}

func newTestOrchestrator(t *scriptedTransport) (*Orchestrator, *scratch.Memory) {
	store := scratch.NewMemory()
	o := New(contexts.New(t, nil), t, store, nil)
	o.Logger = log.New(io.Discard, "", 0)
	o.Now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return o, store
}

func (s *scriptedTransport) methods() []string {
	out := make([]string, 0, len(s.executes))
	for _, c := range s.executes {
		out = append(out, c.method)
	}
	return out
}

func TestCreateAgreementSwallowsJoinFailure(t *testing.T) {
	tr := &scriptedTransport{joinErr: errors.New("join refused")}
	o, store := newTestOrchestrator(tr)

	got, err := o.CreateAgreement(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("a failed join must not fail creation: %v", err)
	}
	if got.Role != domain.RoleOwner {
		t.Fatalf("role = %q, want Owner", got.Role)
	}
	if got.Name != "Acme" {
		t.Fatalf("name = %q", got.Name)
	}
	if got.ContextID != "ctx-1" {
		t.Fatalf("context id = %q", got.ContextID)
	}

	ctxID, err := store.Get(context.Background(), scratch.KeyAgreementContextID)
	if err != nil || ctxID != "ctx-1" {
		t.Fatalf("agreement context id not remembered: %q, %v", ctxID, err)
	}
}

func TestCreateDaoAgreementContextHardFailures(t *testing.T) {
	tr := &scriptedTransport{executeErr: map[string]error{"init_dao_agreement": errors.New("init rejected")}}
	o, _ := newTestOrchestrator(tr)
	if _, err := o.CreateDaoAgreementContext(context.Background(), "Proj"); err == nil {
		t.Fatal("initialization failure must propagate")
	}

	tr = &scriptedTransport{joinErr: errors.New("join refused")}
	o, _ = newTestOrchestrator(tr)
	if _, err := o.CreateDaoAgreementContext(context.Background(), "Proj"); err == nil {
		t.Fatal("join failure must propagate on the dao path")
	}
}

func TestCreateCompleteDaoAgreement(t *testing.T) {
	tr := &scriptedTransport{}
	o, _ := newTestOrchestrator(tr)

	got, err := o.CreateCompleteDaoAgreement(context.Background(), CompleteDaoInput{
		Name:            "Proj",
		ParticipantIDs:  []string{"p1"},
		Milestones:      []milestone.Draft{{Title: "M1", Amount: "10", Recipients: []string{"p1"}, Kind: milestone.KindManual}},
		TotalFunding:    "10",
		VotingThreshold: 75,
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if got.AgreementID != "dao_agreement_ctx-1_1700000000000" {
		t.Fatalf("agreement id = %q", got.AgreementID)
	}

	var submitted map[string]any
	for _, c := range tr.executes {
		if c.method == "create_agreement" {
			submitted = c.args.(map[string]any)
		}
		if c.method == "upload_document" {
			t.Fatal("no document upload phase should run without documents")
		}
	}
	if submitted == nil {
		t.Fatalf("agreement never submitted, calls: %v", tr.methods())
	}

	participants := submitted["participants"].([]string)
	if len(participants) != 2 || participants[0] != "pk-creator" || participants[1] != "p1" {
		t.Fatalf("participants = %v, creator must come first", participants)
	}
	canonical := submitted["milestones"].([]milestone.Canonical)
	if canonical[0].Amount != 10_000_000 {
		t.Fatalf("milestone amount = %d, want 10000000", canonical[0].Amount)
	}
	if submitted["total_funding"].(int64) != 10_000_000 {
		t.Fatalf("total funding = %v", submitted["total_funding"])
	}
}

func TestCreateCompleteDaoAgreementDedupesCreator(t *testing.T) {
	tr := &scriptedTransport{}
	o, _ := newTestOrchestrator(tr)

	_, err := o.CreateCompleteDaoAgreement(context.Background(), CompleteDaoInput{
		Name:           "Proj",
		ParticipantIDs: []string{"pk-creator", "p1", "p1", ""},
		Milestones:     []milestone.Draft{{Title: "M1", Amount: "1", Kind: milestone.KindManual}},
		TotalFunding:   "1",
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	for _, c := range tr.executes {
		if c.method != "create_agreement" {
			continue
		}
		participants := c.args.(map[string]any)["participants"].([]string)
		if len(participants) != 2 {
			t.Fatalf("participants = %v, want creator plus p1", participants)
		}
	}
}

func TestCreateCompleteDaoAgreementDocUploadFailureSurfaces(t *testing.T) {
	tr := &scriptedTransport{executeErr: map[string]error{"upload_document": errors.New("storage full")}}
	o, _ := newTestOrchestrator(tr)

	_, err := o.CreateCompleteDaoAgreement(context.Background(), CompleteDaoInput{
		Name:         "Proj",
		Milestones:   []milestone.Draft{{Title: "M1", Amount: "1", Kind: milestone.KindManual}},
		TotalFunding: "1",
		Documents:    []domain.DocumentFile{{Name: "a.pdf", Data: []byte("aa")}},
	})
	if err == nil {
		t.Fatal("document upload failure must fail the composite call")
	}
	// The submission still went through before the upload failed.
	var submitted bool
	for _, c := range tr.executes {
		if c.method == "create_agreement" {
			submitted = true
		}
	}
	if !submitted {
		t.Fatal("submission should have run before the upload phase")
	}
}

func TestCreateCompleteDaoAgreementThresholdBounds(t *testing.T) {
	tr := &scriptedTransport{}
	o, _ := newTestOrchestrator(tr)

	_, err := o.CreateCompleteDaoAgreement(context.Background(), CompleteDaoInput{
		Name:            "Proj",
		Milestones:      []milestone.Draft{{Title: "M1", Amount: "1", Kind: milestone.KindManual}},
		TotalFunding:    "1",
		VotingThreshold: 30,
	})
	if err == nil {
		t.Fatal("threshold below 50 must be rejected")
	}

	// Zero means "use the default", which is valid.
	if _, err := o.CreateCompleteDaoAgreement(context.Background(), CompleteDaoInput{
		Name:         "Proj",
		Milestones:   []milestone.Draft{{Title: "M1", Amount: "1", Kind: milestone.KindManual}},
		TotalFunding: "1",
	}); err != nil {
		t.Fatalf("default threshold: %v", err)
	}
}

func TestListAgreementsShapes(t *testing.T) {
	item := `{"context_id":"ctx-9","context_name":"Deal","role":"Owner","joined_at":5}`
	shapes := []string{
		`[` + item + `]`,
		`{"output":[` + item + `]}`,
		`{"result":[` + item + `]}`,
	}
	for _, shape := range shapes {
		tr := &scriptedTransport{listRaw: json.RawMessage(shape)}
		o, _ := newTestOrchestrator(tr)
		got, err := o.ListAgreements(context.Background())
		if err != nil {
			t.Fatalf("list %s: %v", shape, err)
		}
		if len(got) != 1 || got[0].ID != "ctx-9" || got[0].Name != "Deal" {
			t.Fatalf("list %s normalized to %+v", shape, got)
		}
	}
}

func TestListAgreementsUnknownShapeIsEmptySuccess(t *testing.T) {
	tr := &scriptedTransport{listRaw: json.RawMessage(`{"contexts":{"weird":true}}`)}
	o, _ := newTestOrchestrator(tr)
	got, err := o.ListAgreements(context.Background())
	if err != nil {
		t.Fatalf("unknown shapes must not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %+v, want empty list", got)
	}
}

func TestListAgreementsLegacyFieldNames(t *testing.T) {
	tr := &scriptedTransport{listRaw: json.RawMessage(`[{"contextId":"ctx-2","agreement_name":"Old Deal"}]`)}
	o, _ := newTestOrchestrator(tr)
	got, err := o.ListAgreements(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ctx-2" || got[0].Name != "Old Deal" {
		t.Fatalf("legacy fields not honored: %+v", got)
	}
	if got[0].Role != domain.RoleUnknown {
		t.Fatalf("missing role must map to Unknown, got %q", got[0].Role)
	}
}

func TestFundAgreementScalesAmount(t *testing.T) {
	tr := &scriptedTransport{}
	o, _ := newTestOrchestrator(tr)

	if err := o.FundAgreement(context.Background(), "ctx-1", "pk-creator", "dao_agreement_ctx-1_1", "2.5"); err != nil {
		t.Fatalf("fund: %v", err)
	}
	call := tr.executes[len(tr.executes)-1]
	if call.method != "fund_agreement" {
		t.Fatalf("method = %q", call.method)
	}
	if call.args.(map[string]any)["amount"].(int64) != 2_500_000 {
		t.Fatalf("amount = %v", call.args)
	}
}
