// Package wizard drives the six step DAO agreement creation flow as an
// explicit state machine with per step guard predicates. The machine holds
// the draft being assembled; rendering is someone else's problem.
package wizard

import (
	"context"

	"agreeline/internal/agreement"
	"agreeline/internal/domain"
	"agreeline/internal/milestone"
	"agreeline/internal/result"
	"agreeline/internal/scratch"
)

// Step numbers. The flow is linear; submission from StepReview is the
// terminal transition and has no step number of its own.
const (
	StepName         = 1
	StepParticipants = 2
	StepDocuments    = 3
	StepFunding      = 4
	StepMilestones   = 5
	StepReview       = 6
)

// Pipeline is the slice of the orchestrator the wizard drives.
type Pipeline interface {
	CreateDaoAgreementContext(ctx context.Context, name string) (domain.Agreement, error)
	CreateCompleteDaoAgreement(ctx context.Context, in agreement.CompleteDaoInput) (agreement.CompleteDaoResult, error)
}

// Draft accumulates the user's inputs across steps.
type Draft struct {
	Name            string
	ParticipantIDs  []string
	Documents       []domain.DocumentFile
	TotalFunding    string
	VotingThreshold int
	Milestones      []milestone.Draft
}

// Machine is the wizard state: the current step, whether the step 1
// creation side effect has already run, and the draft under construction.
type Machine struct {
	Pipeline Pipeline
	Scratch  scratch.Store
	Draft    Draft

	step      int
	created   bool
	contextID string
	userID    string
	terminal  bool
}

// NewMachine starts a wizard at step 1 with the creation side effect
// pending.
func NewMachine(p Pipeline, store scratch.Store) *Machine {
	return &Machine{Pipeline: p, Scratch: store, step: StepName}
}

// Step returns the current step number.
func (m *Machine) Step() int { return m.step }

// Created reports whether the DAO context behind this draft already exists.
func (m *Machine) Created() bool { return m.created }

// Terminal reports whether the flow finished with a successful submission.
func (m *Machine) Terminal() bool { return m.terminal }

// ContextID returns the created DAO context id, empty before step 1
// completes.
func (m *Machine) ContextID() string { return m.contextID }

// Guard validates the current step's inputs. A nil return means Next may
// advance.
func (m *Machine) Guard() error {
	switch m.step {
	case StepName:
		if m.Draft.Name == "" {
			return result.Errorf(400, "agreement name is required")
		}
	case StepParticipants, StepDocuments, StepReview:
		// Participants and documents are optional; review has no inputs.
	case StepFunding:
		funding, err := milestone.ParseAmount(m.Draft.TotalFunding)
		if err != nil {
			return err
		}
		if funding <= 0 {
			return result.Errorf(400, "total funding must be greater than zero")
		}
	case StepMilestones:
		if len(m.Draft.Milestones) == 0 {
			return result.Errorf(400, "at least one milestone is required")
		}
		funding, err := milestone.ParseAmount(m.Draft.TotalFunding)
		if err != nil {
			return err
		}
		if sum := milestone.Sum(m.Draft.Milestones); sum > funding {
			return result.Errorf(400, "milestone amounts exceed total funding")
		}
	}
	return nil
}

// CanAdvance reports whether the current step's guard holds.
func (m *Machine) CanAdvance() bool { return m.Guard() == nil }

// Next tries to advance one step. A guard refusal returns (false, nil):
// refusing to advance is a normal outcome, not an error. The only errors are
// failures of the step 1 creation side effect, which leave the machine at
// step 1 so the user can retry.
func (m *Machine) Next(ctx context.Context) (bool, error) {
	if m.step >= StepReview {
		return false, nil
	}
	if m.Guard() != nil {
		return false, nil
	}
	if m.step == StepName && !m.created {
		created, err := m.Pipeline.CreateDaoAgreementContext(ctx, m.Draft.Name)
		if err != nil {
			return false, err
		}
		m.created = true
		m.contextID = created.ContextID
		m.userID = created.MemberPublicKey
		m.persistTemp(ctx)
	}
	m.step++
	return true, nil
}

// Prev steps back. It never undoes the step 1 creation side effect; a
// created context stays created and the name stays immutable.
func (m *Machine) Prev() {
	if m.step > StepName {
		m.step--
	}
}

// Submit runs the terminal submission from the review step. On success the
// temporary scratch keys are cleared and the machine becomes terminal.
func (m *Machine) Submit(ctx context.Context) (agreement.CompleteDaoResult, error) {
	if m.step != StepReview {
		return agreement.CompleteDaoResult{}, result.Errorf(400, "submission is only available from the review step")
	}
	res, err := m.Pipeline.CreateCompleteDaoAgreement(ctx, agreement.CompleteDaoInput{
		Name:            m.Draft.Name,
		ParticipantIDs:  m.Draft.ParticipantIDs,
		Milestones:      m.Draft.Milestones,
		TotalFunding:    m.Draft.TotalFunding,
		VotingThreshold: m.Draft.VotingThreshold,
		Documents:       m.Draft.Documents,
	})
	if err != nil {
		return agreement.CompleteDaoResult{}, err
	}
	m.clearTemp(ctx)
	m.terminal = true
	return res, nil
}

// Reset abandons the draft: scratch bookkeeping is cleared and the machine
// returns to step 1. An already created context is not torn down remotely.
func (m *Machine) Reset(ctx context.Context) {
	m.clearTemp(ctx)
	m.Draft = Draft{}
	m.step = StepName
	m.created = false
	m.contextID = ""
	m.userID = ""
	m.terminal = false
}

func (m *Machine) persistTemp(ctx context.Context) {
	if m.Scratch == nil {
		return
	}
	_ = m.Scratch.Set(ctx, scratch.KeyTempDaoContextID, m.contextID)
	_ = m.Scratch.Set(ctx, scratch.KeyTempDaoContextUserID, m.userID)
	_ = m.Scratch.Set(ctx, scratch.KeyTempDaoAgreementName, m.Draft.Name)
}

func (m *Machine) clearTemp(ctx context.Context) {
	if m.Scratch == nil {
		return
	}
	_ = m.Scratch.Remove(ctx, scratch.KeyTempDaoContextID)
	_ = m.Scratch.Remove(ctx, scratch.KeyTempDaoContextUserID)
	_ = m.Scratch.Remove(ctx, scratch.KeyTempDaoAgreementName)
}
