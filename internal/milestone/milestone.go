// Package milestone turns user-entered milestone drafts into the canonical
// form the agreement backend stores. Amounts become integer micro units,
// release times become absolute nanosecond timestamps, and every draft kind
// maps onto one of the backend's milestone type variants.
package milestone

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"agreeline/internal/result"
)

// Milestone status values as the backend reports them.
const (
	StatusPending        = "Pending"
	StatusReadyForVoting = "ReadyForVoting"
	StatusVotingActive   = "VotingActive"
	StatusApproved       = "Approved"
	StatusExecuted       = "Executed"
	StatusRejected       = "Rejected"
)

// Draft kind strings accepted from the wizard and the CLI.
const (
	KindManual   = "manual"
	KindDocument = "document"
	KindTime     = "time"
	KindVoting   = "voting"
)

// MicroUnitsPerToken converts decimal token amounts to backend integers.
const MicroUnitsPerToken = 1_000_000

// Draft is a milestone as a user enters it, before canonicalization.
type Draft struct {
	Title         string
	Description   string
	Kind          string
	Amount        string
	Recipients    []string
	RequiredDocID string
	TimeDuration  int64
	TimeUnit      string
}

// Type is the backend milestone type. It marshals into the variant shapes
// the backend stores: bare "ManualApproval", or an object keyed by variant
// name for the parameterized kinds.
type Type struct {
	Kind          string
	RequiredDocID string
	ReleaseTime   int64
}

const (
	variantManual   = "ManualApproval"
	variantDocument = "DocumentSignature"
	variantTime     = "TimeRelease"
)

func (t Type) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case variantDocument:
		return json.Marshal(map[string]any{
			variantDocument: map[string]any{"required_doc_id": t.RequiredDocID},
		})
	case variantTime:
		return json.Marshal(map[string]any{
			variantTime: map[string]any{"release_time": t.ReleaseTime},
		})
	default:
		return json.Marshal(variantManual)
	}
}

func (t *Type) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		t.Kind = name
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if raw, ok := obj[variantDocument]; ok {
		var body struct {
			RequiredDocID string `json:"required_doc_id"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return err
		}
		t.Kind = variantDocument
		t.RequiredDocID = body.RequiredDocID
		return nil
	}
	if raw, ok := obj[variantTime]; ok {
		var body struct {
			ReleaseTime int64 `json:"release_time"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return err
		}
		t.Kind = variantTime
		t.ReleaseTime = body.ReleaseTime
		return nil
	}
	return fmt.Errorf("unknown milestone type variant")
}

// Canonical is the backend representation of a milestone.
type Canonical struct {
	ID          int            `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Amount      int64          `json:"amount"`
	Recipient   string         `json:"recipient"`
	Type        Type           `json:"milestone_type"`
	Status      string         `json:"status"`
	Votes       map[string]any `json:"votes"`
	CreatedAt   int64          `json:"created_at"`
	CompletedAt *int64         `json:"completed_at"`
}

// ParseAmount converts a decimal token amount to micro units, rounding to
// the nearest integer.
func ParseAmount(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, result.Errorf(400, "amount is required")
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, result.Errorf(400, "invalid amount %q", s)
	}
	if f < 0 {
		return 0, result.Errorf(400, "amount must not be negative")
	}
	return int64(math.Round(f * MicroUnitsPerToken)), nil
}

// releaseTime computes an absolute nanosecond timestamp from a relative
// duration draft. Unknown units fall back to days.
func releaseTime(now time.Time, duration int64, unit string) int64 {
	var d time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "minute", "minutes":
		d = time.Duration(duration) * time.Minute
	case "hour", "hours":
		d = time.Duration(duration) * time.Hour
	default:
		d = time.Duration(duration) * 24 * time.Hour
	}
	return now.Add(d).UnixNano()
}

// typeOf maps a draft kind to the backend variant. Voting milestones have no
// dedicated backend variant and unknown kinds have no meaning there, so both
// fall back to manual approval.
func typeOf(d Draft, now time.Time) Type {
	switch strings.ToLower(strings.TrimSpace(d.Kind)) {
	case KindDocument:
		return Type{Kind: variantDocument, RequiredDocID: d.RequiredDocID}
	case KindTime:
		return Type{Kind: variantTime, ReleaseTime: releaseTime(now, d.TimeDuration, d.TimeUnit)}
	default:
		return Type{Kind: variantManual}
	}
}

// Encode canonicalizes drafts in order. IDs are one-based positions, the
// recipient defaults to defaultRecipient when the draft names none, and
// created_at is the wall clock in nanoseconds with millisecond precision.
func Encode(drafts []Draft, defaultRecipient string, now time.Time) ([]Canonical, error) {
	out := make([]Canonical, 0, len(drafts))
	createdAt := now.UnixMilli() * int64(time.Millisecond)
	for i, d := range drafts {
		amount, err := ParseAmount(d.Amount)
		if err != nil {
			return nil, result.Errorf(400, "milestone %d: %v", i+1, err)
		}
		recipient := defaultRecipient
		if len(d.Recipients) > 0 && d.Recipients[0] != "" {
			recipient = d.Recipients[0]
		}
		out = append(out, Canonical{
			ID:          i + 1,
			Title:       d.Title,
			Description: d.Description,
			Amount:      amount,
			Recipient:   recipient,
			Type:        typeOf(d, now),
			Status:      StatusPending,
			Votes:       map[string]any{},
			CreatedAt:   createdAt,
			CompletedAt: nil,
		})
	}
	return out, nil
}

// Sum totals the micro unit amounts across drafts. Unparseable amounts
// count as zero; validation happens in Encode.
func Sum(drafts []Draft) int64 {
	var total int64
	for _, d := range drafts {
		amount, err := ParseAmount(d.Amount)
		if err != nil {
			continue
		}
		total += amount
	}
	return total
}
