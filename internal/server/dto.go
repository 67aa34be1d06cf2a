package server

import (
	"agreeline/internal/domain"
	"agreeline/internal/milestone"
)

type milestoneDraftDTO struct {
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Kind          string   `json:"kind" enum:"manual,document,time,voting" doc:"Completion condition for this milestone"`
	Amount        string   `json:"amount" doc:"Decimal token amount, e.g. \"2.5\""`
	Recipients    []string `json:"recipients,omitempty"`
	RequiredDocID string   `json:"required_doc_id,omitempty"`
	TimeDuration  int64    `json:"time_duration,omitempty"`
	TimeUnit      string   `json:"time_unit,omitempty"`
}

func (d milestoneDraftDTO) draft() milestone.Draft {
	return milestone.Draft{
		Title:         d.Title,
		Description:   d.Description,
		Kind:          d.Kind,
		Amount:        d.Amount,
		Recipients:    d.Recipients,
		RequiredDocID: d.RequiredDocID,
		TimeDuration:  d.TimeDuration,
		TimeUnit:      d.TimeUnit,
	}
}

func draftsOf(dtos []milestoneDraftDTO) []milestone.Draft {
	out := make([]milestone.Draft, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.draft())
	}
	return out
}

type documentDTO struct {
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type,omitempty"`
	Data       []byte    `json:"data" doc:"Base64 encoded file content"`
	Embeddings []float32 `json:"embeddings,omitempty"`
}

func documentsOf(dtos []documentDTO) []domain.DocumentFile {
	out := make([]domain.DocumentFile, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, domain.DocumentFile{
			Name:       d.Name,
			MimeType:   d.MimeType,
			Data:       d.Data,
			Embeddings: d.Embeddings,
		})
	}
	return out
}

type createAgreementRequest struct {
	Name string `json:"name" minLength:"1"`
}

type createDaoAgreementRequest struct {
	Name            string              `json:"name" minLength:"1"`
	ParticipantIDs  []string            `json:"participant_ids,omitempty"`
	Milestones      []milestoneDraftDTO `json:"milestones"`
	TotalFunding    string              `json:"total_funding"`
	VotingThreshold int                 `json:"voting_threshold,omitempty" minimum:"0" maximum:"100"`
	Documents       []documentDTO       `json:"documents,omitempty"`
}

type joinAgreementRequest struct {
	InvitationPayload string `json:"invitation_payload" minLength:"1"`
}

type inviteRequest struct {
	InviterID string `json:"inviter_id,omitempty" doc:"Defaults to the authenticated actor"`
	InviteeID string `json:"invitee_id" minLength:"1"`
}

type fundRequest struct {
	AgreementID string `json:"agreement_id" minLength:"1"`
	UserID      string `json:"user_id,omitempty" doc:"Defaults to the authenticated actor"`
	Amount      string `json:"amount" doc:"Decimal token amount"`
}
