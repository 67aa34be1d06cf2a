package domain

// Agreement is a shared collaborative context plus the caller's membership
// metadata. ID always equals ContextID.
type Agreement struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ContextID       string `json:"context_id"`
	MemberPublicKey string `json:"member_public_key,omitempty"`
	Role            string `json:"role"`
	JoinedAt        int64  `json:"joined_at"`
	PrivateIdentity string `json:"private_identity,omitempty"`
	SharedIdentity  string `json:"shared_identity,omitempty"`
}

// Participant roles within an agreement context. Role priority in the remote
// state is Owner > Signer > Viewer > Unknown.
const (
	RoleOwner   = "Owner"
	RoleSigner  = "Signer"
	RoleViewer  = "Viewer"
	RoleUnknown = "Unknown"
)

// Permission levels assignable to invited participants.
const (
	PermissionRead  = "read"
	PermissionSign  = "sign"
	PermissionAdmin = "admin"
)

// Participant is an invited member of a DAO agreement. InvitationPayload is
// empty until an invitation has been generated for them.
type Participant struct {
	ContextID         string `json:"context_id"`
	InvitationPayload string `json:"invitation_payload,omitempty"`
	IcpID             string `json:"icp_id"`
	Permission        string `json:"permission,omitempty"`
}

// DocumentFile is an input file for a document upload batch. Embeddings are
// optional, computed by the caller before upload.
type DocumentFile struct {
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type,omitempty"`
	Data       []byte    `json:"data"`
	Embeddings []float32 `json:"embeddings,omitempty"`
}

// AgreementBalance is the remote escrow balance for an agreement, in
// micro-units.
type AgreementBalance struct {
	AgreementID string `json:"agreement_id"`
	Balance     int64  `json:"balance"`
}

// MilestoneVotingStatus summarizes remote vote tallies for one milestone.
type MilestoneVotingStatus struct {
	MilestoneID       int64  `json:"milestone_id"`
	Status            string `json:"status"`
	ApprovalVotes     int64  `json:"approval_votes"`
	RejectionVotes    int64  `json:"rejection_votes"`
	TotalParticipants int64  `json:"total_participants"`
	RequiredVotes     int64  `json:"required_votes"`
	VotingThreshold   int    `json:"voting_threshold"`
}
