// Package server exposes the agreement workflows over HTTP.
package server

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"agreeline/internal/agreement"
	"agreeline/internal/domain"
	"agreeline/internal/events"
	"agreeline/internal/repo"
	"agreeline/internal/result"
	"agreeline/internal/scratch"
)

// Config for the HTTP API handler.
type Config struct {
	Orchestrator *agreement.Orchestrator
	Repo         *repo.Repo
	DB           *sql.DB
	BasePath     string
	Auth         AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"agreement name is required"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Agreeline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Repo))
	hcfg := huma.DefaultConfig("Agreeline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerAgreements(group, cfg.Orchestrator)
	registerInvitations(group, cfg.Orchestrator)
	registerDao(group, cfg.Orchestrator)
	registerEvents(group, cfg.DB)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) || errors.Is(err, scratch.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	var coded *result.Error
	if errors.As(err, &coded) {
		switch coded.Code {
		case http.StatusBadRequest:
			return newAPIError(http.StatusBadRequest, "bad_request", coded.Message, nil)
		case http.StatusNotFound:
			return newAPIError(http.StatusNotFound, "not_found", coded.Message, nil)
		default:
			return newAPIError(http.StatusInternalServerError, "internal_error", coded.Message, nil)
		}
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAgreements(api huma.API, o *agreement.Orchestrator) {
	huma.Register(api, huma.Operation{
		OperationID: "create-agreement",
		Method:      http.MethodPost,
		Path:        "/agreements",
		Summary:     "Create a shared agreement context",
	}, func(ctx context.Context, input *struct {
		Body createAgreementRequest
	}) (*struct {
		Body domain.Agreement `json:"body"`
	}, error) {
		if _, err := actorIDFromContext(ctx); err != nil {
			return nil, err
		}
		created, err := o.CreateAgreement(ctx, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Agreement `json:"body"`
		}{Body: created}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-agreements",
		Method:      http.MethodGet,
		Path:        "/agreements",
		Summary:     "List joined agreements",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Agreement `json:"body"`
	}, error) {
		list, err := o.ListAgreements(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Agreement `json:"body"`
		}{Body: list}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "join-agreement",
		Method:      http.MethodPost,
		Path:        "/agreements/join",
		Summary:     "Join an agreement via invitation payload",
	}, func(ctx context.Context, input *struct {
		Body joinAgreementRequest
	}) (*struct {
		Body domain.Agreement `json:"body"`
	}, error) {
		joined, err := o.JoinAgreement(ctx, input.Body.InvitationPayload)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Agreement `json:"body"`
		}{Body: joined}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-agreement",
		Method:      http.MethodGet,
		Path:        "/agreements/{context_id}/verify",
		Summary:     "Check membership in an agreement context",
	}, func(ctx context.Context, input *struct {
		ContextID string `path:"context_id"`
	}) (*struct {
		Body struct {
			Joined bool `json:"joined"`
		} `json:"body"`
	}, error) {
		out := &struct {
			Body struct {
				Joined bool `json:"joined"`
			} `json:"body"`
		}{}
		out.Body.Joined = o.VerifyAgreement(ctx, input.ContextID)
		return out, nil
	})
}

func registerInvitations(api huma.API, o *agreement.Orchestrator) {
	huma.Register(api, huma.Operation{
		OperationID: "invite-to-agreement",
		Method:      http.MethodPost,
		Path:        "/agreements/{context_id}/invitations",
		Summary:     "Generate an invitation payload for a participant",
	}, func(ctx context.Context, input *struct {
		ContextID string `path:"context_id"`
		Body      inviteRequest
	}) (*struct {
		Body struct {
			InvitationPayload string `json:"invitation_payload"`
		} `json:"body"`
	}, error) {
		inviter := input.Body.InviterID
		if inviter == "" {
			actor, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			inviter = actor
		}
		payload, err := o.InviteToAgreement(ctx, input.ContextID, inviter, input.Body.InviteeID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				InvitationPayload string `json:"invitation_payload"`
			} `json:"body"`
		}{}
		out.Body.InvitationPayload = payload
		return out, nil
	})
}

func registerDao(api huma.API, o *agreement.Orchestrator) {
	huma.Register(api, huma.Operation{
		OperationID: "create-dao-context",
		Method:      http.MethodPost,
		Path:        "/dao/contexts",
		Summary:     "Create and initialize a DAO agreement context",
	}, func(ctx context.Context, input *struct {
		Body createAgreementRequest
	}) (*struct {
		Body domain.Agreement `json:"body"`
	}, error) {
		created, err := o.CreateDaoAgreementContext(ctx, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Agreement `json:"body"`
		}{Body: created}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-dao-agreement",
		Method:      http.MethodPost,
		Path:        "/dao/agreements",
		Summary:     "Run the full DAO agreement pipeline",
	}, func(ctx context.Context, input *struct {
		Body createDaoAgreementRequest
	}) (*struct {
		Body agreement.CompleteDaoResult `json:"body"`
	}, error) {
		res, err := o.CreateCompleteDaoAgreement(ctx, agreement.CompleteDaoInput{
			Name:            input.Body.Name,
			ParticipantIDs:  input.Body.ParticipantIDs,
			Milestones:      draftsOf(input.Body.Milestones),
			TotalFunding:    input.Body.TotalFunding,
			VotingThreshold: input.Body.VotingThreshold,
			Documents:       documentsOf(input.Body.Documents),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body agreement.CompleteDaoResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "fund-agreement",
		Method:      http.MethodPost,
		Path:        "/dao/contexts/{context_id}/fund",
		Summary:     "Deposit funds into the agreement escrow",
	}, func(ctx context.Context, input *struct {
		ContextID string `path:"context_id"`
		Body      fundRequest
	}) (*struct {
		Body struct {
			Funded bool `json:"funded"`
		} `json:"body"`
	}, error) {
		userID := input.Body.UserID
		if userID == "" {
			actor, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			userID = actor
		}
		if err := o.FundAgreement(ctx, input.ContextID, userID, input.Body.AgreementID, input.Body.Amount); err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Funded bool `json:"funded"`
			} `json:"body"`
		}{}
		out.Body.Funded = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "agreement-balance",
		Method:      http.MethodGet,
		Path:        "/dao/contexts/{context_id}/balance",
		Summary:     "Read the agreement escrow balance",
	}, func(ctx context.Context, input *struct {
		ContextID   string `path:"context_id"`
		AgreementID string `query:"agreement_id"`
		UserID      string `query:"user_id"`
	}) (*struct {
		Body domain.AgreementBalance `json:"body"`
	}, error) {
		userID := input.UserID
		if userID == "" {
			actor, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			userID = actor
		}
		balance, err := o.AgreementBalance(ctx, input.ContextID, userID, input.AgreementID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AgreementBalance `json:"body"`
		}{Body: balance}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "milestone-voting-status",
		Method:      http.MethodGet,
		Path:        "/dao/contexts/{context_id}/milestones/{milestone_id}/voting-status",
		Summary:     "Read the vote tally for a milestone",
	}, func(ctx context.Context, input *struct {
		ContextID   string `path:"context_id"`
		MilestoneID int64  `path:"milestone_id"`
		AgreementID string `query:"agreement_id"`
		UserID      string `query:"user_id"`
	}) (*struct {
		Body domain.MilestoneVotingStatus `json:"body"`
	}, error) {
		userID := input.UserID
		if userID == "" {
			actor, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			userID = actor
		}
		status, err := o.MilestoneVotingStatus(ctx, input.ContextID, userID, input.AgreementID, input.MilestoneID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MilestoneVotingStatus `json:"body"`
		}{Body: status}, nil
	})
}

func registerEvents(api huma.API, db *sql.DB) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Recent audit events, newest first",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" minimum:"0" maximum:"1000"`
	}) (*struct {
		Body []events.Event `json:"body"`
	}, error) {
		if db == nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "no_database", "event log not available", nil)
		}
		limit := input.Limit
		if limit == 0 {
			limit = 50
		}
		list, err := events.Tail(ctx, db, limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []events.Event `json:"body"`
		}{Body: list}, nil
	})
}
