package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/pagevoice/pagevoice-server/internal/reader"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "Log in",
		Description: "Authenticates against the remote reader service and returns a session id",
		Tags:        []string{"Authentication"},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "keepalive",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/keepalive",
		Summary:     "Keep session alive",
		Description: "Refreshes the session's idle timer without any other side effects",
		Tags:        []string{"Authentication"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleKeepalive)

	huma.Register(s.api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/logout",
		Summary:     "Log out",
		Description: "Invalidates the session",
		Tags:        []string{"Authentication"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleLogout)
}

// === DTOs ===

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254" doc:"Reader account email"`
	Password string `json:"password" validate:"required,max=1024" doc:"Reader account password"`
}

// LoginInput wraps the login request for Huma.
type LoginInput struct {
	Body LoginRequest
}

// SessionResponse describes a newly created session.
type SessionResponse struct {
	SessionID string    `json:"session_id" doc:"Opaque session identifier"`
	CreatedAt time.Time `json:"created_at" doc:"Session creation timestamp"`
}

// SessionOutput wraps the session response for Huma.
type SessionOutput struct {
	Body SessionResponse
}

// MessageResponse contains a simple message.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// === Handlers ===

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*SessionOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	sess, err := s.services.Sessions.Create(ctx, reader.Credentials{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}

	return &SessionOutput{
		Body: SessionResponse{
			SessionID: sess.ID,
			CreatedAt: sess.CreatedAt,
		},
	}, nil
}

func (s *Server) handleKeepalive(ctx context.Context, _ *struct{}) (*MessageOutput, error) {
	id := contextSessionID(ctx)
	if id == "" {
		return nil, huma.Error401Unauthorized("session id required")
	}
	if err := s.services.Sessions.Touch(id); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "session refreshed"}}, nil
}

func (s *Server) handleLogout(ctx context.Context, _ *struct{}) (*MessageOutput, error) {
	id := contextSessionID(ctx)
	if id == "" {
		return nil, huma.Error401Unauthorized("session id required")
	}
	s.services.Sessions.Delete(id)
	return &MessageOutput{Body: MessageResponse{Message: "logged out"}}, nil
}
