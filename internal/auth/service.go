package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/coursecompass/storefront/internal/failure"
	"github.com/coursecompass/storefront/internal/gateway"
	"github.com/coursecompass/storefront/internal/identity"
)

// ErrAccessDenied means the credentials were valid but not an administrator's.
var ErrAccessDenied = errors.New("access denied")

const roleAdmin = "admin"

// AdminWriter is the Token Store write used by Login.
type AdminWriter interface {
	SetAdmin(ctx context.Context, admin identity.Admin) error
}

// Service performs administrator password login.
type Service struct {
	api    gateway.API
	tokens AdminWriter
}

// NewService builds an auth service for one visitor.
func NewService(api gateway.API, tokens AdminWriter) *Service {
	return &Service{api: api, tokens: tokens}
}

type loginResponse struct {
	Message      string `json:"message"`
	Token        string `json:"token"`
	Subscription *bool  `json:"subscription"`
	User         struct {
		ID     string `json:"id"`
		Email  string `json:"email"`
		Mobile string `json:"mobile"`
		Role   string `json:"role"`
	} `json:"user"`
}

// Login exchanges credentials for an administrator identity. Valid
// credentials without the admin role fail with ErrAccessDenied, never as
// invalid credentials.
func (s *Service) Login(ctx context.Context, emailOrPhone, password string) (identity.Admin, error) {
	emailOrPhone = strings.TrimSpace(emailOrPhone)
	if emailOrPhone == "" || password == "" {
		return identity.Admin{}, failure.Validation("Email or phone and password are required")
	}

	resp, err := s.api.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		JSON:   map[string]string{"emailOrPhone": emailOrPhone, "password": password},
		Public: true,
	})
	if err != nil {
		if errors.Is(err, failure.ErrTransport) {
			return identity.Admin{}, failure.Wrap(failure.KindTransport, "An error occurred during login", err)
		}
		return identity.Admin{}, failure.Wrap(failure.KindAuthRejected, "Invalid credentials", err)
	}

	var body loginResponse
	if resp.Status != http.StatusOK || resp.Decode(&body) != nil || body.Token == "" {
		return identity.Admin{}, failure.New(failure.KindAuthRejected, "Invalid credentials")
	}
	if body.User.Role != roleAdmin {
		return identity.Admin{}, failure.Wrap(failure.KindAuthRejected, "Access denied. Admin privileges required.", ErrAccessDenied)
	}

	admin := identity.Admin{
		BearerToken:     body.Token,
		UserID:          body.User.ID,
		Email:           body.User.Email,
		Role:            body.User.Role,
		HasSubscription: true,
	}
	if body.Subscription != nil {
		admin.HasSubscription = *body.Subscription
	}
	if err := s.tokens.SetAdmin(ctx, admin); err != nil {
		return identity.Admin{}, err
	}
	return admin, nil
}
