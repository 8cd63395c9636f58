package server

import (
	"context"

	"github.com/smartrestaurant/gateway/internal/services/iam"
)

// iamService defines the exact IAM methods used by server handlers.
type iamService interface {
	CompleteLogin(ctx context.Context, identity iam.Identity, token iam.AccessToken) (*iam.Principal, string, error)
	Authenticate(ctx context.Context, req iam.AuthRequest) (*iam.Principal, error)
	Logout(ctx context.Context, sessionToken string) error
}

var _ iamService = (*iam.Service)(nil)
