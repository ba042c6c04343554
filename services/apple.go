package services

import (
	"context"
	"errors"
	"fmt"

	apple "github.com/Timothylock/go-signin-with-apple/apple"
)

var ErrAppleRejected = errors.New("apple rejected the authorization code")

// AppleIdentity is what a verified Apple sign-in tells us about the user.
// Email is empty on repeat sign-ins.
type AppleIdentity struct {
	ID    string
	Email string
}

type AppleServiceProvider interface {
	VerifyAuthorizationCode(ctx context.Context, code string) (*AppleIdentity, error)
}

type AppleService struct {
	TeamID   string
	KeyID    string
	ClientID string
	// PrivateKeyEnv names the variable holding the base64 encoded p8 key.
	PrivateKeyEnv string
}

func (s AppleService) VerifyAuthorizationCode(ctx context.Context, code string) (*AppleIdentity, error) {
	signingKey, err := DecodeBase64EnvPrivateKey(s.PrivateKeyEnv)
	if err != nil {
		return nil, err
	}
	secret, err := apple.GenerateClientSecret(signingKey, s.TeamID, s.ClientID, s.KeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate apple client secret: %w", err)
	}

	var resp apple.ValidationResponse
	err = apple.New().VerifyAppToken(ctx, apple.AppValidationTokenRequest{
		ClientID:     s.ClientID,
		ClientSecret: secret,
		Code:         code,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to verify apple code: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s - %s", ErrAppleRejected, resp.Error, resp.ErrorDescription)
	}

	unique, err := apple.GetUniqueID(resp.IDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read apple user id: %w", err)
	}
	claims, err := apple.GetClaims(resp.IDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read apple claims: %w", err)
	}
	email, _ := (*claims)["email"].(string)
	return &AppleIdentity{ID: unique, Email: email}, nil
}
