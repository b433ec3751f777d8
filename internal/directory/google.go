package directory

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

// IdentityVerifier validates a provider token and returns its assertion.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (Assertion, error)
}

type GoogleVerifier struct {
	clientID  string
	validator *idtoken.Validator
}

func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	v, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("idtoken validator: %w", err)
	}
	return &GoogleVerifier{clientID: clientID, validator: v}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, raw string) (Assertion, error) {
	p, err := g.validator.Validate(ctx, raw, g.clientID)
	if err != nil {
		return Assertion{}, err
	}
	a := Assertion{Subject: p.Subject}
	a.Email, _ = p.Claims["email"].(string)
	a.Name, _ = p.Claims["name"].(string)
	a.PictureURL, _ = p.Claims["picture"].(string)
	if verified, ok := p.Claims["email_verified"].(bool); ok && !verified {
		return Assertion{}, errors.New("google email not verified")
	}
	if a.Email == "" {
		return Assertion{}, errors.New("google token has no email")
	}
	return a, nil
}

// GoogleOAuth реализует authorization code flow: редирект на Google и обмен кода на ID token.
type GoogleOAuth struct {
	cfg *oauth2.Config
}

func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *GoogleOAuth {
	return &GoogleOAuth{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}}
}

func (g *GoogleOAuth) AuthURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange меняет code на токены и возвращает сырой ID token.
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", errors.New("token response has no id_token")
	}
	return raw, nil
}
