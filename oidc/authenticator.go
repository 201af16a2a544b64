// Package oidc authenticates HTTP requests carrying an OpenID Connect ID token.
package oidc

import (
	"context"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/xdbsoft/docstore/api"
	"github.com/xdbsoft/docstore/internal/logger"
)

// AccessTokenHeader carries the OAuth2 access token used for the userinfo
// lookup.
const AccessTokenHeader = "X-Access-Token"

// Identity is what a verified token tells about its bearer
type Identity struct {
	Subject string
	Name    string
	Email   string
}

// Verifier checks a raw ID token
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (Identity, error)
}

// UserInfoFetcher completes an identity from the provider userinfo endpoint
type UserInfoFetcher interface {
	UserInfo(ctx context.Context, accessToken string) (Identity, error)
}

// New discovers the issuer configuration and returns an authenticator checking
// its tokens. When userInfo is set, identities missing a name or an email are
// completed with the userinfo endpoint.
func New(ctx context.Context, openIDConnectIssuer string, userInfo bool) (api.Authenticator, error) {

	provider, err := oidc.NewProvider(ctx, openIDConnectIssuer)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to discover issuer %s", openIDConnectIssuer)
	}

	p := &providerVerifier{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
	}

	a := &Authenticator{Verifier: p}
	if userInfo {
		a.UserInfo = p
	}

	return a, nil
}

// Authenticator maps bearer tokens to users. Requests without token are
// anonymous.
type Authenticator struct {
	Verifier Verifier
	UserInfo UserInfoFetcher
}

//getRawIDToken returns the raw token if any
func getRawIDToken(r *http.Request) string {

	//Retrieve JWT from Authorization header (or auth form parameter)
	bearerString := r.Header.Get("Authorization")
	if len(bearerString) == 0 {
		formBearer := r.FormValue("auth")
		if len(formBearer) > 0 {
			bearerString = "Bearer " + formBearer
		}
	}
	if !strings.HasPrefix(bearerString, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(bearerString[len("Bearer "):])
}

func (a *Authenticator) Authenticate(r *http.Request) (api.User, error) {

	ctx := r.Context()

	rawIDToken := getRawIDToken(r)
	if len(rawIDToken) == 0 {
		return api.User{}, nil
	}

	id, err := a.Verifier.Verify(ctx, rawIDToken)
	if err != nil {
		logger.GetLogger().WithError(err).Warn("token verification failed")
		return api.User{}, notAuthorizedError{}
	}

	accessToken := r.Header.Get(AccessTokenHeader)
	if a.UserInfo != nil && len(accessToken) > 0 && (len(id.Name) == 0 || len(id.Email) == 0) {
		info, err := a.UserInfo.UserInfo(ctx, accessToken)
		if err != nil {
			logger.GetLogger().WithError(err).WithField("subject", id.Subject).Warn("userinfo lookup failed")
		} else if info.Subject == id.Subject {
			if len(id.Name) == 0 {
				id.Name = info.Name
			}
			if len(id.Email) == 0 {
				id.Email = info.Email
			}
		}
	}

	return api.User{
		ID:    id.Subject,
		Name:  id.Name,
		Email: id.Email,
	}, nil
}

type providerVerifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

type claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (p *providerVerifier) Verify(ctx context.Context, rawIDToken string) (Identity, error) {

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Identity{}, err
	}

	var c claims
	if err := idToken.Claims(&c); err != nil {
		return Identity{}, errors.Wrap(err, "unable to decode claims")
	}

	return Identity{Subject: idToken.Subject, Name: c.Name, Email: c.Email}, nil
}

func (p *providerVerifier) UserInfo(ctx context.Context, accessToken string) (Identity, error) {

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})

	info, err := p.provider.UserInfo(ctx, ts)
	if err != nil {
		return Identity{}, err
	}

	var c claims
	if err := info.Claims(&c); err != nil {
		return Identity{}, errors.Wrap(err, "unable to decode userinfo claims")
	}

	email := info.Email
	if len(email) == 0 {
		email = c.Email
	}

	return Identity{Subject: info.Subject, Name: c.Name, Email: email}, nil
}

type notAuthorizedError struct {
}

func (err notAuthorizedError) Error() string {
	return "Invalid credential"
}

func (err notAuthorizedError) IsNotAuthorized() bool {
	return true
}
