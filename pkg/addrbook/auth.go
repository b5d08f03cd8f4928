package addrbook

import (
	"context"
	"net/http"
	"net/url"

	"github.com/addrbook-dev/addrbook-go/internal/transport"
	"github.com/addrbook-dev/addrbook-go/internal/types"
	"github.com/pkg/errors"
)

// authService implements the AuthService interface
type authService struct {
	client *Client
}

// Login performs authentication. The backend's OAuth2 password form
// requires form-url-encoded username/password fields.
func (a *authService) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	form := url.Values{}
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)

	var res LoginResult
	err := a.client.do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   types.LoginEndpoint,
		Form:   form,
	}, &res)
	if err != nil {
		return nil, err
	}

	if res.AccessToken == "" {
		return nil, errors.New("no token in login response")
	}

	return &res, nil
}

// Logout invalidates the session server-side
func (a *authService) Logout(ctx context.Context) error {
	return a.client.do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   types.LogoutEndpoint,
	}, nil)
}

// Register creates a new member account
func (a *authService) Register(ctx context.Context, params *RegisterParams) (*Member, error) {
	var member Member
	err := a.client.do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   types.RegisterEndpoint,
		Body:   params,
	}, &member)
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// RefreshToken exchanges a refresh token for a new token pair
func (a *authService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair TokenPair
	err := a.client.do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   types.RefreshEndpoint,
		Body:   map[string]string{"refresh_token": refreshToken},
	}, &pair)
	if err != nil {
		return nil, err
	}

	if pair.AccessToken == "" {
		return nil, errors.New("no token in refresh response")
	}

	return &pair, nil
}

// GetCurrentMember fetches the profile of the logged-in member
func (a *authService) GetCurrentMember(ctx context.Context) (*Member, error) {
	var member Member
	err := a.client.do(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   types.MeEndpoint,
	}, &member)
	if err != nil {
		return nil, err
	}
	return &member, nil
}
