package addrbook

import (
	"context"
	"net/http"
	"testing"

	"github.com/addrbook-dev/addrbook-go/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuthService_LoginSendsFormFields(t *testing.T) {
	client, mockTransport := newMockedClient()

	response := `{
		"access_token": "acc-1",
		"refresh_token": "ref-1",
		"member": {"member_id": 7, "email": "alice@example.com", "nickname": "alice"}
	}`

	mockTransport.On("Do", mock.Anything, mock.MatchedBy(func(req *transport.Request) bool {
		// Credentials travel form-url-encoded, never JSON.
		return req.Method == http.MethodPost &&
			req.Path == "/jwt/login" &&
			req.Body == nil &&
			req.Form.Get("username") == "alice@example.com" &&
			req.Form.Get("password") == "secret"
	}), mock.Anything).Return(response, nil)

	res, err := client.Auth.Login(context.Background(), Credentials{
		Username: "alice@example.com",
		Password: "secret",
	})

	require.NoError(t, err)
	assert.Equal(t, "acc-1", res.AccessToken)
	assert.Equal(t, "ref-1", res.RefreshToken)
	require.NotNil(t, res.Member)
	assert.Equal(t, 7, res.Member.MemberID)
	mockTransport.AssertExpectations(t)
}

func TestAuthService_LoginRejectsEmptyToken(t *testing.T) {
	client, mockTransport := newMockedClient()

	mockTransport.On("Do", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"refresh_token":"ref-1"}`, nil)

	_, err := client.Auth.Login(context.Background(), Credentials{Username: "a", Password: "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token")
}

func TestAuthService_Logout(t *testing.T) {
	client, mockTransport := newMockedClient()

	mockTransport.On("Do", mock.Anything, mock.MatchedBy(func(req *transport.Request) bool {
		return req.Method == http.MethodPost && req.Path == "/jwt/logout"
	}), mock.Anything).Return(nil, nil)

	require.NoError(t, client.Auth.Logout(context.Background()))
	mockTransport.AssertExpectations(t)
}

func TestAuthService_RegisterSendsJSON(t *testing.T) {
	client, mockTransport := newMockedClient()

	mockTransport.On("Do", mock.Anything, mock.MatchedBy(func(req *transport.Request) bool {
		params, ok := req.Body.(*RegisterParams)
		return ok && req.Method == http.MethodPost &&
			req.Path == "/jwt/register" &&
			params.Email == "new@example.com" &&
			params.Nickname == "newbie"
	}), mock.Anything).Return(`{"member_id":11,"email":"new@example.com","nickname":"newbie"}`, nil)

	member, err := client.Auth.Register(context.Background(), &RegisterParams{
		Email:    "new@example.com",
		Password: "secret",
		Nickname: "newbie",
	})

	require.NoError(t, err)
	assert.Equal(t, 11, member.MemberID)
	mockTransport.AssertExpectations(t)
}

func TestAuthService_RefreshTokenBody(t *testing.T) {
	client, mockTransport := newMockedClient()

	mockTransport.On("Do", mock.Anything, mock.MatchedBy(func(req *transport.Request) bool {
		body, ok := req.Body.(map[string]string)
		return ok && req.Method == http.MethodPost &&
			req.Path == "/jwt/refresh" &&
			body["refresh_token"] == "ref-1"
	}), mock.Anything).Return(`{"access_token":"acc-2","refresh_token":"ref-2"}`, nil)

	pair, err := client.Auth.RefreshToken(context.Background(), "ref-1")

	require.NoError(t, err)
	assert.Equal(t, "acc-2", pair.AccessToken)
	assert.Equal(t, "ref-2", pair.RefreshToken)
	mockTransport.AssertExpectations(t)
}

func TestAuthService_GetCurrentMember(t *testing.T) {
	client, mockTransport := newMockedClient()

	mockTransport.On("Do", mock.Anything, mock.MatchedBy(func(req *transport.Request) bool {
		return req.Method == http.MethodGet && req.Path == "/jwt/me"
	}), mock.Anything).Return(`{"member_id":7,"email":"alice@example.com"}`, nil)

	member, err := client.Auth.GetCurrentMember(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", member.Email)
	mockTransport.AssertExpectations(t)
}
