package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/addrbook-dev/addrbook-go/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	levels   []types.NotifyLevel
	messages []string
}

func (n *recordingNotifier) Notify(level types.NotifyLevel, message string) {
	n.levels = append(n.levels, level)
	n.messages = append(n.messages, message)
}

func newTestRest(serverURL, token string) (*Rest, *recordingNotifier) {
	notifier := &recordingNotifier{}
	rest := NewRest(&Options{
		BaseURL:  serverURL,
		Notifier: notifier,
		TokenProvider: func() string {
			return token
		},
	})
	return rest, notifier
}

func TestDo_InjectsBearerHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	rest, _ := newTestRest(server.URL, "tok-123")
	err := rest.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/jwt/me"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestDo_NoBearerWhenLoggedOut(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	rest, _ := newTestRest(server.URL, "")
	err := rest.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/address_book"}, nil)

	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestDo_CacheBustDiffersBetweenIdenticalGets(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	rest, _ := newTestRest(server.URL, "")
	req := func() *Request {
		return &Request{
			Method: http.MethodGet,
			Path:   "/address_book",
			Query:  url.Values{"page": {"1"}, "search": {"alice"}},
		}
	}
	require.NoError(t, rest.Do(context.Background(), req(), nil))
	require.NoError(t, rest.Do(context.Background(), req(), nil))

	require.Len(t, queries, 2)
	assert.NotEqual(t, queries[0], queries[1])
	assert.Contains(t, queries[0], "_t=")
	assert.Contains(t, queries[0], "page=1")
	assert.Contains(t, queries[0], "search=alice")
}

func TestDo_NoCacheBustOnPost(t *testing.T) {
	var rawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	rest, _ := newTestRest(server.URL, "")
	err := rest.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/jwt/logout"}, nil)

	require.NoError(t, err)
	assert.NotContains(t, rawQuery, "_t=")
}

func TestDo_FormBodyIsURLEncoded(t *testing.T) {
	var gotType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotBody = r.PostForm.Encode()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	rest, _ := newTestRest(server.URL, "")
	err := rest.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/jwt/login",
		Form:   url.Values{"username": {"alice@example.com"}, "password": {"secret"}},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", gotType)
	assert.Contains(t, gotBody, "username=alice%40example.com")
	assert.Contains(t, gotBody, "password=secret")
}

func TestDo_MultipartOverridesContentType(t *testing.T) {
	var gotType string
	var gotFile []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, _, err := r.FormFile("avatar")
		require.NoError(t, err)
		defer f.Close()
		buf := make([]byte, 16)
		n, _ := f.Read(buf)
		gotFile = buf[:n]
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	rest, _ := newTestRest(server.URL, "")
	err := rest.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/api/address_book/1/avatar",
		Multipart: &MultipartPayload{
			Field:    "avatar",
			Filename: "avatar.png",
			Reader:   strings.NewReader("png-bytes"),
		},
	}, nil)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gotType, "multipart/form-data; boundary="))
	assert.Equal(t, "png-bytes", string(gotFile))
}

func TestDo_EnvelopeUnwrapsData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"data":{"id":1},"message":""}`))
	}))
	defer server.Close()

	rest, notifier := newTestRest(server.URL, "")
	var result struct {
		ID int `json:"id"`
	}
	err := rest.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/address_book/1"}, &result)

	require.NoError(t, err)
	assert.Equal(t, 1, result.ID)
	assert.Empty(t, notifier.messages)
}

func TestDo_EnvelopeBusinessErrorIsNotHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Business failure inside a 200 response.
		w.Write([]byte(`{"code":401,"message":"bad"}`))
	}))
	defer server.Close()

	rest, notifier := newTestRest(server.URL, "")
	err := rest.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/address_book"}, nil)

	require.Error(t, err)
	var classified *types.Error
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, types.ClassBusiness, classified.Classification)
	assert.Equal(t, "bad", classified.Message)
	assert.Equal(t, 401, classified.BusinessCode)
	assert.Equal(t, []string{"bad"}, notifier.messages)
}

func TestDo_RawBodyWithoutEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"member_id":7,"email":"a@b.c"}`))
	}))
	defer server.Close()

	rest, _ := newTestRest(server.URL, "")
	var result struct {
		MemberID int    `json:"member_id"`
		Email    string `json:"email"`
	}
	err := rest.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/jwt/me"}, &result)

	require.NoError(t, err)
	assert.Equal(t, 7, result.MemberID)
	assert.Equal(t, "a@b.c", result.Email)
}

func TestDo_AuthExpiredOn401WithBearer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	expired := false
	notifier := &recordingNotifier{}
	rest := NewRest(&Options{
		BaseURL:       server.URL,
		Notifier:      notifier,
		TokenProvider: func() string { return "stale-token" },
		OnAuthExpired: func() { expired = true },
	})

	err := rest.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/address_book"}, nil)

	require.Error(t, err)
	var classified *types.Error
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, types.ClassAuthExpired, classified.Classification)
	assert.True(t, errors.Is(err, types.ErrSessionExpired))
	assert.True(t, expired)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "session expired")
}

func TestDo_Plain401WithoutBearer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"incorrect password"}`))
	}))
	defer server.Close()

	expired := false
	rest := NewRest(&Options{
		BaseURL:       server.URL,
		TokenProvider: func() string { return "" },
		OnAuthExpired: func() { expired = true },
	})

	err := rest.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/jwt/login"}, nil)

	require.Error(t, err)
	var classified *types.Error
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, types.ClassUnauthorized, classified.Classification)
	assert.Equal(t, 401, classified.StatusCode)
	assert.False(t, expired, "login 401 must not trigger the session-expired redirect")
}

func TestDo_StatusClassificationTable(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		body          string
		expectedClass types.Classification
		expectedInMsg string
	}{
		{"400 bad request", 400, `{"message":"missing name"}`, types.ClassBadRequest, "missing name"},
		{"403 forbidden", 403, ``, types.ClassForbidden, "forbidden"},
		{"404 not found", 404, ``, types.ClassNotFound, "not found"},
		{"422 field errors", 422, `{"errors":{"email":["email is invalid"],"name":["name too long"]}}`, types.ClassValidation, "email is invalid"},
		{"422 message fallback", 422, `{"message":"validation broke"}`, types.ClassValidation, "validation broke"},
		{"429 rate limited", 429, ``, types.ClassRateLimited, "too many requests"},
		{"500 server error", 500, ``, types.ClassServer, "server error"},
		{"502 unavailable", 502, ``, types.ClassUnavailable, "temporarily unavailable"},
		{"503 unavailable", 503, ``, types.ClassUnavailable, "temporarily unavailable"},
		{"504 unavailable", 504, ``, types.ClassUnavailable, "temporarily unavailable"},
		{"418 default", 418, `{"message":"teapot"}`, types.ClassHTTP, "teapot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			rest, notifier := newTestRest(server.URL, "")
			err := rest.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/address_book"}, nil)

			require.Error(t, err)
			var classified *types.Error
			require.True(t, errors.As(err, &classified))
			assert.Equal(t, tt.expectedClass, classified.Classification)
			assert.Equal(t, tt.statusCode, classified.StatusCode)
			assert.Contains(t, classified.Message, tt.expectedInMsg)

			// Exactly one user-facing notification per failure.
			require.Len(t, notifier.messages, 1)
			assert.Contains(t, notifier.messages[0], tt.expectedInMsg)
		})
	}
}

func TestDo_NetworkErrorWhenNoResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	rest, notifier := newTestRest(server.URL, "")
	err := rest.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/address_book"}, nil)

	require.Error(t, err)
	var classified *types.Error
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, types.ClassNetwork, classified.Classification)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "network")
}

func TestDo_ConfigErrorAbortsBeforeTransport(t *testing.T) {
	hit := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer server.Close()

	rest, notifier := newTestRest(server.URL, "")
	err := rest.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/address_book",
		Body:   func() {}, // not JSON-marshalable
	}, nil)

	require.Error(t, err)
	var classified *types.Error
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, types.ClassConfig, classified.Classification)
	assert.False(t, hit, "transport must not be reached on a config error")
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "request configuration error")
}

func TestFirstValidationMessage_StableOrder(t *testing.T) {
	fields := map[string][]string{
		"phone": {"phone is invalid"},
		"email": {"email is required", "email is invalid"},
	}
	assert.Equal(t, "email is required", firstValidationMessage(fields))
	assert.Equal(t, "", firstValidationMessage(nil))
	assert.Equal(t, "", firstValidationMessage(map[string][]string{"email": {}}))
}
