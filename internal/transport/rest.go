package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/addrbook-dev/addrbook-go/internal/types"
	"github.com/getsentry/sentry-go"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const (
	authHeaderKey = "Authorization"
	contentType   = "application/json"
	formType      = "application/x-www-form-urlencoded"
)

// Rest is the HTTP transport carrying the request pipeline: an outbound
// stage that decorates every request (bearer token, cache-busting,
// content-type inference) and an inbound stage that normalizes every
// response into a success payload or a classified failure.
type Rest struct {
	baseURL       string
	httpClient    *http.Client
	retryClient   *retryablehttp.Client
	headers       map[string]string
	logger        types.Logger
	notifier      types.Notifier
	hooks         *types.Hooks
	tokenFn       func() string
	onAuthExpired func()
	sentryEnabled bool
	lastBust      atomic.Int64
}

// Request is the outbound request descriptor passed through the
// pipeline. Exactly one of Body, Form, or Multipart should be set; the
// pipeline infers the content type from whichever is present.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      interface{}       // JSON-encoded
	Form      url.Values        // form-url-encoded
	Multipart *MultipartPayload // multipart/form-data
	Header    http.Header
}

// MultipartPayload describes a file upload plus optional extra fields.
type MultipartPayload struct {
	Field    string
	Filename string
	Reader   io.Reader
	Fields   map[string]string
}

// envelope is the backend response wrapping convention. A nil Code means
// the body did not use the envelope and is returned raw.
type envelope struct {
	Code    *int            `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// errorBody is the shape of failure response bodies.
type errorBody struct {
	Message string              `json:"message"`
	Detail  string              `json:"detail"`
	Errors  map[string][]string `json:"errors"`
}

// Options for the REST transport
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Headers    map[string]string

	// TokenProvider yields the current access token, or "" when logged
	// out. Consulted on every request.
	TokenProvider func() string

	// OnAuthExpired runs when an authenticated request comes back 401.
	// The client wires it to session invalidation plus the login
	// redirect.
	OnAuthExpired func()

	RetryConfig  *types.RetryConfig
	Logger       types.Logger
	Notifier     types.Notifier
	Hooks        *types.Hooks
	EnableSentry bool
}

// NewRest creates a new REST transport
func NewRest(opts *Options) *Rest {
	if opts == nil {
		opts = &Options{}
	}

	if opts.BaseURL == "" {
		opts.BaseURL = types.DefaultBaseURL
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: types.DefaultTimeout,
		}
	}

	// Create retry client if configured
	var retryClient *retryablehttp.Client
	if opts.RetryConfig != nil {
		retryClient = retryablehttp.NewClient()
		retryClient.HTTPClient = opts.HTTPClient
		retryClient.RetryMax = opts.RetryConfig.MaxRetries
		retryClient.RetryWaitMin = opts.RetryConfig.RetryWait
		retryClient.RetryWaitMax = opts.RetryConfig.MaxWait

		if opts.Logger != nil {
			retryClient.Logger = &retryLogger{logger: opts.Logger}
		}
	}

	headers := map[string]string{
		"Accept":     contentType,
		"User-Agent": types.UserAgent,
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &Rest{
		baseURL:       opts.BaseURL,
		httpClient:    opts.HTTPClient,
		retryClient:   retryClient,
		headers:       headers,
		logger:        opts.Logger,
		notifier:      opts.Notifier,
		hooks:         opts.Hooks,
		tokenFn:       opts.TokenProvider,
		onAuthExpired: opts.OnAuthExpired,
		sentryEnabled: opts.EnableSentry,
	}
}

// Do runs a request through both pipeline stages. On success the
// envelope's data field (or the raw body) is unmarshaled into result;
// on failure the returned error is a *types.Error carrying the
// classification, and the user has been notified exactly once.
func (t *Rest) Do(ctx context.Context, req *Request, result interface{}) error {
	httpReq, hadBearer, err := t.buildRequest(ctx, req)
	if err != nil {
		// Outbound stage failed: abort before transport.
		cfgErr := &types.Error{
			Classification: types.ClassConfig,
			Message:        "request configuration error",
			Err:            err,
		}
		t.notify(types.NotifyError, cfgErr.Message)
		if t.logger != nil {
			t.logger.Error("request configuration error", "method", req.Method, "path", req.Path, "error", err)
		}
		return cfgErr
	}

	if t.hooks != nil && t.hooks.OnRequest != nil {
		t.hooks.OnRequest(ctx, httpReq)
	}

	if t.logger != nil {
		t.logger.Debug("request", "method", req.Method, "path", req.Path)
	}

	start := time.Now()
	resp, err := t.doRequest(httpReq)
	duration := time.Since(start)

	if err != nil {
		// No response received: DNS, connection, timeout.
		netErr := &types.Error{
			Classification: types.ClassNetwork,
			Message:        "network error, please check your connection",
			Err:            err,
		}
		t.notify(types.NotifyError, netErr.Message)
		t.capture(netErr)
		if t.hooks != nil && t.hooks.OnError != nil {
			t.hooks.OnError(ctx, netErr)
		}
		return netErr
	}
	defer resp.Body.Close()

	if t.hooks != nil && t.hooks.OnResponse != nil {
		t.hooks.OnResponse(ctx, resp, duration)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if t.logger != nil {
		t.logger.Debug("response", "status", resp.StatusCode, "duration", duration, "size", len(body))
	}

	if resp.StatusCode >= 400 {
		classified := t.classifyStatus(resp.StatusCode, body, hadBearer)
		if t.hooks != nil && t.hooks.OnError != nil {
			t.hooks.OnError(ctx, classified)
		}
		return classified
	}

	return t.unwrap(body, result)
}

// buildRequest is the outbound pipeline stage. The returned boolean
// reports whether a bearer token was attached, which the inbound stage
// needs to tell an expired session apart from a plain 401.
func (t *Rest) buildRequest(ctx context.Context, req *Request) (*http.Request, bool, error) {
	var (
		bodyReader io.Reader
		bodyType   string
	)

	switch {
	case req.Multipart != nil:
		buf := &bytes.Buffer{}
		w := multipart.NewWriter(buf)
		for k, v := range req.Multipart.Fields {
			if err := w.WriteField(k, v); err != nil {
				return nil, false, errors.Wrap(err, "failed to write multipart field")
			}
		}
		part, err := w.CreateFormFile(req.Multipart.Field, req.Multipart.Filename)
		if err != nil {
			return nil, false, errors.Wrap(err, "failed to create multipart file")
		}
		if _, err := io.Copy(part, req.Multipart.Reader); err != nil {
			return nil, false, errors.Wrap(err, "failed to copy multipart payload")
		}
		if err := w.Close(); err != nil {
			return nil, false, errors.Wrap(err, "failed to finalize multipart payload")
		}
		bodyReader = buf
		// Multipart overrides the JSON default.
		bodyType = w.FormDataContentType()

	case req.Form != nil:
		bodyReader = bytes.NewBufferString(req.Form.Encode())
		bodyType = formType

	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, false, errors.Wrap(err, "failed to marshal request body")
		}
		bodyReader = bytes.NewReader(data)
		bodyType = contentType
	}

	query := url.Values{}
	for k, vs := range req.Query {
		for _, v := range vs {
			query.Add(k, v)
		}
	}

	// Cache-busting: identical GETs must never share a final query
	// string, so intermediate caches are always bypassed.
	if req.Method == http.MethodGet {
		query.Set(types.CacheBustParam, strconv.FormatInt(t.cacheBust(), 10))
	}

	fullURL := t.baseURL + req.Path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, bodyReader)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to create request")
	}

	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	if bodyType != "" {
		httpReq.Header.Set("Content-Type", bodyType)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Set(k, v)
		}
	}

	hadBearer := false
	if t.tokenFn != nil {
		if token := t.tokenFn(); token != "" {
			httpReq.Header.Set(authHeaderKey, "Bearer "+token)
			hadBearer = true
		}
	}

	return httpReq, hadBearer, nil
}

// cacheBust returns a strictly increasing millisecond timestamp.
func (t *Rest) cacheBust() int64 {
	for {
		now := time.Now().UnixMilli()
		last := t.lastBust.Load()
		if now <= last {
			now = last + 1
		}
		if t.lastBust.CompareAndSwap(last, now) {
			return now
		}
	}
}

// doRequest executes the HTTP request with retry if configured
func (t *Rest) doRequest(req *http.Request) (*http.Response, error) {
	if t.retryClient != nil {
		retryReq, err := retryablehttp.FromRequest(req)
		if err != nil {
			return nil, err
		}
		return t.retryClient.Do(retryReq)
	}
	return t.httpClient.Do(req)
}

// unwrap applies the envelope convention to a 2xx body.
func (t *Rest) unwrap(body []byte, result interface{}) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Code != nil {
			if *env.Code != 200 {
				msg := env.Message
				if msg == "" {
					msg = "request failed"
				}
				bizErr := &types.Error{
					Classification: types.ClassBusiness,
					Message:        msg,
					BusinessCode:   *env.Code,
				}
				t.notify(types.NotifyError, msg)
				return bizErr
			}
			if result != nil && len(env.Data) > 0 {
				if err := json.Unmarshal(env.Data, result); err != nil {
					return errors.Wrap(err, "failed to unmarshal response data")
				}
			}
			return nil
		}
	}

	// No envelope: the raw body is the payload.
	if result != nil {
		if err := json.Unmarshal(trimmed, result); err != nil {
			return errors.Wrap(err, "failed to unmarshal response")
		}
	}
	return nil
}

// classifyStatus is the inbound pipeline stage for HTTP failure
// statuses. Each classification notifies the user exactly once and the
// error is always propagated so callers can reclassify.
func (t *Rest) classifyStatus(statusCode int, body []byte, hadBearer bool) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	msg := eb.Message
	if msg == "" {
		msg = eb.Detail
	}

	var classified *types.Error

	switch statusCode {
	case http.StatusBadRequest:
		if msg == "" {
			msg = "invalid request parameters"
		}
		classified = &types.Error{Classification: types.ClassBadRequest, Message: msg, StatusCode: statusCode}

	case http.StatusUnauthorized:
		if hadBearer {
			// 401 on an authenticated call: the session is no longer
			// valid. Clear it and send the user back to login.
			classified = &types.Error{
				Classification: types.ClassAuthExpired,
				Message:        "session expired, please log in again",
				StatusCode:     statusCode,
				Err:            types.ErrSessionExpired,
			}
			t.notify(types.NotifyError, classified.Message)
			if t.onAuthExpired != nil {
				t.onAuthExpired()
			}
			return classified
		}
		// 401 without a bearer token (login) stays a plain
		// unauthorized failure; callers reclassify it.
		if msg == "" {
			msg = "unauthorized"
		}
		classified = &types.Error{Classification: types.ClassUnauthorized, Message: msg, StatusCode: statusCode}

	case http.StatusForbidden:
		classified = &types.Error{Classification: types.ClassForbidden, Message: "access forbidden", StatusCode: statusCode}

	case http.StatusNotFound:
		classified = &types.Error{Classification: types.ClassNotFound, Message: "requested resource not found", StatusCode: statusCode, Err: types.ErrNotFound}

	case http.StatusUnprocessableEntity:
		vmsg := firstValidationMessage(eb.Errors)
		if vmsg == "" {
			vmsg = msg
		}
		if vmsg == "" {
			vmsg = "validation failed"
		}
		classified = &types.Error{Classification: types.ClassValidation, Message: vmsg, StatusCode: statusCode}

	case http.StatusTooManyRequests:
		classified = &types.Error{Classification: types.ClassRateLimited, Message: "too many requests, please try again later", StatusCode: statusCode, Err: types.ErrRateLimited}

	case http.StatusInternalServerError:
		classified = &types.Error{Classification: types.ClassServer, Message: "server error, please try again later", StatusCode: statusCode, Err: types.ErrServerError}

	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		classified = &types.Error{Classification: types.ClassUnavailable, Message: "service temporarily unavailable, please try again later", StatusCode: statusCode, Err: types.ErrServerError}

	default:
		if msg == "" {
			msg = fmt.Sprintf("request failed (%d)", statusCode)
		}
		classified = &types.Error{Classification: types.ClassHTTP, Message: msg, StatusCode: statusCode}
	}

	t.notify(types.NotifyError, classified.Message)
	if statusCode >= 500 {
		t.capture(classified)
	}
	return classified
}

// firstValidationMessage extracts the first message from a field-keyed
// error map, walking fields in a stable order.
func firstValidationMessage(fields map[string][]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(fields[k]) > 0 {
			return fields[k][0]
		}
	}
	return ""
}

func (t *Rest) notify(level types.NotifyLevel, msg string) {
	if t.notifier != nil {
		t.notifier.Notify(level, msg)
	}
}

// capture reports network and server-side failures to Sentry when enabled.
func (t *Rest) capture(err error) {
	if !t.sentryEnabled {
		return
	}
	sentry.CaptureException(err)
}

// retryLogger adapts our logger to retryablehttp
type retryLogger struct {
	logger types.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}
