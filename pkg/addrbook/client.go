package addrbook

import (
	"context"
	"net/http"
	"time"

	"github.com/addrbook-dev/addrbook-go/internal/storage"
	"github.com/addrbook-dev/addrbook-go/internal/transport"
	internalTypes "github.com/addrbook-dev/addrbook-go/internal/types"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is the default address-book API base URL
	DefaultBaseURL = internalTypes.DefaultBaseURL

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = internalTypes.DefaultTimeout

	// DefaultLoginPath is where auth-expired redirects land
	DefaultLoginPath = "/login"

	// DefaultHomePath is where a logged-in visit to the login page lands
	DefaultHomePath = "/"
)

// Client is the main address-book API client
type Client struct {
	// Service interfaces
	Auth        AuthService
	AddressBook AddressBookService

	// Session is the authentication state container
	Session *SessionStore

	// Guard decides route transitions for the host application
	Guard *Guard

	// Internal fields
	baseURL    string
	httpClient *http.Client
	transport  Transport
	options    *ClientOptions
}

// ClientOptions configures the client
type ClientOptions struct {
	// BaseURL overrides the default API base URL
	BaseURL string

	// HTTPClient allows using a custom HTTP client
	HTTPClient *http.Client

	// Timeout sets the HTTP client timeout
	Timeout time.Duration

	// SessionFile persists tokens and the member profile between runs.
	// Empty keeps the session in memory only.
	SessionFile string

	// Logger for debug logging
	Logger Logger

	// Notifier receives the user-facing message for every classified
	// failure (and login/logout confirmations)
	Notifier Notifier

	// Navigator handles the login redirect when the session expires
	Navigator Navigator

	// LoginPath overrides DefaultLoginPath
	LoginPath string

	// HomePath overrides DefaultHomePath
	HomePath string

	// RetryConfig configures opt-in retry behavior. The pipeline itself
	// never retries.
	RetryConfig *internalTypes.RetryConfig

	// Hooks for observability
	Hooks *internalTypes.Hooks

	// SentryDSN enables Sentry error tracking when set
	SentryDSN string

	// SentryOptions allows custom Sentry configuration
	SentryOptions *sentry.ClientOptions
}

// Logger interface for logging
type Logger = internalTypes.Logger

// Notifier is the black-box user-notification capability
type Notifier = internalTypes.Notifier

// NotifyLevel is a notification severity
type NotifyLevel = internalTypes.NotifyLevel

// Notification levels
const (
	NotifyInfo    = internalTypes.NotifyInfo
	NotifyWarning = internalTypes.NotifyWarning
	NotifyError   = internalTypes.NotifyError
)

// Transport runs a request through the pipeline
type Transport interface {
	Do(ctx context.Context, req *transport.Request, result interface{}) error
}

// NewClient creates a new address-book client
func NewClient(opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = &ClientOptions{}
	}

	// Initialize Sentry if DSN is provided
	sentryEnabled := false
	if opts.SentryDSN != "" || opts.SentryOptions != nil {
		sentryOpts := sentry.ClientOptions{}

		if opts.SentryOptions != nil {
			sentryOpts = *opts.SentryOptions
		}

		if opts.SentryDSN != "" {
			sentryOpts.Dsn = opts.SentryDSN
		}

		if sentryOpts.Environment == "" {
			sentryOpts.Environment = "production"
		}

		if err := sentry.Init(sentryOpts); err != nil {
			// Log error but don't fail client creation
			if opts.Logger != nil {
				opts.Logger.Error("Failed to initialize Sentry", "error", err)
			}
		} else {
			sentryEnabled = true
		}
	}

	// Set defaults
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: DefaultTimeout,
		}
	}

	if opts.Timeout > 0 {
		opts.HTTPClient.Timeout = opts.Timeout
	}

	if opts.LoginPath == "" {
		opts.LoginPath = DefaultLoginPath
	}

	if opts.HomePath == "" {
		opts.HomePath = DefaultHomePath
	}

	// Select persisted storage
	var store storage.Store
	if opts.SessionFile != "" {
		fs, err := storage.NewFileStore(opts.SessionFile)
		if err != nil {
			if opts.Logger != nil {
				opts.Logger.Warn("Failed to open session file, using in-memory session", "error", err)
			}
			store = storage.NewMemStore()
		} else {
			store = fs
		}
	} else {
		store = storage.NewMemStore()
	}

	// Session store hydrates from persisted keys at startup
	session := newSessionStore(store, opts.Logger, opts.Notifier)

	c := &Client{
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		options:    opts,
		Session:    session,
	}

	// Auth-expired hook: invalidate the session and send the user to
	// login, preserving where they were.
	onAuthExpired := func() {
		session.ClearAuth()
		if opts.Navigator != nil {
			opts.Navigator.Redirect(opts.LoginPath, opts.Navigator.CurrentPath())
		}
	}

	c.transport = transport.NewRest(&transport.Options{
		BaseURL:    opts.BaseURL,
		HTTPClient: opts.HTTPClient,
		Headers: map[string]string{
			"device-uuid": uuid.New().String(),
		},
		TokenProvider: session.AccessToken,
		OnAuthExpired: onAuthExpired,
		RetryConfig:   opts.RetryConfig,
		Logger:        opts.Logger,
		Notifier:      opts.Notifier,
		Hooks:         opts.Hooks,
		EnableSentry:  sentryEnabled,
	})

	c.initServices()

	return c, nil
}

// initServices initializes all service implementations
func (c *Client) initServices() {
	c.Auth = &authService{client: c}
	c.AddressBook = &addressBookService{client: c}
	c.Session.setAPI(c.Auth)
	c.Guard = &Guard{
		session:   c.Session,
		notifier:  c.options.Notifier,
		loginPath: c.options.LoginPath,
		homePath:  c.options.HomePath,
	}
}

// do runs a request through the pipeline
func (c *Client) do(ctx context.Context, req *transport.Request, result interface{}) error {
	return c.transport.Do(ctx, req, result)
}

// Close flushes any pending Sentry events and performs cleanup
func (c *Client) Close() {
	sentry.Flush(2 * time.Second)
}
