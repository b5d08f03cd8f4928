package addrbook

import (
	"context"
	"io"
)

// AuthService issues the authentication API calls. Each method performs
// exactly one HTTP request; retry and refresh orchestration belong to
// the session store, not here.
type AuthService interface {
	// Login authenticates with username/password. The credentials go
	// out form-url-encoded, never JSON.
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)

	// Logout invalidates the session server-side
	Logout(ctx context.Context) error

	// Register creates a new member account
	Register(ctx context.Context, params *RegisterParams) (*Member, error)

	// RefreshToken exchanges a refresh token for a new token pair
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)

	// GetCurrentMember fetches the profile of the logged-in member
	GetCurrentMember(ctx context.Context) (*Member, error)
}

// AddressBookService handles contact CRUD and avatar upload
type AddressBookService interface {
	// List retrieves a page of contacts
	List(ctx context.Context, params *ListParams) (*EntryList, error)

	// Get retrieves a single contact by ID
	Get(ctx context.Context, id int) (*Entry, error)

	// Create creates a new contact
	Create(ctx context.Context, params *EntryParams) (*Entry, error)

	// Update updates an existing contact
	Update(ctx context.Context, id int, params *EntryParams) (*Entry, error)

	// Delete deletes a contact
	Delete(ctx context.Context, id int) error

	// UploadAvatar uploads a contact avatar as multipart form data
	UploadAvatar(ctx context.Context, id int, filename string, avatar io.Reader) (*Entry, error)
}

// Navigator is the host application's routing surface. The client calls
// it when an authenticated request comes back 401: the session is
// cleared and the user is sent to the login view, with the path they
// were on preserved as the return target.
type Navigator interface {
	// CurrentPath returns the path the user is currently on
	CurrentPath() string

	// Redirect navigates to a path, carrying the return target
	Redirect(to, returnPath string)
}
