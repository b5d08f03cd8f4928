package addrbook

import "time"

// Member is the authenticated member profile.
type Member struct {
	MemberID int    `json:"member_id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// Credentials are the login form fields. The backend's OAuth2 form
// contract uses the username field for the email address.
type Credentials struct {
	Username string
	Password string
}

// LoginResult is the login response: both tokens plus the member profile.
type LoginResult struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	Member       *Member `json:"member"`
}

// TokenPair is the refresh response.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RegisterParams are the registration fields.
type RegisterParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

// Entry is a single address-book contact.
type Entry struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// EntryParams are the writable contact fields.
type EntryParams struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// ListParams control address-book pagination and search.
type ListParams struct {
	Page     int
	PageSize int
	Search   string
}

// EntryList is a page of contacts.
type EntryList struct {
	Items    []*Entry `json:"items"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}
