package addrbook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/addrbook-dev/addrbook-go/internal/transport"
)

const (
	addressBookPath = "/address_book"
	avatarPathFmt   = "/api/address_book/%d/avatar"
)

// addressBookService implements the AddressBookService interface
type addressBookService struct {
	client *Client
}

// List retrieves a page of contacts
func (s *addressBookService) List(ctx context.Context, params *ListParams) (*EntryList, error) {
	query := url.Values{}
	if params != nil {
		if params.Page > 0 {
			query.Set("page", strconv.Itoa(params.Page))
		}
		if params.PageSize > 0 {
			query.Set("page_size", strconv.Itoa(params.PageSize))
		}
		if params.Search != "" {
			query.Set("search", params.Search)
		}
	}

	var list EntryList
	err := s.client.do(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   addressBookPath,
		Query:  query,
	}, &list)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// Get retrieves a single contact by ID
func (s *addressBookService) Get(ctx context.Context, id int) (*Entry, error) {
	var entry Entry
	err := s.client.do(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("%s/%d", addressBookPath, id),
	}, &entry)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create creates a new contact
func (s *addressBookService) Create(ctx context.Context, params *EntryParams) (*Entry, error) {
	var entry Entry
	err := s.client.do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   addressBookPath,
		Body:   params,
	}, &entry)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Update updates an existing contact
func (s *addressBookService) Update(ctx context.Context, id int, params *EntryParams) (*Entry, error) {
	var entry Entry
	err := s.client.do(ctx, &transport.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("%s/%d", addressBookPath, id),
		Body:   params,
	}, &entry)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete deletes a contact
func (s *addressBookService) Delete(ctx context.Context, id int) error {
	return s.client.do(ctx, &transport.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("%s/%d", addressBookPath, id),
	}, nil)
}

// UploadAvatar uploads a contact avatar as multipart form data. The
// pipeline switches the content type to multipart for this request.
func (s *addressBookService) UploadAvatar(ctx context.Context, id int, filename string, avatar io.Reader) (*Entry, error) {
	var entry Entry
	err := s.client.do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf(avatarPathFmt, id),
		Multipart: &transport.MultipartPayload{
			Field:    "avatar",
			Filename: filename,
			Reader:   avatar,
		},
	}, &entry)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
