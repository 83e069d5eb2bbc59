// Package directory wraps the Google Workspace Admin SDK group membership API.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	OWNER   = "OWNER"
	MANAGER = "MANAGER"
	MEMBER  = "MEMBER"
)

// Scopes required by the membership calls.
var Scopes = []string{
	admin.AdminDirectoryGroupMemberScope,
}

var ErrExists = errors.New("member already exists")
var ErrNotFound = errors.New("member not found")

type Member struct {
	Email  string
	Role   string
	Type   string
	Status string
}

type Directory interface {
	Members(ctx context.Context, group string) ([]Member, error)
	Insert(ctx context.Context, group string, member Member) error
	Update(ctx context.Context, group string, member Member) error
	Delete(ctx context.Context, group string, email string) error
}

// Google implements Directory over the Admin SDK 'members' resource.
type Google struct {
	service  *admin.Service
	pageSize int64
}

func NewGoogle(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*Google, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)

	service, err := admin.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Admin SDK client (%w)", err)
	}

	return &Google{
		service:  service,
		pageSize: 200,
	}, nil
}

func (g *Google) Members(ctx context.Context, group string) ([]Member, error) {
	members := []Member{}
	page := ""

	for {
		call := g.service.Members.List(group).MaxResults(g.pageSize).Context(ctx)
		if page != "" {
			call.PageToken(page)
		}

		response, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list members of %v (%w)", group, translate(err))
		}

		for _, m := range response.Members {
			members = append(members, Member{
				Email:  normalise(m.Email),
				Role:   m.Role,
				Type:   m.Type,
				Status: m.Status,
			})
		}

		if page = response.NextPageToken; page == "" {
			break
		}
	}

	return members, nil
}

func (g *Google) Insert(ctx context.Context, group string, member Member) error {
	m := admin.Member{
		Email: member.Email,
		Role:  member.Role,
	}

	if _, err := g.service.Members.Insert(group, &m).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to add %v to %v (%w)", member.Email, group, translate(err))
	}

	return nil
}

func (g *Google) Update(ctx context.Context, group string, member Member) error {
	m := admin.Member{
		Role: member.Role,
	}

	if _, err := g.service.Members.Patch(group, member.Email, &m).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update %v in %v (%w)", member.Email, group, translate(err))
	}

	return nil
}

func (g *Google) Delete(ctx context.Context, group string, email string) error {
	if err := g.service.Members.Delete(group, email).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to remove %v from %v (%w)", email, group, translate(err))
	}

	return nil
}

// translate maps the API 'already exists' and 'not found' responses to ErrExists and ErrNotFound.
func translate(err error) error {
	var e *googleapi.Error
	if errors.As(err, &e) {
		switch e.Code {
		case http.StatusConflict:
			return fmt.Errorf("%w: %v", ErrExists, e.Message)

		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, e.Message)
		}
	}

	return err
}

func normalise(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
