package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"projecthub/internal/platform/config"
)

// The directory is the external identity system. It owns user accounts and
// organization membership; this client is read-only.

type Organization struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	LogoURL string `json:"logo_url,omitempty"`
}

type OrgMember struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Status string `json:"status,omitempty"`
}

// OrgMembership is one entry of a user's organization list, org data inlined.
type OrgMembership struct {
	Organization Organization `json:"organization"`
	Role         string       `json:"role"`
	Status       string       `json:"status,omitempty"`
}

type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(cfg config.DirectoryConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.ServiceToken,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	var org Organization
	if err := c.get(ctx, "/v1/orgs/"+url.PathEscape(orgID), &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (c *Client) ListOrganizationMembers(ctx context.Context, orgID string) ([]OrgMember, error) {
	var members []OrgMember
	if err := c.get(ctx, "/v1/orgs/"+url.PathEscape(orgID)+"/members", &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) ListUserOrganizations(ctx context.Context, userID string) ([]OrgMembership, error) {
	var orgs []OrgMembership
	if err := c.get(ctx, "/v1/users/"+url.PathEscape(userID)+"/orgs", &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

func (c *Client) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	var profile UserProfile
	if err := c.get(ctx, "/v1/users/"+url.PathEscape(userID), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory: %s returned HTTP %d", path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
