package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	maxBodyBytes = 8 << 20

	// The API caps listings at 20 per page unless asked for more.
	perPage = 100
)

type State string

const (
	StateActive   State = "active"
	StateInactive State = "inactive"
	StateUnknown  State = "unknown"
)

func parseState(s string) State {
	switch s {
	case "active":
		return StateActive
	case "blocked", "deactivated", "banned", "ldap_blocked":
		return StateInactive
	default:
		return StateUnknown
	}
}

// RemoteMember is one member of a GitLab group, as reported by a
// single run's snapshot. SSHKeys preserves the API's key order.
type RemoteMember struct {
	ID          int
	Login       string
	DisplayName string
	State       State
	SSHKeys     []string
}

type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient builds a client for apiAddress, e.g.
// "https://gitlab.example.com/api/v4". The timeout bounds every
// request including body read.
func NewClient(apiAddress, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(apiAddress, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// ListActiveMembers fetches the members of group, drops everyone whose
// state is not active, and attaches each remaining member's public SSH
// keys. Any request failure aborts the whole listing.
func (c *Client) ListActiveMembers(ctx context.Context, group string) ([]RemoteMember, error) {
	members, err := c.GroupMembers(ctx, group)
	if err != nil {
		return nil, err
	}
	out := make([]RemoteMember, 0, len(members))
	for _, m := range members {
		if m.State != StateActive {
			continue
		}
		keys, err := c.UserKeys(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		m.SSHKeys = keys
		out = append(out, m)
	}
	return out, nil
}

// GroupMembers returns all members of group regardless of state,
// without keys. Subgroup paths like "parent/child" are escaped into a
// single path segment. Listings are paginated; pages are fetched
// until a short one.
func (c *Client) GroupMembers(ctx context.Context, group string) ([]RemoteMember, error) {
	var members []RemoteMember
	for page := 1; ; page++ {
		var raw []struct {
			ID       int    `json:"id"`
			Username string `json:"username"`
			Name     string `json:"name"`
			State    string `json:"state"`
		}
		path := fmt.Sprintf("%s/groups/%s/members?per_page=%d&page=%d",
			c.baseURL, url.PathEscape(group), perPage, page)
		if err := c.getJSON(ctx, path, &raw); err != nil {
			return nil, err
		}
		for _, m := range raw {
			members = append(members, RemoteMember{
				ID:          m.ID,
				Login:       m.Username,
				DisplayName: m.Name,
				State:       parseState(m.State),
			})
		}
		if len(raw) < perPage {
			return members, nil
		}
	}
}

// UserKeys returns the public SSH keys of the user with the given ID,
// in API order.
func (c *Client) UserKeys(ctx context.Context, userID int) ([]string, error) {
	var keys []string
	for page := 1; ; page++ {
		var raw []struct {
			Key string `json:"key"`
		}
		path := fmt.Sprintf("%s/users/%d/keys?per_page=%d&page=%d", c.baseURL, userID, perPage, page)
		if err := c.getJSON(ctx, path, &raw); err != nil {
			return nil, err
		}
		for _, k := range raw {
			keys = append(keys, k.Key)
		}
		if len(raw) < perPage {
			return keys, nil
		}
	}
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &ConnectError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &ConnectError{URL: rawURL, Err: err}
	}
	return decodeBody(body, out)
}

// decodeBody classifies a response by its body shape, the way the API
// actually behaves: a JSON list is the result, a JSON object is one of
// the known error envelopes, anything else is unexpected.
func decodeBody(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, out); err != nil {
			return &UnexpectedError{Body: snippet(trimmed)}
		}
		return nil
	}

	var envelope struct {
		Error            string          `json:"error"`
		ErrorDescription string          `json:"error_description"`
		Message          json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err == nil {
		if envelope.Error != "" {
			desc := envelope.ErrorDescription
			if desc == "" {
				desc = envelope.Error
			}
			return &TokenError{Description: desc}
		}
		if len(envelope.Message) > 0 {
			return &RequestError{Message: messageText(envelope.Message)}
		}
	}
	return &UnexpectedError{Body: snippet(trimmed)}
}

func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func snippet(body []byte) string {
	const max = 200
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
