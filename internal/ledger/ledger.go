// Package ledger resolves remote group memberships into the set of
// local accounts a run will apply. Resolution is a pure function of
// (ordered mappings, remote snapshot); nothing here touches the host.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/hnrobert/glsync/internal/config"
	"github.com/hnrobert/glsync/internal/gitlab"
	"github.com/hnrobert/glsync/internal/logger"
)

// MemberLister is the identity source a resolution queries, one call
// per configured GitLab group.
type MemberLister interface {
	ListActiveMembers(ctx context.Context, group string) ([]gitlab.RemoteMember, error)
}

// Normalize maps a remote login to a local username. Logins may
// contain dots; local usernames must not.
func Normalize(login string) string {
	return strings.ReplaceAll(login, ".", "_")
}

// Account is the authoritative record for one local account: the
// winning mapping's attributes plus the member's keys. Built fresh
// each run, never persisted.
type Account struct {
	Username string
	Login    string
	State    gitlab.State
	Mapping  config.GroupMapping
	SSHKeys  []string
}

// Ledger holds resolved accounts in insertion order, which is
// precedence order. No two accounts share a username.
type Ledger struct {
	accounts map[string]Account
	order    []string
}

func newLedger() *Ledger {
	return &Ledger{accounts: make(map[string]Account)}
}

func (l *Ledger) insert(a Account) bool {
	if _, ok := l.accounts[a.Username]; ok {
		return false
	}
	l.accounts[a.Username] = a
	l.order = append(l.order, a.Username)
	return true
}

func (l *Ledger) Len() int { return len(l.order) }

func (l *Ledger) Get(username string) (Account, bool) {
	a, ok := l.accounts[username]
	return a, ok
}

// Accounts returns the resolved accounts in insertion order.
func (l *Ledger) Accounts() []Account {
	out := make([]Account, 0, len(l.order))
	for _, u := range l.order {
		out = append(out, l.accounts[u])
	}
	return out
}

// Resolve queries src for every mapping in order and merges the
// results. The first mapping to claim a username wins entirely;
// attributes are never merged across mappings. Only members whose
// state is active are considered. Any listing failure aborts the
// whole resolution so a partial ledger can never be applied.
func Resolve(ctx context.Context, src MemberLister, mappings []config.GroupMapping) (*Ledger, error) {
	l := newLedger()
	for _, m := range mappings {
		members, err := src.ListActiveMembers(ctx, m.GitLabGroup)
		if err != nil {
			return nil, fmt.Errorf("list members of %q: %w", m.GitLabGroup, err)
		}
		for _, member := range members {
			if member.State != gitlab.StateActive {
				continue
			}
			a := Account{
				Username: Normalize(member.Login),
				Login:    member.Login,
				State:    member.State,
				Mapping:  m,
				SSHKeys:  member.SSHKeys,
			}
			if l.insert(a) {
				continue
			}
			if prev, _ := l.Get(a.Username); prev.Login != a.Login {
				logger.Warn("login %s (group %s) collides with %s on username %s, skipping",
					a.Login, m.GitLabGroup, prev.Login, a.Username)
			}
		}
	}
	return l, nil
}
