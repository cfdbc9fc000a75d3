package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnrobert/glsync/internal/config"
	"github.com/hnrobert/glsync/internal/gitlab"
)

type fakeSource struct {
	groups map[string][]gitlab.RemoteMember
	errs   map[string]error
	calls  []string
}

func (f *fakeSource) ListActiveMembers(ctx context.Context, group string) ([]gitlab.RemoteMember, error) {
	f.calls = append(f.calls, group)
	if err := f.errs[group]; err != nil {
		return nil, err
	}
	return f.groups[group], nil
}

func active(login string, keys ...string) gitlab.RemoteMember {
	return gitlab.RemoteMember{Login: login, State: gitlab.StateActive, SSHKeys: keys}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"john.doe":   "john_doe",
		"jane.s.m":   "jane_s_m",
		"plain":      "plain",
		"under_bar":  "under_bar",
		".":          "_",
		"":           "",
		"mixed.it_1": "mixed_it_1",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestResolveFirstMappingWins(t *testing.T) {
	m0 := config.GroupMapping{GitLabGroup: "platform", LinuxGroup: "platform_admins", SudoersLine: "ALL=(ALL) NOPASSWD: ALL", OtherGroups: []string{"docker"}}
	m1 := config.GroupMapping{GitLabGroup: "devs", LinuxGroup: "developers", SudoersLine: "ALL=(ALL) /usr/bin/less"}
	src := &fakeSource{groups: map[string][]gitlab.RemoteMember{
		"platform": {active("alice", "ssh-ed25519 K1 a")},
		"devs":     {active("alice", "ssh-ed25519 K1 a"), active("bob")},
	}}

	l, err := Resolve(context.Background(), src, []config.GroupMapping{m0, m1})
	require.NoError(t, err)
	require.Equal(t, 2, l.Len())

	a, ok := l.Get("alice")
	require.True(t, ok)
	assert.Equal(t, "platform_admins", a.Mapping.LinuxGroup)
	assert.Equal(t, "ALL=(ALL) NOPASSWD: ALL", a.Mapping.SudoersLine)
	assert.Equal(t, []string{"docker"}, a.Mapping.OtherGroups)

	b, ok := l.Get("bob")
	require.True(t, ok)
	assert.Equal(t, "developers", b.Mapping.LinuxGroup)
}

func TestResolveNormalizedCollision(t *testing.T) {
	m0 := config.GroupMapping{GitLabGroup: "g0", LinuxGroup: "first"}
	m1 := config.GroupMapping{GitLabGroup: "g1", LinuxGroup: "second"}
	src := &fakeSource{groups: map[string][]gitlab.RemoteMember{
		"g0": {active("a.b", "ssh-ed25519 KEYA x")},
		"g1": {active("a_b", "ssh-ed25519 KEYB y")},
	}}

	l, err := Resolve(context.Background(), src, []config.GroupMapping{m0, m1})
	require.NoError(t, err)
	require.Equal(t, 1, l.Len())

	a, ok := l.Get("a_b")
	require.True(t, ok)
	assert.Equal(t, "a.b", a.Login)
	assert.Equal(t, "first", a.Mapping.LinuxGroup)
	assert.Equal(t, []string{"ssh-ed25519 KEYA x"}, a.SSHKeys)
}

func TestResolveCollisionWithinOneGroup(t *testing.T) {
	m0 := config.GroupMapping{GitLabGroup: "g0", LinuxGroup: "g"}
	src := &fakeSource{groups: map[string][]gitlab.RemoteMember{
		"g0": {active("a.b", "KEYA"), active("a_b", "KEYB")},
	}}

	l, err := Resolve(context.Background(), src, []config.GroupMapping{m0})
	require.NoError(t, err)
	require.Equal(t, 1, l.Len())
	a, _ := l.Get("a_b")
	assert.Equal(t, "a.b", a.Login)
}

func TestResolveExcludesNonActive(t *testing.T) {
	m0 := config.GroupMapping{GitLabGroup: "g0", LinuxGroup: "g"}
	src := &fakeSource{groups: map[string][]gitlab.RemoteMember{
		"g0": {
			{Login: "gone", State: gitlab.StateInactive},
			{Login: "odd", State: gitlab.StateUnknown},
			active("here"),
		},
	}}

	l, err := Resolve(context.Background(), src, []config.GroupMapping{m0})
	require.NoError(t, err)
	require.Equal(t, 1, l.Len())
	a, ok := l.Get("here")
	assert.True(t, ok)
	assert.Equal(t, gitlab.StateActive, a.State)
}

func TestResolveOrderFollowsPrecedence(t *testing.T) {
	m0 := config.GroupMapping{GitLabGroup: "g0", LinuxGroup: "a"}
	m1 := config.GroupMapping{GitLabGroup: "g1", LinuxGroup: "b"}
	src := &fakeSource{groups: map[string][]gitlab.RemoteMember{
		"g0": {active("zed"), active("amy")},
		"g1": {active("mia")},
	}}

	l, err := Resolve(context.Background(), src, []config.GroupMapping{m0, m1})
	require.NoError(t, err)

	var names []string
	for _, a := range l.Accounts() {
		names = append(names, a.Username)
	}
	assert.Equal(t, []string{"zed", "amy", "mia"}, names)
	assert.Equal(t, []string{"g0", "g1"}, src.calls)
}

func TestResolveFetchErrorAborts(t *testing.T) {
	m0 := config.GroupMapping{GitLabGroup: "g0", LinuxGroup: "a"}
	m1 := config.GroupMapping{GitLabGroup: "g1", LinuxGroup: "b"}
	src := &fakeSource{
		groups: map[string][]gitlab.RemoteMember{"g0": {active("amy")}},
		errs:   map[string]error{"g1": &gitlab.RequestError{Message: "403 Forbidden"}},
	}

	l, err := Resolve(context.Background(), src, []config.GroupMapping{m0, m1})
	assert.Nil(t, l)
	require.Error(t, err)

	var re *gitlab.RequestError
	assert.True(t, errors.As(err, &re))
	assert.Contains(t, err.Error(), "g1")
}

func TestResolveDeterministic(t *testing.T) {
	m0 := config.GroupMapping{GitLabGroup: "g0", LinuxGroup: "a"}
	src := &fakeSource{groups: map[string][]gitlab.RemoteMember{
		"g0": {active("jane.smith", "K1", "K2"), active("bob")},
	}}

	first, err := Resolve(context.Background(), src, []config.GroupMapping{m0})
	require.NoError(t, err)
	second, err := Resolve(context.Background(), src, []config.GroupMapping{m0})
	require.NoError(t, err)
	assert.Equal(t, first.Accounts(), second.Accounts())
}
