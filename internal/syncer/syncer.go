// Package syncer sequences one reconciliation run: resolve the remote
// snapshot into a ledger, publish sudoers, provision accounts, install
// SSH keys. Resolution failures abort before anything on the host is
// touched; per-account failures are collected and the run continues.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hnrobert/glsync/internal/config"
	"github.com/hnrobert/glsync/internal/gitlab"
	"github.com/hnrobert/glsync/internal/hostfs"
	"github.com/hnrobert/glsync/internal/hostusers"
	"github.com/hnrobert/glsync/internal/ledger"
	"github.com/hnrobert/glsync/internal/logger"
	"github.com/hnrobert/glsync/internal/passwd"
	"github.com/hnrobert/glsync/internal/sshkeys"
	"github.com/hnrobert/glsync/internal/sudoers"
)

type accountRunner interface {
	AddGroup(ctx context.Context, group string) error
	AddUser(ctx context.Context, username, homeBase, shell, primaryGroup string, otherGroups []string) error
	AppendToGroup(ctx context.Context, username, group string) error
	SetPasswordHash(ctx context.Context, username, hash string) error
}

type sudoersInstaller interface {
	Install(path string, content []byte) error
}

type keyInstaller interface {
	Install(a ledger.Account) error
}

type Failure struct {
	Username string
	Err      error
}

// Result summarizes one run. Failures holds the accounts that could
// not be fully applied; the rest of the run proceeded past them.
type Result struct {
	Accounts      int
	CreatedUsers  int
	CreatedGroups int
	Failures      []Failure
}

func (r *Result) Ok() bool { return len(r.Failures) == 0 }

type Syncer struct {
	cfg    *config.Config
	source ledger.MemberLister
	db     *passwd.DB
	users  accountRunner
	sudo   sudoersInstaller
	keys   keyInstaller
	dryRun bool
}

func New(cfg *config.Config, dryRun bool) *Syncer {
	db := passwd.NewDB()
	return &Syncer{
		cfg:    cfg,
		source: gitlab.NewClient(cfg.GitLab.APIAddress, cfg.GitLab.APIToken, time.Duration(cfg.GitLab.Timeout)),
		db:     db,
		users:  hostusers.New(),
		sudo:   sudoers.NewInstaller(),
		keys:   sshkeys.NewInstaller(db),
		dryRun: dryRun,
	}
}

// Run performs one reconciliation. The returned error is fatal for
// the whole run (resolution or sudoers install); everything else is
// reported through Result.Failures.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	logger.Info("resolving %d group mapping(s) against %s", len(s.cfg.Groups), s.cfg.GitLab.APIAddress)
	l, err := ledger.Resolve(ctx, s.source, s.cfg.Groups)
	if err != nil {
		return nil, err
	}
	accounts := l.Accounts()
	logger.Info("resolved %d account(s)", len(accounts))

	content := sudoers.Render(accounts)
	if s.dryRun {
		logger.Info("dry-run: would write %d sudoers line(s) to %s", len(accounts), s.cfg.SudoersFile)
		for _, line := range strings.Split(strings.TrimRight(string(content), "\n"), "\n") {
			if line == "" {
				continue
			}
			logger.Info("dry-run: sudoers: %s", line)
		}
	} else if err := s.sudo.Install(s.cfg.SudoersFile, content); err != nil {
		return nil, fmt.Errorf("install sudoers %s: %w", s.cfg.SudoersFile, err)
	}

	res := &Result{Accounts: len(accounts)}
	ensured := make(map[string]bool)
	var clean []ledger.Account
	for _, a := range accounts {
		created, err := s.provision(ctx, a, ensured, res)
		if err != nil {
			logger.Warn("provisioning %s: %v", a.Username, err)
			res.Failures = append(res.Failures, Failure{Username: a.Username, Err: err})
			continue
		}
		if created {
			res.CreatedUsers++
		}
		clean = append(clean, a)
	}

	for _, a := range clean {
		if s.dryRun {
			logger.Info("dry-run: would install %d ssh key(s) for %s", len(a.SSHKeys), a.Username)
			continue
		}
		if err := s.keys.Install(a); err != nil {
			logger.Warn("installing keys for %s: %v", a.Username, err)
			res.Failures = append(res.Failures, Failure{Username: a.Username, Err: err})
		}
	}

	if len(res.Failures) > 0 {
		names := make([]string, 0, len(res.Failures))
		for _, f := range res.Failures {
			names = append(names, f.Username)
		}
		logger.Warn("%d account(s) not fully applied: %s", len(names), strings.Join(names, ", "))
	}
	logger.Info("sync complete: %d account(s), %d user(s) created, %d group(s) created, %d failure(s)",
		res.Accounts, res.CreatedUsers, res.CreatedGroups, len(res.Failures))
	return res, nil
}

// provision brings one account in line with its winning mapping.
// Existing accounts only ever gain group memberships; nothing is
// removed or reassigned.
func (s *Syncer) provision(ctx context.Context, a ledger.Account, ensured map[string]bool, res *Result) (created bool, err error) {
	groups := append([]string{a.Mapping.LinuxGroup}, a.Mapping.OtherGroups...)
	for _, g := range groups {
		if err := s.ensureGroup(ctx, g, ensured, res); err != nil {
			return false, err
		}
	}

	exists, err := s.db.UserExists(a.Username)
	if err != nil {
		return false, err
	}

	if !exists {
		if s.dryRun {
			logger.Info("dry-run: would create user %s (group %s)", a.Username, a.Mapping.LinuxGroup)
			return true, nil
		}
		logger.Info("creating user %s (group %s)", a.Username, a.Mapping.LinuxGroup)
		if err := s.users.AddUser(ctx, a.Username, s.cfg.HomeDirPath, s.cfg.DefaultShell, a.Mapping.LinuxGroup, a.Mapping.OtherGroups); err != nil {
			return false, err
		}
		if s.cfg.DefaultPassword != "" {
			hash, err := hostusers.HashPassword(s.cfg.DefaultPassword)
			if err != nil {
				return false, fmt.Errorf("hash default password: %w", err)
			}
			if err := s.users.SetPasswordHash(ctx, a.Username, hash); err != nil {
				return false, fmt.Errorf("set initial password for %s: %w", a.Username, err)
			}
		}
		return true, s.ensureHome(a.Username)
	}

	for _, g := range groups {
		in, err := s.db.UserInGroup(a.Username, g)
		if errors.Is(err, passwd.ErrGroupNotFound) && s.dryRun {
			// Group creation was only planned.
			in, err = false, nil
		}
		if err != nil {
			return false, err
		}
		if in {
			continue
		}
		if s.dryRun {
			logger.Info("dry-run: would add %s to group %s", a.Username, g)
			continue
		}
		logger.Info("adding %s to group %s", a.Username, g)
		if err := s.users.AppendToGroup(ctx, a.Username, g); err != nil {
			return false, err
		}
	}
	if s.dryRun {
		return false, nil
	}
	return false, s.ensureHome(a.Username)
}

func (s *Syncer) ensureGroup(ctx context.Context, group string, ensured map[string]bool, res *Result) error {
	if ensured[group] {
		return nil
	}
	exists, err := s.db.GroupExists(group)
	if err != nil {
		return err
	}
	if !exists {
		if s.dryRun {
			logger.Info("dry-run: would create group %s", group)
		} else {
			logger.Info("creating group %s", group)
			if err := s.users.AddGroup(ctx, group); err != nil {
				return fmt.Errorf("create group %s: %w", group, err)
			}
		}
		res.CreatedGroups++
	}
	ensured[group] = true
	return nil
}

// ensureHome recreates a missing home directory. useradd -m owns the
// normal case; this covers homes deleted out from under an account.
func (s *Syncer) ensureHome(username string) error {
	entry, err := s.db.LookupUser(username)
	if err != nil {
		return err
	}
	if entry.Home == "" {
		return fmt.Errorf("user %s has no home directory", username)
	}
	if _, err := os.Stat(entry.Home); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	logger.Warn("recreating missing home %s for %s", entry.Home, username)
	if err := hostfs.EnsureDir(entry.Home, 0o755); err != nil {
		return err
	}
	return os.Chown(entry.Home, entry.UID, entry.GID)
}
