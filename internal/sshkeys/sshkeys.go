// Package sshkeys maintains per-account authorized_keys files from
// the resolved ledger. The file is always replaced in full, so keys
// removed upstream disappear from the host on the next run.
package sshkeys

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/hnrobert/glsync/internal/hostfs"
	"github.com/hnrobert/glsync/internal/ledger"
	"github.com/hnrobert/glsync/internal/logger"
	"github.com/hnrobert/glsync/internal/passwd"
)

type Installer struct {
	db *passwd.DB
}

func NewInstaller(db *passwd.DB) *Installer {
	return &Installer{db: db}
}

// Render produces authorized_keys content for one account, one key
// per line in ledger order. Keys that do not parse as OpenSSH public
// keys are dropped with a warning so one bad upstream key cannot
// break the rest. Zero usable keys renders to zero bytes.
func Render(a ledger.Account) []byte {
	var b bytes.Buffer
	for _, raw := range a.SSHKeys {
		key := strings.TrimSpace(raw)
		if key == "" {
			continue
		}
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
			logger.Warn("skipping invalid ssh key for %s: %v", a.Username, err)
			continue
		}
		b.WriteString(key)
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// Install replaces the account's authorized_keys with the rendered
// ledger content. The account must already exist; its home, UID and
// GID come from the passwd database, and everything written is owned
// by the account.
func (ins *Installer) Install(a ledger.Account) error {
	entry, err := ins.db.LookupUser(a.Username)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", a.Username, err)
	}
	if entry.Home == "" {
		return fmt.Errorf("user %s has no home directory", a.Username)
	}

	sshDir := filepath.Join(entry.Home, ".ssh")
	if err := hostfs.EnsureDir(sshDir, 0o700); err != nil {
		return fmt.Errorf("ensure %s: %w", sshDir, err)
	}
	if err := os.Chown(sshDir, entry.UID, entry.GID); err != nil {
		return fmt.Errorf("chown %s: %w", sshDir, err)
	}

	path := filepath.Join(sshDir, "authorized_keys")
	content := Render(a)
	if err := hostfs.WriteFileAtomicOwned(path, content, 0o644, entry.UID, entry.GID); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logger.Debug("installed %d authorized key(s) for %s", bytes.Count(content, []byte("\n")), a.Username)
	return nil
}
