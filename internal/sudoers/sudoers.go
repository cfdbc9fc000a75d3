// Package sudoers renders the managed sudoers file from resolved
// accounts and replaces it atomically, validating the candidate with
// visudo before it can become live. A malformed sudoers file can lock
// administrators out of the host.
package sudoers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hnrobert/glsync/internal/hostfs"
	"github.com/hnrobert/glsync/internal/ledger"
	"github.com/hnrobert/glsync/internal/logger"
)

const fileMode = 0o440

// Render produces one "<username> <sudoers line>" entry per account in
// ledger order. Same accounts in, same bytes out.
func Render(accounts []ledger.Account) []byte {
	var b bytes.Buffer
	for _, a := range accounts {
		fmt.Fprintf(&b, "%s %s\n", a.Username, a.Mapping.SudoersLine)
	}
	return b.Bytes()
}

type Installer struct {
	// validate checks a candidate file before it may replace the
	// live one. Swapped in tests.
	validate func(path string) error
}

func NewInstaller() *Installer {
	return &Installer{validate: visudoCheck}
}

// Install replaces path with content. The candidate is written to a
// temp file in the target directory and validated there; on any
// failure the previous file stays in place.
func (ins *Installer) Install(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := hostfs.EnsureDir(dir, 0o755); err != nil {
		return fmt.Errorf("ensure %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".glsync-sudoers-*")
	if err != nil {
		return fmt.Errorf("create sudoers candidate: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write sudoers candidate: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close sudoers candidate: %w", err)
	}

	if err := ins.validate(tmpName); err != nil {
		return fmt.Errorf("sudoers validation: %w", err)
	}
	return hostfs.WriteFileAtomic(path, content, fileMode)
}

// visudoCheck runs "visudo -c -f" against the candidate. A host
// without visudo gets the content unvalidated, with a warning, rather
// than no sudo management at all.
func visudoCheck(path string) error {
	visudo, err := exec.LookPath("visudo")
	if err != nil {
		logger.Warn("visudo not found, skipping sudoers validation")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, visudo, "-c", "-f", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return fmt.Errorf("visudo: %s", s)
		}
		return fmt.Errorf("visudo -c -f %s: %w", path, err)
	}
	return nil
}
