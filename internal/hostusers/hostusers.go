// Package hostusers mutates the host account database through the
// shadow-utils tools (groupadd, useradd, usermod, chpasswd).
package hostusers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Account names reaching exec must never start with '-' or contain
// separators, whatever the remote side sent.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_.][a-zA-Z0-9_.-]{0,31}$`)

func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Where the shadow-utils and visudo binaries live. Cron invokes with
// PATH=/usr/bin:/bin, which misses the sbin pair.
var systemToolDirs = []string{"/bin", "/sbin", "/usr/bin", "/usr/sbin"}

// EnsureSystemPath prepends any missing systemToolDirs entry to the
// process PATH. Command names are resolved through the process
// environment, and exec'd tools inherit it.
func EnsureSystemPath() {
	os.Setenv("PATH", prependSystemPath(os.Getenv("PATH")))
}

func prependSystemPath(path string) string {
	present := make(map[string]bool)
	for _, d := range filepath.SplitList(path) {
		present[d] = true
	}
	missing := make([]string, 0, len(systemToolDirs))
	for _, d := range systemToolDirs {
		if !present[d] {
			missing = append(missing, d)
		}
	}
	if len(missing) == 0 {
		return path
	}
	joined := strings.Join(missing, string(os.PathListSeparator))
	if path == "" {
		return joined
	}
	return joined + string(os.PathListSeparator) + path
}

type Runner struct {
	Timeout time.Duration

	// exec is replaced in tests to capture invocations.
	exec func(ctx context.Context, stdin []byte, name string, args ...string) error
}

func New() *Runner {
	r := &Runner{Timeout: 10 * time.Second}
	r.exec = r.runCmd
	return r
}

func (r *Runner) runCmd(ctx context.Context, stdin []byte, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		s := strings.TrimSpace(stderr.String())
		if s == "" {
			return fmt.Errorf("%s %v: %w", name, args, err)
		}
		return fmt.Errorf("%s %v: %s", name, args, s)
	}
	return nil
}

func (r *Runner) run(ctx context.Context, stdin []byte, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	return r.exec(ctx, stdin, name, args...)
}

func (r *Runner) AddGroup(ctx context.Context, group string) error {
	if !ValidName(group) {
		return fmt.Errorf("invalid group name %q", group)
	}
	return r.run(ctx, nil, "groupadd", group)
}

// AddUser creates username with its home under homeBase, the given
// login shell and primary group, plus any supplementary groups. All
// groups must already exist.
func (r *Runner) AddUser(ctx context.Context, username, homeBase, shell, primaryGroup string, otherGroups []string) error {
	if !ValidName(username) {
		return fmt.Errorf("invalid username %q", username)
	}
	if !ValidName(primaryGroup) {
		return fmt.Errorf("invalid group name %q", primaryGroup)
	}
	for _, g := range otherGroups {
		if !ValidName(g) {
			return fmt.Errorf("invalid group name %q", g)
		}
	}
	args := []string{"-b", homeBase, "-s", shell, "-m", "-g", primaryGroup}
	if len(otherGroups) > 0 {
		args = append(args, "-G", strings.Join(otherGroups, ","))
	}
	args = append(args, username)
	return r.run(ctx, nil, "useradd", args...)
}

// AppendToGroup adds username to group without touching its other
// memberships.
func (r *Runner) AppendToGroup(ctx context.Context, username, group string) error {
	if !ValidName(username) {
		return fmt.Errorf("invalid username %q", username)
	}
	if !ValidName(group) {
		return fmt.Errorf("invalid group name %q", group)
	}
	return r.run(ctx, nil, "usermod", "-a", "-G", group, username)
}

// SetPasswordHash sets a pre-hashed password. chpasswd -e reads
// "user:hash" lines from stdin, so the hash never appears in argv.
func (r *Runner) SetPasswordHash(ctx context.Context, username, hash string) error {
	if !ValidName(username) {
		return fmt.Errorf("invalid username %q", username)
	}
	line := fmt.Sprintf("%s:%s\n", username, hash)
	return r.run(ctx, []byte(line), "chpasswd", "-e")
}
