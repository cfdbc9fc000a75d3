package passwd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrGroupNotFound = errors.New("group not found")
)

// Entry is one /etc/passwd line.
type Entry struct {
	Name  string
	UID   int
	GID   int
	Gecos string
	Home  string
	Shell string
}

// Group is one /etc/group line. Members lists supplementary members
// only; users whose primary GID matches do not appear here.
type Group struct {
	Name    string
	GID     int
	Members []string
}

// DB reads the host account database. Every lookup re-reads the files,
// so state written by useradd/groupadd between calls is visible.
type DB struct {
	PasswdPath string
	GroupPath  string
}

func NewDB() *DB {
	return &DB{PasswdPath: "/etc/passwd", GroupPath: "/etc/group"}
}

func (db *DB) LookupUser(name string) (Entry, error) {
	entries, err := db.loadPasswd()
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrUserNotFound, name)
}

func (db *DB) UserExists(name string) (bool, error) {
	_, err := db.LookupUser(name)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (db *DB) LookupGroup(name string) (Group, error) {
	groups, err := db.loadGroup()
	if err != nil {
		return Group{}, err
	}
	for _, g := range groups {
		if g.Name == name {
			return g, nil
		}
	}
	return Group{}, fmt.Errorf("%w: %s", ErrGroupNotFound, name)
}

func (db *DB) GroupExists(name string) (bool, error) {
	_, err := db.LookupGroup(name)
	if errors.Is(err, ErrGroupNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UserInGroup reports whether user belongs to group, either through the
// group's member list or through the user's primary GID.
func (db *DB) UserInGroup(user, group string) (bool, error) {
	g, err := db.LookupGroup(group)
	if err != nil {
		return false, err
	}
	for _, m := range g.Members {
		if m == user {
			return true, nil
		}
	}
	u, err := db.LookupUser(user)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.GID == g.GID, nil
}

func (db *DB) loadPasswd() ([]Entry, error) {
	lines, err := readLines(db.PasswdPath)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, line := range lines {
		parts, ok := splitEntryLine(line, 7)
		if !ok {
			continue
		}
		uid, err := atoi(parts[2], "passwd.uid")
		if err != nil {
			return nil, err
		}
		gid, err := atoi(parts[3], "passwd.gid")
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Name:  parts[0],
			UID:   uid,
			GID:   gid,
			Gecos: parts[4],
			Home:  parts[5],
			Shell: parts[6],
		})
	}
	return entries, nil
}

func (db *DB) loadGroup() ([]Group, error) {
	lines, err := readLines(db.GroupPath)
	if err != nil {
		return nil, err
	}
	var groups []Group
	for _, line := range lines {
		parts, ok := splitEntryLine(line, 4)
		if !ok {
			continue
		}
		gid, err := atoi(parts[2], "group.gid")
		if err != nil {
			return nil, err
		}
		var members []string
		if parts[3] != "" {
			members = strings.Split(parts[3], ",")
		}
		groups = append(groups, Group{Name: parts[0], GID: gid, Members: members})
	}
	return groups, nil
}

// splitEntryLine splits a colon-separated line, keeping trailing empty
// fields. Comments and lines with too few fields are skipped rather
// than treated as corruption.
func splitEntryLine(line string, want int) ([]string, bool) {
	trim := strings.TrimSpace(line)
	if trim == "" || strings.HasPrefix(trim, "#") {
		return nil, false
	}
	parts := strings.Split(line, ":")
	if len(parts) < want {
		return nil, false
	}
	return parts, true
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 1024*1024)
	var lines []string
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func atoi(field, ctx string) (int, error) {
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("invalid int %q in %s: %w", field, ctx, err)
	}
	return n, nil
}
