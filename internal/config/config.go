package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hnrobert/glsync/internal/logger"
)

const (
	// TokenEnv is consulted when gitlab.api_token is not set in the file,
	// so the token can stay out of on-disk configuration.
	TokenEnv = "GLSYNC_API_TOKEN"

	DefaultPath        = "/etc/glsync/config.yaml"
	defaultTimeout     = 30 * time.Second
	defaultHomeDirPath = "/home"
	defaultShell       = "/bin/bash"
	defaultSudoersLine = "ALL=(ALL) NOPASSWD: ALL"
)

type Config struct {
	GitLab          GitLab         `yaml:"gitlab"`
	Groups          []GroupMapping `yaml:"groups"`
	SudoersFile     string         `yaml:"sudoers_file"`
	HomeDirPath     string         `yaml:"home_dir_path"`
	DefaultShell    string         `yaml:"default_shell"`
	DefaultPassword string         `yaml:"default_password"`
	Logging         Logging        `yaml:"logging"`
}

type GitLab struct {
	APIAddress string   `yaml:"api_address"`
	APIToken   string   `yaml:"api_token"`
	Timeout    Duration `yaml:"timeout"`
}

// GroupMapping binds one GitLab group to local account attributes. The
// groups list is ordered: the first mapping that claims a username wins
// it outright, so more privileged groups belong earlier in the file.
type GroupMapping struct {
	GitLabGroup string   `yaml:"gitlab_group"`
	LinuxGroup  string   `yaml:"linux_group"`
	SudoersLine string   `yaml:"sudoers_line"`
	OtherGroups []string `yaml:"other_groups"`
}

type Logging struct {
	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`
}

// Duration decodes YAML strings like "30s" or "1m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed <= 0 {
		return fmt.Errorf("invalid duration %q: must be positive", s)
	}
	*d = Duration(parsed)
	return nil
}

// Load reads, defaults and validates the config file. Unknown keys are
// rejected so typos do not silently drop mappings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.GitLab.APIToken == "" {
		c.GitLab.APIToken = os.Getenv(TokenEnv)
	}
	if c.GitLab.Timeout == 0 {
		c.GitLab.Timeout = Duration(defaultTimeout)
	}
	if c.HomeDirPath == "" {
		c.HomeDirPath = defaultHomeDirPath
	}
	if c.DefaultShell == "" {
		c.DefaultShell = defaultShell
	}
	for i := range c.Groups {
		c.Groups[i].SudoersLine = sanitizeSudoersLine(c.Groups[i].SudoersLine)
		if c.Groups[i].SudoersLine == "" {
			c.Groups[i].SudoersLine = defaultSudoersLine
		}
	}
}

var spaceRun = regexp.MustCompile(`\s+`)

// sanitizeSudoersLine collapses whitespace runs so multi-line YAML
// strings render as a single sudoers line.
func sanitizeSudoersLine(line string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
}

func (c *Config) validate() error {
	if c.GitLab.APIAddress == "" {
		return fmt.Errorf("gitlab.api_address is required")
	}
	if c.GitLab.APIToken == "" {
		return fmt.Errorf("gitlab.api_token is not set and %s is empty", TokenEnv)
	}
	if len(c.Groups) == 0 {
		return fmt.Errorf("at least one group mapping is required")
	}
	for i, g := range c.Groups {
		if g.GitLabGroup == "" {
			return fmt.Errorf("groups[%d]: gitlab_group is required", i)
		}
		if g.LinuxGroup == "" {
			return fmt.Errorf("groups[%d] (%s): linux_group is required", i, g.GitLabGroup)
		}
		if !ValidName(g.LinuxGroup) {
			return fmt.Errorf("groups[%d] (%s): invalid linux_group %q", i, g.GitLabGroup, g.LinuxGroup)
		}
		for _, og := range g.OtherGroups {
			if !ValidName(og) {
				return fmt.Errorf("groups[%d] (%s): invalid other_groups entry %q", i, g.GitLabGroup, og)
			}
		}
	}
	if c.SudoersFile == "" {
		return fmt.Errorf("sudoers_file is required")
	}
	if !filepath.IsAbs(c.SudoersFile) {
		return fmt.Errorf("sudoers_file must be an absolute path")
	}
	if !filepath.IsAbs(c.HomeDirPath) {
		return fmt.Errorf("home_dir_path must be an absolute path")
	}
	if !filepath.IsAbs(c.DefaultShell) {
		return fmt.Errorf("default_shell must be an absolute path")
	}
	if _, err := logger.ParseLevel(c.Logging.LogLevel); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

var nameRe = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// ValidName reports whether s is acceptable as a local group name:
// lowercase letters/digits/underscore/dash, starting with a letter or
// underscore.
func ValidName(s string) bool {
	return nameRe.MatchString(s)
}
