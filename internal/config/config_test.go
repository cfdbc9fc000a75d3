package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const fullConfig = `
gitlab:
  api_address: https://gitlab.example.com/api/v4
  api_token: glpat-secret
  timeout: 10s
groups:
  - gitlab_group: platform-admins
    linux_group: platform_admins
    sudoers_line: "ALL=(ALL) NOPASSWD: ALL"
    other_groups: [docker, adm]
  - gitlab_group: open-source
    linux_group: open_source
sudoers_file: /etc/sudoers.d/glsync
home_dir_path: /home
default_shell: /bin/bash
logging:
  log_level: debug
  log_path: /var/log/glsync.log
`

func TestLoad_Full(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://gitlab.example.com/api/v4", cfg.GitLab.APIAddress)
	assert.Equal(t, "glpat-secret", cfg.GitLab.APIToken)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.GitLab.Timeout))

	require.Len(t, cfg.Groups, 2)
	assert.Equal(t, "platform-admins", cfg.Groups[0].GitLabGroup)
	assert.Equal(t, "platform_admins", cfg.Groups[0].LinuxGroup)
	assert.Equal(t, []string{"docker", "adm"}, cfg.Groups[0].OtherGroups)
	assert.Equal(t, "open-source", cfg.Groups[1].GitLabGroup)

	assert.Equal(t, "/etc/sudoers.d/glsync", cfg.SudoersFile)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
}

func TestLoad_OrderPreserved(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
gitlab:
  api_address: https://gitlab.example.com/api/v4
  api_token: t
groups:
  - {gitlab_group: g3, linux_group: g_three}
  - {gitlab_group: g1, linux_group: g_one}
  - {gitlab_group: g2, linux_group: g_two}
sudoers_file: /etc/sudoers.d/glsync
`))
	require.NoError(t, err)
	require.Len(t, cfg.Groups, 3)
	assert.Equal(t, "g3", cfg.Groups[0].GitLabGroup)
	assert.Equal(t, "g1", cfg.Groups[1].GitLabGroup)
	assert.Equal(t, "g2", cfg.Groups[2].GitLabGroup)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
gitlab:
  api_address: https://gitlab.example.com/api/v4
  api_token: t
groups:
  - gitlab_group: devs
    linux_group: devs
sudoers_file: /etc/sudoers.d/glsync
`))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, time.Duration(cfg.GitLab.Timeout))
	assert.Equal(t, "/home", cfg.HomeDirPath)
	assert.Equal(t, "/bin/bash", cfg.DefaultShell)
	assert.Equal(t, "ALL=(ALL) NOPASSWD: ALL", cfg.Groups[0].SudoersLine)
	assert.Empty(t, cfg.DefaultPassword)
	assert.Equal(t, "", cfg.Logging.LogPath)
}

func TestLoad_SudoersLineCollapsed(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
gitlab:
  api_address: https://gitlab.example.com/api/v4
  api_token: t
groups:
  - gitlab_group: devs
    linux_group: devs
    sudoers_line: "ALL=(ALL)    NOPASSWD:
      /usr/bin/systemctl"
sudoers_file: /etc/sudoers.d/glsync
`))
	require.NoError(t, err)
	assert.Equal(t, "ALL=(ALL) NOPASSWD: /usr/bin/systemctl", cfg.Groups[0].SudoersLine)
}

func TestLoad_SudoersLineWhitespaceOnlyGetsDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
gitlab:
  api_address: https://gitlab.example.com/api/v4
  api_token: t
groups:
  - gitlab_group: devs
    linux_group: devs
    sudoers_line: "   "
sudoers_file: /etc/sudoers.d/glsync
`))
	require.NoError(t, err)
	assert.Equal(t, "ALL=(ALL) NOPASSWD: ALL", cfg.Groups[0].SudoersLine)
}

func TestLoad_TokenFromEnv(t *testing.T) {
	t.Setenv(TokenEnv, "env-token")
	cfg, err := Load(writeConfig(t, `
gitlab:
  api_address: https://gitlab.example.com/api/v4
groups:
  - gitlab_group: devs
    linux_group: devs
sudoers_file: /etc/sudoers.d/glsync
`))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.GitLab.APIToken)
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv(TokenEnv, "")
	_, err := Load(writeConfig(t, `
gitlab:
  api_address: https://gitlab.example.com/api/v4
groups:
  - gitlab_group: devs
    linux_group: devs
sudoers_file: /etc/sudoers.d/glsync
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), TokenEnv)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		errPart string
	}{
		{
			"unknown field",
			`
gitlab: {api_address: "https://x/api/v4", api_token: t}
groups: [{gitlab_group: g, linux_group: g}]
sudoers_file: /etc/sudoers.d/glsync
surprise: true
`,
			"surprise",
		},
		{
			"missing api_address",
			`
gitlab: {api_token: t}
groups: [{gitlab_group: g, linux_group: g}]
sudoers_file: /etc/sudoers.d/glsync
`,
			"api_address",
		},
		{
			"no groups",
			`
gitlab: {api_address: "https://x/api/v4", api_token: t}
groups: []
sudoers_file: /etc/sudoers.d/glsync
`,
			"group mapping",
		},
		{
			"missing linux_group",
			`
gitlab: {api_address: "https://x/api/v4", api_token: t}
groups: [{gitlab_group: g}]
sudoers_file: /etc/sudoers.d/glsync
`,
			"linux_group",
		},
		{
			"invalid linux_group",
			`
gitlab: {api_address: "https://x/api/v4", api_token: t}
groups: [{gitlab_group: g, linux_group: "Bad Group"}]
sudoers_file: /etc/sudoers.d/glsync
`,
			"invalid linux_group",
		},
		{
			"invalid other_groups entry",
			`
gitlab: {api_address: "https://x/api/v4", api_token: t}
groups: [{gitlab_group: g, linux_group: g, other_groups: ["-adm"]}]
sudoers_file: /etc/sudoers.d/glsync
`,
			"other_groups",
		},
		{
			"missing sudoers_file",
			`
gitlab: {api_address: "https://x/api/v4", api_token: t}
groups: [{gitlab_group: g, linux_group: g}]
`,
			"sudoers_file",
		},
		{
			"relative sudoers_file",
			`
gitlab: {api_address: "https://x/api/v4", api_token: t}
groups: [{gitlab_group: g, linux_group: g}]
sudoers_file: sudoers.d/glsync
`,
			"absolute",
		},
		{
			"bad timeout",
			`
gitlab: {api_address: "https://x/api/v4", api_token: t, timeout: soon}
groups: [{gitlab_group: g, linux_group: g}]
sudoers_file: /etc/sudoers.d/glsync
`,
			"duration",
		},
		{
			"negative timeout",
			`
gitlab: {api_address: "https://x/api/v4", api_token: t, timeout: -5s}
groups: [{gitlab_group: g, linux_group: g}]
sudoers_file: /etc/sudoers.d/glsync
`,
			"positive",
		},
		{
			"bad log level",
			`
gitlab: {api_address: "https://x/api/v4", api_token: t}
groups: [{gitlab_group: g, linux_group: g}]
sudoers_file: /etc/sudoers.d/glsync
logging: {log_level: loud}
`,
			"log level",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(TokenEnv, "")
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("open_source"))
	assert.True(t, ValidName("_svc"))
	assert.True(t, ValidName("dev-ops"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName("Admins"))
	assert.False(t, ValidName("-adm"))
	assert.False(t, ValidName("a b"))
}
