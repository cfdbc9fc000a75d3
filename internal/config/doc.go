package config

// Package config loads and validates the glsync configuration file.
//
// The file is YAML; unknown keys are rejected. A complete example:
//
//	gitlab:
//	  api_address: https://gitlab.example.com/api/v4
//	  api_token: glpat-...          # or set GLSYNC_API_TOKEN
//	  timeout: 30s
//	groups:                         # ordered, first match per user wins
//	  - gitlab_group: platform-admins
//	    linux_group: platform_admins
//	    sudoers_line: "ALL=(ALL) NOPASSWD: ALL"
//	    other_groups: [docker]
//	  - gitlab_group: developers
//	    linux_group: developers
//	    sudoers_line: "ALL=(ALL) /usr/bin/systemctl restart myapp"
//	sudoers_file: /etc/sudoers.d/glsync
//	home_dir_path: /home
//	default_shell: /bin/bash
//	default_password: ""            # initial password for new accounts
//	logging:
//	  log_level: info               # debug | info | warning
//	  log_path: /var/log/glsync.log
//
// The groups list is a sequence, not a map, so precedence order
// survives parsing.
