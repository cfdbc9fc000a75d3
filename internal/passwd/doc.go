package passwd

// Package passwd reads the host account database (/etc/passwd and
// /etc/group) for existence checks, UID/GID lookups and group
// membership queries.
//
// The package never writes these files. Account mutation goes through
// the system tools in internal/hostusers so that PAM, nsswitch and
// lock handling stay with the platform.
