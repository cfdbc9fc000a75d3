package gitlab

// Package gitlab is a minimal read-only client for the GitLab REST
// API: group member listings and per-user public SSH keys.
//
// The server signals failure through response body shape rather than
// status code alone, so responses are classified by shape and mapped
// to typed errors (see errors.go).
