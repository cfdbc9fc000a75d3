package hostfs

// Package hostfs writes host-global files safely.
//
// The sudoers file and every authorized_keys file are replaced through
// WriteFileAtomic: a crashed or interrupted run can leave the previous
// file or the new file on disk, never a torn mix of both.
