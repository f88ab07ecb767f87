// Package setup handles the local side of korasi's key material.
//
// When korasi creates a cloud key pair, the provider hands back the private
// key exactly once. WriteSecure stores it owner-read-only (0400) so that
// OpenSSH and korasi accept it, replacing any stale copy atomically.
// RemoveKey deletes it again when the key pair is obliterated.
//
// # Security Notes
//
// This package handles cryptographic key material. Key directories are
// created 0700 and the package never logs or displays key contents.
package setup
