// Package storage defines the vault file-system abstraction and the path
// guard that confines every operation to the vault root.
package storage

// Provider is the interface for vault file operations.
// All paths are relative to the vault root and pass through SafePath.
type Provider interface {
	// Root returns the absolute vault root.
	Root() string
	// SafePath resolves rel against the root, failing with
	// apperr.ErrOutsideVault when the result escapes it.
	SafePath(rel string) (string, error)
	// Exists reports whether anything (file or directory) is at rel.
	Exists(rel string) (bool, error)
	// ReadDir returns the names of the direct entries of the directory at rel.
	ReadDir(rel string) ([]string, error)
	// Read returns the raw bytes of the file at rel.
	Read(rel string) ([]byte, error)
	// Write atomically replaces the content of rel, creating parents.
	Write(rel string, content []byte) error
	// Create writes a new file at rel, failing with apperr.ErrAlreadyExists
	// if anything is already there.
	Create(rel string, content []byte) error
	// Append adds content to the end of the existing file at rel.
	Append(rel string, content []byte) error
	// Move renames oldRel to newRel without ever replacing newRel.
	Move(oldRel, newRel string) error
}
