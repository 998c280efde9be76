// Package repo is the code repository client used by the modify_code and
// deploy actions. The governance core treats a nil client as "integration not
// configured" and refuses code-touching actions at dispatch time.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound indicates the file does not exist at the given path/branch.
// Callers writing a new file treat this as non-fatal.
var ErrNotFound = errors.New("file not found in repository")

// Client reads and writes files in a hosted source repository.
type Client interface {
	// GetFileRevision returns the opaque revision token for a file, used for
	// optimistic concurrency on the next write. Returns ErrNotFound for a
	// missing file.
	GetFileRevision(ctx context.Context, path, branch string) (string, error)

	// WriteFile creates or overwrites a file under a commit message. A
	// non-empty revision token makes the write conditional on that revision.
	WriteFile(ctx context.Context, path, content, commitMessage, branch, revision string) error
}
