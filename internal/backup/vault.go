package backup

import (
	"context"
	"io"
)

// Vault stores snapshot documents. Keys are the payloadRef values kept in the catalog.
// All operations stream through io.Reader/io.Writer.
type Vault interface {
	// PutPayload stores size bytes read from r under key.
	PutPayload(ctx context.Context, key string, r io.Reader, size int64) error

	// GetPayload writes the payload stored under key to w.
	GetPayload(ctx context.Context, key string, w io.Writer) error

	// DeletePayload removes the payload. Deleting a missing key is not an error.
	DeletePayload(ctx context.Context, key string) error

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
