// Package credential defines the interfaces through which the ingestion
// core obtains scraping credentials. Storage and encryption live outside
// this module; the orchestrator only ever sees the decrypted map for the
// duration of a job.
package credential

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("credentials not found")

// Credentials is the decrypted key-value material handed to the scraping
// capability (username, password, card ids and the like; keys vary per
// institution).
type Credentials map[string]string

// Encrypted is a stored credential blob. Alias ties it to an account.
type Encrypted struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Alias      string
	Ciphertext []byte
	CreatedAt  time.Time
}

type Store interface {
	FindByUserAndAlias(ctx context.Context, userID uuid.UUID, alias string) (*Encrypted, error)
}

type Cipher interface {
	Decrypt(enc *Encrypted) (Credentials, error)
}
