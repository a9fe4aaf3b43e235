// Package users implements the User side of the data model in spec
// section 3: identity (id, name), created on first login for a given
// name (lookup by case-folded name), immutable thereafter. Spec section 3
// explicitly allows "the callback process or its external user
// repository" to own this data; we supplement the distillation with a
// real Postgres-backed repository (internal/db's shape in the teacher
// repo) in addition to an in-memory one for tests and for deployments
// that don't need persistence across restarts.
package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// User is the identity record from spec section 3.
type User struct {
	ID   string
	Name string
}

// ErrNotFound is returned by GetByID when no user has that id.
var ErrNotFound = errors.New("users: not found")

// Store is the repository interface both the Postgres-backed and the
// in-memory implementations satisfy. Proxy callbacks and token issuance
// depend on this, never on a concrete implementation.
type Store interface {
	// GetOrCreateByName upserts a user by case-folded name: returns the
	// existing record if one exists, otherwise creates a fresh one. Used
	// by /auth/login (spec section 4.E), which is given a name only.
	GetOrCreateByName(ctx context.Context, name string) (User, error)
	// GetOrCreateByID upserts a user keyed by the caller-supplied id:
	// returns the existing record if id is already known, otherwise
	// creates one with exactly that id and name. Used by Connect (spec
	// section 4.C), which is given both id and name and must honor the
	// id literally -- the same client-supplied userId a subsequent
	// publish/subscribe call will reference.
	GetOrCreateByID(ctx context.Context, id, name string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	Close() error
}

// FoldName produces the case-folded lookup key for a display name (spec
// section 3: "lookup by case-folded name").
func FoldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func newID() string {
	return uuid.New().String()
}
