package schemas

import (
	"context"
	"time"
)

// -- Collaborator Interfaces --
//
// The core never assumes a specific storage technology or delivery mechanism;
// it talks to its collaborators through these interfaces. Concrete
// implementations live in internal/store and internal/notify, and tests
// substitute mocks freely.

// EntityStore is the persistence collaborator. Save is a conditional write:
// it only succeeds when the stored version still equals expectedVersion, so
// concurrent schedulers produce at most one winning update per tick.
type EntityStore interface {
	// Load retrieves one entity snapshot by ID.
	Load(ctx context.Context, id string) (*Entity, error)

	// Save persists the entity if the stored version equals expectedVersion,
	// bumping the version on success. A lost race returns
	// *VersionConflictError. expectedVersion zero inserts a new entity.
	Save(ctx context.Context, entity *Entity, expectedVersion int64) error

	// ListDue returns up to limit entities whose SLA due date or next
	// scheduled run is at or before now and that may need re-evaluation.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Entity, error)

	// ListAll returns up to limit entity snapshots in stable ID order, for
	// reporting over the whole population. limit <= 0 means no limit.
	ListAll(ctx context.Context, limit int) ([]*Entity, error)
}

// Notifier is invoked when a breach is newly flagged, a warning threshold is
// crossed, a schedule expires, or a terminal lifecycle state is entered.
// Delivery mechanics (email, chat, webhook) are entirely the implementation's
// concern.
type Notifier interface {
	Notify(ctx context.Context, entityID string, event EventType, payload map[string]any) error
}
