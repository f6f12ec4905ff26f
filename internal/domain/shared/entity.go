package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries the identity and timestamps every persisted aggregate has
type BaseEntity struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBaseEntity assigns a random v4 id and stamps both timestamps with at.
// A zero at means now.
func NewBaseEntity(at time.Time) BaseEntity {
	if at.IsZero() {
		at = time.Now()
	}
	return BaseEntity{ID: uuid.New(), CreatedAt: at, UpdatedAt: at}
}

// Modified stamps UpdatedAt with at
func (e *BaseEntity) Modified(at time.Time) {
	e.UpdatedAt = at
}
