// package models defines the data model for the tunepipe web service
package models

import (
	"context"
	"time"
)

// Model defines the base interface for all persistent models in the service.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Store defines session persistence. Implementations must treat an expired session as absent.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)  // Get returns the session or shared.ErrSessionNotFound
	Save(ctx context.Context, session *Session) error      // Save inserts or replaces the session and extends its expiry
	Delete(ctx context.Context, id string) error           // Delete removes the session; deleting a missing session is not an error
	Close() error                                          // Close releases the backend
}
