package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an anonymous identity minted on first contact. There is no login;
// the id round-trips via the identity cookie.
type User struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
