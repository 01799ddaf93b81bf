package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/codebrew/pos-backend/pkg/enums"
)

// AccessTokenPayload captures the actor data carried by an access token.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Role     enums.Role
	BranchID *uuid.UUID
	JTI      string
}

// AccessTokenClaims is the typed JWT presented by back-office clients.
// BranchID is nil for actors without a branch assignment (typically Admin).
type AccessTokenClaims struct {
	UserID   uuid.UUID  `json:"user_id"`
	Role     enums.Role `json:"role"`
	BranchID *uuid.UUID `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}
