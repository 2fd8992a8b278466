package auth

import "explorer/internal/domain/models"

// TokenVerifier validates bearer tokens for the mutating folder routes
type TokenVerifier interface {
	// VerifyToken returns the token's claims, or domain.ErrUnauthorized when the
	// token is malformed, expired or signed with an unexpected key or algorithm
	VerifyToken(tokenString string) (*models.Claims, error)

	Close() error
}
