package auth

// TokenService defines the interface for JWT token operations.
type TokenService interface {
	GenerateToken(userID, email string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Compile-time interface satisfaction checks
var _ TokenService = (*JWTService)(nil)
