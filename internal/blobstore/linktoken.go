package blobstore

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"veridoc/internal/domain"
)

// linkClaims are the claims of a local-store retrieval token. The token is
// the capability: whoever holds it can fetch exactly one object until expiry.
type linkClaims struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	jwt.RegisteredClaims
}

// LinkSigner mints and verifies time-boxed retrieval tokens for the local
// blob store, standing in for the signed URLs an S3 backend issues natively.
type LinkSigner struct {
	key []byte
}

func NewLinkSigner(key string) *LinkSigner {
	return &LinkSigner{key: []byte(key)}
}

// Sign mints a token for loc expiring after ttl.
func (s *LinkSigner) Sign(loc domain.StorageLocation, ttl time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, linkClaims{
		Bucket: loc.Bucket,
		Path:   loc.Path,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign link token: %w", err)
	}
	return signed, nil
}

// Verify validates a token and returns the location it grants access to.
func (s *LinkSigner) Verify(tokenString string) (domain.StorageLocation, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &linkClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.key, nil
	})
	if err != nil {
		return domain.StorageLocation{}, fmt.Errorf("verify link token: %w", err)
	}
	claims, ok := parsed.Claims.(*linkClaims)
	if !ok || !parsed.Valid {
		return domain.StorageLocation{}, fmt.Errorf("verify link token: invalid claims")
	}
	return domain.StorageLocation{Bucket: claims.Bucket, Path: claims.Path}, nil
}
