package google

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// stateSigner issues and verifies the short-lived JWTs used as the OAuth
// state parameter. The key is per-process random: a state only ever needs
// to round-trip through one handshake in the process that minted it.
type stateSigner struct {
	key []byte
}

func newStateSigner() (*stateSigner, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return &stateSigner{key: key}, nil
}

func (s *stateSigner) issue() (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   "handshake-state",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		ID:        uuid.New().String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign handshake state: %w", err)
	}
	return signed, nil
}

func (s *stateSigner) verify(tokenStr string) error {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&jwt.RegisteredClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return s.key, nil
		},
		jwt.WithSubject("handshake-state"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("invalid handshake state: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid handshake state")
	}
	return nil
}
