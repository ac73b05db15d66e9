// Package auth provides the gateway's bearer-token verification contract
// consumed by the S3 multipart and ACL surfaces of §6: a caller presents
// a signed JWT, this package verifies the signature and expiry and
// returns the claimed identity. No full identity-provider integration is
// in scope; this is the verification contract only. Grounded on the
// teacher's dependency on github.com/golang-jwt/jwt/v4 for the same
// narrow purpose (verifying pre-issued tokens rather than issuing them).
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/claudefs/core/cferr"
)

// Claims is the minimal identity payload this core relies on: the
// requesting uid/gid pair, matching the POSIX ownership fields used
// throughout the metadata and quota layers.
type Claims struct {
	UID uint32 `json:"uid"`
	GID uint32 `json:"gid"`
	jwt.RegisteredClaims
}

// Verifier checks bearer tokens against a single shared signing key
// (HMAC), the simplest contract sufficient for this core's scope.
type Verifier struct {
	key []byte
}

func NewVerifier(key []byte) *Verifier {
	return &Verifier{key: key}
}

// Verify parses and validates tokenString, returning the embedded
// Claims on success.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, &cferr.PermissionDenied{Reason: "unexpected signing method"}
		}
		return v.key, nil
	})
	if err != nil {
		return nil, &cferr.PermissionDenied{Reason: "token verification failed: " + err.Error()}
	}
	if !token.Valid {
		return nil, &cferr.PermissionDenied{Reason: "invalid token"}
	}
	return claims, nil
}

// Issue mints a token for (uid, gid) valid for ttl, used by tests and
// local tooling that stand in for a real IdP.
func (v *Verifier) Issue(uid, gid uint32, ttl time.Duration) (string, error) {
	claims := Claims{
		UID: uid,
		GID: gid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.key)
}
