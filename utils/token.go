package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/dgrijalva/jwt-go"
)

// OperatorClaim is what the session service puts in an operator's bearer token.
type OperatorClaim struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.StandardClaims
}

func (c *OperatorClaim) OperatorId() string {
	if c == nil || c.ID == 0 {
		return ""
	}
	return strconv.Itoa(c.ID)
}

var ErrJwtSecretMissing = errors.New("API_SECRET not set")

func getJwtSecret() []byte {
	return []byte(os.Getenv("API_SECRET"))
}

// JwtValidate checks an HS256 operator token. Token issuance lives in the
// session service; this side only reads claims.
func JwtValidate(token string) (*jwt.Token, error) {
	secret := getJwtSecret()
	if len(secret) == 0 {
		return nil, ErrJwtSecretMissing
	}
	return jwt.ParseWithClaims(token, &OperatorClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return secret, nil
	})
}
