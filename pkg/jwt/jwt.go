package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Operator identidad del operador que queda registrada en el libro mayor.
type Operator struct {
	ID          string
	Role        string // "admin" | "bodeguero" | "vendedor"
	WarehouseID string // bodega de trabajo; vacío para admin
}

// Claims claims estándar más la identidad del operador.
type Claims struct {
	jwt.RegisteredClaims
	Role        string `json:"role"`
	WarehouseID string `json:"warehouse_id,omitempty"`
}

var errEmptySecret = errors.New("jwt: secret vacío")

// Generate firma un token HS256 para el operador. El ID va en el claim sub.
func Generate(secret string, op Operator, issuer string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errEmptySecret
	}
	if op.ID == "" {
		return "", errors.New("jwt: operador sin id")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   op.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:        op.Role,
		WarehouseID: op.WarehouseID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse valida firma y expiración y devuelve el operador.
func Parse(secret, tokenString string) (Operator, error) {
	if secret == "" {
		return Operator{}, errEmptySecret
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Operator{}, err
	}
	if !token.Valid || claims.Subject == "" {
		return Operator{}, fmt.Errorf("jwt: claims inválidos")
	}
	return Operator{ID: claims.Subject, Role: claims.Role, WarehouseID: claims.WarehouseID}, nil
}
