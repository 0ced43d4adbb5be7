package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/panyam/authflow/memprovider"
)

// Claims is what a verified access token says about its bearer
type Claims struct {
	UserID string
	Email  string
}

var (
	errInvalidTokenType = errors.New("invalid token type")
	errInvalidIssuer    = errors.New("invalid issuer")
	errMissingSubject   = errors.New("missing subject")
)

// createAccessToken signs an HS256 access token for the account
func (s *Server) createAccessToken(account *memprovider.Account) (string, int64, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   account.ID,
		"email": account.Email,
		"type":  "access",
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.AccessTokenExpiry).Unix(),
	}
	if s.cfg.JWTIssuer != "" {
		claims["iss"] = s.cfg.JWTIssuer
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecretKey))
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, int64(s.cfg.AccessTokenExpiry.Seconds()), nil
}

// ValidateAccessToken verifies signature, expiry, type and issuer
func (s *Server) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecretKey), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}
	if typ, _ := claims["type"].(string); typ != "access" {
		return nil, errInvalidTokenType
	}
	if s.cfg.JWTIssuer != "" {
		if iss, _ := claims["iss"].(string); iss != s.cfg.JWTIssuer {
			return nil, errInvalidIssuer
		}
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errMissingSubject
	}
	email, _ := claims["email"].(string)
	return &Claims{UserID: sub, Email: email}, nil
}

// VerifyToken returns the user id an access token was issued to. Its
// signature matches the gRPC interceptors' token verifier.
func (s *Server) VerifyToken(tokenString string) (string, error) {
	claims, err := s.ValidateAccessToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
