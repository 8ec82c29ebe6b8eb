// Package auth issues and verifies the two bearer-token classes of a session:
// short-lived access tokens and long-lived refresh tokens. Each class has its
// own HMAC secret and validity.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClass selects the secret, validity and payload of a token.
type TokenClass int

const (
	Access TokenClass = iota
	Refresh
)

func (c TokenClass) String() string {
	switch c {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// Config is the immutable signing configuration handed to NewIssuer.
type Config struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
}

// Claims is the token payload. Refresh tokens carry only AccountID.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"_id"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	FullName  string `json:"fullname,omitempty"`
	Class     string `json:"typ"`
}

// Issuer signs and verifies tokens. It holds no mutable state and is safe for
// concurrent use.
type Issuer struct {
	cfg Config
	now func() time.Time
}

func NewIssuer(cfg Config) *Issuer {
	return &Issuer{cfg: cfg, now: time.Now}
}

func (i *Issuer) params(class TokenClass) ([]byte, time.Duration, error) {
	switch class {
	case Access:
		return i.cfg.AccessSecret, i.cfg.AccessTTL, nil
	case Refresh:
		return i.cfg.RefreshSecret, i.cfg.RefreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("unknown token class %d", class)
	}
}

// Issue signs claims as a token of the given class. Expiry, issue time and a
// unique token id are always set by the issuer.
func (i *Issuer) Issue(class TokenClass, claims Claims) (string, error) {
	secret, ttl, err := i.params(class)
	if err != nil {
		return "", err
	}

	now := i.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.AccountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	claims.Class = class.String()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// IssueAccess signs an access token describing account.
func (i *Issuer) IssueAccess(account *models.Account) (string, error) {
	return i.Issue(Access, Claims{
		AccountID: account.ID,
		Email:     account.Email,
		Username:  account.Username,
		FullName:  account.FullName,
	})
}

// IssueRefresh signs a refresh token for accountID.
func (i *Issuer) IssueRefresh(accountID string) (string, error) {
	return i.Issue(Refresh, Claims{AccountID: accountID})
}

// Verify checks signature, expiry and class of tokenString.
// Expired tokens yield common.ErrTokenExpired; everything else that fails
// yields common.ErrInvalidToken.
func (i *Issuer) Verify(tokenString string, class TokenClass) (*Claims, error) {
	secret, _, err := i.params(class)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Class != class.String() || claims.AccountID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
