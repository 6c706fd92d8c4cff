package identity

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/ilmlab/core"
)

const SigningMethod = "HS256"

var (
	NowFunc = time.Now // mockable

	// errors
	ErrInvalidToken = errors.New("invalid token")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"name,omitempty"`
	PhotoURL    string `json:"picture,omitempty"`
}

func (c Claims) Identity() Identity {
	return Identity{
		ID:          c.Subject,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		PhotoURL:    c.PhotoURL,
	}
}

// TokenIssuer signs and verifies identity tokens with the application secret.
type TokenIssuer struct {
	key      []byte
	issuer   string
	lifetime time.Duration
}

func NewTokenIssuer(conf *core.Config) *TokenIssuer {
	return &TokenIssuer{
		key:      []byte(conf.SecretKey),
		issuer:   conf.AppName,
		lifetime: conf.Server.JWTExpirationDelta,
	}
}

func (ti *TokenIssuer) SigningKey() []byte { return ti.key }

func (ti *TokenIssuer) Claims(idt Identity) *Claims {
	now := NowFunc()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    ti.issuer,
			Subject:   idt.ID,
			ExpiresAt: now.Add(ti.lifetime).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email:       idt.Email,
		DisplayName: idt.DisplayName,
		PhotoURL:    idt.PhotoURL,
	}
}

// Issue generates a signed JWT token string for the given identity.
func (ti *TokenIssuer) Issue(idt Identity) (string, error) {
	if idt.ID == "" {
		return "", errors.New("identity has no id")
	}
	token := jwt.NewWithClaims(jwt.GetSigningMethod(SigningMethod), ti.Claims(idt))
	ss, err := token.SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Parse verifies a token string and returns its claims.
func (ti *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != SigningMethod {
			return nil, ErrInvalidToken
		}
		return ti.key, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
