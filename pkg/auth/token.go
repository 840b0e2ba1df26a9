package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/model"
)

// Claims are carried by session tokens. ID (jti) is the session record id
// and Subject is the user id.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type tokenService struct {
	secret []byte
	issuer string
	clock  func() time.Time
}

func (s *tokenService) issue(session *model.SessionRecord, user *model.User) (string, error) {
	now := s.clock()
	claims := &Claims{
		Email: user.Email,
		Name:  user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID.String(),
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

func (s *tokenService) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.clock),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, goerr.New("invalid token claims")
	}
	return claims, nil
}
