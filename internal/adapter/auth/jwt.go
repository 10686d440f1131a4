package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/food-order-service/internal/domain"
)

var (
	ErrNoToken      = errors.New("invalid authorization code")
	ErrBadScheme    = errors.New("invalid authentication scheme")
	ErrInvalidToken = errors.New("invalid token or expired token")
)

// Claims — полезная нагрузка токена провайдера аутентификации.
type Claims struct {
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	IsAnonymous  bool           `json:"is_anonymous"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// Verifier проверяет HS256-токены с заданной аудиторией.
type Verifier struct {
	key      []byte
	audience string
	parser   *jwt.Parser
}

func NewVerifier(key []byte, audience string) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &Verifier{key: key, audience: audience, parser: jwt.NewParser(opts...)}
}

// Verify разбирает токен и возвращает личность из sub и claims.
func (v *Verifier) Verify(token string) (domain.Identity, error) {
	var c Claims
	_, err := v.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return domain.Identity{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	sub, err := uuid.Parse(c.Subject)
	if err != nil {
		return domain.Identity{}, errors.Wrap(ErrInvalidToken, "subject is not a uuid")
	}
	return domain.Identity{
		SubjectID:   sub,
		Email:       c.Email,
		Phone:       c.Phone,
		IsAnonymous: c.IsAnonymous,
	}, nil
}

// Sign выпускает токен для личности; используется в тестах и утилитах.
func (v *Verifier) Sign(id domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		Email:       id.Email,
		Phone:       id.Phone,
		IsAnonymous: id.IsAnonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.SubjectID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		c.Audience = jwt.ClaimStrings{v.audience}
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.key)
	return s, errors.Wrap(err, "sign token")
}

// FromRequest достаёт bearer-токен из заголовка Authorization.
func FromRequest(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrNoToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || token == "" {
		return "", ErrNoToken
	}
	if scheme != "Bearer" {
		return "", ErrBadScheme
	}
	return token, nil
}

// Middleware пропускает запрос дальше только с валидным токеном и кладёт
// личность в контекст. Отказ — 403.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := FromRequest(r)
		if err == nil {
			var id domain.Identity
			if id, err = v.Verify(token); err == nil {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}
			err = ErrInvalidToken
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()})
	})
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom — личность, положенная Middleware.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(domain.Identity)
	return id, ok
}
