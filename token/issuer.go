package token

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrInvalid covers malformed tokens, bad signatures and wrong claims.
	ErrInvalid = errors.New("invalid access token")
	// ErrExpired is returned for structurally valid tokens past their expiry.
	ErrExpired = errors.New("access token expired")
)

// Claims is the verified content of an access token.
type Claims struct {
	UserID    int64
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer mints and verifies short-lived, stateless access tokens. Validity is
// computed entirely from the signature and the embedded expiry; nothing is
// persisted.
type Issuer struct {
	signer   Signer
	issuer   string
	audience string
	expiry   time.Duration
	nowFunc  func() time.Time
}

type IssuerOption func(*Issuer)

func WithExpiry(expiry time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.expiry = expiry
	}
}

func WithIssuer(issuer string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = issuer
	}
}

func WithAudience(audience string) IssuerOption {
	return func(i *Issuer) {
		i.audience = audience
	}
}

func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

func NewIssuer(signer Signer, options ...IssuerOption) *Issuer {
	i := &Issuer{
		signer:  signer,
		expiry:  15 * time.Minute,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// AccessToken signs a compact assertion of the user's identity.
func (i *Issuer) AccessToken(userID int64) (string, error) {
	now := i.nowFunc()
	claims := jwt.MapClaims{
		"iss": i.issuer,
		"aud": i.audience,
		"sub": strconv.FormatInt(userID, 10),
		"iat": now.Unix(),
		"exp": now.Add(i.expiry).Unix(),
		"jti": uuid.New().String(),
	}
	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.AccessToken] Sign")
	}
	return signed, nil
}

// Verify parses and validates a raw access token, returning its claims.
// Expired and otherwise-invalid tokens are distinguished so callers can tell
// clients whether a refresh is worth attempting.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	parsed, err := jwt.Parse(raw, i.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(i.nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}

	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, ErrInvalid
	}

	jti, _ := claims["jti"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	return &Claims{
		UserID:    userID,
		TokenID:   jti,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}
