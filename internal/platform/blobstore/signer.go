package blobstore

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSignedURLTTL is how long a signed object URL stays valid.
const DefaultSignedURLTTL = 3600 * time.Second

type objectClaims struct {
	jwt.RegisteredClaims
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
}

// Signer issues and verifies HS256 tokens that grant read access to a single
// object until they expire.
type Signer struct {
	key     []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

func NewSigner(key []byte, baseURL string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	return &Signer{
		key:     key,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SignedURL returns /storage/v1/object/sign/<bucket>/<path>?token=... and
// the moment it expires.
func (s *Signer) SignedURL(bucket, p string) (string, time.Time, error) {
	if _, err := LookupBucket(bucket); err != nil {
		return "", time.Time{}, err
	}
	now := s.now()
	exp := now.Add(s.ttl)
	claims := objectClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Bucket: bucket,
		Path:   p,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign object url: %w", err)
	}
	return fmt.Sprintf("%s/storage/v1/object/sign/%s/%s?token=%s",
		s.baseURL, bucket, escapePath(p), url.QueryEscape(token)), exp, nil
}

// PublicURL is the unsigned address of an object. Only public buckets
// serve it; for the others it is a stable identifier.
func (s *Signer) PublicURL(bucket, p string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, bucket, escapePath(p))
}

// Verify checks that token is valid, unexpired and grants bucket/path.
func (s *Signer) Verify(token, bucket, p string) error {
	claims := &objectClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: token expired", ErrInvalidSignature)
		}
		return ErrInvalidSignature
	}
	if claims.Bucket != bucket || claims.Path != p {
		return ErrInvalidSignature
	}
	return nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
