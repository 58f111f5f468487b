package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/crennie/image-web-convert/cmd/convertd/models"
	"github.com/crennie/image-web-convert/cmd/convertd/repository"
	"github.com/crennie/image-web-convert/common/ident"
	"github.com/crennie/image-web-convert/common/logger"
)

// tokenBytes is the access token entropy (256-bit)
const tokenBytes = 32

// AccessToken pairs the plaintext token handed to the client with the digest
// the server keeps
type AccessToken struct {
	Token string
	Hash  string
}

// GenerateToken creates a high-entropy bearer token and its one-way hash.
// Only the hash is persisted; the token itself is returned to the client once.
func GenerateToken() (AccessToken, error) {
	token, err := ident.New(tokenBytes, ident.Hex)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: token, Hash: HashToken(token)}, nil
}

// HashToken computes the hex-encoded SHA-256 digest of a token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEqHex compares two hex strings in constant time.
// Malformed hex, odd lengths, and differing lengths all return false;
// the comparison itself does not leak the position of the first difference.
func ConstantTimeEqHex(aHex, bHex string) bool {
	a, err := hex.DecodeString(aHex)
	if err != nil {
		return false
	}
	b, err := hex.DecodeString(bHex)
	if err != nil {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// ExtractBearer pulls the token out of an Authorization header value.
// The scheme match is case-insensitive and tolerant of extra whitespace.
// Returns "" for a missing header, another scheme, or a missing token.
func ExtractBearer(header string) string {
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return ""
	}
	if !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}

// GuardResult describes a failed session validation
type GuardResult struct {
	Status    int             // HTTP status to return
	APIError  models.APIError // response body
	Challenge string          // WWW-Authenticate value; empty for non-401 outcomes
}

// AuthService resolves inbound requests against session records
type AuthService struct {
	sessions *repository.SessionRepository
	log      *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(sessions *repository.SessionRepository, log *logger.Logger) *AuthService {
	return &AuthService{
		sessions: sessions,
		log:      log,
	}
}

// Validate checks a presented bearer token against a session. The decision
// table is evaluated in order; the first match wins. Only the two 401
// branches carry a challenge header.
func (s *AuthService) Validate(sid, authorization string, now time.Time) (*models.SessionRecord, *GuardResult) {
	token := ExtractBearer(authorization)
	if token == "" {
		return nil, &GuardResult{
			Status:    http.StatusUnauthorized,
			APIError:  models.NewAPIError(models.ErrTypeInvalidToken, ""),
			Challenge: `Bearer realm="sessions"`,
		}
	}

	record, err := s.sessions.Read(sid)
	if err != nil {
		s.log.Debug("session lookup failed", "sid", sid, "error", err)
		return nil, &GuardResult{
			Status:   http.StatusNotFound,
			APIError: models.NewAPIError(models.ErrTypeSessionNotFound, ""),
		}
	}

	if !ConstantTimeEqHex(HashToken(token), record.TokenHash) {
		return nil, &GuardResult{
			Status:    http.StatusUnauthorized,
			APIError:  models.NewAPIError(models.ErrTypeInvalidToken, ""),
			Challenge: `Bearer error="invalid_token"`,
		}
	}

	if record.Expired(now) {
		return nil, &GuardResult{
			Status:   http.StatusForbidden,
			APIError: models.NewAPIError(models.ErrTypeSessionExpired, ""),
		}
	}

	return record, nil
}
