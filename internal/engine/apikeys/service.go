package apikeys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	pkgerrors "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

const (
	// KeyTag prefixes every plaintext key. The full format is the tag
	// followed by 64 lowercase hex chars; total length is fixed.
	KeyTag    = "phub_"
	KeyLength = len(KeyTag) + 64

	// prefixLength chars of the plaintext are stored for display. Far too
	// short to forge the remaining material from.
	prefixLength = 12

	MaxNameLength = 100

	ScopeRead  = "read"
	ScopeWrite = "write"
)

var validScopes = []string{ScopeRead, ScopeWrite}

type Service struct {
	repo *repositories.APIKeyRepository
}

func NewService(repo *repositories.APIKeyRepository) *Service {
	return &Service{repo: repo}
}

// Generate creates a key for a workspace and returns the plaintext exactly
// once. Only the display prefix and a one-way hash are stored.
func (s *Service) Generate(workspaceID, createdBy, name string, scopes []string, expiresAt *int64) (string, *models.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, fmt.Errorf("%w: key name is required", pkgerrors.ErrInvalid)
	}
	if len(name) > MaxNameLength {
		return "", nil, fmt.Errorf("%w: key name exceeds %d characters", pkgerrors.ErrInvalid, MaxNameLength)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, err
	}
	plainKey := KeyTag + hex.EncodeToString(buf)

	key := &models.APIKey{
		WorkspaceID: workspaceID,
		CreatedBy:   createdBy,
		Name:        name,
		KeyHash:     HashKey(plainKey),
		KeyPrefix:   plainKey[:prefixLength],
		Scopes:      FilterScopes(scopes),
		ExpiresAt:   expiresAt,
	}

	if err := s.repo.Create(key); err != nil {
		return "", nil, err
	}

	return plainKey, key, nil
}

// Verify resolves a plaintext key to its record. Structurally malformed
// input is rejected before any storage access. A missing key and a
// revoked/expired one are indistinguishable: both return (nil, nil).
func (s *Service) Verify(plainKey string) (*models.APIKey, error) {
	if !strings.HasPrefix(plainKey, KeyTag) || len(plainKey) != KeyLength {
		return nil, nil
	}

	key, err := s.repo.GetByHash(HashKey(plainKey))
	if err != nil {
		return nil, err
	}
	if key == nil || !key.IsActive || key.RevokedAt != nil {
		return nil, nil
	}
	if key.ExpiresAt != nil && *key.ExpiresAt < time.Now().Unix() {
		return nil, nil
	}

	// Usage accounting is a side effect, not a precondition: the
	// authorization decision never waits on it.
	go func(id string) {
		if err := s.repo.TouchUsage(id); err != nil {
			log.Warn().Err(err).Str("key_id", id).Msg("failed to record api key usage")
		}
	}(key.ID)

	return key, nil
}

func (s *Service) List(workspaceID string) ([]*models.APIKey, error) {
	return s.repo.ListByWorkspace(workspaceID)
}

// Revoke terminates a key within its owning workspace. Returns false when
// no key matched, which covers both unknown ids and cross-tenant attempts.
func (s *Service) Revoke(keyID, workspaceID string) (bool, error) {
	return s.repo.Revoke(keyID, workspaceID)
}

// HashKey is the stored form of a plaintext key. It is a lookup key, not a
// password, so a plain deterministic digest is sufficient.
func HashKey(plainKey string) string {
	sum := sha256.Sum256([]byte(plainKey))
	return hex.EncodeToString(sum[:])
}

// FilterScopes drops unknown scopes and defaults to the full set when
// nothing valid remains.
func FilterScopes(scopes []string) []string {
	var filtered []string
	for _, s := range scopes {
		for _, v := range validScopes {
			if s == v {
				filtered = append(filtered, s)
				break
			}
		}
	}
	if len(filtered) == 0 {
		return []string{ScopeRead, ScopeWrite}
	}
	return filtered
}
