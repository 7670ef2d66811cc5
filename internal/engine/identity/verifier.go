package identity

import (
	"crypto/subtle"
	"strings"

	"projecthub/internal/engine/apikeys"
	pkgerrors "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/auth"
	"projecthub/internal/platform/config"
)

type Kind string

const (
	KindAPIKey  Kind = "api_key"
	KindLegacy  Kind = "legacy"
	KindSession Kind = "session"
)

// Credential is the resolved, ephemeral output of verification. WorkspaceID
// is set only for API keys; a session derives its workspace per request via
// the authorization gate, and a legacy credential carries whatever binding
// was configured (possibly none).
type Credential struct {
	Kind        Kind
	UserID      string
	WorkspaceID string
	Scopes      []string
	KeyID       string
	KeyName     string
}

func (c *Credential) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Verifier authenticates one bearer string. Pure function of the token plus
// its collaborators; safe for unbounded concurrent use.
type Verifier struct {
	keys              *apikeys.Service
	tokens            *auth.TokenService
	legacySecret      string
	legacyWorkspaceID string
}

func NewVerifier(keys *apikeys.Service, tokens *auth.TokenService, cfg config.BridgeConfig) *Verifier {
	return &Verifier{
		keys:              keys,
		tokens:            tokens,
		legacySecret:      cfg.LegacyAgentKey,
		legacyWorkspaceID: cfg.LegacyWorkspaceID,
	}
}

// Verify dispatches on the structural shape of the bearer string:
// API key tag, then the configured legacy shared secret, then a session
// token. Anything else fails closed.
func (v *Verifier) Verify(bearer string) (*Credential, error) {
	if strings.HasPrefix(bearer, apikeys.KeyTag) {
		key, err := v.keys.Verify(bearer)
		if err != nil {
			return nil, err
		}
		if key == nil {
			return nil, pkgerrors.ErrUnauthenticated
		}
		return &Credential{
			Kind:        KindAPIKey,
			UserID:      key.CreatedBy,
			WorkspaceID: key.WorkspaceID,
			Scopes:      key.Scopes,
			KeyID:       key.ID,
			KeyName:     key.Name,
		}, nil
	}

	if v.legacySecret != "" && subtle.ConstantTimeCompare([]byte(bearer), []byte(v.legacySecret)) == 1 {
		return &Credential{
			Kind:        KindLegacy,
			WorkspaceID: v.legacyWorkspaceID,
			Scopes:      []string{apikeys.ScopeRead, apikeys.ScopeWrite},
			KeyName:     "legacy",
		}, nil
	}

	if claims, err := v.tokens.ValidateToken(bearer); err == nil {
		return &Credential{
			Kind:   KindSession,
			UserID: claims.UserID,
		}, nil
	}

	return nil, pkgerrors.ErrUnauthenticated
}
