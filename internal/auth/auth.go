package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/tjfontaine/agentgate/internal/config"
	"github.com/tjfontaine/agentgate/internal/core/domain"
)

// Resource is something a caller can be granted access to.
type Resource string

const (
	ResourceStatus       Resource = "STATUS"
	ResourceMemory       Resource = "MEMORY"
	ResourceConversation Resource = "CONVERSATION"
	ResourceSettings     Resource = "SETTINGS"
	ResourceLLM          Resource = "LLM"
	ResourceEmbedder     Resource = "EMBEDDER"
	ResourcePlugins      Resource = "PLUGINS"
	ResourceUsers        Resource = "USERS"
	ResourceUpload       Resource = "UPLOAD"
	ResourceStatic       Resource = "STATIC"
)

// Permission is an action on a Resource.
type Permission string

const (
	PermissionWrite  Permission = "WRITE"
	PermissionEdit   Permission = "EDIT"
	PermissionList   Permission = "LIST"
	PermissionRead   Permission = "READ"
	PermissionDelete Permission = "DELETE"
)

// Resources lists every known resource.
func Resources() []Resource {
	return []Resource{
		ResourceStatus, ResourceMemory, ResourceConversation, ResourceSettings, ResourceLLM,
		ResourceEmbedder, ResourcePlugins, ResourceUsers, ResourceUpload, ResourceStatic,
	}
}

// Permissions lists every known permission.
func Permissions() []Permission {
	return []Permission{PermissionWrite, PermissionEdit, PermissionList, PermissionRead, PermissionDelete}
}

// PermissionTable maps each resource to the permissions held on it.
type PermissionTable map[Resource][]Permission

// FullPermissions grants every permission on every resource.
func FullPermissions() PermissionTable {
	table := make(PermissionTable, len(Resources()))
	for _, r := range Resources() {
		table[r] = Permissions()
	}
	return table
}

// ParsePermissions converts a config permission table into a PermissionTable.
// Names are case-insensitive; unknown names are an error.
func ParsePermissions(raw map[string][]string) (PermissionTable, error) {
	known := make(map[Resource]bool)
	for _, r := range Resources() {
		known[r] = true
	}
	knownPerm := make(map[Permission]bool)
	for _, p := range Permissions() {
		knownPerm[p] = true
	}

	table := make(PermissionTable, len(raw))
	for name, perms := range raw {
		res := Resource(strings.ToUpper(name))
		if !known[res] {
			return nil, fmt.Errorf("unknown resource %q", name)
		}
		for _, p := range perms {
			perm := Permission(strings.ToUpper(p))
			if !knownPerm[perm] {
				return nil, fmt.Errorf("unknown permission %q on %s", p, res)
			}
			table[res] = append(table[res], perm)
		}
	}
	return table, nil
}

// Has reports whether the table grants perm on res.
func (t PermissionTable) Has(res Resource, perm Permission) bool {
	for _, p := range t[res] {
		if p == perm {
			return true
		}
	}
	return false
}

// Strings returns the table in a form suitable for policy input.
func (t PermissionTable) Strings() map[string][]string {
	out := make(map[string][]string, len(t))
	for res, perms := range t {
		names := make([]string, len(perms))
		for i, p := range perms {
			names[i] = string(p)
		}
		sort.Strings(names)
		out[string(res)] = names
	}
	return out
}

// Identity is an authenticated caller.
type Identity struct {
	UserID      string
	Description string
	Permissions PermissionTable
}

// DefaultUserID is used in open mode when the request names no user.
const DefaultUserID = "user"

// UserIDHeader carries the caller's user id in open mode.
const UserIDHeader = "user_id"

// Authenticator validates API keys and resolves them to identities.
// With an empty key table it runs open: every request is accepted.
type Authenticator struct {
	mu   sync.RWMutex
	keys map[string]keyEntry // keyhash -> entry
}

type keyEntry struct {
	hash     string
	identity *Identity
}

// NewAuthenticator creates an authenticator from the configured keys.
func NewAuthenticator(keys []config.APIKeyConfig) (*Authenticator, error) {
	a := &Authenticator{}
	if err := a.SetKeys(keys); err != nil {
		return nil, err
	}
	return a, nil
}

// SetKeys atomically replaces the key table. On error the old table is kept.
func (a *Authenticator) SetKeys(keys []config.APIKeyConfig) error {
	table := make(map[string]keyEntry, len(keys))
	for i, key := range keys {
		perms, err := ParsePermissions(key.Permissions)
		if err != nil {
			return fmt.Errorf("api_keys[%d]: %w", i, err)
		}
		if len(key.Permissions) == 0 {
			perms = FullPermissions()
		}
		id := &Identity{
			UserID:      key.UserID,
			Description: key.Description,
			Permissions: perms,
		}
		hash := strings.ToLower(key.KeyHash)
		table[hash] = keyEntry{hash: hash, identity: id}
	}

	a.mu.Lock()
	a.keys = table
	a.mu.Unlock()
	return nil
}

// Open reports whether the authenticator accepts unauthenticated requests.
func (a *Authenticator) Open() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keys) == 0
}

// ValidateAPIKey validates an API key and returns the associated identity.
func (a *Authenticator) ValidateAPIKey(apiKey string) (*Identity, error) {
	keyHash := HashAPIKey(apiKey)

	a.mu.RLock()
	entry, ok := a.keys[keyHash]
	a.mu.RUnlock()
	if !ok {
		return nil, invalidKey()
	}

	// Constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare([]byte(keyHash), []byte(entry.hash)) != 1 {
		return nil, invalidKey()
	}
	return entry.identity, nil
}

// Authenticate resolves the caller of r.
func (a *Authenticator) Authenticate(r *http.Request) (*Identity, error) {
	if a.Open() {
		userID := r.Header.Get(UserIDHeader)
		if userID == "" {
			userID = DefaultUserID
		}
		return &Identity{UserID: userID, Permissions: FullPermissions()}, nil
	}

	apiKey, err := ExtractAPIKey(r)
	if err != nil {
		return nil, domain.ErrAuthentication(err.Error()).
			WithCode(domain.ErrorCodeMissingCredentials).
			WithCause(err)
	}
	return a.ValidateAPIKey(apiKey)
}

func invalidKey() error {
	return domain.ErrAuthentication("invalid API key").WithCode(domain.ErrorCodeInvalidAPIKey)
}

// ExtractAPIKey extracts the API key from the Authorization header
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return parts[1], nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
