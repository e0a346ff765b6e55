// Package identity resolves shell users from an injected credential table.
package identity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Role selects the navigation, quick action, and dashboard tiles a user sees.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleAgent     Role = "agent"
	RoleInstaller Role = "installer"

	legacyInstallerRoleName = "monteur"
	unknownRoleMessage      = "unknown role"
)

var (
	// ErrAuthFailure reports an unknown username or a mismatched password.
	ErrAuthFailure = errors.New("wrong username or password")
	// ErrUnknownRole reports a role name outside the supported set.
	ErrUnknownRole = errors.New(unknownRoleMessage)
)

// ParseRole normalizes a configured role name. The legacy installer spelling is accepted.
func ParseRole(rawRole string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(rawRole))
	if normalized == legacyInstallerRoleName {
		return RoleInstaller, nil
	}
	role := Role(normalized)
	if !role.Known() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, rawRole)
	}
	return role, nil
}

// Known reports whether the role is one the shell can render.
func (role Role) Known() bool {
	switch role {
	case RoleAdmin, RoleAgent, RoleInstaller:
		return true
	default:
		return false
	}
}

func (role Role) String() string {
	return string(role)
}

// Identity is the authenticated user attached to every remote call.
type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Name     string `json:"name"`
	Initials string `json:"initials"`
}

// Provider authenticates a username/password pair.
type Provider interface {
	Authenticate(username string, password string) (Identity, error)
}

// Account is one row of the static user table.
type Account struct {
	Password string `mapstructure:"password" json:"password" yaml:"password"`
	Role     string `mapstructure:"role" json:"role" yaml:"role"`
	Name     string `mapstructure:"name" json:"name" yaml:"name"`
	Initials string `mapstructure:"initials" json:"initials" yaml:"initials"`
}

type tableEntry struct {
	password string
	identity Identity
}

// StaticTable compares passwords by plain equality against a fixed in-memory table.
type StaticTable struct {
	entries map[string]tableEntry
}

// NewStaticTable builds a provider from configured accounts. Every role must be known.
func NewStaticTable(accounts map[string]Account) (*StaticTable, error) {
	entries := make(map[string]tableEntry, len(accounts))
	usernames := make([]string, 0, len(accounts))
	for username := range accounts {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)

	for _, username := range usernames {
		account := accounts[username]
		role, roleErr := ParseRole(account.Role)
		if roleErr != nil {
			return nil, fmt.Errorf("user %s: %w", username, roleErr)
		}
		entries[username] = tableEntry{
			password: account.Password,
			identity: Identity{
				Username: username,
				Role:     role,
				Name:     account.Name,
				Initials: account.Initials,
			},
		}
	}

	return &StaticTable{entries: entries}, nil
}

// Authenticate returns the table identity when the password matches exactly.
func (table *StaticTable) Authenticate(username string, password string) (Identity, error) {
	if table == nil {
		return Identity{}, ErrAuthFailure
	}
	entry, found := table.entries[username]
	if !found || entry.password != password {
		return Identity{}, ErrAuthFailure
	}
	return entry.identity, nil
}

// Len reports the number of configured users.
func (table *StaticTable) Len() int {
	if table == nil {
		return 0
	}
	return len(table.entries)
}
