package devserver

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aussiebroadwan/examadmin/pkg/authsdk"
	"github.com/aussiebroadwan/examadmin/pkg/cryptox"
	"github.com/aussiebroadwan/examadmin/pkg/idx"
)

var (
	ErrUserExists   = errors.New("devserver: user already exists")
	ErrUnknownUser  = errors.New("devserver: unknown user")
	ErrInvalidInput = errors.New("devserver: email and secret are required")
)

// UserSpec describes an operator to register.
type UserSpec struct {
	Name   string
	Email  string
	Secret string

	// TOTPSecret enables two-factor login when set.
	TOTPSecret string

	// MobileMasked is what the login response shows as the code destination.
	MobileMasked string

	Role authsdk.Role
}

// user is a registered operator. Only the secret's hash is kept.
type user struct {
	id           idx.ID
	name         string
	email        string
	secretHash   string
	totpSecret   string
	mobileMasked string
	role         authsdk.Role
}

func (u *user) profile() *authsdk.UserProfile {
	role := u.role
	role.Permissions = append([]authsdk.PermissionGrant(nil), u.role.Permissions...)
	return &authsdk.UserProfile{
		ID:    u.id.String(),
		Name:  u.name,
		Email: u.email,
		Role:  role,
	}
}

func (u *user) twoFactor() bool { return u.totpSecret != "" }

// directory holds users keyed by lower-cased email and by id.
type directory struct {
	mu      sync.RWMutex
	byEmail map[string]*user
	byID    map[idx.ID]*user
}

func newDirectory() *directory {
	return &directory{
		byEmail: make(map[string]*user),
		byID:    make(map[idx.ID]*user),
	}
}

func (d *directory) add(spec UserSpec) (*user, error) {
	email := strings.ToLower(strings.TrimSpace(spec.Email))
	if email == "" || spec.Secret == "" {
		return nil, ErrInvalidInput
	}

	hash, err := cryptox.HashSecret(spec.Secret)
	if err != nil {
		return nil, fmt.Errorf("hash secret: %w", err)
	}

	u := &user{
		id:           idx.New(),
		name:         spec.Name,
		email:        email,
		secretHash:   hash,
		totpSecret:   spec.TOTPSecret,
		mobileMasked: spec.MobileMasked,
		role:         spec.Role,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byEmail[email]; ok {
		return nil, ErrUserExists
	}
	d.byEmail[email] = u
	d.byID[u.id] = u
	return u, nil
}

func (d *directory) byIdentifier(identifier string) (*user, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byEmail[strings.ToLower(strings.TrimSpace(identifier))]
	return u, ok
}

func (d *directory) get(id string) (*user, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[idx.ID(id)]
	return u, ok
}
