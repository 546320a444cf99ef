package moderation

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// Permission represents a moderation capability staff can hold.
type Permission string

const (
	PermissionSubmitAction  Permission = "submit_action"
	PermissionDismissReport Permission = "dismiss_report"
	PermissionViewQueue     Permission = "view_queue"
	PermissionViewAuditLog  Permission = "view_audit_log"
)

// AllPermissions returns all available permissions.
func AllPermissions() []Permission {
	return []Permission{
		PermissionSubmitAction,
		PermissionDismissReport,
		PermissionViewQueue,
		PermissionViewAuditLog,
	}
}

// RoleName represents the name of a staff role.
type RoleName string

const (
	RoleAdmin     RoleName = "admin"
	RoleModerator RoleName = "moderator"
)

// Role defines a set of permissions for staff members.
type Role struct {
	Name        RoleName     `json:"-"` // Set from map key during loading
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

// HasPermission checks if this role has the given permission.
func (r *Role) HasPermission(perm Permission) bool {
	for _, p := range r.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// StaffUser represents a platform user with moderation privileges.
type StaffUser struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name,omitempty"`
	Role   RoleName `json:"role"`
	Note   string   `json:"note,omitempty"`
}

// StaffConfig represents the staff configuration loaded from JSON.
type StaffConfig struct {
	Roles map[RoleName]*Role `json:"roles"`
	Users []StaffUser        `json:"users"`
}

// Validate checks that the config is valid.
func (c *StaffConfig) Validate() error {
	if c.Roles == nil {
		c.Roles = make(map[RoleName]*Role)
	}

	for _, user := range c.Users {
		if _, ok := c.Roles[user.Role]; !ok {
			return &ConfigError{
				Field:   "users",
				Message: "user " + user.UserID + " references unknown role: " + string(user.Role),
			}
		}
	}

	// Set role names from map keys
	for name, role := range c.Roles {
		role.Name = name
	}

	return nil
}

// ConfigError represents a staff configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "staff config error in " + e.Field + ": " + e.Message
}

// Staff answers role and permission questions for admin endpoints.
// If no config path is provided the service is disabled and every
// permission check returns false.
type Staff struct {
	mu         sync.RWMutex
	config     *StaffConfig
	configPath string

	// Quick lookup maps built from config
	userRoles map[string]*Role      // user ID -> Role
	userInfos map[string]*StaffUser // user ID -> StaffUser
}

// NewStaff creates a new staff service from a JSON config file.
func NewStaff(configPath string) (*Staff, error) {
	s := &Staff{
		configPath: configPath,
		userRoles:  make(map[string]*Role),
		userInfos:  make(map[string]*StaffUser),
	}

	if configPath == "" {
		log.Info().Msg("moderation: no staff config path provided, admin surface disabled")
		return s, nil
	}

	if err := s.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load staff config: %w", err)
	}

	return s, nil
}

// loadConfig reads and parses the config file
func (s *Staff) loadConfig() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", s.configPath).Msg("moderation: staff config file not found, admin surface disabled")
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config StaffConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = &config
	s.rebuildLookupMaps()

	log.Info().
		Int("roles", len(config.Roles)).
		Int("users", len(config.Users)).
		Str("path", s.configPath).
		Msg("moderation: staff config loaded")

	return nil
}

// rebuildLookupMaps rebuilds the quick lookup maps from config
// Caller must hold the write lock
func (s *Staff) rebuildLookupMaps() {
	s.userRoles = make(map[string]*Role)
	s.userInfos = make(map[string]*StaffUser)

	if s.config == nil {
		return
	}

	for i := range s.config.Users {
		user := &s.config.Users[i]
		role, ok := s.config.Roles[user.Role]
		if ok {
			s.userRoles[user.UserID] = role
			s.userInfos[user.UserID] = user
		}
	}
}

// Reload reloads the configuration from disk.
func (s *Staff) Reload() error {
	if s.configPath == "" {
		return nil
	}
	return s.loadConfig()
}

// IsEnabled returns true if the staff service is configured and enabled.
func (s *Staff) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config != nil && len(s.config.Users) > 0
}

// IsAdmin returns true if the given user has the admin role.
func (s *Staff) IsAdmin(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.userRoles[userID]
	if !ok {
		return false
	}
	return role.Name == RoleAdmin
}

// IsModerator returns true if the given user has moderation privileges.
// This includes both moderators and admins.
func (s *Staff) IsModerator(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.userRoles[userID]
	return ok
}

// HasPermission returns true if the given user has the specified permission.
func (s *Staff) HasPermission(userID string, permission Permission) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.userRoles[userID]
	if !ok {
		return false
	}
	return role.HasPermission(permission)
}

// GetRole returns the role for the given user, if any.
func (s *Staff) GetRole(userID string) (*Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.userRoles[userID]
	if !ok {
		return nil, false
	}
	// Return a copy to prevent external modification
	roleCopy := *role
	return &roleCopy, true
}

// ListStaff returns all configured staff users.
func (s *Staff) ListStaff() []StaffUser {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil
	}

	result := make([]StaffUser, len(s.config.Users))
	copy(result, s.config.Users)
	return result
}
