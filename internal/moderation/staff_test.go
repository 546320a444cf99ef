package moderation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStaff_NoConfig(t *testing.T) {
	// Staff should work in disabled mode with empty config path
	staff, err := NewStaff("")
	require.NoError(t, err)
	assert.NotNil(t, staff)
	assert.False(t, staff.IsEnabled())
	assert.False(t, staff.IsAdmin("user1"))
	assert.False(t, staff.IsModerator("user1"))
	assert.False(t, staff.HasPermission("user1", PermissionSubmitAction))
}

func TestNewStaff_MissingFile(t *testing.T) {
	// Staff should work in disabled mode when file doesn't exist
	staff, err := NewStaff("/nonexistent/path/staff.json")
	require.NoError(t, err)
	assert.NotNil(t, staff)
	assert.False(t, staff.IsEnabled())
}

func TestNewStaff_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "staff.json")

	err := os.WriteFile(configPath, []byte("not valid json"), 0644)
	require.NoError(t, err)

	_, err = NewStaff(configPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestNewStaff_InvalidRole(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "staff.json")

	config := `{
		"roles": {
			"admin": {
				"description": "Admin role",
				"permissions": ["submit_action"]
			}
		},
		"users": [
			{"user_id": "user1", "role": "nonexistent"}
		]
	}`

	err := os.WriteFile(configPath, []byte(config), 0644)
	require.NoError(t, err)

	_, err = NewStaff(configPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestNewStaff_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "staff.json")

	config := `{
		"roles": {
			"admin": {
				"description": "Full moderation control",
				"permissions": ["submit_action", "dismiss_report", "view_queue", "view_audit_log"]
			},
			"moderator": {
				"description": "Queue triage",
				"permissions": ["dismiss_report", "view_queue"]
			}
		},
		"users": [
			{"user_id": "admin1", "name": "Lead Admin", "role": "admin", "note": "Founding staff"},
			{"user_id": "mod1", "name": "Night Shift", "role": "moderator"}
		]
	}`

	err := os.WriteFile(configPath, []byte(config), 0644)
	require.NoError(t, err)

	staff, err := NewStaff(configPath)
	require.NoError(t, err)
	assert.True(t, staff.IsEnabled())

	t.Run("admin has all permissions", func(t *testing.T) {
		assert.True(t, staff.IsAdmin("admin1"))
		assert.True(t, staff.IsModerator("admin1"))
		for _, perm := range AllPermissions() {
			assert.True(t, staff.HasPermission("admin1", perm), "permission %s", perm)
		}
	})

	t.Run("moderator has a subset", func(t *testing.T) {
		assert.False(t, staff.IsAdmin("mod1"))
		assert.True(t, staff.IsModerator("mod1"))
		assert.True(t, staff.HasPermission("mod1", PermissionDismissReport))
		assert.True(t, staff.HasPermission("mod1", PermissionViewQueue))
		assert.False(t, staff.HasPermission("mod1", PermissionSubmitAction))
		assert.False(t, staff.HasPermission("mod1", PermissionViewAuditLog))
	})

	t.Run("unknown users have nothing", func(t *testing.T) {
		assert.False(t, staff.IsAdmin("stranger"))
		assert.False(t, staff.IsModerator("stranger"))
		assert.False(t, staff.HasPermission("stranger", PermissionViewQueue))
	})

	t.Run("role lookup returns a copy", func(t *testing.T) {
		role, ok := staff.GetRole("mod1")
		require.True(t, ok)
		assert.Equal(t, RoleModerator, role.Name)

		role.Permissions = append(role.Permissions, PermissionSubmitAction)
		assert.False(t, staff.HasPermission("mod1", PermissionSubmitAction))
	})

	t.Run("list staff", func(t *testing.T) {
		users := staff.ListStaff()
		require.Len(t, users, 2)
		assert.Equal(t, "admin1", users[0].UserID)
		assert.Equal(t, RoleAdmin, users[0].Role)
	})
}

func TestStaffReload(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "staff.json")

	config := `{
		"roles": {
			"moderator": {"description": "Queue triage", "permissions": ["view_queue"]}
		},
		"users": [
			{"user_id": "mod1", "role": "moderator"}
		]
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))

	staff, err := NewStaff(configPath)
	require.NoError(t, err)
	assert.True(t, staff.HasPermission("mod1", PermissionViewQueue))
	assert.False(t, staff.HasPermission("mod2", PermissionViewQueue))

	updated := `{
		"roles": {
			"moderator": {"description": "Queue triage", "permissions": ["view_queue"]}
		},
		"users": [
			{"user_id": "mod2", "role": "moderator"}
		]
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(updated), 0644))
	require.NoError(t, staff.Reload())

	assert.False(t, staff.HasPermission("mod1", PermissionViewQueue))
	assert.True(t, staff.HasPermission("mod2", PermissionViewQueue))
}
