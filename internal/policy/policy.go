// Package policy holds the role rules for task and tag operations.
// Roles are "admin", "manager", and "user".
package policy

import "github.com/mverkerk/opsboard/pkg/models"

// CanCreateOrDeleteTask reports whether role may create or delete tasks.
// Admins and managers can; plain users cannot.
func CanCreateOrDeleteTask(role string) bool {
	return role == models.RoleAdmin || role == models.RoleManager
}

// CanReassign reports whether role may change a task's assignment fields.
// Plain users cannot reassign; their assignment edits are dropped silently
// rather than rejected.
func CanReassign(role string) bool {
	return role != models.RoleUser
}

// CanViewOrEditTask reports whether the actor may see and update the task.
// Admins and managers see everything; users only tasks assigned to them.
func CanViewOrEditTask(actor models.Actor, assignedToDiv *int64) bool {
	if actor.Role == models.RoleAdmin || actor.Role == models.RoleManager {
		return true
	}
	return assignedToDiv != nil && *assignedToDiv == actor.ID
}

// CanManageDivUsers reports whether role may create, rename, or delete
// div-users.
func CanManageDivUsers(role string) bool {
	return role == models.RoleAdmin || role == models.RoleManager
}

// CanDeleteTag reports whether role may delete a tag. Tag creation is open
// to every authenticated actor; deletion is admin only.
func CanDeleteTag(role string) bool {
	return role == models.RoleAdmin
}
