package models

// Task statuses.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusSuspended  = "suspended"
)

// Subtask statuses.
const (
	SubtaskNotStarted = "not_started"
	SubtaskCompleted  = "completed"
)

// Task priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Roles.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// History change kinds.
const (
	ChangeStatus       = "status_change"
	ChangeAssignment   = "assignment_change"
	ChangeTags         = "tags_change"
	ChangeDueDate      = "due_date_change"
	ChangeSubtaskAdded = "subtask_added"
	ChangeNotes        = "notes_updated"
	ChangePriority     = "priority_change"
	ChangeTaskCreated  = "task_created"
)

// ValidStatus reports whether s is one of the task status values.
func ValidStatus(s string) bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusSuspended:
		return true
	}
	return false
}

// ValidPriority reports whether p is one of the priority values.
func ValidPriority(p string) bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ValidSubtaskStatus reports whether s is a subtask status value.
func ValidSubtaskStatus(s string) bool {
	return s == SubtaskNotStarted || s == SubtaskCompleted
}

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleManager || r == RoleUser
}

// Default limits.
const (
	DefaultMaxRequestBodyBytes = 1 << 20 // 1 MiB
	DefaultSSEChannelBuffer    = 256
	MaxTagNameLen              = 50
)
