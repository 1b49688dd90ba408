// Package store defines the persistence interface and shared row models for
// users, div-users, tasks, subtasks, tags, files, and task history.
package store

import "time"

// User is a login-capable account.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// DivUser is a task-assignable person without login capability, linked
// one-to-one to a User.
type DivUser struct {
	ID              int64
	Name            string
	UserID          int64
	LinkedUserName  string
	LinkedUserEmail string
	CreatedAt       time.Time
}

// Task is a stored task row with assignment names resolved via joins.
type Task struct {
	ID                    int64
	Title                 string
	Description           *string
	Priority              string
	Status                string
	AssignedToDiv         *int64
	AssignedToDivName     *string
	AssignedToDivEmail    *string
	AssignedToDivUser     *int64
	AssignedToDivUserName *string
	CreatedBy             int64
	CreatedByName         string
	AssignmentDate        string  // YYYY-MM-DD
	DueDate               *string // YYYY-MM-DD
	Notes                 *string
	CreatedAt             time.Time
}

// NewTask is the insert payload for a task row.
type NewTask struct {
	Title             string
	Description       *string
	Priority          string
	AssignedToDiv     *int64
	AssignedToDivUser *int64
	CreatedBy         int64
	AssignmentDate    string
	DueDate           *string
	Status            string
	Notes             *string
}

// Subtask is a stored subtask row.
type Subtask struct {
	ID        int64
	TaskID    int64
	Title     string
	Status    string
	CreatedAt time.Time
}

// Tag is a stored tag row.
type Tag struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// File is a stored attachment record. Exactly one of TaskID/SubtaskID is set.
type File struct {
	ID               int64
	Filename         string
	OriginalFilename string
	FilePath         string
	FileSize         int64
	MimeType         string
	TaskID           *int64
	SubtaskID        *int64
	UploadedBy       int64
	UploadedByName   string
	CreatedAt        time.Time
}

// NewFile is the insert payload for a file record. CreatedAt may be set to
// carry an original timestamp forward (subtask replace preservation); zero
// means "now".
type NewFile struct {
	Filename         string
	OriginalFilename string
	FilePath         string
	FileSize         int64
	MimeType         string
	TaskID           *int64
	SubtaskID        *int64
	UploadedBy       int64
	CreatedAt        time.Time
}

// HistoryEntry is a stored audit record with the actor resolved via join.
type HistoryEntry struct {
	ID             int64
	TaskID         int64
	ChangedBy      int64
	ChangedByName  string
	ChangedByEmail string
	ChangeType     string
	FieldName      *string
	OldValue       *string
	NewValue       *string
	Description    *string
	CreatedAt      time.Time
}

// NewHistory is the insert payload for a history entry.
type NewHistory struct {
	TaskID      int64
	ChangedBy   int64
	ChangeType  string
	FieldName   *string
	OldValue    *string
	NewValue    *string
	Description *string
}

// TaskSummary holds dashboard counts.
type TaskSummary struct {
	Total      int64
	Completed  int64
	InProgress int64
	NotStarted int64
	Suspended  int64
	Overdue    int64
}
