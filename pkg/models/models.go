// Package models provides shared types for the opsboard HTTP API and external tools.
// These types mirror the API JSON and are stable for use by pkg/client and other consumers.
package models

import "time"

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

// User is a login-capable account (admin, manager, or user).
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// DivUser is a task-assignable person record without login capability.
type DivUser struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	UserID          int64     `json:"user_id"`
	LinkedUserName  string    `json:"linked_user_name,omitempty"`
	LinkedUserEmail string    `json:"linked_user_email,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// Tag is a named label, globally unique by name.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// File is an attachment record belonging to exactly one task or one subtask.
type File struct {
	ID               int64     `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `json:"mime_type"`
	UploadedBy       int64     `json:"uploaded_by"`
	UploadedByName   string    `json:"uploaded_by_name,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
}

// Subtask is owned exclusively by one task; the whole collection is
// replaced as a unit on task update.
type Subtask struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Files     []File    `json:"files"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Task is the hydrated task response: stored fields plus resolved
// assignment names, tags, subtasks, and files.
type Task struct {
	ID                    int64     `json:"id"`
	Title                 string    `json:"title"`
	Description           *string   `json:"description"`
	Priority              string    `json:"priority"`
	Status                string    `json:"status"`
	AssignedToDiv         *int64    `json:"assigned_to_div"`
	AssignedToDivName     *string   `json:"assigned_to_div_name,omitempty"`
	AssignedToDivEmail    *string   `json:"assigned_to_div_email,omitempty"`
	AssignedToDivUser     *int64    `json:"assigned_to_div_user"`
	AssignedToDivUserName *string   `json:"assigned_to_div_user_name,omitempty"`
	CreatedBy             int64     `json:"created_by"`
	CreatedByName         string    `json:"created_by_name,omitempty"`
	AssignmentDate        string    `json:"assignment_date"`
	DueDate               *string   `json:"due_date"`
	Notes                 *string   `json:"notes"`
	Tags                  []Tag     `json:"tags"`
	Subtasks              []Subtask `json:"subtasks"`
	Files                 []File    `json:"files"`
	CreatedAt             time.Time `json:"created_at,omitempty"`
}

// HistoryEntry is one immutable audit record on a task.
type HistoryEntry struct {
	ID             int64     `json:"id"`
	TaskID         int64     `json:"task_id"`
	ChangeType     string    `json:"change_type"`
	FieldName      *string   `json:"field_name"`
	OldValue       *string   `json:"old_value"`
	NewValue       *string   `json:"new_value"`
	Description    *string   `json:"change_description"`
	ChangedBy      int64     `json:"changed_by"`
	ChangedByName  string    `json:"changed_by_name,omitempty"`
	ChangedByEmail string    `json:"changed_by_email,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TaskSummary is the dashboard counts response.
type TaskSummary struct {
	Total      int64 `json:"total"`
	Completed  int64 `json:"completed"`
	InProgress int64 `json:"in_progress"`
	NotStarted int64 `json:"not_started"`
	Suspended  int64 `json:"suspended"`
	Overdue    int64 `json:"overdue"`
}

// SubtaskInput is a requested subtask in a create/update payload.
type SubtaskInput struct {
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
}

// CreateTaskRequest is the POST /tasks payload.
type CreateTaskRequest struct {
	Title             string         `json:"title"`
	Description       *string        `json:"description,omitempty"`
	Priority          string         `json:"priority,omitempty"`
	AssignedToDiv     *int64         `json:"assigned_to_div,omitempty"`
	AssignedToDivUser *int64         `json:"assigned_to_div_user,omitempty"`
	DueDate           *string        `json:"due_date,omitempty"`
	Status            string         `json:"status,omitempty"`
	Notes             *string        `json:"notes,omitempty"`
	TagIDs            []int64        `json:"tag_ids,omitempty"`
	Subtasks          []SubtaskInput `json:"subtasks,omitempty"`
}

// UpdateTaskRequest is the PUT /tasks/{id} payload. Every field is
// Optional so the engine can distinguish "absent" (leave untouched)
// from "present but null" (clear the value).
type UpdateTaskRequest struct {
	Title             Optional[string]         `json:"title"`
	Description       Optional[string]         `json:"description"`
	Priority          Optional[string]         `json:"priority"`
	AssignedToDiv     Optional[int64]          `json:"assigned_to_div"`
	AssignedToDivUser Optional[int64]          `json:"assigned_to_div_user"`
	DueDate           Optional[string]         `json:"due_date"`
	Status            Optional[string]         `json:"status"`
	Notes             Optional[string]         `json:"notes"`
	TagIDs            Optional[[]int64]        `json:"tag_ids"`
	Subtasks          Optional[[]SubtaskInput] `json:"subtasks"`
}
