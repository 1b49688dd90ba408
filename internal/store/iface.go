package store

import "context"

// Store is the persistence interface for users, div-users, tasks, subtasks,
// tags, files, and task history.
// Implementations: the SQLite store returned by Open and *postgres.Store.
type Store interface {
	// Users
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, name, email, passwordHash, role string) (int64, error)

	// Div-users
	ListDivUsers(ctx context.Context) ([]DivUser, error)
	GetDivUserByID(ctx context.Context, id int64) (*DivUser, error)
	GetDivUserByUserID(ctx context.Context, userID int64) (*DivUser, error)
	CreateDivUser(ctx context.Context, name string, userID int64) (int64, error)
	UpdateDivUser(ctx context.Context, id int64, name *string, userID *int64) error
	DeleteDivUser(ctx context.Context, id int64) error
	CountTasksForDivUser(ctx context.Context, id int64) (int64, error)

	// Tasks. assignedToDiv filters the list/summary to tasks assigned to
	// that user (role "user" pre-filtering); nil means no filter.
	ListTasks(ctx context.Context, assignedToDiv *int64) ([]Task, error)
	GetTaskByID(ctx context.Context, id int64) (*Task, error)
	InsertTask(ctx context.Context, t NewTask) (int64, error)
	// UpdateTaskFields applies a sparse column->value write set in one
	// UPDATE. Keys must be updatable task columns; a nil value writes NULL.
	UpdateTaskFields(ctx context.Context, id int64, fields map[string]any) error
	DeleteTask(ctx context.Context, id int64) error
	Summary(ctx context.Context, assignedToDiv *int64) (TaskSummary, error)

	// Tags
	ListTags(ctx context.Context) ([]Tag, error)
	GetTagByID(ctx context.Context, id int64) (*Tag, error)
	GetTagByName(ctx context.Context, name string) (*Tag, error)
	GetTagsByIDs(ctx context.Context, ids []int64) ([]Tag, error)
	ListTagsByTask(ctx context.Context, taskID int64) ([]Tag, error)
	CreateTag(ctx context.Context, name string) (int64, error)
	DeleteTag(ctx context.Context, id int64) error
	DeleteTaskTagLinks(ctx context.Context, taskID int64) error
	InsertTaskTagLink(ctx context.Context, taskID, tagID int64) error

	// Subtasks
	ListSubtasksByTask(ctx context.Context, taskID int64) ([]Subtask, error)
	InsertSubtask(ctx context.Context, taskID int64, title, status string) (int64, error)
	DeleteSubtasksByTask(ctx context.Context, taskID int64) error

	// Files
	ListFilesByTask(ctx context.Context, taskID int64) ([]File, error)
	ListFilesBySubtask(ctx context.Context, subtaskID int64) ([]File, error)
	GetFileByID(ctx context.Context, id int64) (*File, error)
	InsertFile(ctx context.Context, f NewFile) (int64, error)
	DeleteFile(ctx context.Context, id int64) error

	// History
	InsertHistory(ctx context.Context, h NewHistory) (int64, error)
	ListHistoryByTask(ctx context.Context, taskID int64) ([]HistoryEntry, error)

	// Lifecycle
	Close() error
}
