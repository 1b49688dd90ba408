package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mverkerk/opsboard/internal/store"
)

const taskSelect = `
SELECT t.id, t.title, t.description, t.priority, t.status,
       t.assigned_to_div, au.name, au.email,
       t.assigned_to_div_user, du.name,
       t.created_by, cu.name,
       t.assignment_date, t.due_date, t.notes, t.created_at
FROM tasks t
LEFT JOIN users au ON t.assigned_to_div = au.id
LEFT JOIN div_users du ON t.assigned_to_div_user = du.id
INNER JOIN users cu ON t.created_by = cu.id`

var updatableTaskColumns = map[string]bool{
	"title":                true,
	"description":          true,
	"priority":             true,
	"status":               true,
	"assigned_to_div":      true,
	"assigned_to_div_user": true,
	"due_date":             true,
	"notes":                true,
}

// ---- Users ----

func (s *Store) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	return scanUser(s.Pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, role, created_at FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return scanUser(s.Pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, role, created_at FROM users WHERE email = $1`, email))
}

func (s *Store) ListUsers(ctx context.Context) ([]store.User, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, name, email, password_hash, role, created_at FROM users ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.User
	for rows.Next() {
		var u store.User
		var created int64
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash, role string) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO users(name, email, password_hash, role, created_at) VALUES($1, $2, $3, $4, $5) RETURNING id`,
		name, email, passwordHash, role, time.Now().Unix()).Scan(&id)
	return id, err
}

func scanUser(row pgx.Row) (*store.User, error) {
	var u store.User
	var created int64
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return &u, nil
}

// ---- Div-users ----

const divUserSelect = `
SELECT d.id, d.name, d.user_id, u.name, u.email, d.created_at
FROM div_users d
INNER JOIN users u ON d.user_id = u.id`

func (s *Store) ListDivUsers(ctx context.Context) ([]store.DivUser, error) {
	rows, err := s.Pool.Query(ctx, divUserSelect+` ORDER BY d.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.DivUser
	for rows.Next() {
		d, err := scanDivUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *Store) GetDivUserByID(ctx context.Context, id int64) (*store.DivUser, error) {
	d, err := scanDivUser(s.Pool.QueryRow(ctx, divUserSelect+` WHERE d.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return d, err
}

func (s *Store) GetDivUserByUserID(ctx context.Context, userID int64) (*store.DivUser, error) {
	d, err := scanDivUser(s.Pool.QueryRow(ctx, divUserSelect+` WHERE d.user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return d, err
}

func scanDivUser(row pgx.Row) (*store.DivUser, error) {
	var d store.DivUser
	var created int64
	if err := row.Scan(&d.ID, &d.Name, &d.UserID, &d.LinkedUserName, &d.LinkedUserEmail, &created); err != nil {
		return nil, err
	}
	d.CreatedAt = time.Unix(created, 0).UTC()
	return &d, nil
}

func (s *Store) CreateDivUser(ctx context.Context, name string, userID int64) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO div_users(name, user_id, created_at) VALUES($1, $2, $3) RETURNING id`,
		name, userID, time.Now().Unix()).Scan(&id)
	return id, err
}

func (s *Store) UpdateDivUser(ctx context.Context, id int64, name *string, userID *int64) error {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if name != nil {
		args = append(args, *name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if userID != nil {
		args = append(args, *userID)
		sets = append(sets, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	tag, err := s.Pool.Exec(ctx,
		fmt.Sprintf(`UPDATE div_users SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteDivUser(ctx context.Context, id int64) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM div_users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountTasksForDivUser(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE assigned_to_div_user = $1`, id).Scan(&n)
	return n, err
}

// ---- Tasks ----

func (s *Store) ListTasks(ctx context.Context, assignedToDiv *int64) ([]store.Task, error) {
	q := taskSelect
	var args []any
	if assignedToDiv != nil {
		q += ` WHERE t.assigned_to_div = $1`
		args = append(args, *assignedToDiv)
	}
	q += ` ORDER BY t.due_date ASC, t.priority DESC`

	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) GetTaskByID(ctx context.Context, id int64) (*store.Task, error) {
	t, err := scanTask(s.Pool.QueryRow(ctx, taskSelect+` WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return t, err
}

func scanTask(row pgx.Row) (*store.Task, error) {
	var t store.Task
	var created int64
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status,
		&t.AssignedToDiv, &t.AssignedToDivName, &t.AssignedToDivEmail,
		&t.AssignedToDivUser, &t.AssignedToDivUserName,
		&t.CreatedBy, &t.CreatedByName,
		&t.AssignmentDate, &t.DueDate, &t.Notes, &created)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = time.Unix(created, 0).UTC()
	return &t, nil
}

func (s *Store) InsertTask(ctx context.Context, t store.NewTask) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx, `
INSERT INTO tasks(title, description, priority, assigned_to_div, assigned_to_div_user,
                  created_by, assignment_date, due_date, status, notes, created_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		t.Title, t.Description, t.Priority, t.AssignedToDiv, t.AssignedToDivUser,
		t.CreatedBy, t.AssignmentDate, t.DueDate, t.Status, t.Notes, time.Now().Unix()).Scan(&id)
	return id, err
}

func (s *Store) UpdateTaskFields(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for col, v := range fields {
		if !updatableTaskColumns[col] {
			return fmt.Errorf("column %q is not updatable", col)
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, id)
	tag, err := s.Pool.Exec(ctx,
		fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Summary(ctx context.Context, assignedToDiv *int64) (store.TaskSummary, error) {
	q := `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN status = 'not_started' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN status = 'suspended' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN due_date IS NOT NULL AND due_date < $1 AND status != 'completed' THEN 1 ELSE 0 END), 0)
FROM tasks`
	args := []any{time.Now().UTC().Format("2006-01-02")}
	if assignedToDiv != nil {
		q += ` WHERE assigned_to_div = $2`
		args = append(args, *assignedToDiv)
	}

	var sum store.TaskSummary
	err := s.Pool.QueryRow(ctx, q, args...).Scan(
		&sum.Total, &sum.Completed, &sum.InProgress, &sum.NotStarted, &sum.Suspended, &sum.Overdue)
	return sum, err
}

// ---- Tags ----

func (s *Store) ListTags(ctx context.Context) ([]store.Tag, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, created_at FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTags(rows)
}

func (s *Store) GetTagByID(ctx context.Context, id int64) (*store.Tag, error) {
	t, err := scanTag(s.Pool.QueryRow(ctx, `SELECT id, name, created_at FROM tags WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return t, err
}

func (s *Store) GetTagByName(ctx context.Context, name string) (*store.Tag, error) {
	t, err := scanTag(s.Pool.QueryRow(ctx, `SELECT id, name, created_at FROM tags WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return t, err
}

func (s *Store) GetTagsByIDs(ctx context.Context, ids []int64) ([]store.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, name, created_at FROM tags WHERE id = ANY($1) ORDER BY name ASC`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTags(rows)
}

func (s *Store) ListTagsByTask(ctx context.Context, taskID int64) ([]store.Tag, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT tg.id, tg.name, tg.created_at
FROM tags tg
INNER JOIN task_tags tt ON tg.id = tt.tag_id
WHERE tt.task_id = $1
ORDER BY tg.name ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTags(rows)
}

func collectTags(rows pgx.Rows) ([]store.Tag, error) {
	var out []store.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTag(row pgx.Row) (*store.Tag, error) {
	var t store.Tag
	var created int64
	if err := row.Scan(&t.ID, &t.Name, &created); err != nil {
		return nil, err
	}
	t.CreatedAt = time.Unix(created, 0).UTC()
	return &t, nil
}

func (s *Store) CreateTag(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO tags(name, created_at) VALUES($1, $2) RETURNING id`,
		name, time.Now().Unix()).Scan(&id)
	return id, err
}

func (s *Store) DeleteTag(ctx context.Context, id int64) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTaskTagLinks(ctx context.Context, taskID int64) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM task_tags WHERE task_id = $1`, taskID)
	return err
}

func (s *Store) InsertTaskTagLink(ctx context.Context, taskID, tagID int64) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO task_tags(task_id, tag_id, created_at) VALUES($1, $2, $3)`,
		taskID, tagID, time.Now().Unix())
	return err
}

// ---- Subtasks ----

func (s *Store) ListSubtasksByTask(ctx context.Context, taskID int64) ([]store.Subtask, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, task_id, title, status, created_at FROM subtasks WHERE task_id = $1 ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Subtask
	for rows.Next() {
		var st store.Subtask
		var created int64
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Title, &st.Status, &created); err != nil {
			return nil, err
		}
		st.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) InsertSubtask(ctx context.Context, taskID int64, title, status string) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO subtasks(task_id, title, status, created_at) VALUES($1, $2, $3, $4) RETURNING id`,
		taskID, title, status, time.Now().Unix()).Scan(&id)
	return id, err
}

func (s *Store) DeleteSubtasksByTask(ctx context.Context, taskID int64) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM subtasks WHERE task_id = $1`, taskID)
	return err
}

// ---- Files ----

const fileSelect = `
SELECT f.id, f.filename, f.original_filename, f.file_path, f.file_size, f.mime_type,
       f.task_id, f.subtask_id, f.uploaded_by, u.name, f.created_at
FROM files f
INNER JOIN users u ON f.uploaded_by = u.id`

func (s *Store) ListFilesByTask(ctx context.Context, taskID int64) ([]store.File, error) {
	rows, err := s.Pool.Query(ctx, fileSelect+` WHERE f.task_id = $1 ORDER BY f.id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFiles(rows)
}

func (s *Store) ListFilesBySubtask(ctx context.Context, subtaskID int64) ([]store.File, error) {
	rows, err := s.Pool.Query(ctx, fileSelect+` WHERE f.subtask_id = $1 ORDER BY f.id ASC`, subtaskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFiles(rows)
}

func (s *Store) GetFileByID(ctx context.Context, id int64) (*store.File, error) {
	f, err := scanFile(s.Pool.QueryRow(ctx, fileSelect+` WHERE f.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return f, err
}

func collectFiles(rows pgx.Rows) ([]store.File, error) {
	var out []store.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func scanFile(row pgx.Row) (*store.File, error) {
	var f store.File
	var created int64
	err := row.Scan(&f.ID, &f.Filename, &f.OriginalFilename, &f.FilePath, &f.FileSize,
		&f.MimeType, &f.TaskID, &f.SubtaskID, &f.UploadedBy, &f.UploadedByName, &created)
	if err != nil {
		return nil, err
	}
	f.CreatedAt = time.Unix(created, 0).UTC()
	return &f, nil
}

func (s *Store) InsertFile(ctx context.Context, f store.NewFile) (int64, error) {
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var id int64
	err := s.Pool.QueryRow(ctx, `
INSERT INTO files(filename, original_filename, file_path, file_size, mime_type,
                  task_id, subtask_id, uploaded_by, created_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		f.Filename, f.OriginalFilename, f.FilePath, f.FileSize, f.MimeType,
		f.TaskID, f.SubtaskID, f.UploadedBy, created.Unix()).Scan(&id)
	return id, err
}

func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---- History ----

func (s *Store) InsertHistory(ctx context.Context, h store.NewHistory) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx, `
INSERT INTO task_history(task_id, changed_by, change_type, field_name, old_value, new_value, change_description, created_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		h.TaskID, h.ChangedBy, h.ChangeType, h.FieldName, h.OldValue, h.NewValue,
		h.Description, time.Now().Unix()).Scan(&id)
	return id, err
}

func (s *Store) ListHistoryByTask(ctx context.Context, taskID int64) ([]store.HistoryEntry, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT h.id, h.task_id, h.changed_by, u.name, u.email, h.change_type,
       h.field_name, h.old_value, h.new_value, h.change_description, h.created_at
FROM task_history h
INNER JOIN users u ON h.changed_by = u.id
WHERE h.task_id = $1
ORDER BY h.created_at DESC, h.id DESC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.HistoryEntry
	for rows.Next() {
		var e store.HistoryEntry
		var created int64
		err := rows.Scan(&e.ID, &e.TaskID, &e.ChangedBy, &e.ChangedByName, &e.ChangedByEmail,
			&e.ChangeType, &e.FieldName, &e.OldValue, &e.NewValue, &e.Description, &created)
		if err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
