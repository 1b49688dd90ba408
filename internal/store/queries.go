package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

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

// updatableTaskColumns is the whitelist for UpdateTaskFields.
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

func (s *sqliteStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return scanUserRow(s.stmtGetUserByID.QueryRowContext(ctx, id))
}

func (s *sqliteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, role, created_at FROM users WHERE email = ?`, email)
	return scanUserRow(row)
}

func (s *sqliteStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, email, password_hash, role, created_at FROM users ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []User
	for rows.Next() {
		var u User
		var created int64
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CreateUser(ctx context.Context, name, email, passwordHash, role string) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO users(name, email, password_hash, role, created_at) VALUES(?, ?, ?, ?, ?)`,
		name, email, passwordHash, role, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanUserRow(row *sql.Row) (*User, error) {
	var u User
	var created int64
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
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

func (s *sqliteStore) ListDivUsers(ctx context.Context) ([]DivUser, error) {
	rows, err := s.DB.QueryContext(ctx, divUserSelect+` ORDER BY d.name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []DivUser
	for rows.Next() {
		d, err := scanDivUserRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetDivUserByID(ctx context.Context, id int64) (*DivUser, error) {
	return scanDivUserRowErr(scanDivUserRow(s.DB.QueryRowContext(ctx, divUserSelect+` WHERE d.id = ?`, id)))
}

func (s *sqliteStore) GetDivUserByUserID(ctx context.Context, userID int64) (*DivUser, error) {
	return scanDivUserRowErr(scanDivUserRow(s.DB.QueryRowContext(ctx, divUserSelect+` WHERE d.user_id = ?`, userID)))
}

func scanDivUserRowErr(d *DivUser, err error) (*DivUser, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func scanDivUserRow(row interface{ Scan(dest ...any) error }) (*DivUser, error) {
	var d DivUser
	var created int64
	if err := row.Scan(&d.ID, &d.Name, &d.UserID, &d.LinkedUserName, &d.LinkedUserEmail, &created); err != nil {
		return nil, err
	}
	d.CreatedAt = time.Unix(created, 0).UTC()
	return &d, nil
}

func (s *sqliteStore) CreateDivUser(ctx context.Context, name string, userID int64) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO div_users(name, user_id, created_at) VALUES(?, ?, ?)`,
		name, userID, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) UpdateDivUser(ctx context.Context, id int64, name *string, userID *int64) error {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *name)
	}
	if userID != nil {
		sets = append(sets, "user_id = ?")
		args = append(args, *userID)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := s.DB.ExecContext(ctx,
		`UPDATE div_users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *sqliteStore) DeleteDivUser(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM div_users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *sqliteStore) CountTasksForDivUser(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE assigned_to_div_user = ?`, id).Scan(&n)
	return n, err
}

// ---- Tasks ----

func (s *sqliteStore) ListTasks(ctx context.Context, assignedToDiv *int64) ([]Task, error) {
	q := taskSelect
	var args []any
	if assignedToDiv != nil {
		q += ` WHERE t.assigned_to_div = ?`
		args = append(args, *assignedToDiv)
	}
	q += ` ORDER BY t.due_date ASC, t.priority DESC`

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetTaskByID(ctx context.Context, id int64) (*Task, error) {
	t, err := scanTaskRow(s.stmtGetTaskByID.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func scanTaskRow(row interface{ Scan(dest ...any) error }) (*Task, error) {
	var t Task
	var (
		description     sql.NullString
		assignedDiv     sql.NullInt64
		assignedDivName sql.NullString
		assignedDivMail sql.NullString
		assignedDU      sql.NullInt64
		assignedDUName  sql.NullString
		dueDate         sql.NullString
		notes           sql.NullString
		created         int64
	)
	err := row.Scan(&t.ID, &t.Title, &description, &t.Priority, &t.Status,
		&assignedDiv, &assignedDivName, &assignedDivMail,
		&assignedDU, &assignedDUName,
		&t.CreatedBy, &t.CreatedByName,
		&t.AssignmentDate, &dueDate, &notes, &created)
	if err != nil {
		return nil, err
	}
	t.Description = nullableString(description)
	t.AssignedToDiv = nullableInt64(assignedDiv)
	t.AssignedToDivName = nullableString(assignedDivName)
	t.AssignedToDivEmail = nullableString(assignedDivMail)
	t.AssignedToDivUser = nullableInt64(assignedDU)
	t.AssignedToDivUserName = nullableString(assignedDUName)
	t.DueDate = nullableString(dueDate)
	t.Notes = nullableString(notes)
	t.CreatedAt = time.Unix(created, 0).UTC()
	return &t, nil
}

func (s *sqliteStore) InsertTask(ctx context.Context, t NewTask) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
INSERT INTO tasks(title, description, priority, assigned_to_div, assigned_to_div_user,
                  created_by, assignment_date, due_date, status, notes, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, nullString(t.Description), t.Priority,
		nullInt64(t.AssignedToDiv), nullInt64(t.AssignedToDivUser),
		t.CreatedBy, t.AssignmentDate, nullString(t.DueDate),
		t.Status, nullString(t.Notes), time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) UpdateTaskFields(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for col, v := range fields {
		if !updatableTaskColumns[col] {
			return fmt.Errorf("column %q is not updatable", col)
		}
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	args = append(args, id)
	res, err := s.DB.ExecContext(ctx,
		`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *sqliteStore) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *sqliteStore) Summary(ctx context.Context, assignedToDiv *int64) (TaskSummary, error) {
	q := `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN status = 'not_started' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN status = 'suspended' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN due_date IS NOT NULL AND due_date < ? AND status != 'completed' THEN 1 ELSE 0 END), 0)
FROM tasks`
	args := []any{time.Now().UTC().Format("2006-01-02")}
	if assignedToDiv != nil {
		q += ` WHERE assigned_to_div = ?`
		args = append(args, *assignedToDiv)
	}

	var sum TaskSummary
	err := s.DB.QueryRowContext(ctx, q, args...).Scan(
		&sum.Total, &sum.Completed, &sum.InProgress, &sum.NotStarted, &sum.Suspended, &sum.Overdue)
	return sum, err
}

// ---- Tags ----

func (s *sqliteStore) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, created_at FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectTags(rows)
}

func (s *sqliteStore) GetTagByID(ctx context.Context, id int64) (*Tag, error) {
	return scanTagRowErr(scanTagRow(s.DB.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tags WHERE id = ?`, id)))
}

func (s *sqliteStore) GetTagByName(ctx context.Context, name string) (*Tag, error) {
	return scanTagRowErr(scanTagRow(s.DB.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tags WHERE name = ?`, name)))
}

func (s *sqliteStore) GetTagsByIDs(ctx context.Context, ids []int64) ([]Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, created_at FROM tags WHERE id IN (`+placeholders+`) ORDER BY name ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectTags(rows)
}

func (s *sqliteStore) ListTagsByTask(ctx context.Context, taskID int64) ([]Tag, error) {
	rows, err := s.stmtListTagsByTask.QueryContext(ctx, taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectTags(rows)
}

func collectTags(rows *sql.Rows) ([]Tag, error) {
	var out []Tag
	for rows.Next() {
		t, err := scanTagRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTagRowErr(t *Tag, err error) (*Tag, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func scanTagRow(row interface{ Scan(dest ...any) error }) (*Tag, error) {
	var t Tag
	var created int64
	if err := row.Scan(&t.ID, &t.Name, &created); err != nil {
		return nil, err
	}
	t.CreatedAt = time.Unix(created, 0).UTC()
	return &t, nil
}

func (s *sqliteStore) CreateTag(ctx context.Context, name string) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO tags(name, created_at) VALUES(?, ?)`, name, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) DeleteTag(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *sqliteStore) DeleteTaskTagLinks(ctx context.Context, taskID int64) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = ?`, taskID)
	return err
}

func (s *sqliteStore) InsertTaskTagLink(ctx context.Context, taskID, tagID int64) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO task_tags(task_id, tag_id, created_at) VALUES(?, ?, ?)`,
		taskID, tagID, time.Now().Unix())
	return err
}

// ---- Subtasks ----

func (s *sqliteStore) ListSubtasksByTask(ctx context.Context, taskID int64) ([]Subtask, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, task_id, title, status, created_at FROM subtasks WHERE task_id = ? ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Subtask
	for rows.Next() {
		var st Subtask
		var created int64
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Title, &st.Status, &created); err != nil {
			return nil, err
		}
		st.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *sqliteStore) InsertSubtask(ctx context.Context, taskID int64, title, status string) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO subtasks(task_id, title, status, created_at) VALUES(?, ?, ?, ?)`,
		taskID, title, status, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) DeleteSubtasksByTask(ctx context.Context, taskID int64) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM subtasks WHERE task_id = ?`, taskID)
	return err
}

// ---- Files ----

const fileSelect = `
SELECT f.id, f.filename, f.original_filename, f.file_path, f.file_size, f.mime_type,
       f.task_id, f.subtask_id, f.uploaded_by, u.name, f.created_at
FROM files f
INNER JOIN users u ON f.uploaded_by = u.id`

func (s *sqliteStore) ListFilesByTask(ctx context.Context, taskID int64) ([]File, error) {
	rows, err := s.DB.QueryContext(ctx, fileSelect+` WHERE f.task_id = ? ORDER BY f.id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectFiles(rows)
}

func (s *sqliteStore) ListFilesBySubtask(ctx context.Context, subtaskID int64) ([]File, error) {
	rows, err := s.DB.QueryContext(ctx, fileSelect+` WHERE f.subtask_id = ? ORDER BY f.id ASC`, subtaskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectFiles(rows)
}

func (s *sqliteStore) GetFileByID(ctx context.Context, id int64) (*File, error) {
	f, err := scanFileRow(s.DB.QueryRowContext(ctx, fileSelect+` WHERE f.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

func collectFiles(rows *sql.Rows) ([]File, error) {
	var out []File
	for rows.Next() {
		f, err := scanFileRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func scanFileRow(row interface{ Scan(dest ...any) error }) (*File, error) {
	var f File
	var (
		taskID    sql.NullInt64
		subtaskID sql.NullInt64
		created   int64
	)
	err := row.Scan(&f.ID, &f.Filename, &f.OriginalFilename, &f.FilePath, &f.FileSize,
		&f.MimeType, &taskID, &subtaskID, &f.UploadedBy, &f.UploadedByName, &created)
	if err != nil {
		return nil, err
	}
	f.TaskID = nullableInt64(taskID)
	f.SubtaskID = nullableInt64(subtaskID)
	f.CreatedAt = time.Unix(created, 0).UTC()
	return &f, nil
}

func (s *sqliteStore) InsertFile(ctx context.Context, f NewFile) (int64, error) {
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.DB.ExecContext(ctx, `
INSERT INTO files(filename, original_filename, file_path, file_size, mime_type,
                  task_id, subtask_id, uploaded_by, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Filename, f.OriginalFilename, f.FilePath, f.FileSize, f.MimeType,
		nullInt64(f.TaskID), nullInt64(f.SubtaskID), f.UploadedBy, created.Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) DeleteFile(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ---- History ----

func (s *sqliteStore) InsertHistory(ctx context.Context, h NewHistory) (int64, error) {
	res, err := s.stmtInsertHistory.ExecContext(ctx,
		h.TaskID, h.ChangedBy, h.ChangeType,
		nullString(h.FieldName), nullString(h.OldValue), nullString(h.NewValue),
		nullString(h.Description), time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) ListHistoryByTask(ctx context.Context, taskID int64) ([]HistoryEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT h.id, h.task_id, h.changed_by, u.name, u.email, h.change_type,
       h.field_name, h.old_value, h.new_value, h.change_description, h.created_at
FROM task_history h
INNER JOIN users u ON h.changed_by = u.id
WHERE h.task_id = ?
ORDER BY h.created_at DESC, h.id DESC`, taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var (
			field   sql.NullString
			oldVal  sql.NullString
			newVal  sql.NullString
			desc    sql.NullString
			created int64
		)
		err := rows.Scan(&e.ID, &e.TaskID, &e.ChangedBy, &e.ChangedByName, &e.ChangedByEmail,
			&e.ChangeType, &field, &oldVal, &newVal, &desc, &created)
		if err != nil {
			return nil, err
		}
		e.FieldName = nullableString(field)
		e.OldValue = nullableString(oldVal)
		e.NewValue = nullableString(newVal)
		e.Description = nullableString(desc)
		e.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- helpers ----

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullableInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
