// Package tasks implements the task mutation engine: role-gated create,
// update, and delete with field-level change detection and an append-only
// history trail per change.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mverkerk/opsboard/internal/policy"
	"github.com/mverkerk/opsboard/internal/store"
	"github.com/mverkerk/opsboard/pkg/models"
)

// Engine orchestrates task mutations against a store.Store. All methods
// take the acting user and enforce role policy before touching data.
type Engine struct {
	store store.Store
	log   *slog.Logger
	rec   *recorder
}

// NewEngine returns an Engine over st. logger may be nil.
func NewEngine(st store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store: st,
		log:   logger,
		rec:   &recorder{store: st, log: logger},
	}
}

// Create inserts a new task with its tags and subtasks. Only admins and
// managers may create. A task_created entry is always recorded; tags and
// subtasks add their own entries.
func (e *Engine) Create(ctx context.Context, actor models.Actor, req models.CreateTaskRequest) (*models.Task, error) {
	if !policy.CanCreateOrDeleteTask(actor.Role) {
		return nil, forbiddenf("only admins and managers can create tasks")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, validationf("title is required")
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return nil, validationf("invalid priority %q", priority)
	}
	status := req.Status
	if status == "" {
		status = models.StatusNotStarted
	}
	if !models.ValidStatus(status) {
		return nil, validationf("invalid status %q", status)
	}

	if req.AssignedToDiv != nil {
		if _, err := e.store.GetUserByID(ctx, *req.AssignedToDiv); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, validationf("assigned user %d does not exist", *req.AssignedToDiv)
			}
			return nil, internal("check assigned user", err)
		}
	}
	if req.AssignedToDivUser != nil {
		if _, err := e.store.GetDivUserByID(ctx, *req.AssignedToDivUser); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, validationf("assigned div-user %d does not exist", *req.AssignedToDivUser)
			}
			return nil, internal("check assigned div-user", err)
		}
	}

	dueDate, err := parseDatePtr(req.DueDate)
	if err != nil {
		return nil, err
	}

	id, err := e.store.InsertTask(ctx, store.NewTask{
		Title:             title,
		Description:       req.Description,
		Priority:          priority,
		AssignedToDiv:     req.AssignedToDiv,
		AssignedToDivUser: req.AssignedToDivUser,
		CreatedBy:         actor.ID,
		AssignmentDate:    time.Now().UTC().Format("2006-01-02"),
		DueDate:           dueDate,
		Status:            status,
		Notes:             req.Notes,
	})
	if err != nil {
		return nil, internal("insert task", err)
	}

	e.rec.record(ctx, store.NewHistory{
		TaskID:      id,
		ChangedBy:   actor.ID,
		ChangeType:  models.ChangeTaskCreated,
		Description: strptr(fmt.Sprintf("Task %q created", title)),
	})

	if err := e.linkCreateTags(ctx, actor.ID, id, req.TagIDs); err != nil {
		return nil, err
	}
	if err := e.insertCreateSubtasks(ctx, actor.ID, id, req.Subtasks); err != nil {
		return nil, err
	}

	return e.hydrateByID(ctx, id)
}

// Update applies a partial update. Absent fields are left untouched;
// present-but-null fields clear the value. Each detected change records a
// matching history entry. Title and description changes persist without a
// history entry. Assignment edits from plain users are dropped silently.
func (e *Engine) Update(ctx context.Context, actor models.Actor, id int64, req models.UpdateTaskRequest) (*models.Task, error) {
	task, err := e.store.GetTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundf("task %d not found", id)
		}
		return nil, internal("load task", err)
	}
	if !policy.CanViewOrEditTask(actor, task.AssignedToDiv) {
		return nil, forbiddenf("you can only edit tasks assigned to you")
	}

	fields := make(map[string]any)
	var pending []store.NewHistory

	if req.Title.Set {
		if req.Title.Null || strings.TrimSpace(req.Title.Value) == "" {
			return nil, validationf("title cannot be empty")
		}
		fields["title"] = req.Title.Value
	}
	if req.Description.Set {
		if req.Description.Null {
			fields["description"] = nil
		} else {
			fields["description"] = req.Description.Value
		}
	}

	if req.Priority.Set {
		if req.Priority.Null || !models.ValidPriority(req.Priority.Value) {
			return nil, validationf("invalid priority")
		}
		if req.Priority.Value != task.Priority {
			fields["priority"] = req.Priority.Value
			pending = append(pending, store.NewHistory{
				TaskID:      id,
				ChangedBy:   actor.ID,
				ChangeType:  models.ChangePriority,
				FieldName:   strptr("priority"),
				OldValue:    strptr(task.Priority),
				NewValue:    strptr(req.Priority.Value),
				Description: strptr(fmt.Sprintf("Priority changed from %s to %s", task.Priority, req.Priority.Value)),
			})
		}
	}

	if req.Status.Set {
		if req.Status.Null || !models.ValidStatus(req.Status.Value) {
			return nil, validationf("invalid status")
		}
		if req.Status.Value != task.Status {
			fields["status"] = req.Status.Value
			pending = append(pending, store.NewHistory{
				TaskID:      id,
				ChangedBy:   actor.ID,
				ChangeType:  models.ChangeStatus,
				FieldName:   strptr("status"),
				OldValue:    strptr(task.Status),
				NewValue:    strptr(req.Status.Value),
				Description: strptr(fmt.Sprintf("Status changed from %s to %s", task.Status, req.Status.Value)),
			})
		}
	}

	// Assignment edits by plain users are dropped, not rejected; the rest
	// of the update still goes through.
	if req.AssignedToDiv.Set && policy.CanReassign(actor.Role) {
		var newID *int64
		if !req.AssignedToDiv.Null {
			v := req.AssignedToDiv.Value
			newID = &v
		}
		if !sameInt64Ptr(newID, task.AssignedToDiv) {
			newName, err := e.resolveUserName(ctx, newID)
			if err != nil {
				return nil, err
			}
			fields["assigned_to_div"] = anyOrNil(newID)
			pending = append(pending, store.NewHistory{
				TaskID:      id,
				ChangedBy:   actor.ID,
				ChangeType:  models.ChangeAssignment,
				FieldName:   strptr("assigned_to_div"),
				OldValue:    strptr(orUnassigned(task.AssignedToDivName)),
				NewValue:    strptr(orUnassigned(newName)),
				Description: strptr(fmt.Sprintf("Task reassigned from %s to %s", orUnassigned(task.AssignedToDivName), orUnassigned(newName))),
			})
		}
	}

	if req.AssignedToDivUser.Set && policy.CanReassign(actor.Role) {
		var newID *int64
		if !req.AssignedToDivUser.Null {
			v := req.AssignedToDivUser.Value
			newID = &v
		}
		if !sameInt64Ptr(newID, task.AssignedToDivUser) {
			newName, err := e.resolveDivUserName(ctx, newID)
			if err != nil {
				return nil, err
			}
			fields["assigned_to_div_user"] = anyOrNil(newID)
			pending = append(pending, store.NewHistory{
				TaskID:      id,
				ChangedBy:   actor.ID,
				ChangeType:  models.ChangeAssignment,
				FieldName:   strptr("assigned_to_div_user"),
				OldValue:    strptr(orUnassigned(task.AssignedToDivUserName)),
				NewValue:    strptr(orUnassigned(newName)),
				Description: strptr(fmt.Sprintf("Task reassigned from %s to %s", orUnassigned(task.AssignedToDivUserName), orUnassigned(newName))),
			})
		}
	}

	if req.DueDate.Set {
		var newDate *string
		if !req.DueDate.Null {
			var perr error
			newDate, perr = parseDatePtr(&req.DueDate.Value)
			if perr != nil {
				return nil, perr
			}
		}
		oldDate := normalizeDatePtr(task.DueDate)
		if !sameStringPtr(oldDate, newDate) {
			fields["due_date"] = anyStrOrNil(newDate)
			pending = append(pending, store.NewHistory{
				TaskID:      id,
				ChangedBy:   actor.ID,
				ChangeType:  models.ChangeDueDate,
				FieldName:   strptr("due_date"),
				OldValue:    strptr(orNone(oldDate)),
				NewValue:    strptr(orNone(newDate)),
				Description: strptr(fmt.Sprintf("Due date changed from %s to %s", orNone(oldDate), orNone(newDate))),
			})
		}
	}

	if req.Notes.Set {
		var newNotes *string
		if !req.Notes.Null {
			v := req.Notes.Value
			newNotes = &v
		}
		if !sameStringPtr(newNotes, task.Notes) {
			fields["notes"] = anyStrOrNil(newNotes)
			pending = append(pending, store.NewHistory{
				TaskID:      id,
				ChangedBy:   actor.ID,
				ChangeType:  models.ChangeNotes,
				FieldName:   strptr("notes"),
				OldValue:    strptr(orNone(task.Notes)),
				NewValue:    strptr(orNone(newNotes)),
				Description: strptr(fmt.Sprintf("Notes changed from %q to %q", orNone(task.Notes), orNone(newNotes))),
			})
		}
	}

	if len(fields) > 0 {
		if err := e.store.UpdateTaskFields(ctx, id, fields); err != nil {
			return nil, internal("update task", err)
		}
	}
	e.rec.recordAll(ctx, pending)

	if req.TagIDs.Set {
		var ids []int64
		if !req.TagIDs.Null {
			ids = req.TagIDs.Value
		}
		if err := e.reconcileTags(ctx, actor.ID, id, ids); err != nil {
			return nil, err
		}
	}

	if req.Subtasks.Set && !req.Subtasks.Null {
		if err := e.replaceSubtasks(ctx, actor.ID, id, req.Subtasks.Value); err != nil {
			return nil, err
		}
	}

	return e.hydrateByID(ctx, id)
}

// Delete removes a task and everything hanging off it. Admin or manager
// only; existence is checked before the role so a missing task reads as
// 404 even to a plain user.
func (e *Engine) Delete(ctx context.Context, actor models.Actor, id int64) error {
	if _, err := e.store.GetTaskByID(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundf("task %d not found", id)
		}
		return internal("load task", err)
	}
	if !policy.CanCreateOrDeleteTask(actor.Role) {
		return forbiddenf("only admins and managers can delete tasks")
	}
	if err := e.store.DeleteTask(ctx, id); err != nil {
		return internal("delete task", err)
	}
	return nil
}

// Get returns the hydrated task, subject to visibility policy.
func (e *Engine) Get(ctx context.Context, actor models.Actor, id int64) (*models.Task, error) {
	task, err := e.store.GetTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundf("task %d not found", id)
		}
		return nil, internal("load task", err)
	}
	if !policy.CanViewOrEditTask(actor, task.AssignedToDiv) {
		return nil, forbiddenf("you can only view tasks assigned to you")
	}
	return e.hydrate(ctx, task)
}

// List returns hydrated tasks visible to the actor. Plain users see only
// tasks assigned to them.
func (e *Engine) List(ctx context.Context, actor models.Actor) ([]models.Task, error) {
	var filter *int64
	if actor.Role == models.RoleUser {
		filter = &actor.ID
	}
	rows, err := e.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, internal("list tasks", err)
	}
	out := make([]models.Task, 0, len(rows))
	for i := range rows {
		t, err := e.hydrate(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

// History returns the task's audit trail, newest first.
func (e *Engine) History(ctx context.Context, actor models.Actor, id int64) ([]models.HistoryEntry, error) {
	task, err := e.store.GetTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundf("task %d not found", id)
		}
		return nil, internal("load task", err)
	}
	if !policy.CanViewOrEditTask(actor, task.AssignedToDiv) {
		return nil, forbiddenf("you can only view tasks assigned to you")
	}
	rows, err := e.store.ListHistoryByTask(ctx, id)
	if err != nil {
		return nil, internal("list history", err)
	}
	out := make([]models.HistoryEntry, 0, len(rows))
	for _, h := range rows {
		out = append(out, models.HistoryEntry{
			ID:             h.ID,
			TaskID:         h.TaskID,
			ChangeType:     h.ChangeType,
			FieldName:      h.FieldName,
			OldValue:       h.OldValue,
			NewValue:       h.NewValue,
			Description:    h.Description,
			ChangedBy:      h.ChangedBy,
			ChangedByName:  h.ChangedByName,
			ChangedByEmail: h.ChangedByEmail,
			CreatedAt:      h.CreatedAt,
		})
	}
	return out, nil
}

// Summary returns dashboard counts, filtered to the actor's own tasks for
// plain users.
func (e *Engine) Summary(ctx context.Context, actor models.Actor) (models.TaskSummary, error) {
	var filter *int64
	if actor.Role == models.RoleUser {
		filter = &actor.ID
	}
	sum, err := e.store.Summary(ctx, filter)
	if err != nil {
		return models.TaskSummary{}, internal("task summary", err)
	}
	return models.TaskSummary{
		Total:      sum.Total,
		Completed:  sum.Completed,
		InProgress: sum.InProgress,
		NotStarted: sum.NotStarted,
		Suspended:  sum.Suspended,
		Overdue:    sum.Overdue,
	}, nil
}

func (e *Engine) resolveUserName(ctx context.Context, id *int64) (*string, error) {
	if id == nil {
		return nil, nil
	}
	u, err := e.store.GetUserByID(ctx, *id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, validationf("assigned user %d does not exist", *id)
		}
		return nil, internal("resolve user", err)
	}
	return &u.Name, nil
}

func (e *Engine) resolveDivUserName(ctx context.Context, id *int64) (*string, error) {
	if id == nil {
		return nil, nil
	}
	d, err := e.store.GetDivUserByID(ctx, *id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, validationf("assigned div-user %d does not exist", *id)
		}
		return nil, internal("resolve div-user", err)
	}
	return &d.Name, nil
}

func anyOrNil(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func anyStrOrNil(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
