package tasks

import (
	"context"
	"errors"
	"strings"

	"github.com/mverkerk/opsboard/internal/policy"
	"github.com/mverkerk/opsboard/internal/store"
	"github.com/mverkerk/opsboard/pkg/models"
)

// ListTags returns all tags, name-ordered.
func (e *Engine) ListTags(ctx context.Context) ([]models.Tag, error) {
	rows, err := e.store.ListTags(ctx)
	if err != nil {
		return nil, internal("list tags", err)
	}
	out := make([]models.Tag, 0, len(rows))
	for _, t := range rows {
		out = append(out, models.Tag{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt})
	}
	return out, nil
}

// CreateTag creates a tag by trimmed name, or returns the existing tag with
// that exact name. Names are capped at models.MaxTagNameLen.
func (e *Engine) CreateTag(ctx context.Context, actor models.Actor, name string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("tag name is required")
	}
	if len(name) > models.MaxTagNameLen {
		return nil, validationf("tag name exceeds %d characters", models.MaxTagNameLen)
	}

	existing, err := e.store.GetTagByName(ctx, name)
	if err == nil {
		return &models.Tag{ID: existing.ID, Name: existing.Name, CreatedAt: existing.CreatedAt}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, internal("lookup tag", err)
	}

	id, err := e.store.CreateTag(ctx, name)
	if err != nil {
		return nil, internal("create tag", err)
	}
	created, err := e.store.GetTagByID(ctx, id)
	if err != nil {
		return nil, internal("reload tag", err)
	}
	return &models.Tag{ID: created.ID, Name: created.Name, CreatedAt: created.CreatedAt}, nil
}

// DeleteTag removes a tag and its task links. Admin only.
func (e *Engine) DeleteTag(ctx context.Context, actor models.Actor, id int64) error {
	if !policy.CanDeleteTag(actor.Role) {
		return forbiddenf("only admins can delete tags")
	}
	if err := e.store.DeleteTag(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundf("tag %d not found", id)
		}
		return internal("delete tag", err)
	}
	return nil
}

// ListUsers returns all accounts without password material.
func (e *Engine) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := e.store.ListUsers(ctx)
	if err != nil {
		return nil, internal("list users", err)
	}
	out := make([]models.User, 0, len(rows))
	for _, u := range rows {
		out = append(out, models.User{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt})
	}
	return out, nil
}

// ListDivUsers returns all div-users with their linked accounts.
func (e *Engine) ListDivUsers(ctx context.Context) ([]models.DivUser, error) {
	rows, err := e.store.ListDivUsers(ctx)
	if err != nil {
		return nil, internal("list div-users", err)
	}
	out := make([]models.DivUser, 0, len(rows))
	for _, d := range rows {
		out = append(out, toModelDivUser(d))
	}
	return out, nil
}

// CreateDivUser creates a div-user linked to an existing account. Admin or
// manager only; an account can back at most one div-user.
func (e *Engine) CreateDivUser(ctx context.Context, actor models.Actor, name string, userID int64) (*models.DivUser, error) {
	if !policy.CanManageDivUsers(actor.Role) {
		return nil, forbiddenf("only admins and managers can manage div-users")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("div-user name is required")
	}
	if _, err := e.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, validationf("user %d does not exist", userID)
		}
		return nil, internal("check user", err)
	}
	if _, err := e.store.GetDivUserByUserID(ctx, userID); err == nil {
		return nil, conflictf("user %d already has a div-user", userID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, internal("check existing div-user", err)
	}

	id, err := e.store.CreateDivUser(ctx, name, userID)
	if err != nil {
		return nil, internal("create div-user", err)
	}
	d, err := e.store.GetDivUserByID(ctx, id)
	if err != nil {
		return nil, internal("reload div-user", err)
	}
	out := toModelDivUser(*d)
	return &out, nil
}

// UpdateDivUser renames or relinks a div-user. Admin or manager only.
func (e *Engine) UpdateDivUser(ctx context.Context, actor models.Actor, id int64, name *string, userID *int64) (*models.DivUser, error) {
	if !policy.CanManageDivUsers(actor.Role) {
		return nil, forbiddenf("only admins and managers can manage div-users")
	}
	if name != nil && strings.TrimSpace(*name) == "" {
		return nil, validationf("div-user name cannot be empty")
	}
	if userID != nil {
		if _, err := e.store.GetUserByID(ctx, *userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, validationf("user %d does not exist", *userID)
			}
			return nil, internal("check user", err)
		}
	}
	if err := e.store.UpdateDivUser(ctx, id, name, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundf("div-user %d not found", id)
		}
		return nil, internal("update div-user", err)
	}
	d, err := e.store.GetDivUserByID(ctx, id)
	if err != nil {
		return nil, internal("reload div-user", err)
	}
	out := toModelDivUser(*d)
	return &out, nil
}

// DeleteDivUser removes a div-user, refusing while any task still points
// at it.
func (e *Engine) DeleteDivUser(ctx context.Context, actor models.Actor, id int64) error {
	if !policy.CanManageDivUsers(actor.Role) {
		return forbiddenf("only admins and managers can manage div-users")
	}
	n, err := e.store.CountTasksForDivUser(ctx, id)
	if err != nil {
		return internal("count referencing tasks", err)
	}
	if n > 0 {
		return conflictf("div-user %d is still assigned to %d task(s)", id, n)
	}
	if err := e.store.DeleteDivUser(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundf("div-user %d not found", id)
		}
		return internal("delete div-user", err)
	}
	return nil
}

// GetFile returns one attachment record.
// ListSubtaskFiles returns the file records attached to one subtask.
func (e *Engine) ListSubtaskFiles(ctx context.Context, subtaskID int64) ([]models.File, error) {
	files, err := e.store.ListFilesBySubtask(ctx, subtaskID)
	if err != nil {
		return nil, internal("list subtask files", err)
	}
	out := make([]models.File, 0, len(files))
	for _, f := range files {
		out = append(out, toModelFile(f))
	}
	return out, nil
}

func (e *Engine) GetFile(ctx context.Context, id int64) (*models.File, error) {
	f, err := e.store.GetFileByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundf("file %d not found", id)
		}
		return nil, internal("load file", err)
	}
	out := toModelFile(*f)
	return &out, nil
}

// DeleteFile removes an attachment record. Admin or manager only.
func (e *Engine) DeleteFile(ctx context.Context, actor models.Actor, id int64) error {
	if !policy.CanCreateOrDeleteTask(actor.Role) {
		return forbiddenf("only admins and managers can delete files")
	}
	if err := e.store.DeleteFile(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundf("file %d not found", id)
		}
		return internal("delete file", err)
	}
	return nil
}

func toModelDivUser(d store.DivUser) models.DivUser {
	return models.DivUser{
		ID:              d.ID,
		Name:            d.Name,
		UserID:          d.UserID,
		LinkedUserName:  d.LinkedUserName,
		LinkedUserEmail: d.LinkedUserEmail,
		CreatedAt:       d.CreatedAt,
	}
}
