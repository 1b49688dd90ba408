package tasks

import (
	"context"
	"errors"

	"github.com/mverkerk/opsboard/internal/store"
	"github.com/mverkerk/opsboard/pkg/models"
)

func (e *Engine) hydrateByID(ctx context.Context, id int64) (*models.Task, error) {
	row, err := e.store.GetTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundf("task %d not found", id)
		}
		return nil, internal("reload task", err)
	}
	return e.hydrate(ctx, row)
}

// hydrate turns a task row into the full API shape: tags, subtasks with
// their files, and task-level files resolved.
func (e *Engine) hydrate(ctx context.Context, row *store.Task) (*models.Task, error) {
	tags, err := e.store.ListTagsByTask(ctx, row.ID)
	if err != nil {
		return nil, internal("list task tags", err)
	}
	subs, err := e.store.ListSubtasksByTask(ctx, row.ID)
	if err != nil {
		return nil, internal("list subtasks", err)
	}
	taskFiles, err := e.store.ListFilesByTask(ctx, row.ID)
	if err != nil {
		return nil, internal("list task files", err)
	}

	t := &models.Task{
		ID:                    row.ID,
		Title:                 row.Title,
		Description:           row.Description,
		Priority:              row.Priority,
		Status:                row.Status,
		AssignedToDiv:         row.AssignedToDiv,
		AssignedToDivName:     row.AssignedToDivName,
		AssignedToDivEmail:    row.AssignedToDivEmail,
		AssignedToDivUser:     row.AssignedToDivUser,
		AssignedToDivUserName: row.AssignedToDivUserName,
		CreatedBy:             row.CreatedBy,
		CreatedByName:         row.CreatedByName,
		AssignmentDate:        row.AssignmentDate,
		DueDate:               row.DueDate,
		Notes:                 row.Notes,
		Tags:                  make([]models.Tag, 0, len(tags)),
		Subtasks:              make([]models.Subtask, 0, len(subs)),
		Files:                 make([]models.File, 0, len(taskFiles)),
		CreatedAt:             row.CreatedAt,
	}

	for _, tg := range tags {
		t.Tags = append(t.Tags, models.Tag{ID: tg.ID, Name: tg.Name, CreatedAt: tg.CreatedAt})
	}
	for _, st := range subs {
		files, err := e.store.ListFilesBySubtask(ctx, st.ID)
		if err != nil {
			return nil, internal("list subtask files", err)
		}
		sub := models.Subtask{
			ID:        st.ID,
			TaskID:    st.TaskID,
			Title:     st.Title,
			Status:    st.Status,
			Files:     make([]models.File, 0, len(files)),
			CreatedAt: st.CreatedAt,
		}
		for _, f := range files {
			sub.Files = append(sub.Files, toModelFile(f))
		}
		t.Subtasks = append(t.Subtasks, sub)
	}
	for _, f := range taskFiles {
		t.Files = append(t.Files, toModelFile(f))
	}
	return t, nil
}

func toModelFile(f store.File) models.File {
	return models.File{
		ID:               f.ID,
		Filename:         f.Filename,
		OriginalFilename: f.OriginalFilename,
		FileSize:         f.FileSize,
		MimeType:         f.MimeType,
		UploadedBy:       f.UploadedBy,
		UploadedByName:   f.UploadedByName,
		CreatedAt:        f.CreatedAt,
	}
}
