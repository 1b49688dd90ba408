package tasks

import (
	"context"
	"fmt"

	"github.com/mverkerk/opsboard/internal/store"
	"github.com/mverkerk/opsboard/pkg/models"
)

// replaceSubtasks swaps the task's entire subtask collection for inputs.
// Titles act as the identity across the replace: a new subtask whose title
// existed before is "the same" subtask, so its file attachments are carried
// over to the new row (original filename, size, mime type, uploader, and
// creation timestamp intact). Duplicate titles resolve first match wins.
// Each genuinely new title records a subtask_added entry.
func (e *Engine) replaceSubtasks(ctx context.Context, actorID, taskID int64, inputs []models.SubtaskInput) error {
	existing, err := e.store.ListSubtasksByTask(ctx, taskID)
	if err != nil {
		return internal("list subtasks", err)
	}

	existingTitles := make(map[string]bool, len(existing))
	preservedFiles := make(map[string][]store.File)
	for _, st := range existing {
		existingTitles[st.Title] = true
		if _, ok := preservedFiles[st.Title]; ok {
			continue
		}
		files, err := e.store.ListFilesBySubtask(ctx, st.ID)
		if err != nil {
			return internal("list subtask files", err)
		}
		if len(files) > 0 {
			preservedFiles[st.Title] = files
		}
	}

	// Deleting the old rows cascades their file records, which is why the
	// preserved set was captured first.
	if err := e.store.DeleteSubtasksByTask(ctx, taskID); err != nil {
		return internal("delete subtasks", err)
	}

	for _, in := range inputs {
		status := in.Status
		if status == "" {
			status = models.SubtaskNotStarted
		}
		if !models.ValidSubtaskStatus(status) {
			return validationf("invalid subtask status %q", status)
		}
		newID, err := e.store.InsertSubtask(ctx, taskID, in.Title, status)
		if err != nil {
			return internal("insert subtask", err)
		}

		if files, ok := preservedFiles[in.Title]; ok {
			for _, f := range files {
				_, err := e.store.InsertFile(ctx, store.NewFile{
					Filename:         f.Filename,
					OriginalFilename: f.OriginalFilename,
					FilePath:         f.FilePath,
					FileSize:         f.FileSize,
					MimeType:         f.MimeType,
					SubtaskID:        &newID,
					UploadedBy:       f.UploadedBy,
					CreatedAt:        f.CreatedAt,
				})
				if err != nil {
					return internal("restore subtask file", err)
				}
			}
			delete(preservedFiles, in.Title)
		}

		if !existingTitles[in.Title] {
			e.rec.record(ctx, store.NewHistory{
				TaskID:      taskID,
				ChangedBy:   actorID,
				ChangeType:  models.ChangeSubtaskAdded,
				FieldName:   strptr("subtask"),
				NewValue:    strptr(in.Title),
				Description: strptr(fmt.Sprintf("Subtask %q added", in.Title)),
			})
		}
	}
	return nil
}

// insertCreateSubtasks inserts the initial subtask list during task
// creation, one subtask_added entry per subtask.
func (e *Engine) insertCreateSubtasks(ctx context.Context, actorID, taskID int64, inputs []models.SubtaskInput) error {
	for _, in := range inputs {
		status := in.Status
		if status == "" {
			status = models.SubtaskNotStarted
		}
		if !models.ValidSubtaskStatus(status) {
			return validationf("invalid subtask status %q", status)
		}
		if _, err := e.store.InsertSubtask(ctx, taskID, in.Title, status); err != nil {
			return internal("insert subtask", err)
		}
		e.rec.record(ctx, store.NewHistory{
			TaskID:      taskID,
			ChangedBy:   actorID,
			ChangeType:  models.ChangeSubtaskAdded,
			FieldName:   strptr("subtask"),
			NewValue:    strptr(in.Title),
			Description: strptr(fmt.Sprintf("Subtask %q added", in.Title)),
		})
	}
	return nil
}
