package tasks

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/mverkerk/opsboard/internal/store"
	"github.com/mverkerk/opsboard/pkg/models"
)

type fixture struct {
	engine  *Engine
	store   store.Store
	admin   models.Actor
	manager models.Actor
	user    models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	mustUser := func(name, email, role string) models.Actor {
		id, err := st.CreateUser(ctx, name, email, "x", role)
		if err != nil {
			t.Fatalf("seed user %s: %v", email, err)
		}
		return models.Actor{ID: id, Role: role}
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		engine:  NewEngine(st, quiet),
		store:   st,
		admin:   mustUser("Admin", "admin@example.com", models.RoleAdmin),
		manager: mustUser("Manager", "manager@example.com", models.RoleManager),
		user:    mustUser("User", "user@example.com", models.RoleUser),
	}
}

func (f *fixture) createTask(t *testing.T, req models.CreateTaskRequest) *models.Task {
	t.Helper()
	task, err := f.engine.Create(context.Background(), f.admin, req)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (f *fixture) history(t *testing.T, taskID int64) []models.HistoryEntry {
	t.Helper()
	entries, err := f.engine.History(context.Background(), f.admin, taskID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	return entries
}

func changeTypes(entries []models.HistoryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ChangeType
	}
	return out
}

func countType(entries []models.HistoryEntry, kind string) int {
	n := 0
	for _, e := range entries {
		if e.ChangeType == kind {
			n++
		}
	}
	return n
}

func TestCreateRequiresManagerOrAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Create(ctx, f.user, models.CreateTaskRequest{Title: "nope"})
	if KindOf(err) != KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}

	if _, err := f.engine.Create(ctx, f.manager, models.CreateTaskRequest{Title: "yes"}); err != nil {
		t.Fatalf("manager create: %v", err)
	}
}

func TestCreateRecordsCreationTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tagID, err := f.engine.CreateTag(ctx, f.admin, "urgent")
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}

	task := f.createTask(t, models.CreateTaskRequest{
		Title:  "Quarterly report",
		TagIDs: []int64{tagID.ID},
		Subtasks: []models.SubtaskInput{
			{Title: "Draft"},
			{Title: "Review", Status: models.SubtaskCompleted},
		},
	})

	entries := f.history(t, task.ID)
	if countType(entries, models.ChangeTaskCreated) != 1 {
		t.Fatalf("expected exactly one task_created, got %v", changeTypes(entries))
	}
	if countType(entries, models.ChangeTags) != 1 {
		t.Fatalf("expected one tags_change, got %v", changeTypes(entries))
	}
	if countType(entries, models.ChangeSubtaskAdded) != 2 {
		t.Fatalf("expected two subtask_added, got %v", changeTypes(entries))
	}

	if len(task.Tags) != 1 || task.Tags[0].Name != "urgent" {
		t.Fatalf("tags not hydrated: %+v", task.Tags)
	}
	if len(task.Subtasks) != 2 {
		t.Fatalf("subtasks not hydrated: %+v", task.Subtasks)
	}
	if task.Priority != models.PriorityMedium || task.Status != models.StatusNotStarted {
		t.Fatalf("defaults not applied: %+v", task)
	}
	if task.AssignmentDate == "" {
		t.Fatalf("assignment date not set")
	}
}

func TestCreateWithoutTagsLogsNoTagsChange(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, models.CreateTaskRequest{Title: "Plain"})
	entries := f.history(t, task.ID)
	if len(entries) != 1 || entries[0].ChangeType != models.ChangeTaskCreated {
		t.Fatalf("expected only task_created, got %v", changeTypes(entries))
	}
}

func TestUpdateNoOpProducesNoHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, models.CreateTaskRequest{Title: "Stable", Priority: models.PriorityHigh})
	before := len(f.history(t, task.ID))

	_, err := f.engine.Update(ctx, f.admin, task.ID, models.UpdateTaskRequest{
		Priority: models.Some(models.PriorityHigh),
		Status:   models.Some(models.StatusNotStarted),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if after := len(f.history(t, task.ID)); after != before {
		t.Fatalf("no-op update grew history from %d to %d", before, after)
	}
}

func TestUpdateStatusChangeLogged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, models.CreateTaskRequest{Title: "Moving"})
	updated, err := f.engine.Update(ctx, f.admin, task.ID, models.UpdateTaskRequest{
		Status: models.Some(models.StatusInProgress),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != models.StatusInProgress {
		t.Fatalf("status not applied: %s", updated.Status)
	}

	entries := f.history(t, task.ID)
	if entries[0].ChangeType != models.ChangeStatus {
		t.Fatalf("newest entry should be status_change, got %v", changeTypes(entries))
	}
	if entries[0].OldValue == nil || *entries[0].OldValue != models.StatusNotStarted {
		t.Fatalf("old value wrong: %+v", entries[0])
	}
	if entries[0].NewValue == nil || *entries[0].NewValue != models.StatusInProgress {
		t.Fatalf("new value wrong: %+v", entries[0])
	}
}

func TestUpdateTitleDescriptionUnlogged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, models.CreateTaskRequest{Title: "Old title"})
	before := len(f.history(t, task.ID))

	updated, err := f.engine.Update(ctx, f.admin, task.ID, models.UpdateTaskRequest{
		Title:       models.Some("New title"),
		Description: models.Some("now with details"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "New title" {
		t.Fatalf("title not applied: %s", updated.Title)
	}
	if updated.Description == nil || *updated.Description != "now with details" {
		t.Fatalf("description not applied: %v", updated.Description)
	}
	if after := len(f.history(t, task.ID)); after != before {
		t.Fatalf("title/description edits must not log history (%d -> %d)", before, after)
	}
}

func TestUpdateAbsentVsNullDueDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := "2026-09-10"
	task := f.createTask(t, models.CreateTaskRequest{Title: "Dated", DueDate: &due})

	// Absent due_date leaves the stored value alone.
	updated, err := f.engine.Update(ctx, f.admin, task.ID, models.UpdateTaskRequest{
		Notes: models.Some("touch something else"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DueDate == nil || *updated.DueDate != due {
		t.Fatalf("absent field must not clear due date: %v", updated.DueDate)
	}

	// Explicit null clears it and logs with the None placeholder.
	updated, err = f.engine.Update(ctx, f.admin, task.ID, models.UpdateTaskRequest{
		DueDate: models.None[string](),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DueDate != nil {
		t.Fatalf("null must clear due date, got %v", *updated.DueDate)
	}

	entries := f.history(t, task.ID)
	if entries[0].ChangeType != models.ChangeDueDate {
		t.Fatalf("expected due_date_change first, got %v", changeTypes(entries))
	}
	if *entries[0].OldValue != due || *entries[0].NewValue != "None" {
		t.Fatalf("placeholder wrong: old=%v new=%v", *entries[0].OldValue, *entries[0].NewValue)
	}
}

func TestUpdateDueDateTimestampNormalized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := "2026-09-10"
	task := f.createTask(t, models.CreateTaskRequest{Title: "Dated", DueDate: &due})
	before := len(f.history(t, task.ID))

	// Same date sent as a full timestamp is a no-op after normalization.
	_, err := f.engine.Update(ctx, f.admin, task.ID, models.UpdateTaskRequest{
		DueDate: models.Some("2026-09-10T15:04:05Z"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if after := len(f.history(t, task.ID)); after != before {
		t.Fatalf("normalized same date must not log history")
	}
}

func TestMalformedDueDateRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := "definitely-not-a-date"
	if _, err := f.engine.Create(ctx, f.admin, models.CreateTaskRequest{Title: "Bad", DueDate: &due}); KindOf(err) != KindValidation {
		t.Fatalf("create with malformed due date: expected validation error, got %v", err)
	}

	task := f.createTask(t, models.CreateTaskRequest{Title: "Dated", DueDate: strptr("2026-09-10")})
	before := len(f.history(t, task.ID))

	_, err := f.engine.Update(ctx, f.admin, task.ID, models.UpdateTaskRequest{
		DueDate: models.Some("2026-13-45"),
		Status:  models.Some(models.StatusInProgress),
	})
	if KindOf(err) != KindValidation {
		t.Fatalf("update with malformed due date: expected validation error, got %v", err)
	}

	// Nothing may have been written, not even the valid status change.
	got, err := f.engine.Get(ctx, f.admin, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DueDate == nil || *got.DueDate != "2026-09-10" {
		t.Fatalf("due date must be untouched, got %v", got.DueDate)
	}
	if got.Status != models.StatusNotStarted {
		t.Fatalf("status must be untouched, got %s", got.Status)
	}
	if after := len(f.history(t, task.ID)); after != before {
		t.Fatalf("rejected update must not log history")
	}
}

func TestUserAssignmentEditDroppedSilently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, models.CreateTaskRequest{Title: "Mine", AssignedToDiv: &f.user.ID})
	before := len(f.history(t, task.ID))

	updated, err := f.engine.Update(ctx, f.user, task.ID, models.UpdateTaskRequest{
		AssignedToDiv: models.Some(f.manager.ID),
		Status:        models.Some(models.StatusInProgress),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.AssignedToDiv == nil || *updated.AssignedToDiv != f.user.ID {
		t.Fatalf("assignment edit must be dropped for users: %v", updated.AssignedToDiv)
	}
	if updated.Status != models.StatusInProgress {
		t.Fatalf("rest of the update must still apply: %s", updated.Status)
	}

	entries := f.history(t, task.ID)
	if got := len(entries); got != before+1 {
		t.Fatalf("expected only the status entry, got %v", changeTypes(entries))
	}
	if countType(entries, models.ChangeAssignment) != 0 {
		t.Fatalf("no assignment_change may be logged for a user actor")
	}
}

func TestManagerReassignmentLogsNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, models.CreateTaskRequest{Title: "Handover"})
	_, err := f.engine.Update(ctx, f.manager, task.ID, models.UpdateTaskRequest{
		AssignedToDiv: models.Some(f.user.ID),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	entries := f.history(t, task.ID)
	e := entries[0]
	if e.ChangeType != models.ChangeAssignment {
		t.Fatalf("expected assignment_change, got %v", changeTypes(entries))
	}
	if *e.OldValue != "Unassigned" || *e.NewValue != "User" {
		t.Fatalf("names wrong: old=%v new=%v", *e.OldValue, *e.NewValue)
	}
	if e.Description == nil || *e.Description != "Task reassigned from Unassigned to User" {
		t.Fatalf("description wrong: %v", e.Description)
	}
}

func TestUserCannotEditOthersTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, models.CreateTaskRequest{Title: "Not yours", AssignedToDiv: &f.manager.ID})
	_, err := f.engine.Update(ctx, f.user, task.ID, models.UpdateTaskRequest{
		Status: models.Some(models.StatusCompleted),
	})
	if KindOf(err) != KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestDeleteChecksExistenceBeforeRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Missing task reads as 404 even for a plain user.
	if err := f.engine.Delete(ctx, f.user, 9999); KindOf(err) != KindNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}

	task := f.createTask(t, models.CreateTaskRequest{Title: "Doomed"})
	if err := f.engine.Delete(ctx, f.user, task.ID); KindOf(err) != KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if err := f.engine.Delete(ctx, f.manager, task.ID); err != nil {
		t.Fatalf("manager delete: %v", err)
	}
	if _, err := f.engine.Get(ctx, f.admin, task.ID); KindOf(err) != KindNotFound {
		t.Fatalf("task should be gone, got %v", err)
	}
}

func TestListFiltersForUserRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createTask(t, models.CreateTaskRequest{Title: "Mine", AssignedToDiv: &f.user.ID})
	f.createTask(t, models.CreateTaskRequest{Title: "Theirs", AssignedToDiv: &f.manager.ID})
	f.createTask(t, models.CreateTaskRequest{Title: "Unassigned"})

	all, err := f.engine.List(ctx, f.admin)
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("admin should see all 3, got %d", len(all))
	}

	mine, err := f.engine.List(ctx, f.user)
	if err != nil {
		t.Fatalf("user list: %v", err)
	}
	if len(mine) != 1 || mine[0].Title != "Mine" {
		t.Fatalf("user should see only their own task: %+v", mine)
	}
}

func TestSummaryFiltersForUserRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createTask(t, models.CreateTaskRequest{Title: "Mine", AssignedToDiv: &f.user.ID, Status: models.StatusCompleted})
	f.createTask(t, models.CreateTaskRequest{Title: "Other"})

	sum, err := f.engine.Summary(ctx, f.user)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Total != 1 || sum.Completed != 1 {
		t.Fatalf("user summary should cover only their tasks: %+v", sum)
	}

	sum, err = f.engine.Summary(ctx, f.admin)
	if err != nil {
		t.Fatalf("admin summary: %v", err)
	}
	if sum.Total != 2 {
		t.Fatalf("admin summary should cover all tasks: %+v", sum)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, models.CreateTaskRequest{Title: "Trail"})
	for _, st := range []string{models.StatusInProgress, models.StatusCompleted} {
		if _, err := f.engine.Update(ctx, f.admin, task.ID, models.UpdateTaskRequest{
			Status: models.Some(st),
		}); err != nil {
			t.Fatalf("update to %s: %v", st, err)
		}
	}

	entries := f.history(t, task.ID)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %v", changeTypes(entries))
	}
	if entries[len(entries)-1].ChangeType != models.ChangeTaskCreated {
		t.Fatalf("oldest entry must be task_created: %v", changeTypes(entries))
	}
	if *entries[0].NewValue != models.StatusCompleted {
		t.Fatalf("newest entry should carry the last status: %+v", entries[0])
	}
}

func TestUpdateInvalidValuesRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, models.CreateTaskRequest{Title: "Valid"})
	cases := []models.UpdateTaskRequest{
		{Status: models.Some("bogus")},
		{Priority: models.Some("critical")},
		{Title: models.None[string]()},
		{AssignedToDiv: models.Some(int64(424242))},
	}
	for i, req := range cases {
		if _, err := f.engine.Update(ctx, f.admin, task.ID, req); KindOf(err) != KindValidation {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}
