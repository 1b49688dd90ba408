package tasks

import (
	"context"
	"testing"

	"github.com/mverkerk/opsboard/pkg/models"
)

func (f *fixture) mustTag(t *testing.T, name string) *models.Tag {
	t.Helper()
	tag, err := f.engine.CreateTag(context.Background(), f.admin, name)
	if err != nil {
		t.Fatalf("create tag %s: %v", name, err)
	}
	return tag
}

func TestTagSetReplaceLogsOneEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	urgent := f.mustTag(t, "urgent")
	backend := f.mustTag(t, "backend")
	frontend := f.mustTag(t, "frontend")

	task := f.createTask(t, models.CreateTaskRequest{
		Title:  "Tagged",
		TagIDs: []int64{urgent.ID, backend.ID},
	})
	before := len(f.history(t, task.ID))

	updated, err := f.engine.Update(ctx, f.admin, task.ID, models.UpdateTaskRequest{
		TagIDs: models.Some([]int64{backend.ID, frontend.ID}),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Tags) != 2 {
		t.Fatalf("tag set not replaced: %+v", updated.Tags)
	}

	entries := f.history(t, task.ID)
	if len(entries) != before+1 {
		t.Fatalf("expected one new tags_change, got %v", changeTypes(entries))
	}
	e := entries[0]
	if e.ChangeType != models.ChangeTags {
		t.Fatalf("expected tags_change, got %s", e.ChangeType)
	}
	if e.OldValue == nil || e.NewValue == nil {
		t.Fatalf("tags_change must carry old and new names: %+v", e)
	}
}

func TestTagSetDuplicateIDsCollapse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	urgent := f.mustTag(t, "urgent")

	task := f.createTask(t, models.CreateTaskRequest{
		Title:  "Doubled",
		TagIDs: []int64{urgent.ID, urgent.ID},
	})
	if len(task.Tags) != 1 {
		t.Fatalf("duplicate tag ids at create must collapse to one link: %+v", task.Tags)
	}

	backend := f.mustTag(t, "backend")
	updated, err := f.engine.Update(ctx, f.admin, task.ID, models.UpdateTaskRequest{
		TagIDs: models.Some([]int64{backend.ID, backend.ID, urgent.ID}),
	})
	if err != nil {
		t.Fatalf("update with duplicate tag ids: %v", err)
	}
	if len(updated.Tags) != 2 {
		t.Fatalf("duplicate tag ids at update must collapse: %+v", updated.Tags)
	}
}

func TestTagSetSameMembersDifferentOrderIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.mustTag(t, "alpha")
	b := f.mustTag(t, "beta")
	task := f.createTask(t, models.CreateTaskRequest{Title: "Ordered", TagIDs: []int64{a.ID, b.ID}})
	before := len(f.history(t, task.ID))

	_, err := f.engine.Update(ctx, f.admin, task.ID, models.UpdateTaskRequest{
		TagIDs: models.Some([]int64{b.ID, a.ID}),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if after := len(f.history(t, task.ID)); after != before {
		t.Fatalf("reordered identical tag set must not log history")
	}
}

func TestAllTagsRemovedMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.mustTag(t, "alpha")
	b := f.mustTag(t, "beta")
	task := f.createTask(t, models.CreateTaskRequest{Title: "Stripped", TagIDs: []int64{a.ID, b.ID}})

	updated, err := f.engine.Update(ctx, f.admin, task.ID, models.UpdateTaskRequest{
		TagIDs: models.Some([]int64{}),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Tags) != 0 {
		t.Fatalf("tags not removed: %+v", updated.Tags)
	}

	e := f.history(t, task.ID)[0]
	if e.ChangeType != models.ChangeTags {
		t.Fatalf("expected tags_change, got %s", e.ChangeType)
	}
	if *e.NewValue != "None" {
		t.Fatalf("new value must be None, got %s", *e.NewValue)
	}
	if e.Description == nil || *e.Description != `All tags removed (was: "alpha, beta")` {
		t.Fatalf("description wrong: %v", e.Description)
	}
}

func TestEmptyToEmptyTagUpdateIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, models.CreateTaskRequest{Title: "Bare"})
	before := len(f.history(t, task.ID))

	_, err := f.engine.Update(ctx, f.admin, task.ID, models.UpdateTaskRequest{
		TagIDs: models.Some([]int64{}),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if after := len(f.history(t, task.ID)); after != before {
		t.Fatalf("empty-to-empty tag update must not log history")
	}
}

func TestUnknownTagIDRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.createTask(t, models.CreateTaskRequest{Title: "Strict"})
	_, err := f.engine.Update(ctx, f.admin, task.ID, models.UpdateTaskRequest{
		TagIDs: models.Some([]int64{424242}),
	})
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateTagIdempotentByName(t *testing.T) {
	f := newFixture(t)

	first := f.mustTag(t, "  urgent  ")
	second := f.mustTag(t, "urgent")
	if first.ID != second.ID {
		t.Fatalf("same trimmed name must return the same tag: %d vs %d", first.ID, second.ID)
	}
	if first.Name != "urgent" {
		t.Fatalf("name not trimmed: %q", first.Name)
	}
}

func TestCreateTagValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.CreateTag(ctx, f.user, "   "); KindOf(err) != KindValidation {
		t.Fatalf("blank name must be rejected, got %v", err)
	}

	long := make([]byte, models.MaxTagNameLen+1)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := f.engine.CreateTag(ctx, f.user, string(long)); KindOf(err) != KindValidation {
		t.Fatalf("overlong name must be rejected, got %v", err)
	}
}

func TestDeleteTagAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tag := f.mustTag(t, "temp")
	if err := f.engine.DeleteTag(ctx, f.manager, tag.ID); KindOf(err) != KindAuthorization {
		t.Fatalf("manager must not delete tags, got %v", err)
	}
	if err := f.engine.DeleteTag(ctx, f.admin, tag.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if err := f.engine.DeleteTag(ctx, f.admin, tag.ID); KindOf(err) != KindNotFound {
		t.Fatalf("second delete must be not-found, got %v", err)
	}
}
