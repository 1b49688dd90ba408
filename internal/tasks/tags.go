package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mverkerk/opsboard/internal/store"
	"github.com/mverkerk/opsboard/pkg/models"
)

// reconcileTags replaces the task's tag set with newIDs and records one
// tags_change entry when the set actually changed. The whole link set is
// rewritten (delete all, reinsert) rather than diffed link-by-link; the
// change decision compares sorted id sets.
func (e *Engine) reconcileTags(ctx context.Context, actorID, taskID int64, newIDs []int64) error {
	// Repeated ids in the request collapse to one link.
	newIDs = uniqueIDs(newIDs)

	existing, err := e.store.ListTagsByTask(ctx, taskID)
	if err != nil {
		return internal("list task tags", err)
	}
	existingIDs := make([]int64, len(existing))
	existingNames := make([]string, len(existing))
	for i, t := range existing {
		existingIDs[i] = t.ID
		existingNames[i] = t.Name
	}
	oldNames := strings.Join(existingNames, ", ")

	var newTags []store.Tag
	if len(newIDs) > 0 {
		newTags, err = e.store.GetTagsByIDs(ctx, newIDs)
		if err != nil {
			return internal("fetch tags", err)
		}
		if len(newTags) != len(newIDs) {
			return validationf("one or more tag ids do not exist")
		}
	}

	if err := e.store.DeleteTaskTagLinks(ctx, taskID); err != nil {
		return internal("clear task tags", err)
	}
	for _, id := range newIDs {
		if err := e.store.InsertTaskTagLink(ctx, taskID, id); err != nil {
			return internal("link tag", err)
		}
	}

	if len(newIDs) > 0 {
		if !sameIDSet(existingIDs, newIDs) {
			names := make([]string, len(newTags))
			for i, t := range newTags {
				names[i] = t.Name
			}
			newNames := strings.Join(names, ", ")
			old := oldNames
			if old == "" {
				old = placeholderNone
			}
			e.rec.record(ctx, store.NewHistory{
				TaskID:      taskID,
				ChangedBy:   actorID,
				ChangeType:  models.ChangeTags,
				FieldName:   strptr("tags"),
				OldValue:    strptr(old),
				NewValue:    strptr(newNames),
				Description: strptr(fmt.Sprintf("Tags changed from %q to %q", old, newNames)),
			})
		}
	} else if len(existingIDs) > 0 {
		e.rec.record(ctx, store.NewHistory{
			TaskID:      taskID,
			ChangedBy:   actorID,
			ChangeType:  models.ChangeTags,
			FieldName:   strptr("tags"),
			OldValue:    strptr(oldNames),
			NewValue:    strptr(placeholderNone),
			Description: strptr(fmt.Sprintf("All tags removed (was: %q)", oldNames)),
		})
	}
	return nil
}

// linkCreateTags attaches tags during task creation and records a single
// "Tags added" entry summarizing the names.
func (e *Engine) linkCreateTags(ctx context.Context, actorID, taskID int64, tagIDs []int64) error {
	tagIDs = uniqueIDs(tagIDs)
	if len(tagIDs) == 0 {
		return nil
	}
	tags, err := e.store.GetTagsByIDs(ctx, tagIDs)
	if err != nil {
		return internal("fetch tags", err)
	}
	if len(tags) != len(tagIDs) {
		return validationf("one or more tag ids do not exist")
	}
	for _, id := range tagIDs {
		if err := e.store.InsertTaskTagLink(ctx, taskID, id); err != nil {
			return internal("link tag", err)
		}
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	joined := strings.Join(names, ", ")
	e.rec.record(ctx, store.NewHistory{
		TaskID:      taskID,
		ChangedBy:   actorID,
		ChangeType:  models.ChangeTags,
		FieldName:   strptr("tags"),
		NewValue:    strptr(joined),
		Description: strptr("Tags added: " + joined),
	})
	return nil
}

func sameIDSet(a, b []int64) bool {
	as := append([]int64(nil), a...)
	bs := append([]int64(nil), b...)
	sort.Slice(as, func(i, j int) bool { return as[i] < as[j] })
	sort.Slice(bs, func(i, j int) bool { return bs[i] < bs[j] })
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
