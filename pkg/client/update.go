package client

import "github.com/mverkerk/opsboard/pkg/models"

// TaskUpdate accumulates fields for UpdateTask. The server treats an
// absent field as "leave untouched" and an explicit null as "clear", so
// only fields set here end up in the request body.
type TaskUpdate map[string]any

// NewTaskUpdate returns an empty update.
func NewTaskUpdate() TaskUpdate {
	return TaskUpdate{}
}

func (u TaskUpdate) Title(title string) TaskUpdate {
	u["title"] = title
	return u
}

func (u TaskUpdate) Description(desc string) TaskUpdate {
	u["description"] = desc
	return u
}

// ClearDescription sends an explicit null for description.
func (u TaskUpdate) ClearDescription() TaskUpdate {
	u["description"] = nil
	return u
}

func (u TaskUpdate) Priority(p string) TaskUpdate {
	u["priority"] = p
	return u
}

func (u TaskUpdate) Status(s string) TaskUpdate {
	u["status"] = s
	return u
}

func (u TaskUpdate) AssignTo(userID int64) TaskUpdate {
	u["assigned_to_div"] = userID
	return u
}

func (u TaskUpdate) Unassign() TaskUpdate {
	u["assigned_to_div"] = nil
	return u
}

func (u TaskUpdate) AssignToDivUser(divUserID int64) TaskUpdate {
	u["assigned_to_div_user"] = divUserID
	return u
}

func (u TaskUpdate) UnassignDivUser() TaskUpdate {
	u["assigned_to_div_user"] = nil
	return u
}

// DueDate sets the due date (YYYY-MM-DD; a trailing time component is
// dropped server-side).
func (u TaskUpdate) DueDate(date string) TaskUpdate {
	u["due_date"] = date
	return u
}

func (u TaskUpdate) ClearDueDate() TaskUpdate {
	u["due_date"] = nil
	return u
}

func (u TaskUpdate) Notes(notes string) TaskUpdate {
	u["notes"] = notes
	return u
}

func (u TaskUpdate) ClearNotes() TaskUpdate {
	u["notes"] = nil
	return u
}

// Tags replaces the task's tag set. An empty slice removes all tags.
func (u TaskUpdate) Tags(tagIDs []int64) TaskUpdate {
	if tagIDs == nil {
		tagIDs = []int64{}
	}
	u["tag_ids"] = tagIDs
	return u
}

// Subtasks replaces the task's subtask list. Files on subtasks whose
// title survives the replacement are carried over.
func (u TaskUpdate) Subtasks(subtasks []models.SubtaskInput) TaskUpdate {
	if subtasks == nil {
		subtasks = []models.SubtaskInput{}
	}
	u["subtasks"] = subtasks
	return u
}
