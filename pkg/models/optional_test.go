package models

import (
	"encoding/json"
	"testing"
)

func TestOptional_absentVsNullVsValue(t *testing.T) {
	var req UpdateTaskRequest
	payload := `{"title":"New name","due_date":null}`
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !req.Title.Present() || req.Title.Value != "New name" {
		t.Errorf("title: %+v", req.Title)
	}
	if !req.DueDate.Set || !req.DueDate.Null {
		t.Errorf("due_date should be explicit null: %+v", req.DueDate)
	}
	if req.Status.Set {
		t.Errorf("absent status must decode as unset: %+v", req.Status)
	}
}

func TestOptional_sliceValue(t *testing.T) {
	var req UpdateTaskRequest
	if err := json.Unmarshal([]byte(`{"tag_ids":[3,1,2]}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !req.TagIDs.Present() || len(req.TagIDs.Value) != 3 {
		t.Errorf("tag_ids: %+v", req.TagIDs)
	}
}

func TestOptional_constructors(t *testing.T) {
	s := Some("x")
	if !s.Present() || s.Value != "x" {
		t.Errorf("Some: %+v", s)
	}
	n := None[int64]()
	if !n.Set || !n.Null || n.Present() {
		t.Errorf("None: %+v", n)
	}
}
