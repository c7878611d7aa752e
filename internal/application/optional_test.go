package application

import (
	"encoding/json"
	"testing"
)

func TestOptional_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var body struct {
		Description Optional[string]  `json:"description"`
		Assignee    Optional[*string] `json:"assigned_to"`
		Absent      Optional[string]  `json:"absent"`
	}
	if err := json.Unmarshal([]byte(`{"description":"","assigned_to":null}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !body.Description.Set || body.Description.Value != "" {
		t.Fatalf("expected empty description to be set, got %#v", body.Description)
	}
	if !body.Assignee.Set || body.Assignee.Value != nil {
		t.Fatalf("expected explicit null assignee to be set to nil, got %#v", body.Assignee)
	}
	if body.Absent.Set {
		t.Fatalf("expected absent field to stay unset")
	}
}

func TestOptional_Or(t *testing.T) {
	t.Parallel()

	if got := (Optional[int]{}).Or(7); got != 7 {
		t.Fatalf("expected fallback, got %d", got)
	}
	if got := Some(0).Or(7); got != 0 {
		t.Fatalf("expected set zero value, got %d", got)
	}
}
