package game

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultBoard(t *testing.T) {
	board := DefaultBoard()

	if board.LastIndex() != 29 {
		t.Errorf("Expected last index 29, got %d", board.LastIndex())
	}

	field, ok := board.Field(4)
	if !ok || field.Type != FieldJump || field.JumpTarget != 7 {
		t.Errorf("Expected jump 4 -> 7, got %+v", field)
	}

	questions := 0
	for _, f := range board.Fields() {
		if f.Type == FieldQuestion {
			questions++
		}
	}
	if questions == 0 {
		t.Error("Default board should contain question fields")
	}
}

func TestNewBoard_Validation(t *testing.T) {
	cases := []struct {
		name   string
		fields []Field
	}{
		{"too short", []Field{{Index: 0, Type: FieldDefault}}},
		{"index mismatch", []Field{
			{Index: 0, Type: FieldDefault},
			{Index: 2, Type: FieldDefault},
		}},
		{"jump out of range", []Field{
			{Index: 0, Type: FieldDefault},
			{Index: 1, Type: FieldJump, JumpTarget: 9},
		}},
		{"unknown type", []Field{
			{Index: 0, Type: FieldDefault},
			{Index: 1, Type: FieldType("teleport")},
		}},
	}

	for _, tc := range cases {
		if _, err := NewBoard(tc.fields); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestBoard_FieldOutOfRange(t *testing.T) {
	board := DefaultBoard()

	if _, ok := board.Field(-1); ok {
		t.Error("Field(-1) should not exist")
	}
	if _, ok := board.Field(30); ok {
		t.Error("Field(30) should not exist")
	}
}

func TestBoard_Colors(t *testing.T) {
	board := DefaultBoard()

	if !board.AssignColor("red", "p1") {
		t.Fatal("Assigning a free color should succeed")
	}
	if board.AssignColor("red", "p2") {
		t.Fatal("Assigning a taken color should fail")
	}

	available := board.AvailableColors()
	for _, color := range available {
		if color == "red" {
			t.Error("Taken color must not be listed as available")
		}
	}
	if len(available) != len(Colors)-1 {
		t.Errorf("Expected %d available colors, got %d", len(Colors)-1, len(available))
	}

	board.ReleaseColor("p1")
	if !board.AssignColor("red", "p2") {
		t.Error("Released color should be assignable again")
	}
}

func TestBoard_CategoryLastWriterWins(t *testing.T) {
	board := DefaultBoard()

	board.SetCategory("sports")
	board.SetCategory("music")

	if board.Category() != "music" {
		t.Errorf("Expected category music, got %q", board.Category())
	}
}

func TestLoadFields(t *testing.T) {
	layout := `fields:
  - index: 0
    type: default
  - index: 1
    type: question
  - index: 2
    type: jump
    jump_target: 0
  - index: 3
    type: default
`
	path := filepath.Join(t.TempDir(), "board.yaml")
	if err := os.WriteFile(path, []byte(layout), 0o644); err != nil {
		t.Fatalf("write board file: %v", err)
	}

	fields, err := LoadFields(path)
	if err != nil {
		t.Fatalf("LoadFields failed: %v", err)
	}
	if len(fields) != 4 {
		t.Fatalf("Expected 4 fields, got %d", len(fields))
	}
	if fields[1].Type != FieldQuestion {
		t.Errorf("Expected field 1 to be a question, got %s", fields[1].Type)
	}
	if fields[2].Type != FieldJump || fields[2].JumpTarget != 0 {
		t.Errorf("Expected jump 2 -> 0, got %+v", fields[2])
	}
}

func TestLoadFields_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	if err := os.WriteFile(path, []byte("fields:\n  - index: 0\n    type: default\n"), 0o644); err != nil {
		t.Fatalf("write board file: %v", err)
	}

	if _, err := LoadFields(path); err == nil {
		t.Error("A single-field layout should be rejected")
	}

	if _, err := LoadFields(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("A missing file should be an error")
	}
}
