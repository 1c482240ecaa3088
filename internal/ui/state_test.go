package ui

import (
	"sort"
	"testing"
)

func TestSelection(t *testing.T) {
	s := NewState()

	s.ToggleSelect("a")
	s.ToggleSelect("b")
	if !s.Selected("a") || !s.Selected("b") {
		t.Fatal("ids not selected")
	}

	s.ToggleSelect("a")
	if s.Selected("a") {
		t.Error("toggle did not deselect")
	}

	s.ToggleSelect("c")
	got := s.Selection()
	sort.Strings(got)
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("selection = %v", got)
	}

	s.ClearSelection()
	if len(s.Selection()) != 0 {
		t.Error("selection not cleared")
	}
}

func TestOneModalAtATime(t *testing.T) {
	s := NewState()

	s.OpenModal(ModalRename, "f1", KindFile)
	if m, target, kind := s.ActiveModal(); m != ModalRename || target != "f1" || kind != KindFile {
		t.Fatalf("modal = %v %q %v", m, target, kind)
	}

	s.OpenModal(ModalDeleteConfirm, "f2", KindFolder)
	if m, target, _ := s.ActiveModal(); m != ModalDeleteConfirm || target != "f2" {
		t.Errorf("second modal did not replace first: %v %q", m, target)
	}

	s.CloseModal()
	if m, _, _ := s.ActiveModal(); m != ModalNone {
		t.Errorf("modal still open: %v", m)
	}
}

func TestOpeningModalClosesContextMenu(t *testing.T) {
	s := NewState()

	s.OpenContextMenu(10, 20, "f1", KindFile)
	menu := s.Menu()
	if menu == nil || menu.X != 10 || menu.Y != 20 || menu.TargetID != "f1" {
		t.Fatalf("menu = %+v", menu)
	}

	s.OpenModal(ModalPreview, "f1", KindFile)
	if s.Menu() != nil {
		t.Error("context menu survived modal open")
	}
}

func TestContextMenuClose(t *testing.T) {
	s := NewState()
	s.OpenContextMenu(1, 2, "f1", KindFolder)
	s.CloseContextMenu()
	if s.Menu() != nil {
		t.Error("menu still open")
	}
}

func TestDragLifecycle(t *testing.T) {
	s := NewState()

	if s.Drag() != nil {
		t.Fatal("drag set on fresh state")
	}
	s.StartDrag("f1")
	if d := s.Drag(); d == nil || d.FileID != "f1" {
		t.Fatalf("drag = %+v", d)
	}
	s.EndDrag()
	if s.Drag() != nil {
		t.Error("drag survived EndDrag")
	}
}

func TestResetClearsEverything(t *testing.T) {
	s := NewState()
	s.ToggleSelect("a")
	s.OpenModal(ModalRename, "a", KindFile)
	s.OpenContextMenu(5, 5, "a", KindFile)
	s.StartDrag("a")

	s.Reset()

	if len(s.Selection()) != 0 {
		t.Error("selection survived reset")
	}
	if m, _, _ := s.ActiveModal(); m != ModalNone {
		t.Error("modal survived reset")
	}
	if s.Menu() != nil {
		t.Error("menu survived reset")
	}
	if s.Drag() != nil {
		t.Error("drag survived reset")
	}
}
