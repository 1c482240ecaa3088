// Package ui holds the transient interaction state of the drive view:
// the selection set, the open modal, the context menu, and the drag
// payload. All of it is render-local and resets whenever the view,
// active folder, or search term changes.
package ui

import "sync"

// Modal identifies the single open dialog. Opening one closes any
// other.
type Modal int

const (
	ModalNone Modal = iota
	ModalPreview
	ModalRename
	ModalDeleteConfirm
	ModalCreateFolder
	ModalVaultPIN
)

// TargetKind distinguishes what a context menu or modal points at.
type TargetKind int

const (
	KindFile TargetKind = iota
	KindFolder
)

// ContextMenu is an open right-click menu.
type ContextMenu struct {
	X, Y     int
	TargetID string
	Kind     TargetKind
}

// DragPayload is the file being dragged over the folder tree.
type DragPayload struct {
	FileID string
}

// State is the interaction state. Safe for concurrent use.
type State struct {
	mu          sync.Mutex
	selection   map[string]bool
	modal       Modal
	modalTarget string
	modalKind   TargetKind
	menu        *ContextMenu
	drag        *DragPayload
}

// NewState creates an empty State.
func NewState() *State {
	return &State{selection: make(map[string]bool)}
}

// Reset clears everything. Called on every view, folder, or search
// change.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = make(map[string]bool)
	s.modal = ModalNone
	s.modalTarget = ""
	s.menu = nil
	s.drag = nil
}

// ToggleSelect adds or removes an id from the selection.
func (s *State) ToggleSelect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection[id] {
		delete(s.selection, id)
	} else {
		s.selection[id] = true
	}
}

// Selected reports whether id is selected.
func (s *State) Selected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection[id]
}

// Selection returns the selected ids.
func (s *State) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.selection))
	for id := range s.selection {
		ids = append(ids, id)
	}
	return ids
}

// ClearSelection empties the selection set without touching modals.
func (s *State) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = make(map[string]bool)
}

// OpenModal opens a modal over a target, closing any other modal and
// the context menu.
func (s *State) OpenModal(m Modal, targetID string, kind TargetKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modal = m
	s.modalTarget = targetID
	s.modalKind = kind
	s.menu = nil
}

// CloseModal closes the open modal, if any.
func (s *State) CloseModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modal = ModalNone
	s.modalTarget = ""
}

// ActiveModal returns the open modal and its target.
func (s *State) ActiveModal() (Modal, string, TargetKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modal, s.modalTarget, s.modalKind
}

// OpenContextMenu opens the menu at a position over a target, closing
// any previous menu.
func (s *State) OpenContextMenu(x, y int, targetID string, kind TargetKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menu = &ContextMenu{X: x, Y: y, TargetID: targetID, Kind: kind}
}

// CloseContextMenu closes the menu. Wired to Escape and any outside
// click.
func (s *State) CloseContextMenu() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menu = nil
}

// Menu returns the open context menu, or nil.
func (s *State) Menu() *ContextMenu {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.menu == nil {
		return nil
	}
	m := *s.menu
	return &m
}

// StartDrag begins dragging a file.
func (s *State) StartDrag(fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag = &DragPayload{FileID: fileID}
}

// Drag returns the current drag payload, or nil.
func (s *State) Drag() *DragPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return nil
	}
	d := *s.drag
	return &d
}

// EndDrag clears the drag payload.
func (s *State) EndDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag = nil
}
