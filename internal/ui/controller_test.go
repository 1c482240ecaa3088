package ui

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/skydrive/skydrive/internal/identity"
	"github.com/skydrive/skydrive/internal/mirror"
	"github.com/skydrive/skydrive/internal/prefs"
	"github.com/skydrive/skydrive/internal/store"
	"github.com/skydrive/skydrive/internal/store/memory"
	"github.com/skydrive/skydrive/internal/view"
)

var user = identity.User{ID: "u1", DisplayName: "User"}

func newController(t *testing.T) (*Controller, *memory.Store, *VaultGate) {
	t.Helper()
	s := memory.New()
	m := mirror.New(s)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start mirror: %v", err)
	}
	t.Cleanup(m.Stop)

	db, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("open prefs: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	gate := NewVaultGate(db)

	return NewController(m, NewState(), gate, user), s, gate
}

func seedFolder(t *testing.T, s *memory.Store, name string) string {
	t.Helper()
	id, err := s.Create(context.Background(), store.Folders, map[string]any{
		"name": name, "ownerId": "u1", "createdAt": store.ServerTimestamp,
	})
	if err != nil {
		t.Fatalf("seed folder: %v", err)
	}
	return id
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestNavigationResetsInteractionState(t *testing.T) {
	c, s, _ := newController(t)
	folderID := seedFolder(t, s, "Docs")
	waitFor(t, func() bool { _, ok := c.mirror.Folder(folderID); return ok })

	check := func(step string, navigate func()) {
		c.state.ToggleSelect("x")
		c.state.OpenModal(ModalRename, "x", KindFile)
		navigate()
		if len(c.state.Selection()) != 0 {
			t.Errorf("%s: selection survived", step)
		}
		if m, _, _ := c.state.ActiveModal(); m != ModalNone {
			t.Errorf("%s: modal survived", step)
		}
	}

	check("view change", func() {
		if err := c.SetView(view.Starred); err != nil {
			t.Fatalf("set view: %v", err)
		}
	})
	check("folder open", func() {
		if err := c.OpenFolder(folderID); err != nil {
			t.Fatalf("open folder: %v", err)
		}
	})
	check("search change", func() { c.SetSearch("report") })
}

func TestSameSearchDoesNotReset(t *testing.T) {
	c, _, _ := newController(t)
	c.SetSearch("abc")
	c.state.ToggleSelect("x")
	c.SetSearch("abc")
	if len(c.state.Selection()) != 1 {
		t.Error("unchanged search term reset the state")
	}
}

func TestVaultViewRequiresUnlock(t *testing.T) {
	c, _, gate := newController(t)

	if err := c.SetView(view.Vault); !errors.Is(err, ErrVaultLocked) {
		t.Fatalf("locked vault: got %v, want ErrVaultLocked", err)
	}
	if c.View() == view.Vault {
		t.Fatal("view switched despite locked vault")
	}

	if err := gate.SetPIN(user.ID, "1234"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if err := c.SetView(view.Vault); err != nil {
		t.Fatalf("unlocked vault refused: %v", err)
	}
	if c.View() != view.Vault {
		t.Error("view not switched")
	}
}

func TestOpenFolderScopesProjection(t *testing.T) {
	c, s, _ := newController(t)
	folderID := seedFolder(t, s, "Docs")

	ctx := context.Background()
	if _, err := s.Create(ctx, store.Files, map[string]any{
		"name": "inner.txt", "ownerId": "u1", "parentId": folderID,
		"uploadedAt": store.ServerTimestamp,
	}); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if _, err := s.Create(ctx, store.Files, map[string]any{
		"name": "root.txt", "ownerId": "u1",
		"uploadedAt": store.ServerTimestamp,
	}); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	waitFor(t, func() bool { return len(c.mirror.Files()) == 2 })

	p := c.Projection()
	if len(p.Files) != 1 || p.Files[0].Name != "root.txt" {
		t.Errorf("root projection: %+v", p.Files)
	}

	if err := c.OpenFolder(folderID); err != nil {
		t.Fatalf("open folder: %v", err)
	}
	p = c.Projection()
	if len(p.Files) != 1 || p.Files[0].Name != "inner.txt" {
		t.Errorf("folder projection: %+v", p.Files)
	}
	if f, ok := c.ActiveFolder(); !ok || f.ID != folderID {
		t.Errorf("active folder = %+v, %v", f, ok)
	}

	c.CloseFolder()
	if _, ok := c.ActiveFolder(); ok {
		t.Error("folder still active after close")
	}

	if err := c.OpenFolder("missing"); err == nil {
		t.Error("opening unknown folder succeeded")
	}
}

func TestSidebarFoldersListsUserRoots(t *testing.T) {
	c, s, _ := newController(t)
	rootID := seedFolder(t, s, "Docs")

	ctx := context.Background()
	if _, err := s.Create(ctx, store.Folders, map[string]any{
		"name": "Nested", "ownerId": "u1", "parentId": rootID,
		"createdAt": store.ServerTimestamp,
	}); err != nil {
		t.Fatalf("seed folder: %v", err)
	}
	if _, err := s.Create(ctx, store.Folders, map[string]any{
		"name": "Theirs", "ownerId": "u2",
		"createdAt": store.ServerTimestamp,
	}); err != nil {
		t.Fatalf("seed folder: %v", err)
	}
	waitFor(t, func() bool { return len(c.mirror.Folders()) == 3 })

	out := c.SidebarFolders()
	if len(out) != 1 || out[0].ID != rootID {
		t.Errorf("sidebar folders: %+v", out)
	}
}

func TestDestinationTracksNavigation(t *testing.T) {
	c, s, gate := newController(t)
	folderID := seedFolder(t, s, "Docs")
	waitFor(t, func() bool { _, ok := c.mirror.Folder(folderID); return ok })

	if d := c.Destination(); d.ParentID != "" || d.Vault {
		t.Errorf("root destination = %+v", d)
	}

	if err := c.OpenFolder(folderID); err != nil {
		t.Fatalf("open folder: %v", err)
	}
	if d := c.Destination(); d.ParentID != folderID || d.Vault {
		t.Errorf("folder destination = %+v", d)
	}

	if err := gate.SetPIN(user.ID, "1234"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if err := c.SetView(view.Vault); err != nil {
		t.Fatalf("set view: %v", err)
	}
	if d := c.Destination(); !d.Vault || d.ParentID != "" {
		t.Errorf("vault destination = %+v", d)
	}

	// Other non-folder views land uploads at root, outside the vault.
	if err := c.SetView(view.Recent); err != nil {
		t.Fatalf("set view: %v", err)
	}
	if d := c.Destination(); d.Vault || d.ParentID != "" {
		t.Errorf("recent destination = %+v", d)
	}
}
