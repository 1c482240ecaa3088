package ui

import (
	"errors"
	"sync"

	"github.com/skydrive/skydrive/internal/identity"
	"github.com/skydrive/skydrive/internal/mirror"
	"github.com/skydrive/skydrive/internal/model"
	"github.com/skydrive/skydrive/internal/upload"
	"github.com/skydrive/skydrive/internal/view"
)

// ErrVaultLocked is returned when navigating to the vault view before
// the gate has been unlocked.
var ErrVaultLocked = errors.New("vault is locked")

// Controller ties navigation to the mirror and the interaction state:
// it tracks the active view, folder, and search term, resets the
// interaction state on every navigation change, and derives the
// projection to render.
type Controller struct {
	mirror *mirror.Mirror
	state  *State
	gate   *VaultGate
	user   identity.User

	mu       sync.Mutex
	view     view.View
	folderID string
	search   string
}

// NewController creates a Controller starting in My Drive at root.
// gate may be nil when the deployment has no vault.
func NewController(m *mirror.Mirror, st *State, gate *VaultGate, user identity.User) *Controller {
	return &Controller{
		mirror: m,
		state:  st,
		gate:   gate,
		user:   user,
		view:   view.MyDrive,
	}
}

// SetView switches the top-level view, leaving any open folder. The
// vault view requires the gate to be unlocked first.
func (c *Controller) SetView(v view.View) error {
	if v == view.Vault && c.gate != nil && !c.gate.Unlocked(c.user.ID) {
		return ErrVaultLocked
	}

	c.mu.Lock()
	changed := c.view != v || c.folderID != ""
	c.view = v
	c.folderID = ""
	c.mu.Unlock()

	if changed {
		c.state.Reset()
	}
	return nil
}

// OpenFolder navigates into a mirrored folder, switching to My Drive.
func (c *Controller) OpenFolder(id string) error {
	if _, ok := c.mirror.Folder(id); !ok {
		return errors.New("unknown folder")
	}

	c.mu.Lock()
	c.view = view.MyDrive
	c.folderID = id
	c.mu.Unlock()

	c.state.Reset()
	return nil
}

// CloseFolder returns to the root of My Drive.
func (c *Controller) CloseFolder() {
	c.mu.Lock()
	changed := c.folderID != ""
	c.folderID = ""
	c.mu.Unlock()

	if changed {
		c.state.Reset()
	}
}

// SetSearch updates the search term.
func (c *Controller) SetSearch(term string) {
	c.mu.Lock()
	changed := c.search != term
	c.search = term
	c.mu.Unlock()

	if changed {
		c.state.Reset()
	}
}

// View returns the active view.
func (c *Controller) View() view.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// ActiveFolder returns the open folder, if any.
func (c *Controller) ActiveFolder() (model.Folder, bool) {
	c.mu.Lock()
	id := c.folderID
	c.mu.Unlock()
	if id == "" {
		return model.Folder{}, false
	}
	return c.mirror.Folder(id)
}

// Search returns the active search term.
func (c *Controller) Search() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.search
}

// Projection computes the file/folder subset to render for the current
// navigation state.
func (c *Controller) Projection() view.Projection {
	c.mu.Lock()
	v, folderID, search := c.view, c.folderID, c.search
	c.mu.Unlock()

	var active *model.Folder
	if folderID != "" {
		if f, ok := c.mirror.Folder(folderID); ok {
			active = &f
		}
	}
	return view.Project(c.mirror.Files(), c.mirror.Folders(), v, active, search)
}

// SidebarFolders lists the user's top-level folders for the sidebar,
// independent of the active view.
func (c *Controller) SidebarFolders() []model.Folder {
	return view.RootFolders(c.mirror.Folders(), c.user.ID)
}

// Destination reports where an upload finishing right now should land.
func (c *Controller) Destination() upload.Destination {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := upload.Destination{Vault: c.view == view.Vault}
	if c.view == view.MyDrive {
		d.ParentID = c.folderID
	}
	return d
}
