// Package view computes the filtered projection of mirrored files and
// folders for the active view, folder, and search term. Projection is a
// pure function: it never mutates its inputs and never re-sorts them,
// so rendering order stays the delivery order of the mirror.
package view

import (
	"strings"

	"github.com/skydrive/skydrive/internal/model"
)

// View identifies one of the top-level drive views.
type View string

const (
	MyDrive View = "myDrive"
	Recent  View = "recent"
	Starred View = "starred"
	Trash   View = "trash"
	Vault   View = "vault"
)

// Projection is the subset of files and folders to render.
type Projection struct {
	Files   []model.File
	Folders []model.Folder
}

// Project derives the rendered subset. A non-empty search term is
// global: it matches by case-insensitive substring across every file
// and folder, ignoring view and folder scoping entirely (trashed items
// included, so trashed files stay findable by name). Otherwise the view
// rules apply; an unknown view yields an empty projection rather than
// an error so rendering stays total.
func Project(files []model.File, folders []model.Folder, v View, activeFolder *model.Folder, search string) Projection {
	if term := strings.TrimSpace(search); term != "" {
		return searchProjection(files, folders, term)
	}

	var p Projection
	switch v {
	case Trash:
		for _, f := range files {
			if f.Trashed {
				p.Files = append(p.Files, f)
			}
		}
	case Starred:
		for _, f := range files {
			if f.Starred && !f.Trashed {
				p.Files = append(p.Files, f)
			}
		}
	case Recent:
		for _, f := range files {
			if !f.Trashed && !f.Vault {
				p.Files = append(p.Files, f)
			}
		}
	case Vault:
		for _, f := range files {
			if f.Vault && !f.Trashed {
				p.Files = append(p.Files, f)
			}
		}
	case MyDrive:
		parent := ""
		if activeFolder != nil {
			parent = activeFolder.ID
		}
		for _, f := range files {
			if !f.Trashed && !f.Vault && f.ParentID == parent {
				p.Files = append(p.Files, f)
			}
		}
		for _, f := range folders {
			if f.ParentID == parent {
				p.Folders = append(p.Folders, f)
			}
		}
	}
	return p
}

// RootFolders lists the sidebar folders: top-level folders owned by the
// given user. Unowned folders are visible to everyone.
func RootFolders(folders []model.Folder, ownerID string) []model.Folder {
	var out []model.Folder
	for _, f := range folders {
		if f.ParentID != "" {
			continue
		}
		if f.OwnerID == "" || f.OwnerID == ownerID {
			out = append(out, f)
		}
	}
	return out
}

func searchProjection(files []model.File, folders []model.Folder, term string) Projection {
	term = strings.ToLower(term)
	var p Projection
	for _, f := range files {
		if strings.Contains(strings.ToLower(f.Name), term) {
			p.Files = append(p.Files, f)
		}
	}
	for _, f := range folders {
		if strings.Contains(strings.ToLower(f.Name), term) {
			p.Folders = append(p.Folders, f)
		}
	}
	return p
}
