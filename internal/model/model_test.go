package model

import (
	"testing"
	"time"
)

func TestFileFromFields_CanonicalFields(t *testing.T) {
	uploaded := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := FileFromFields("f1", map[string]any{
		"name":        "report.pdf",
		"ownerId":     "user-1",
		"size":        int64(2048),
		"mimeType":    "application/pdf",
		"storagePath": "files/user-1/report.pdf",
		"downloadURL": "https://blob/report.pdf",
		"uploadedAt":  uploaded,
		"starred":     true,
		"trashed":     false,
		"isVault":     false,
		"parentId":    "folder-1",
	})

	if f.ID != "f1" || f.Name != "report.pdf" || f.OwnerID != "user-1" {
		t.Errorf("unexpected identity fields: %+v", f)
	}
	if f.Size != 2048 {
		t.Errorf("Expected size 2048, got %d", f.Size)
	}
	if !f.Starred || f.Trashed || f.Vault {
		t.Errorf("unexpected flags: %+v", f)
	}
	if f.ParentID != "folder-1" {
		t.Errorf("Expected parent 'folder-1', got %q", f.ParentID)
	}
	if !f.UploadedAt.Equal(uploaded) {
		t.Errorf("Expected uploadedAt %v, got %v", uploaded, f.UploadedAt)
	}
	// lastModified falls back to uploadedAt when absent
	if !f.LastModified.Equal(uploaded) {
		t.Errorf("Expected lastModified fallback to uploadedAt, got %v", f.LastModified)
	}
}

func TestFileFromFields_Aliases(t *testing.T) {
	f := FileFromFields("f2", map[string]any{
		"fileName":    "photo.jpg",
		"owner":       "user-2",
		"fileSize":    float64(100),
		"contentType": "image/jpeg",
		"path":        "files/user-2/photo.jpg",
	})

	if f.Name != "photo.jpg" {
		t.Errorf("Expected name from fileName alias, got %q", f.Name)
	}
	if f.OwnerID != "user-2" {
		t.Errorf("Expected ownerId from owner alias, got %q", f.OwnerID)
	}
	if f.Size != 100 {
		t.Errorf("Expected size from fileSize alias, got %d", f.Size)
	}
	if f.MIMEType != "image/jpeg" {
		t.Errorf("Expected mimeType from contentType alias, got %q", f.MIMEType)
	}
	if f.StoragePath != "files/user-2/photo.jpg" {
		t.Errorf("Expected storagePath from path alias, got %q", f.StoragePath)
	}
}

func TestFileFromFields_Defaults(t *testing.T) {
	f := FileFromFields("f3", map[string]any{})

	if f.Name != "Untitled" {
		t.Errorf("Expected default name 'Untitled', got %q", f.Name)
	}
	if f.OwnerID != "" {
		t.Errorf("Expected empty owner, got %q", f.OwnerID)
	}
	if f.Size != SizeUnknown {
		t.Errorf("Expected SizeUnknown, got %d", f.Size)
	}
	if f.Trashed || f.Starred || f.Vault {
		t.Errorf("Expected all flags false: %+v", f)
	}
}

func TestFolderFromFields(t *testing.T) {
	created := time.Date(2025, 7, 2, 9, 30, 0, 0, time.UTC)
	fo := FolderFromFields("d1", map[string]any{
		"name":      "Projects",
		"ownerId":   "user-1",
		"createdAt": created,
	})
	if fo.Name != "Projects" || fo.OwnerID != "user-1" || fo.ParentID != "" {
		t.Errorf("unexpected folder: %+v", fo)
	}
	if !fo.CreatedAt.Equal(created) {
		t.Errorf("Expected createdAt %v, got %v", created, fo.CreatedAt)
	}

	empty := FolderFromFields("d2", map[string]any{})
	if empty.Name != "Untitled folder" {
		t.Errorf("Expected default folder name, got %q", empty.Name)
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		name string
		mime string
		want Kind
	}{
		{"cat.png", "image/png", KindImage},
		{"doc.pdf", "application/pdf", KindPDF},
		{"doc.pdf", "", KindPDF}, // extension fallback
		{"clip.mp4", "video/mp4", KindVideo},
		{"song.mp3", "audio/mpeg", KindAudio},
		{"memo.docx", "", KindWord},
		{"sheet.xlsx", "", KindExcel},
		{"archive.zip", "application/zip", KindGeneric},
	}
	for _, c := range cases {
		f := File{Name: c.name, MIMEType: c.mime}
		if got := f.Kind(); got != c.want {
			t.Errorf("Kind(%q, %q) = %q, want %q", c.name, c.mime, got, c.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{SizeUnknown, "—"},
		{0, "—"},
		{512, "512 B"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, c := range cases {
		if got := FormatSize(c.size); got != c.want {
			t.Errorf("FormatSize(%d) = %q, want %q", c.size, got, c.want)
		}
	}
}
