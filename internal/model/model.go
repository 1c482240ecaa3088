package model

import (
	"fmt"
	"strings"
	"time"
)

// SizeUnknown marks a file whose byte count was never recorded.
const SizeUnknown int64 = -1

// File is the canonical file document. Remote documents are normalized
// into this shape exactly once, at mirror ingestion; no other code reads
// raw document fields.
type File struct {
	ID           string    `json:"id" dynamodbav:"id"`
	Name         string    `json:"name" dynamodbav:"name"`
	OwnerID      string    `json:"ownerId" dynamodbav:"owner_id"` // empty = unowned, modifiable by anyone
	OwnerName    string    `json:"ownerName" dynamodbav:"owner_name"`
	Size         int64     `json:"size" dynamodbav:"size"`
	MIMEType     string    `json:"mimeType" dynamodbav:"mime_type"`
	StoragePath  string    `json:"storagePath" dynamodbav:"storage_path"` // empty = no backing blob
	DownloadURL  string    `json:"downloadURL" dynamodbav:"download_url"`
	UploadedAt   time.Time `json:"uploadedAt" dynamodbav:"uploaded_at"`
	LastModified time.Time `json:"lastModified" dynamodbav:"last_modified"`
	Starred      bool      `json:"starred" dynamodbav:"starred"`
	Trashed      bool      `json:"trashed" dynamodbav:"trashed"`
	Vault        bool      `json:"isVault" dynamodbav:"is_vault"`
	ParentID     string    `json:"parentId" dynamodbav:"parent_id"` // empty = root
}

// Folder is the canonical folder document. Folders have no trash or
// vault flags; folder deletion is hard-delete only.
type Folder struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Name      string    `json:"name" dynamodbav:"name"`
	OwnerID   string    `json:"ownerId" dynamodbav:"owner_id"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"created_at"`
	ParentID  string    `json:"parentId" dynamodbav:"parent_id"`
	Starred   bool      `json:"starred" dynamodbav:"starred"`
}

// FileFromFields normalizes a raw document into a File. Documents in the
// wild carry several aliases per field (name/fileName/originalName,
// ownerId/owner, size/fileSize/bytes, ...); this is the single place
// those aliases are resolved.
func FileFromFields(id string, fields map[string]any) File {
	f := File{
		ID:           id,
		Name:         stringField(fields, "name", "fileName", "originalName"),
		OwnerID:      stringField(fields, "ownerId", "owner"),
		OwnerName:    stringField(fields, "ownerName", "uploadedBy"),
		Size:         sizeField(fields, "size", "fileSize", "bytes"),
		MIMEType:     stringField(fields, "mimeType", "contentType", "type"),
		StoragePath:  stringField(fields, "storagePath", "path"),
		DownloadURL:  stringField(fields, "downloadURL"),
		UploadedAt:   timeField(fields, "uploadedAt"),
		LastModified: timeField(fields, "lastModified", "updatedAt", "uploadedAt"),
		Starred:      boolField(fields, "starred"),
		Trashed:      boolField(fields, "trashed"),
		Vault:        boolField(fields, "isVault"),
		ParentID:     stringField(fields, "parentId"),
	}
	if f.Name == "" {
		f.Name = "Untitled"
	}
	return f
}

// FolderFromFields normalizes a raw document into a Folder.
func FolderFromFields(id string, fields map[string]any) Folder {
	f := Folder{
		ID:        id,
		Name:      stringField(fields, "name"),
		OwnerID:   stringField(fields, "ownerId", "owner"),
		CreatedAt: timeField(fields, "createdAt"),
		ParentID:  stringField(fields, "parentId"),
		Starred:   boolField(fields, "starred"),
	}
	if f.Name == "" {
		f.Name = "Untitled folder"
	}
	return f
}

func stringField(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := fields[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func boolField(fields map[string]any, key string) bool {
	v, ok := fields[key].(bool)
	return ok && v
}

func sizeField(fields map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case int64:
			if v >= 0 {
				return v
			}
		case int:
			if v >= 0 {
				return int64(v)
			}
		case float64:
			if v >= 0 {
				return int64(v)
			}
		}
	}
	return SizeUnknown
}

func timeField(fields map[string]any, keys ...string) time.Time {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case time.Time:
			if !v.IsZero() {
				return v
			}
		case string:
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return t
			}
		case int64:
			return time.UnixMilli(v)
		}
	}
	return time.Time{}
}

// Kind buckets a file for icon and preview selection.
type Kind string

const (
	KindImage   Kind = "image"
	KindPDF     Kind = "pdf"
	KindVideo   Kind = "video"
	KindAudio   Kind = "audio"
	KindWord    Kind = "word"
	KindExcel   Kind = "excel"
	KindGeneric Kind = "generic"
)

// Kind classifies the file by MIME type, falling back to the name
// extension for office documents that often arrive with a generic type.
func (f File) Kind() Kind {
	mime := strings.ToLower(f.MIMEType)
	name := strings.ToLower(f.Name)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case mime == "application/pdf" || strings.HasSuffix(name, ".pdf"):
		return KindPDF
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio
	case strings.HasSuffix(name, ".doc") || strings.HasSuffix(name, ".docx"):
		return KindWord
	case strings.HasSuffix(name, ".xls") || strings.HasSuffix(name, ".xlsx"):
		return KindExcel
	}
	return KindGeneric
}

// FormatSize renders a byte count for display ("1.5 MB"). Unknown or
// zero sizes render as an em dash, matching the list view.
func FormatSize(size int64) string {
	if size <= 0 {
		return "—"
	}
	const k = 1024
	units := []string{"B", "KB", "MB", "GB", "TB"}
	v := float64(size)
	i := 0
	for v >= k && i < len(units)-1 {
		v /= k
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", size)
	}
	return fmt.Sprintf("%.1f %s", v, units[i])
}
