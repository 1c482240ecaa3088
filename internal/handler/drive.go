package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/skydrive/skydrive/internal/drive"
	"github.com/skydrive/skydrive/internal/identity"
	"github.com/skydrive/skydrive/internal/mirror"
	"github.com/skydrive/skydrive/internal/model"
	"github.com/skydrive/skydrive/internal/view"
)

// DriveHandler serves listings and mutations over the mirrored drive.
type DriveHandler struct {
	mirror    *mirror.Mirror
	coord     *drive.Coordinator
	jwtSecret string
}

// NewDriveHandler creates a DriveHandler.
func NewDriveHandler(m *mirror.Mirror, c *drive.Coordinator, jwtSecret string) *DriveHandler {
	return &DriveHandler{mirror: m, coord: c, jwtSecret: jwtSecret}
}

// List returns the projection for the requested view, folder, and
// search term.
func (h *DriveHandler) List(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if _, err := RequestUser(req, h.jwtSecret); err != nil {
		return unauthorized(), nil
	}

	v := view.View(req.QueryStringParameters["view"])
	if v == "" {
		v = view.MyDrive
	}

	var active *model.Folder
	if folderID := req.QueryStringParameters["folder"]; folderID != "" {
		folder, ok := h.mirror.Folder(folderID)
		if !ok {
			return errorResponse(http.StatusNotFound, "Folder not found"), nil
		}
		active = &folder
	}

	p := view.Project(h.mirror.Files(), h.mirror.Folders(), v, active, req.QueryStringParameters["search"])
	return jsonResponse(http.StatusOK, map[string]any{
		"files":   p.Files,
		"folders": p.Folders,
	}), nil
}

// Usage reports the user's stored byte total.
func (h *DriveHandler) Usage(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	user, err := RequestUser(req, h.jwtSecret)
	if err != nil {
		return unauthorized(), nil
	}

	used := drive.Usage(h.mirror.Files(), user)
	return jsonResponse(http.StatusOK, map[string]any{
		"used":      used,
		"formatted": model.FormatSize(used),
	}), nil
}

// TrashFile soft-deletes a file.
func (h *DriveHandler) TrashFile(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.fileOp(ctx, req, func(user identity.User, f model.File) error {
		return h.coord.SoftDelete(ctx, user, f)
	})
}

// RestoreFile clears a file's trashed flag.
func (h *DriveHandler) RestoreFile(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.fileOp(ctx, req, func(user identity.User, f model.File) error {
		return h.coord.Restore(ctx, user, f)
	})
}

// DeleteFile hard-deletes a file and its blob.
func (h *DriveHandler) DeleteFile(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.fileOp(ctx, req, func(user identity.User, f model.File) error {
		return h.coord.HardDelete(ctx, user, f)
	})
}

// PatchFile applies rename, star-toggle, or move, depending on which
// body fields are present.
func (h *DriveHandler) PatchFile(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body struct {
		Name     *string `json:"name"`
		Star     bool    `json:"star"`
		ParentID *string `json:"parentId"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errorResponse(http.StatusBadRequest, "Invalid request body"), nil
	}

	return h.fileOp(ctx, req, func(user identity.User, f model.File) error {
		switch {
		case body.Name != nil:
			return h.coord.RenameFile(ctx, user, f, *body.Name)
		case body.ParentID != nil:
			return h.coord.MoveFile(ctx, user, f, *body.ParentID)
		case body.Star:
			return h.coord.ToggleStarFile(ctx, user, f)
		default:
			return fmt.Errorf("nothing to update")
		}
	})
}

// CreateFolder creates a folder owned by the caller.
func (h *DriveHandler) CreateFolder(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	user, err := RequestUser(req, h.jwtSecret)
	if err != nil {
		return unauthorized(), nil
	}

	var body struct {
		Name     string `json:"name"`
		ParentID string `json:"parentId"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errorResponse(http.StatusBadRequest, "Invalid request body"), nil
	}

	id, err := h.coord.CreateFolder(ctx, user, body.Name, body.ParentID)
	if err != nil {
		return opError(err), nil
	}
	return jsonResponse(http.StatusCreated, map[string]string{"id": id}), nil
}

// PatchFolder applies rename, star-toggle, or move to a folder.
func (h *DriveHandler) PatchFolder(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body struct {
		Name     *string `json:"name"`
		Star     bool    `json:"star"`
		ParentID *string `json:"parentId"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errorResponse(http.StatusBadRequest, "Invalid request body"), nil
	}

	return h.folderOp(ctx, req, func(user identity.User, f model.Folder) error {
		switch {
		case body.Name != nil:
			return h.coord.RenameFolder(ctx, user, f, *body.Name)
		case body.ParentID != nil:
			return h.coord.MoveFolder(ctx, user, f, *body.ParentID, h.mirror.Folders())
		case body.Star:
			return h.coord.ToggleStarFolder(ctx, user, f)
		default:
			return fmt.Errorf("nothing to update")
		}
	})
}

// DeleteFolder removes an empty folder.
func (h *DriveHandler) DeleteFolder(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.folderOp(ctx, req, func(user identity.User, f model.Folder) error {
		return h.coord.HardDeleteFolder(ctx, user, f, h.mirror.Files(), h.mirror.Folders())
	})
}

// BulkRestore restores every file in the request's id list.
func (h *DriveHandler) BulkRestore(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.bulkOp(ctx, req, func(user identity.User, files []model.File) error {
		return h.coord.BulkRestore(ctx, user, files)
	})
}

// BulkDelete hard-deletes every file in the request's id list.
func (h *DriveHandler) BulkDelete(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.bulkOp(ctx, req, func(user identity.User, files []model.File) error {
		return h.coord.BulkHardDelete(ctx, user, files)
	})
}

func (h *DriveHandler) fileOp(ctx context.Context, req events.APIGatewayProxyRequest, op func(identity.User, model.File) error) (events.APIGatewayProxyResponse, error) {
	user, err := RequestUser(req, h.jwtSecret)
	if err != nil {
		return unauthorized(), nil
	}

	file, ok := h.mirror.File(req.PathParameters["id"])
	if !ok {
		return errorResponse(http.StatusNotFound, "File not found"), nil
	}
	if err := op(user, file); err != nil {
		return opError(err), nil
	}
	return jsonResponse(http.StatusOK, map[string]bool{"success": true}), nil
}

func (h *DriveHandler) folderOp(ctx context.Context, req events.APIGatewayProxyRequest, op func(identity.User, model.Folder) error) (events.APIGatewayProxyResponse, error) {
	user, err := RequestUser(req, h.jwtSecret)
	if err != nil {
		return unauthorized(), nil
	}

	folder, ok := h.mirror.Folder(req.PathParameters["id"])
	if !ok {
		return errorResponse(http.StatusNotFound, "Folder not found"), nil
	}
	if err := op(user, folder); err != nil {
		return opError(err), nil
	}
	return jsonResponse(http.StatusOK, map[string]bool{"success": true}), nil
}

func (h *DriveHandler) bulkOp(ctx context.Context, req events.APIGatewayProxyRequest, op func(identity.User, []model.File) error) (events.APIGatewayProxyResponse, error) {
	user, err := RequestUser(req, h.jwtSecret)
	if err != nil {
		return unauthorized(), nil
	}

	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errorResponse(http.StatusBadRequest, "Invalid request body"), nil
	}

	// Unknown ids are skipped rather than failing the batch; a stale
	// selection may name files already deleted elsewhere.
	files := make([]model.File, 0, len(body.IDs))
	for _, id := range body.IDs {
		if f, ok := h.mirror.File(id); ok {
			files = append(files, f)
		}
	}
	if err := op(user, files); err != nil {
		return opError(err), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{
		"success":   true,
		"attempted": len(files),
	}), nil
}

// opError maps coordinator errors onto HTTP statuses.
func opError(err error) events.APIGatewayProxyResponse {
	switch {
	case errors.Is(err, drive.ErrNotOwner):
		return errorResponse(http.StatusForbidden, err.Error())
	case errors.Is(err, drive.ErrEmptyName), errors.Is(err, drive.ErrMoveCycle):
		return errorResponse(http.StatusBadRequest, err.Error())
	case errors.Is(err, drive.ErrFolderNotEmpty):
		return errorResponse(http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrNotSignedIn):
		return unauthorized()
	default:
		fmt.Printf("drive operation error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Operation failed")
	}
}
