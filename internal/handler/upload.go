package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/skydrive/skydrive/internal/upload"
)

// UploadHandler accepts file content and runs it through the upload
// pipeline.
type UploadHandler struct {
	manager   *upload.Manager
	jwtSecret string
}

// NewUploadHandler creates an UploadHandler.
func NewUploadHandler(m *upload.Manager, jwtSecret string) *UploadHandler {
	return &UploadHandler{manager: m, jwtSecret: jwtSecret}
}

// Upload stores the request body as a new file. The target folder and
// vault flag come from query parameters; the response carries the
// created document id.
func (h *UploadHandler) Upload(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	user, err := RequestUser(req, h.jwtSecret)
	if err != nil {
		return unauthorized(), nil
	}

	name := req.QueryStringParameters["name"]
	if name == "" {
		return errorResponse(http.StatusBadRequest, "Missing file name"), nil
	}
	mimeType := req.QueryStringParameters["type"]
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	var data []byte
	if req.IsBase64Encoded {
		data, err = base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return errorResponse(http.StatusBadRequest, "Invalid base64 body"), nil
		}
	} else {
		data = []byte(req.Body)
	}

	dest := upload.Destination{
		ParentID: req.QueryStringParameters["parentId"],
		Vault:    req.QueryStringParameters["vault"] == "true",
	}

	u, err := h.manager.StartTo(ctx, user, name, bytes.NewReader(data), int64(len(data)), mimeType, dest)
	if err != nil {
		return opError(err), nil
	}
	u.Wait()

	switch u.State() {
	case upload.Completed:
		return jsonResponse(http.StatusCreated, map[string]any{
			"id":   u.DocID(),
			"size": len(data),
		}), nil
	case upload.Failed:
		return errorResponse(http.StatusInternalServerError, u.Err().Error()), nil
	default:
		return errorResponse(http.StatusInternalServerError, "upload did not complete: "+u.State().String()), nil
	}
}

// Active reports whether any upload is still transferring.
func (h *UploadHandler) Active(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if _, err := RequestUser(req, h.jwtSecret); err != nil {
		return unauthorized(), nil
	}
	return jsonResponse(http.StatusOK, map[string]bool{"active": h.manager.Active()}), nil
}
