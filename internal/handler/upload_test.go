package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/skydrive/skydrive/internal/blob"
	"github.com/skydrive/skydrive/internal/identity"
	"github.com/skydrive/skydrive/internal/model"
	"github.com/skydrive/skydrive/internal/store"
	"github.com/skydrive/skydrive/internal/store/memory"
	"github.com/skydrive/skydrive/internal/upload"
)

func newUploadHandler(t *testing.T) (*UploadHandler, *memory.Store) {
	t.Helper()
	s := memory.New()
	m := upload.NewManager(s, blob.NewMemory(), nil)
	return NewUploadHandler(m, testSecret), s
}

func TestUploadCreatesDocument(t *testing.T) {
	h, s := newUploadHandler(t)

	req := authedRequest(t, identity.User{ID: "u1", DisplayName: "User"})
	req.QueryStringParameters = map[string]string{
		"name":     "photo.png",
		"type":     "image/png",
		"parentId": "folder1",
	}
	req.Body = base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	req.IsBase64Encoded = true

	resp, err := h.Upload(context.Background(), req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d body=%s", resp.StatusCode, resp.Body)
	}

	var out struct {
		ID   string `json:"id"`
		Size int    `json:"size"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Size != len("png-bytes") {
		t.Errorf("size = %d", out.Size)
	}

	docs, _ := s.List(context.Background(), store.Files, store.FieldUploadedAt, true)
	if len(docs) != 1 || docs[0].ID != out.ID {
		t.Fatalf("documents: %+v", docs)
	}
	f := model.FileFromFields(docs[0].ID, docs[0].Fields)
	if f.Name != "photo.png" || f.MIMEType != "image/png" || f.ParentID != "folder1" || f.Vault {
		t.Errorf("unexpected document: %+v", f)
	}
}

func TestUploadIntoVault(t *testing.T) {
	h, s := newUploadHandler(t)

	req := authedRequest(t, identity.User{ID: "u1"})
	req.QueryStringParameters = map[string]string{"name": "secret.txt", "vault": "true"}
	req.Body = "plain text body"

	resp, _ := h.Upload(context.Background(), req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d body=%s", resp.StatusCode, resp.Body)
	}

	docs, _ := s.List(context.Background(), store.Files, store.FieldUploadedAt, true)
	if len(docs) != 1 {
		t.Fatalf("documents: %+v", docs)
	}
	if f := model.FileFromFields(docs[0].ID, docs[0].Fields); !f.Vault {
		t.Errorf("vault flag not set: %+v", f)
	}
}

func TestUploadValidation(t *testing.T) {
	h, _ := newUploadHandler(t)
	ctx := context.Background()

	resp, _ := h.Upload(ctx, events.APIGatewayProxyRequest{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d", resp.StatusCode)
	}

	req := authedRequest(t, identity.User{ID: "u1"})
	req.Body = "data"
	resp, _ = h.Upload(ctx, req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing name status = %d", resp.StatusCode)
	}

	req.QueryStringParameters = map[string]string{"name": "x.bin"}
	req.Body = "!!! not base64 !!!"
	req.IsBase64Encoded = true
	resp, _ = h.Upload(ctx, req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad base64 status = %d", resp.StatusCode)
	}
}

func TestActiveEndpoint(t *testing.T) {
	h, _ := newUploadHandler(t)

	req := authedRequest(t, identity.User{ID: "u1"})
	resp, _ := h.Active(context.Background(), req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Active bool `json:"active"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Active {
		t.Error("no uploads should be active")
	}
}
