package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/chuka-black-market/marketplace/models"
	"github.com/chuka-black-market/marketplace/relay"
	"github.com/chuka-black-market/marketplace/repository"
	"github.com/chuka-black-market/marketplace/service"
	"github.com/chuka-black-market/marketplace/storage"
)

type testEnv struct {
	app   *fiber.App
	store *repository.MemoryListingRepository
	hub   *relay.Hub
	dir   string
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	images, err := storage.NewLocalStore(dir, "/uploads")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	hub, err := relay.NewHub(relay.NewLocalBus(), relay.Options{QueueSize: 16})
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	t.Cleanup(hub.Close)

	store := repository.NewMemoryListingRepository()
	app := NewApp(service.NewListingService(store, images), hub, Options{
		JWTSecret:  secret,
		UploadDir:  dir,
		UploadPath: "/uploads",
	})
	return &testEnv{app: app, store: store, hub: hub, dir: dir}
}

type formFile struct {
	name        string
	contentType string
	body        string
}

func multipartBody(t *testing.T, fields map[string]string, file *formFile) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, file.name))
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		part.Write([]byte(file.body))
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, body
}

func (e *testEnv) send(t *testing.T, method, path string, fields map[string]string, file *formFile) (*http.Response, []byte) {
	t.Helper()
	body, contentType := multipartBody(t, fields, file)
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	return e.do(t, req)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	return e.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func chairFields() map[string]string {
	return map[string]string{
		"title":        "Chair",
		"description":  "Solid wood chair",
		"price":        "20",
		"category":     "furniture",
		"location":     "Chuka",
		"phone_number": "254700000000",
	}
}

func decodeListing(t *testing.T, body []byte) models.Listing {
	t.Helper()
	var l models.Listing
	if err := json.Unmarshal(body, &l); err != nil {
		t.Fatalf("decode listing %s: %v", body, err)
	}
	return l
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error %s: %v", body, err)
	}
	return payload.Error
}

func TestCreateThenGet(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.send(t, http.MethodPost, "/api/products", chairFields(),
		&formFile{name: "chair.jpg", contentType: "image/jpeg", body: "jpeg-bytes"})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	created := decodeListing(t, body)
	if created.ID == 0 || created.ImageURL == "" {
		t.Fatalf("created = %+v", created)
	}

	resp, body = env.get(t, fmt.Sprintf("/api/products/%d", created.ID))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	got := decodeListing(t, body)
	if got.Title != "Chair" || got.Price != 20 || got.PhoneNumber != "254700000000" {
		t.Errorf("got = %+v", got)
	}

	resp, body = env.get(t, created.ImageURL)
	if resp.StatusCode != fiber.StatusOK || string(body) != "jpeg-bytes" {
		t.Errorf("image fetch = %d %q", resp.StatusCode, body)
	}
}

func TestCreateMissingFieldIsRejected(t *testing.T) {
	for _, field := range []string{"title", "description", "price", "category"} {
		t.Run(field, func(t *testing.T) {
			env := newTestEnv(t, "")
			fields := chairFields()
			delete(fields, field)

			resp, body := env.send(t, http.MethodPost, "/api/products", fields, nil)
			if resp.StatusCode != fiber.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			if msg := errorMessage(t, body); !strings.Contains(msg, field) {
				t.Errorf("error %q does not name %s", msg, field)
			}
			if env.store.Len() != 0 {
				t.Error("row persisted")
			}
		})
	}
}

func TestCreateAcceptsURLEncodedForm(t *testing.T) {
	env := newTestEnv(t, "")
	form := "title=Lamp&description=Desk+lamp&price=5&category=other"
	req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, body := env.do(t, req)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if l := decodeListing(t, body); l.ImageURL != "" || l.Title != "Lamp" {
		t.Errorf("listing = %+v", l)
	}
}

func TestUnknownIDIsNotFound(t *testing.T) {
	env := newTestEnv(t, "")
	env.send(t, http.MethodPost, "/api/products", chairFields(), nil)

	checks := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/products/999"},
		{http.MethodPut, "/api/products/999"},
		{http.MethodDelete, "/api/products/999"},
		{http.MethodGet, "/api/products/abc"},
		{http.MethodDelete, "/api/products/-1"},
	}
	for _, c := range checks {
		resp, body := env.send(t, c.method, c.path, chairFields(), nil)
		if resp.StatusCode != fiber.StatusNotFound {
			t.Errorf("%s %s = %d, want 404", c.method, c.path, resp.StatusCode)
			continue
		}
		if msg := errorMessage(t, body); msg != "Product not found" {
			t.Errorf("%s %s error = %q", c.method, c.path, msg)
		}
	}
	if env.store.Len() != 1 {
		t.Errorf("store changed: %d rows", env.store.Len())
	}
}

func TestUpdateReplacesFields(t *testing.T) {
	env := newTestEnv(t, "")
	_, body := env.send(t, http.MethodPost, "/api/products", chairFields(), nil)
	created := decodeListing(t, body)
	path := fmt.Sprintf("/api/products/%d", created.ID)

	resp, body := env.send(t, http.MethodPut, path, map[string]string{
		"title":       "Desk",
		"description": "Oak desk",
		"price":       "75",
		"category":    "furniture",
	}, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("update status = %d: %s", resp.StatusCode, body)
	}
	var payload struct {
		Message string `json:"message"`
	}
	json.Unmarshal(body, &payload)
	if payload.Message != "Product updated successfully" {
		t.Errorf("message = %q", payload.Message)
	}

	_, body = env.get(t, path)
	got := decodeListing(t, body)
	if got.Title != "Desk" || got.Price != 75 || got.Location != "" || got.PhoneNumber != "" {
		t.Errorf("not fully replaced: %+v", got)
	}
	if !got.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("updated_at not refreshed: %v -> %v", created.UpdatedAt, got.UpdatedAt)
	}
}

func TestUpdateValidation(t *testing.T) {
	env := newTestEnv(t, "")
	_, body := env.send(t, http.MethodPost, "/api/products", chairFields(), nil)
	created := decodeListing(t, body)

	fields := chairFields()
	fields["category"] = "vehicles"
	resp, _ := env.send(t, http.MethodPut, fmt.Sprintf("/api/products/%d", created.ID), fields, nil)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDeleteThenGet(t *testing.T) {
	env := newTestEnv(t, "")
	_, body := env.send(t, http.MethodPost, "/api/products", chairFields(), nil)
	created := decodeListing(t, body)
	path := fmt.Sprintf("/api/products/%d", created.ID)

	resp, _ := env.do(t, httptest.NewRequest(http.MethodDelete, path, nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if resp, _ := env.get(t, path); resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("get after delete = %d", resp.StatusCode)
	}
}

func TestListNewestFirst(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.get(t, "/api/products")
	if resp.StatusCode != fiber.StatusOK || strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("empty list = %d %s", resp.StatusCode, body)
	}

	env.send(t, http.MethodPost, "/api/products", chairFields(), nil)
	phone := chairFields()
	phone["title"], phone["category"] = "Phone", "electronics"
	env.send(t, http.MethodPost, "/api/products", phone, nil)

	_, body = env.get(t, "/api/products")
	var list []models.Listing
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || list[0].Title != "Phone" {
		t.Errorf("list = %+v", list)
	}
}

func TestConnectivityEndpoint(t *testing.T) {
	env := newTestEnv(t, "")
	resp, body := env.get(t, "/api/test")
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(body), "Backend is connected") {
		t.Errorf("GET /api/test = %d %s", resp.StatusCode, body)
	}
}

func TestMutationsRequireTokenWhenSecretSet(t *testing.T) {
	env := newTestEnv(t, "s3cret")

	resp, _ := env.send(t, http.MethodPost, "/api/products", chairFields(), nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("POST without token = %d, want 401", resp.StatusCode)
	}
	if resp, _ := env.get(t, "/api/products"); resp.StatusCode != fiber.StatusOK {
		t.Errorf("reads should stay open, got %d", resp.StatusCode)
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	env := newTestEnv(t, "")
	resp, body := env.get(t, "/api/nope")
	if resp.StatusCode != fiber.StatusNotFound || errorMessage(t, body) == "" {
		t.Errorf("GET /api/nope = %d %s", resp.StatusCode, body)
	}
}

func TestWebSocketRouteRequiresUpgrade(t *testing.T) {
	env := newTestEnv(t, "")
	if resp, _ := env.get(t, "/ws/chat"); resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("plain GET /ws/chat = %d, want 426", resp.StatusCode)
	}
}
