package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/openngo/sitecms/pkg/backend"
	"github.com/openngo/sitecms/pkg/server"
)

const (
	adminEmail    = "admin@example.org"
	adminPassword = "correct-password"
)

type harness struct {
	t   *testing.T
	srv *server.Server
}

func setup(t *testing.T) *harness {
	ctx := context.Background()
	b, err := backend.Init(ctx, backend.Config{
		Database:  backend.DatabaseMemory,
		Storage:   backend.StorageMemory,
		JWTSecret: "test-secret",
	})
	gt.NoError(t, err)
	t.Cleanup(func() { _ = b.Teardown(ctx) })

	_, err = b.Auth().Register(ctx, adminEmail, adminPassword, "Admin")
	gt.NoError(t, err)

	srv, err := server.New(b)
	gt.NoError(t, err)
	return &harness{t: t, srv: srv}
}

func (h *harness) do(req *http.Request, cookie *http.Cookie) *http.Response {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := h.srv.App().Test(req, -1)
	gt.NoError(h.t, err)
	return resp
}

func (h *harness) doJSON(method, target string, body any, cookie *http.Cookie) *http.Response {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		gt.NoError(h.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.do(req, cookie)
}

func (h *harness) login() *http.Cookie {
	resp := h.doJSON(http.MethodPost, "/admin/login", map[string]string{
		"email":    adminEmail,
		"password": adminPassword,
	}, nil)
	gt.Equal(h.t, resp.StatusCode, http.StatusOK)

	for _, c := range resp.Cookies() {
		if c.Name == server.SessionCookie {
			return c
		}
	}
	h.t.Fatal("no session cookie")
	return nil
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestProtectedRouteRedirectsAnonymous(t *testing.T) {
	h := setup(t)

	for _, target := range []string{"/admin", "/admin/content/pages", "/admin/content/events/edit/x"} {
		t.Run(target, func(t *testing.T) {
			resp := h.doJSON(http.MethodGet, target, nil, nil)
			gt.Equal(t, resp.StatusCode, http.StatusSeeOther)
			gt.Equal(t, resp.Header.Get("Location"), "/admin/login")

			body, err := io.ReadAll(resp.Body)
			gt.NoError(t, err)
			gt.A(t, body).Length(0)
		})
	}
}

func TestProtectedRouteIgnoresCase(t *testing.T) {
	h := setup(t)

	for _, target := range []string{"/ADMIN", "/Admin/content/pages", "/admin//content/pages"} {
		t.Run(target, func(t *testing.T) {
			resp := h.doJSON(http.MethodGet, target, nil, nil)
			gt.Equal(t, resp.StatusCode, http.StatusSeeOther)
			gt.Equal(t, resp.Header.Get("Location"), "/admin/login")
		})
	}

	resp := h.doJSON(http.MethodPost, "/ADMIN/content/pages/new", map[string]any{
		"title": "Sneaky",
		"path":  "sneaky",
	}, nil)
	gt.Equal(t, resp.StatusCode, http.StatusSeeOther)

	resp = h.doJSON(http.MethodGet, "/api/pages", nil, nil)
	gt.Equal(t, resp.StatusCode, http.StatusOK)
	gt.A(t, decode[[]any](t, resp)).Length(0)
}

func TestLoginFlow(t *testing.T) {
	h := setup(t)

	t.Run("login page renders for anonymous", func(t *testing.T) {
		resp := h.doJSON(http.MethodGet, "/admin/login", nil, nil)
		gt.Equal(t, resp.StatusCode, http.StatusOK)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := h.doJSON(http.MethodPost, "/admin/login", map[string]string{
			"email":    adminEmail,
			"password": "wrong-password",
		}, nil)
		gt.Equal(t, resp.StatusCode, http.StatusUnauthorized)
		body := decode[map[string]any](t, resp)
		gt.NotEqual(t, body["error"], nil)
		gt.A(t, resp.Cookies()).Length(0)
	})

	t.Run("missing fields", func(t *testing.T) {
		resp := h.doJSON(http.MethodPost, "/admin/login", map[string]string{"email": adminEmail}, nil)
		gt.Equal(t, resp.StatusCode, http.StatusBadRequest)
	})

	cookie := h.login()

	t.Run("dashboard after sign-in", func(t *testing.T) {
		resp := h.doJSON(http.MethodGet, "/admin", nil, cookie)
		gt.Equal(t, resp.StatusCode, http.StatusOK)
		body := decode[map[string]any](t, resp)
		user := body["user"].(map[string]any)
		gt.Equal(t, user["email"], adminEmail)
		gt.A(t, body["counts"].([]any)).Length(4)
	})

	t.Run("login page sends signed-in users home", func(t *testing.T) {
		resp := h.doJSON(http.MethodGet, "/admin/login", nil, cookie)
		gt.Equal(t, resp.StatusCode, http.StatusSeeOther)
		gt.Equal(t, resp.Header.Get("Location"), "/admin")
	})

	t.Run("logout ends the session", func(t *testing.T) {
		resp := h.doJSON(http.MethodPost, "/admin/logout", nil, cookie)
		gt.Equal(t, resp.StatusCode, http.StatusSeeOther)
		gt.Equal(t, resp.Header.Get("Location"), "/admin/login")

		resp = h.doJSON(http.MethodGet, "/admin", nil, cookie)
		gt.Equal(t, resp.StatusCode, http.StatusSeeOther)
		gt.Equal(t, resp.Header.Get("Location"), "/admin/login")
	})

	t.Run("garbage cookie is anonymous", func(t *testing.T) {
		resp := h.doJSON(http.MethodGet, "/admin", nil, &http.Cookie{Name: server.SessionCookie, Value: "not-a-token"})
		gt.Equal(t, resp.StatusCode, http.StatusSeeOther)
	})
}

func TestContentAPI(t *testing.T) {
	h := setup(t)
	cookie := h.login()

	resp := h.doJSON(http.MethodPost, "/admin/content/pages/new", map[string]any{
		"title": "About",
		"path":  "about",
	}, cookie)
	gt.Equal(t, resp.StatusCode, http.StatusCreated)
	about := decode[map[string]any](t, resp)
	aboutID := about["id"].(string)
	gt.Equal(t, about["path"], "/about")
	gt.Equal(t, about["status"], "published")

	resp = h.doJSON(http.MethodPost, "/admin/content/pages/new", map[string]any{
		"title":  "Draft",
		"path":   "/draft",
		"status": "draft",
	}, cookie)
	gt.Equal(t, resp.StatusCode, http.StatusCreated)
	draftID := decode[map[string]any](t, resp)["id"].(string)

	t.Run("invalid payload", func(t *testing.T) {
		resp := h.doJSON(http.MethodPost, "/admin/content/pages/new", map[string]any{"title": "x"}, cookie)
		gt.Equal(t, resp.StatusCode, http.StatusBadRequest)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/content/pages/new", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		resp := h.do(req, cookie)
		gt.Equal(t, resp.StatusCode, http.StatusBadRequest)
	})

	t.Run("unknown collection", func(t *testing.T) {
		resp := h.doJSON(http.MethodGet, "/admin/content/users", nil, cookie)
		gt.Equal(t, resp.StatusCode, http.StatusNotFound)
	})

	t.Run("search", func(t *testing.T) {
		resp := h.doJSON(http.MethodGet, "/admin/content/pages?q=abo", nil, cookie)
		gt.Equal(t, resp.StatusCode, http.StatusOK)
		body := decode[map[string]any](t, resp)
		gt.Equal(t, body["collection"], "pages")
		gt.A(t, body["records"].([]any)).Length(1)
	})

	t.Run("partial update", func(t *testing.T) {
		resp := h.doJSON(http.MethodPut, "/admin/content/pages/edit/"+aboutID, map[string]any{
			"content": "# Hi",
		}, cookie)
		gt.Equal(t, resp.StatusCode, http.StatusOK)
		page := decode[map[string]any](t, resp)
		gt.Equal(t, page["content"], "# Hi")
		gt.Equal(t, page["title"], "About")
	})

	t.Run("public listing hides drafts", func(t *testing.T) {
		resp := h.doJSON(http.MethodGet, "/api/pages", nil, nil)
		gt.Equal(t, resp.StatusCode, http.StatusOK)
		gt.A(t, decode[[]any](t, resp)).Length(1)

		resp = h.doJSON(http.MethodGet, "/api/pages/"+draftID, nil, nil)
		gt.Equal(t, resp.StatusCode, http.StatusNotFound)

		resp = h.doJSON(http.MethodGet, "/api/pages/"+aboutID, nil, nil)
		gt.Equal(t, resp.StatusCode, http.StatusOK)
	})

	t.Run("delete", func(t *testing.T) {
		resp := h.doJSON(http.MethodDelete, "/admin/content/pages/"+aboutID, nil, cookie)
		gt.Equal(t, resp.StatusCode, http.StatusNoContent)

		resp = h.doJSON(http.MethodGet, "/admin/content/pages/edit/"+aboutID, nil, cookie)
		gt.Equal(t, resp.StatusCode, http.StatusNotFound)

		resp = h.doJSON(http.MethodDelete, "/admin/content/pages/"+aboutID, nil, cookie)
		gt.Equal(t, resp.StatusCode, http.StatusNoContent)
	})
}

func TestMultipartUpload(t *testing.T) {
	h := setup(t)
	cookie := h.login()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	gt.NoError(t, mw.WriteField("data", `{"name":"Ada","role":"Chair","order":2}`))
	fw, err := mw.CreateFormFile("image", "ada portrait.png")
	gt.NoError(t, err)
	_, err = fw.Write([]byte("png-bytes"))
	gt.NoError(t, err)
	gt.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/content/team/new", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := h.do(req, cookie)
	gt.Equal(t, resp.StatusCode, http.StatusCreated)

	member := decode[map[string]any](t, resp)
	gt.Equal(t, member["name"], "Ada")
	gt.Equal[any](t, member["order"], float64(2))
	image := member["image"].(string)
	gt.S(t, image).Contains("/files/teamMembers/")
	gt.S(t, image).Contains("-ada-portrait.png")

	resp = h.doJSON(http.MethodGet, image, nil, nil)
	gt.Equal(t, resp.StatusCode, http.StatusOK)
	body, err := io.ReadAll(resp.Body)
	gt.NoError(t, err)
	gt.Equal(t, string(body), "png-bytes")

	resp = h.doJSON(http.MethodGet, "/files/teamMembers/missing.png", nil, nil)
	gt.Equal(t, resp.StatusCode, http.StatusNotFound)
}

func TestPreview(t *testing.T) {
	h := setup(t)
	cookie := h.login()

	resp := h.doJSON(http.MethodPost, "/admin/content/pages/preview", map[string]string{
		"content": "# Title\n**bold**",
	}, cookie)
	gt.Equal(t, resp.StatusCode, http.StatusOK)
	body := decode[map[string]string](t, resp)
	gt.Equal(t, body["html"], "<h1>Title</h1><strong>bold</strong>")
}

func TestNewRequiresAuth(t *testing.T) {
	ctx := context.Background()
	b, err := backend.Init(ctx, backend.Config{
		Database: backend.DatabaseMemory,
		Storage:  backend.StorageMemory,
	})
	gt.NoError(t, err)
	defer func() { _ = b.Teardown(ctx) }()

	_, err = server.New(b)
	gt.Error(t, err)
}

func TestHealthz(t *testing.T) {
	h := setup(t)

	resp := h.doJSON(http.MethodGet, "/healthz", nil, nil)
	gt.Equal(t, resp.StatusCode, http.StatusOK)
	gt.NotEqual(t, resp.Header.Get("X-Request-Id"), "")

	body := decode[map[string]string](t, resp)
	gt.Equal(t, body["status"], "ok")
	gt.Equal(t, body["database"], "memory")
}
