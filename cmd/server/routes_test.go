package main

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
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/config"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "taskhub.db") + "?_busy_timeout=5000"
	cfg.Storage.UploadDir = t.TempDir()
	cfg.Maintenance.Enabled = false
	cfg.Redis.Enabled = false
	cfg.JWT.Secret = "routes-test-secret"
	cfg.Attachment.TokenSecret = "routes-test-attachment"

	svc := bootstrap(cfg)
	t.Cleanup(svc.shutdown)

	r := gin.New()
	registerRoutes(r, cfg, svc)
	return &testServer{t: t, router: r}
}

func (s *testServer) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) json(method, path string, payload interface{}, wantStatus int, out interface{}) envelope {
	s.t.Helper()
	var body io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	}
	w := s.do(method, path, body, "application/json")
	if w.Code != wantStatus {
		s.t.Fatalf("%s %s: status = %d, expected %d, body %s", method, path, w.Code, wantStatus, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		s.t.Fatalf("%s %s: decode: %v", method, path, err)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			s.t.Fatalf("%s %s: decode data: %v", method, path, err)
		}
	}
	return env
}

func (s *testServer) login(username, password string) {
	s.t.Helper()
	var pair struct {
		AccessToken string `json:"access_token"`
	}
	s.json(http.MethodPost, "/api/auth/login", gin.H{"username": username, "password": password}, http.StatusOK, &pair)
	s.token = pair.AccessToken
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", w.Code)
	}
	var body struct {
		Status     string `json:"status"`
		Components struct {
			Database  string `json:"database"`
			QueueMode string `json:"queue_mode"`
		} `json:"components"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Status != "healthy" || body.Components.Database != "ok" || body.Components.QueueMode != "sync" {
		t.Errorf("unexpected health %+v", body)
	}
}

func TestAuthBoundaries(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"protected without token", http.MethodGet, "/api/projects", http.StatusUnauthorized},
		{"stream without token", http.MethodGet, "/api/events/notifications", http.StatusUnauthorized},
		{"download without token", http.MethodGet, "/api/attachments/download", http.StatusUnauthorized},
		{"auth config is public", http.MethodGet, "/api/auth/config", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.do(tt.method, tt.path, nil, ""); w.Code != tt.status {
				t.Errorf("status = %d, expected %d", w.Code, tt.status)
			}
		})
	}

	env := s.json(http.MethodPost, "/api/auth/login", gin.H{"username": "admin", "password": "wrong"}, http.StatusUnauthorized, nil)
	if env.Error != "INVALID_CREDENTIALS" {
		t.Errorf("error = %q, expected INVALID_CREDENTIALS", env.Error)
	}
	s.json(http.MethodPost, "/api/auth/login", gin.H{"username": "admin"}, http.StatusBadRequest, nil)
}

func TestProjectTaskFlow(t *testing.T) {
	s := newTestServer(t)
	s.login("admin", "admin")

	var workflows []struct {
		ID uint `json:"id"`
	}
	s.json(http.MethodGet, "/api/workflows?workflow_type=task", nil, http.StatusOK, &workflows)
	if len(workflows) == 0 {
		t.Fatal("expected seeded task workflow templates")
	}
	env := s.json(http.MethodPatch, fmt.Sprintf("/api/workflows/%d/statuses/reorder", workflows[0].ID),
		gin.H{"status_ids": []uint{999}}, http.StatusBadRequest, nil)
	if env.Error != "INVALID_STATUS_ORDER" {
		t.Errorf("error = %q, expected INVALID_STATUS_ORDER", env.Error)
	}

	var project struct {
		ID uint `json:"id"`
	}
	s.json(http.MethodPost, "/api/projects", gin.H{"name": "Launch", "workflow_id": workflows[0].ID}, http.StatusCreated, &project)

	var task struct {
		ID       uint `json:"id"`
		StatusID uint `json:"status_id"`
	}
	s.json(http.MethodPost, fmt.Sprintf("/api/projects/%d/tasks", project.ID),
		gin.H{"title": "Write docs", "priority": "high"}, http.StatusCreated, &task)
	if task.StatusID == 0 {
		t.Error("task should start in the workflow's first status")
	}

	env = s.json(http.MethodPost, fmt.Sprintf("/api/projects/%d/tasks", project.ID),
		gin.H{"title": "bad", "priority": "someday"}, http.StatusBadRequest, nil)
	if env.Error != "VALIDATION_ERROR" {
		t.Errorf("error = %q, expected VALIDATION_ERROR", env.Error)
	}

	s.json(http.MethodPut, fmt.Sprintf("/api/tasks/%d/progress", task.ID), gin.H{"progress": 40}, http.StatusOK, nil)
	s.json(http.MethodPost, "/api/comments",
		gin.H{"related_entity_type": "task", "related_entity_id": task.ID, "content": "first!"}, http.StatusCreated, nil)

	var comments []struct {
		Content string `json:"content"`
	}
	s.json(http.MethodGet, fmt.Sprintf("/api/comments?related_entity_type=task&related_entity_id=%d", task.ID), nil, http.StatusOK, &comments)
	if len(comments) != 1 || comments[0].Content != "first!" {
		t.Errorf("unexpected comments %+v", comments)
	}

	// Writes are audited as HTTP entries visible to admins
	var audits struct {
		Total int64 `json:"total"`
	}
	s.json(http.MethodGet, "/api/admin/audits?entity_type=http", nil, http.StatusOK, &audits)
	if audits.Total == 0 {
		t.Error("expected audited writes")
	}

	s.json(http.MethodPatch, "/api/notifications/read-all", nil, http.StatusOK, nil)
	s.json(http.MethodGet, "/api/notifications/unread-count", nil, http.StatusOK, nil)

	s.json(http.MethodGet, "/api/tasks/abc", nil, http.StatusBadRequest, nil)
	s.json(http.MethodGet, "/api/tasks/9999", nil, http.StatusNotFound, nil)
}

func TestAttachmentDownloadByToken(t *testing.T) {
	s := newTestServer(t)
	s.login("admin", "admin")

	var workflows []struct {
		ID uint `json:"id"`
	}
	s.json(http.MethodGet, "/api/workflows?workflow_type=task", nil, http.StatusOK, &workflows)
	var project, task struct {
		ID uint `json:"id"`
	}
	s.json(http.MethodPost, "/api/projects", gin.H{"name": "Files", "workflow_id": workflows[0].ID}, http.StatusCreated, &project)
	s.json(http.MethodPost, fmt.Sprintf("/api/projects/%d/tasks", project.ID), gin.H{"title": "t"}, http.StatusCreated, &task)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("related_entity_type", "task")
	mw.WriteField("related_entity_id", fmt.Sprint(task.ID))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="notes.txt"`)
	hdr.Set("Content-Type", "text/plain")
	part, _ := mw.CreatePart(hdr)
	part.Write([]byte("hello attachment"))
	mw.Close()

	w := s.do(http.MethodPost, "/api/attachments", &buf, mw.FormDataContentType())
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}
	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	var att struct {
		ID uint `json:"id"`
	}
	json.Unmarshal(env.Data, &att)

	var link struct {
		URL string `json:"url"`
	}
	s.json(http.MethodGet, fmt.Sprintf("/api/attachments/%d/url", att.ID), nil, http.StatusOK, &link)

	// The signed link works without a session
	s.token = ""
	w = s.do(http.MethodGet, link.URL, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d, body %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "hello attachment" {
		t.Errorf("downloaded %q", w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Error("missing Content-Disposition")
	}

	if w := s.do(http.MethodGet, link.URL+"x", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("tampered token status = %d, expected 401", w.Code)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	s.login("admin", "admin")
	s.json(http.MethodPost, "/api/users", gin.H{"username": "carol", "password": "carol-pass"}, http.StatusCreated, nil)

	s.login("carol", "carol-pass")
	env := s.json(http.MethodGet, "/api/users", nil, http.StatusForbidden, nil)
	if env.Error != "FORBIDDEN" {
		t.Errorf("error = %q, expected FORBIDDEN", env.Error)
	}
	s.json(http.MethodGet, "/api/auth/me", nil, http.StatusOK, nil)
}

func TestReorderStatusesBody(t *testing.T) {
	s := newTestServer(t)
	s.login("admin", "admin")

	var workflows []struct {
		ID       uint `json:"id"`
		Statuses []struct {
			ID uint `json:"id"`
		} `json:"statuses"`
	}
	s.json(http.MethodGet, "/api/workflows?workflow_type=task", nil, http.StatusOK, &workflows)
	wf := workflows[0]
	n := len(wf.Statuses)
	reversed := make([]uint, n)
	asStrings := make([]string, n)
	for i, st := range wf.Statuses {
		reversed[n-1-i] = st.ID
		asStrings[i] = fmt.Sprint(st.ID)
	}
	path := fmt.Sprintf("/api/workflows/%d/statuses/reorder", wf.ID)

	type status struct {
		ID       uint `json:"id"`
		Position int  `json:"position"`
	}
	tests := []struct {
		name string
		body interface{}
		want []uint
	}{
		{"statusIds as numbers", gin.H{"statusIds": reversed}, reversed},
		{"statusIds as strings", gin.H{"statusIds": asStrings}, nil},
		{"status_ids", gin.H{"status_ids": reversed}, reversed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := tt.want
			if want == nil {
				want = make([]uint, n)
				for i, st := range wf.Statuses {
					want[i] = st.ID
				}
			}
			var got []status
			s.json(http.MethodPatch, path, tt.body, http.StatusOK, &got)
			if len(got) != n {
				t.Fatalf("expected %d statuses, got %d", n, len(got))
			}
			for i, st := range got {
				if st.ID != want[i] || st.Position != i {
					t.Errorf("position %d = status %d (pos %d), expected status %d", i, st.ID, st.Position, want[i])
				}
			}
		})
	}

	for _, body := range []interface{}{gin.H{}, gin.H{"statusIds": []string{"x"}}} {
		env := s.json(http.MethodPatch, path, body, http.StatusBadRequest, nil)
		if env.Error != "VALIDATION_ERROR" {
			t.Errorf("body %v: error = %q, expected VALIDATION_ERROR", body, env.Error)
		}
	}
}

func TestCreateNotification(t *testing.T) {
	s := newTestServer(t)
	s.login("admin", "admin")

	var me struct {
		ID uint `json:"id"`
	}
	s.json(http.MethodGet, "/api/auth/me", nil, http.StatusOK, &me)
	s.json(http.MethodPost, "/api/notifications", gin.H{"user_id": me.ID, "title": "hello"}, http.StatusOK, nil)
	s.json(http.MethodPost, "/api/notifications", gin.H{"user_id": 9999, "title": "nobody"}, http.StatusNotFound, nil)

	// Delivery runs in the background without Redis.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var list struct {
			Total int64 `json:"total"`
		}
		s.json(http.MethodGet, "/api/notifications", nil, http.StatusOK, &list)
		if list.Total == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("notification not delivered, total = %d", list.Total)
		}
		time.Sleep(20 * time.Millisecond)
	}

	s.json(http.MethodPost, "/api/users", gin.H{"username": "dave", "password": "dave-pass"}, http.StatusCreated, nil)
	s.login("dave", "dave-pass")
	s.json(http.MethodPost, "/api/notifications", gin.H{"user_id": me.ID, "title": "spam"}, http.StatusForbidden, nil)
}
