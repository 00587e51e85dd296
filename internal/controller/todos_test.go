package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"todo-lifecycle/internal/models"
	"todo-lifecycle/internal/service"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type todoServiceMock struct {
	mock.Mock
}

func (m *todoServiceMock) todo(args mock.Arguments) (models.Todo, error) {
	var t models.Todo
	if v := args.Get(0); v != nil {
		t = v.(models.Todo)
	}
	return t, args.Error(1)
}

func (m *todoServiceMock) Create(ctx context.Context, description string, dueAt time.Time) (models.Todo, error) {
	return m.todo(m.Called(ctx, description, dueAt))
}

func (m *todoServiceMock) GetByID(ctx context.Context, id int64) (models.Todo, error) {
	return m.todo(m.Called(ctx, id))
}

func (m *todoServiceMock) List(ctx context.Context, includeAll bool) ([]models.Todo, error) {
	args := m.Called(ctx, includeAll)
	var todos []models.Todo
	if v := args.Get(0); v != nil {
		todos = v.([]models.Todo)
	}
	return todos, args.Error(1)
}

func (m *todoServiceMock) UpdateDescription(ctx context.Context, id int64, description string) (models.Todo, error) {
	return m.todo(m.Called(ctx, id, description))
}

func (m *todoServiceMock) UpdateStatus(ctx context.Context, id int64, to models.Status) (models.Todo, error) {
	return m.todo(m.Called(ctx, id, to))
}

func (m *todoServiceMock) MarkDone(ctx context.Context, id int64) (models.Todo, error) {
	return m.todo(m.Called(ctx, id))
}

func (m *todoServiceMock) MarkNotDone(ctx context.Context, id int64) (models.Todo, error) {
	return m.todo(m.Called(ctx, id))
}

func (m *todoServiceMock) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type publisherMock struct {
	mock.Mock
	enabled bool
}

func (p *publisherMock) Enabled() bool { return p.enabled }

func (p *publisherMock) PublishTodoCommand(ctx context.Context, cmd *models.TodoCommand) error {
	return p.Called(ctx, cmd).Error(0)
}

var (
	created = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	due     = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
)

func newRouter(svc TodoService, pub CommandPublisher) *gin.Engine {
	h := NewTodoController(svc, pub)
	r := gin.New()
	r.GET("/ready", h.Ready)
	r.GET("/api/todos", h.List)
	r.GET("/api/todos/:id", h.Get)
	r.POST("/api/todos", h.Create)
	r.POST("/api/todos/commands", h.SubmitCommand)
	r.PATCH("/api/todos/:id/description", h.UpdateDescription)
	r.PATCH("/api/todos/:id/status", h.UpdateStatus)
	r.PATCH("/api/todos/:id/done", h.MarkDone)
	r.PATCH("/api/todos/:id/not-done", h.MarkNotDone)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreate_Success(t *testing.T) {
	svc := new(todoServiceMock)
	svc.On("Create", mock.Anything, "write tests", due).Return(models.Todo{
		ID: 1, Description: "write tests", Status: models.StatusNotDone, CreatedAt: created, DueAt: due,
	}, nil).Once()

	w := do(newRouter(svc, nil), http.MethodPost, "/api/todos",
		`{"description":"write tests","due_datetime":"2026-03-02T09:30:00"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["id"])
	assert.Equal(t, "not done", resp["status"])
	assert.Equal(t, "2026-03-01T10:00:00Z", resp["creation_datetime"])
	assert.Equal(t, "2026-03-02T09:30:00Z", resp["due_datetime"])
	assert.Nil(t, resp["done_datetime"])
	svc.AssertExpectations(t)
}

func TestCreate_RFC3339WithOffset(t *testing.T) {
	svc := new(todoServiceMock)
	svc.On("Create", mock.Anything, "x", due).Return(models.Todo{ID: 2, Status: models.StatusNotDone}, nil).Once()

	w := do(newRouter(svc, nil), http.MethodPost, "/api/todos",
		`{"description":"x","due_datetime":"2026-03-02T11:30:00+02:00"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestCreate_BadRequests(t *testing.T) {
	svc := new(todoServiceMock)
	r := newRouter(svc, nil)

	for name, body := range map[string]string{
		"missing due":    `{"description":"x"}`,
		"missing desc":   `{"due_datetime":"2026-03-02T09:30:00"}`,
		"bad due":        `{"description":"x","due_datetime":"tomorrow"}`,
		"not json":       `{`,
		"due not string": `{"description":"x","due_datetime":12}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/todos", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestGet_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"found", nil, http.StatusOK},
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"store failure", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(todoServiceMock)
			svc.On("GetByID", mock.Anything, int64(7)).Return(models.Todo{
				ID: 7, Status: models.StatusPastDue, CreatedAt: created, DueAt: due,
			}, tc.err).Once()

			w := do(newRouter(svc, nil), http.MethodGet, "/api/todos/7", "")
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "connection refused")
			}
			if tc.code == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"status":"past due"`)
			}
		})
	}
}

func TestGet_InvalidID(t *testing.T) {
	svc := new(todoServiceMock)
	w := do(newRouter(svc, nil), http.MethodGet, "/api/todos/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestList(t *testing.T) {
	svc := new(todoServiceMock)
	svc.On("List", mock.Anything, false).Return([]models.Todo{{ID: 1, Status: models.StatusNotDone}}, nil).Once()
	svc.On("List", mock.Anything, true).Return([]models.Todo{}, nil).Once()
	r := newRouter(svc, nil)

	w := do(r, http.MethodGet, "/api/todos", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":1`)

	w = do(r, http.MethodGet, "/api/todos?all=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(r, http.MethodGet, "/api/todos?all=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestUpdateDescription_Immutable(t *testing.T) {
	svc := new(todoServiceMock)
	svc.On("UpdateDescription", mock.Anything, int64(3), "new").Return(nil, service.ErrImmutable).Once()

	w := do(newRouter(svc, nil), http.MethodPatch, "/api/todos/3/description", `{"description":"new"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "past due")
}

func TestUpdateStatus(t *testing.T) {
	doneAt := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	svc := new(todoServiceMock)
	svc.On("UpdateStatus", mock.Anything, int64(4), models.StatusDone).Return(models.Todo{
		ID: 4, Status: models.StatusDone, CreatedAt: created, DueAt: due, DoneAt: &doneAt,
	}, nil).Once()
	svc.On("UpdateStatus", mock.Anything, int64(4), models.StatusPastDue).
		Return(nil, service.ErrInvalidTransition).Once()
	r := newRouter(svc, nil)

	w := do(r, http.MethodPatch, "/api/todos/4/status", `{"status":"done"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"done_datetime":"2026-03-01T11:00:00Z"`)

	w = do(r, http.MethodPatch, "/api/todos/4/status", `{"status":"past due"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPatch, "/api/todos/4/status", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestMarkDoneAndNotDone(t *testing.T) {
	svc := new(todoServiceMock)
	svc.On("MarkDone", mock.Anything, int64(5)).Return(models.Todo{ID: 5, Status: models.StatusDone}, nil).Once()
	svc.On("MarkNotDone", mock.Anything, int64(5)).Return(nil, service.ErrNotFound).Once()
	r := newRouter(svc, nil)

	assert.Equal(t, http.StatusOK, do(r, http.MethodPatch, "/api/todos/5/done", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPatch, "/api/todos/5/not-done", "").Code)
	svc.AssertExpectations(t)
}

func TestReady(t *testing.T) {
	svc := new(todoServiceMock)
	svc.On("Ping", mock.Anything).Return(nil).Once()
	svc.On("Ping", mock.Anything).Return(errors.New("down")).Once()
	r := newRouter(svc, nil)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/ready", "").Code)
}

func TestSubmitCommand(t *testing.T) {
	pub := &publisherMock{enabled: true}
	pub.On("PublishTodoCommand", mock.Anything, mock.MatchedBy(func(cmd *models.TodoCommand) bool {
		return cmd.Action == models.ActionUpdateStatus && cmd.ID == 9 && cmd.Status == "done"
	})).Return(nil).Once()
	r := newRouter(new(todoServiceMock), pub)

	w := do(r, http.MethodPost, "/api/todos/commands", `{"action":"update_status","id":9,"status":"done"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	pub.AssertExpectations(t)
}

func TestSubmitCommand_Rejected(t *testing.T) {
	pub := &publisherMock{enabled: true}
	r := newRouter(new(todoServiceMock), pub)

	for name, body := range map[string]string{
		"past due":       `{"action":"update_status","id":9,"status":"past due"}`,
		"unknown action": `{"action":"delete","id":9}`,
		"create no due":  `{"action":"create","description":"x"}`,
		"edit no id":     `{"action":"update_description","description":"x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/todos/commands", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	pub.AssertNotCalled(t, "PublishTodoCommand", mock.Anything, mock.Anything)
}

func TestSubmitCommand_QueueUnavailable(t *testing.T) {
	r := newRouter(new(todoServiceMock), &publisherMock{enabled: false})
	w := do(r, http.MethodPost, "/api/todos/commands", `{"action":"create","description":"x","due_datetime":"2026-03-02T09:30:00"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	r = newRouter(new(todoServiceMock), nil)
	w = do(r, http.MethodPost, "/api/todos/commands", `{"action":"create"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDueTime_Unmarshal(t *testing.T) {
	var d DueTime
	require.NoError(t, json.Unmarshal([]byte(`"2026-03-02T09:30:00"`), &d))
	assert.True(t, d.Equal(due))

	require.NoError(t, json.Unmarshal([]byte(`"2026-03-02T09:30:00Z"`), &d))
	assert.True(t, d.Equal(due))

	assert.Error(t, json.Unmarshal([]byte(`"02/03/2026"`), &d))
}
