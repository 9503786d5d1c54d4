package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"todolist/internal/database"
	"todolist/internal/handlers"
	"todolist/internal/logging"
	"todolist/internal/middleware"
	"todolist/internal/models"
	"todolist/internal/services"
	"todolist/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const cookieName = "todolist_session"

type testApp struct {
	t      *testing.T
	router *gin.Engine
	db     *gorm.DB
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:   database.DriverSQLite,
		DSN:      ":memory:",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	require.NoError(t, database.Migrate(pool.DB))

	templates, err := web.Templates()
	require.NoError(t, err)

	router := handlers.NewRouter(handlers.RouterConfig{
		DB:        pool.DB,
		Accounts:  services.NewAccountService(bcrypt.MinCost),
		Sessions:  services.NewSessionService("handler-secret", time.Hour),
		Tasks:     services.NewTaskService(),
		Cookie:    middleware.SessionCookie{Name: cookieName},
		Templates: templates,
		Logger:    logging.Discard(),
	})
	return &testApp{t: t, router: router, db: pool.DB}
}

func (a *testApp) do(method, path string, form url.Values, session string) *httptest.ResponseRecorder {
	a.t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequest(method, path, body)
	require.NoError(a.t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if session != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: session})
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == cookieName {
			return cookie.Value
		}
	}
	t.Fatalf("response did not set %s", cookieName)
	return ""
}

func (a *testApp) signup(username string) string {
	a.t.Helper()
	w := a.do("POST", "/signup", url.Values{
		"username":  {username},
		"password1": {"pw-" + username},
		"password2": {"pw-" + username},
	}, "")
	require.Equal(a.t, http.StatusFound, w.Code)
	return sessionCookie(a.t, w)
}

func (a *testApp) createTask(session, title string) models.Task {
	a.t.Helper()
	w := a.do("POST", "/tasks/create", url.Values{"title": {title}, "description": {""}}, session)
	require.Equal(a.t, http.StatusFound, w.Code)

	var task models.Task
	require.NoError(a.t, a.db.Where("title = ?", title).Order("created_at DESC").First(&task).Error)
	return task
}

func TestHome(t *testing.T) {
	app := setupApp(t)

	w := app.do("GET", "/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sign up")
}

func TestSignup(t *testing.T) {
	app := setupApp(t)

	w := app.do("GET", "/signup", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do("POST", "/signup", url.Values{
		"username": {"alice"}, "password1": {"pw"}, "password2": {"pw"},
	}, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/tasks", w.Header().Get("Location"))
	session := sessionCookie(t, w)

	w = app.do("GET", "/tasks", nil, session)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sign out (alice)")
}

func TestSignup_Errors(t *testing.T) {
	app := setupApp(t)
	app.signup("alice")

	w := app.do("POST", "/signup", url.Values{
		"username": {"bob"}, "password1": {"one"}, "password2": {"two"},
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "passwords do not match")
	assert.Empty(t, w.Result().Cookies())

	w = app.do("POST", "/signup", url.Values{
		"username": {"alice"}, "password1": {"pw"}, "password2": {"pw"},
	}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "user already exists")

	w = app.do("POST", "/signup", url.Values{
		"username": {"no spaces"}, "password1": {"pw"}, "password2": {"pw"},
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	require.NoError(t, app.db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSignin(t *testing.T) {
	app := setupApp(t)
	app.signup("alice")

	for i := 0; i < 2; i++ {
		w := app.do("POST", "/signin", url.Values{"username": {"alice"}, "password": {"wrong"}}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "user or password is incorrect")
	}

	w := app.do("POST", "/signin", url.Values{"username": {"ghost"}, "password": {"pw"}}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do("POST", "/signin", url.Values{"username": {"alice"}, "password": {"pw-alice"}}, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/tasks", w.Header().Get("Location"))
	assert.NotEmpty(t, sessionCookie(t, w))
}

func TestSignin_Next(t *testing.T) {
	app := setupApp(t)
	app.signup("alice")

	w := app.do("GET", "/signin?next=/tasks/create", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="/tasks/create"`)

	tests := []struct {
		next string
		want string
	}{
		{"/tasks/create", "/tasks/create"},
		{"//evil.example.com", "/tasks"},
		{"https://evil.example.com", "/tasks"},
		{"", "/tasks"},
	}
	for _, tt := range tests {
		w := app.do("POST", "/signin", url.Values{
			"username": {"alice"}, "password": {"pw-alice"}, "next": {tt.next},
		}, "")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, tt.want, w.Header().Get("Location"), "next=%q", tt.next)
	}
}

func TestRequireLogin(t *testing.T) {
	app := setupApp(t)

	for _, path := range []string{"/tasks", "/tasks_completed", "/tasks/create", "/logout"} {
		w := app.do("GET", path, nil, "")
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/signin?next="+url.QueryEscape(path), w.Header().Get("Location"))
	}

	w := app.do("POST", "/tasks/create", url.Values{"title": {"sneaky"}}, "")
	assert.Equal(t, http.StatusFound, w.Code)

	var count int64
	require.NoError(t, app.db.Model(&models.Task{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateTask(t *testing.T) {
	app := setupApp(t)
	session := app.signup("alice")

	w := app.do("GET", "/tasks/create", nil, session)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do("POST", "/tasks/create", url.Values{"title": {""}, "description": {"x"}}, session)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please provide valid data")

	var count int64
	require.NoError(t, app.db.Model(&models.Task{}).Count(&count).Error)
	assert.Zero(t, count)

	task := app.createTask(session, "Buy milk")
	assert.Nil(t, task.DateCompleted)

	w = app.do("GET", "/tasks", nil, session)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Buy milk")
	assert.Contains(t, w.Body.String(), "/tasks/"+task.ID.String())
}

func TestTaskLifecycle(t *testing.T) {
	app := setupApp(t)
	session := app.signup("alice")
	task := app.createTask(session, "Buy milk")
	detail := "/tasks/" + task.ID.String()

	w := app.do("GET", detail, nil, session)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="Buy milk"`)

	w = app.do("POST", detail, url.Values{"title": {""}}, session)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Error updating task")

	w = app.do("POST", detail, url.Values{"title": {"Buy oat milk"}, "description": {"2 cartons"}}, session)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/tasks", w.Header().Get("Location"))

	w = app.do("GET", detail+"/complete", nil, session)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = app.do("GET", "/tasks", nil, session)
	assert.Contains(t, w.Body.String(), "Buy oat milk")

	w = app.do("POST", detail+"/complete", url.Values{}, session)
	assert.Equal(t, http.StatusFound, w.Code)

	w = app.do("GET", "/tasks", nil, session)
	assert.NotContains(t, w.Body.String(), "Buy oat milk")

	w = app.do("GET", "/tasks_completed", nil, session)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Buy oat milk")

	w = app.do("GET", detail+"/delete", nil, session)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = app.do("POST", detail+"/delete", url.Values{}, session)
	assert.Equal(t, http.StatusFound, w.Code)

	w = app.do("GET", "/tasks_completed", nil, session)
	assert.NotContains(t, w.Body.String(), "Buy oat milk")

	w = app.do("GET", detail, nil, session)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTasksAreScopedToOwner(t *testing.T) {
	app := setupApp(t)
	alice := app.signup("alice")
	bob := app.signup("bob")
	task := app.createTask(alice, "alice only")
	detail := "/tasks/" + task.ID.String()
	missing := "/tasks/" + uuid.Must(uuid.NewV4()).String()

	w := app.do("GET", "/tasks", nil, bob)
	assert.NotContains(t, w.Body.String(), "alice only")

	for _, path := range []string{detail, missing, "/tasks/not-a-uuid"} {
		got := app.do("GET", path, nil, bob)
		assert.Equal(t, http.StatusNotFound, got.Code, path)
	}

	ownedBody := app.do("GET", detail, nil, bob).Body.String()
	missingBody := app.do("GET", missing, nil, bob).Body.String()
	assert.Equal(t, missingBody, ownedBody, "not-owned and missing must look the same")

	assert.Equal(t, http.StatusNotFound, app.do("POST", detail, url.Values{"title": {"mine now"}}, bob).Code)
	assert.Equal(t, http.StatusNotFound, app.do("POST", detail, url.Values{"title": {""}}, bob).Code)
	assert.Equal(t, http.StatusNotFound, app.do("POST", detail+"/complete", url.Values{}, bob).Code)
	assert.Equal(t, http.StatusNotFound, app.do("POST", detail+"/delete", url.Values{}, bob).Code)

	var stored models.Task
	require.NoError(t, app.db.Where("id = ?", task.ID).First(&stored).Error)
	assert.Equal(t, "alice only", stored.Title)
	assert.Nil(t, stored.DateCompleted)
}

func TestTaskActions_RejectOtherMethodsAfterAccessChecks(t *testing.T) {
	app := setupApp(t)
	alice := app.signup("alice")
	bob := app.signup("bob")
	task := app.createTask(alice, "guarded")
	detail := "/tasks/" + task.ID.String()

	for _, action := range []string{"/complete", "/delete"} {
		path := detail + action

		w := app.do("GET", path, nil, "")
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/signin?next="), path)

		w = app.do("GET", path, nil, bob)
		assert.Equal(t, http.StatusNotFound, w.Code, path)

		w = app.do("GET", "/tasks/not-a-uuid"+action, nil, alice)
		assert.Equal(t, http.StatusNotFound, w.Code, path)

		w = app.do("GET", path, nil, alice)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, path)
		assert.Equal(t, http.MethodPost, w.Header().Get("Allow"), path)

		w = app.do("PUT", path, nil, alice)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, path)
	}

	var stored models.Task
	require.NoError(t, app.db.Where("id = ?", task.ID).First(&stored).Error)
	assert.Nil(t, stored.DateCompleted)
}

func TestFormBindingRejectsInvalidInput(t *testing.T) {
	app := setupApp(t)
	session := app.signup("alice")

	w := app.do("POST", "/tasks/create", url.Values{"title": {strings.Repeat("a", 101)}}, session)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please provide valid data")

	w = app.do("POST", "/tasks/create", url.Values{"title": {"ok"}, "description": {strings.Repeat("d", 10001)}}, session)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	require.NoError(t, app.db.Model(&models.Task{}).Count(&count).Error)
	assert.Zero(t, count)

	w = app.do("POST", "/signup", url.Values{
		"username": {strings.Repeat("u", 151)}, "password1": {"pw"}, "password2": {"pw"},
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "at most 150 characters")
}

func TestSigninTrimsUsername(t *testing.T) {
	app := setupApp(t)

	w := app.do("POST", "/signup", url.Values{
		"username": {" carol "}, "password1": {"pw"}, "password2": {"pw"},
	}, "")
	require.Equal(t, http.StatusFound, w.Code)

	w = app.do("POST", "/signin", url.Values{"username": {" carol "}, "password": {"pw"}}, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/tasks", w.Header().Get("Location"))
}

func TestSignout(t *testing.T) {
	app := setupApp(t)
	session := app.signup("alice")

	w := app.do("POST", "/logout", url.Values{}, session)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Empty(t, sessionCookie(t, w))

	w = app.do("GET", "/tasks", nil, session)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/signin"))
}

func TestUnknownRoute(t *testing.T) {
	app := setupApp(t)

	w := app.do("GET", "/does-not-exist", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Not found")
}

func TestMonitoringRoutes(t *testing.T) {
	app := setupApp(t)

	assert.Equal(t, http.StatusOK, app.do("GET", "/healthz", nil, "").Code)
	assert.Equal(t, http.StatusOK, app.do("GET", "/livez", nil, "").Code)
	assert.Equal(t, http.StatusOK, app.do("GET", "/metrics", nil, "").Code)
}
