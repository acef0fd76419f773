package console

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eduadmin-console/internal/apiclient"
	"eduadmin-console/internal/auth"
	"eduadmin-console/internal/config"
	"eduadmin-console/internal/school"
	"eduadmin-console/internal/state"
	"eduadmin-console/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "console-secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func accessCookie(t *testing.T, userID string) *http.Cookie {
	t.Helper()
	now := time.Now()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
		UserID:    userID,
		Role:      auth.RoleAdmin,
		TokenType: auth.TokenTypeAccess,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return &http.Cookie{Name: auth.AccessCookieName, Value: s}
}

type fixture struct {
	router   *gin.Engine
	sessions *state.MemoryStore
}

func newFixture(t *testing.T, upstream http.Handler) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	v, err := auth.NewVerifier(config.AuthConfig{JWTSecret: testSecret})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	sessions := state.NewMemoryStore()
	h := Handlers{
		API:        apiclient.New(srv.URL),
		Verifier:   v,
		Sessions:   sessions,
		SessionTTL: time.Hour,
	}

	r := gin.New()
	r.Use(logger.Middleware(testLogger()))
	r.POST("/auth/login", h.Login)
	r.GET("/auth/logout", h.Logout)
	r.GET("/schools", h.ListSchools)
	r.GET("/auth/view-registered", h.ListSchoolUsers)
	r.GET("/session/me", h.Me)
	r.PUT("/session/institution", h.SetInstitution)
	r.GET("/session/institution", h.GetInstitution)
	return fixture{router: r, sessions: sessions}
}

func do(f fixture, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestLogin_StoresSessionAndPropagatesCookies(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			t.Fatalf("unexpected upstream call %s %s", r.Method, r.URL.Path)
		}
		http.SetCookie(w, &http.Cookie{Name: auth.AccessCookieName, Value: "issued-access", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: auth.RefreshCookieName, Value: "issued-refresh", HttpOnly: true})
		json.NewEncoder(w).Encode(gin.H{"user": school.User{ID: "user-1", Email: "admin@eduadmin.test", Role: "ADMIN"}})
	})
	f := newFixture(t, upstream)

	w := do(f, http.MethodPost, "/auth/login", loginRequest{Email: "admin@eduadmin.test", Password: "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}

	var issued int
	for _, ck := range w.Result().Cookies() {
		if ck.Name == auth.AccessCookieName || ck.Name == auth.RefreshCookieName {
			issued++
		}
	}
	if issued != 2 {
		t.Fatalf("expected credential pair propagated, got %v", w.Result().Cookies())
	}

	sess, err := f.sessions.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if sess.User.Email != "admin@eduadmin.test" {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestLogin_UpstreamErrorMessagePassedThrough(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(gin.H{"message": "credenciales inválidas"})
	})
	f := newFixture(t, upstream)

	w := do(f, http.MethodPost, "/auth/login", loginRequest{Email: "x@y.z", Password: "bad"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["message"] != "credenciales inválidas" {
		t.Fatalf("expected upstream message, got %q", body["message"])
	}
}

func TestListSchools_FlattensAndComputesPages(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("name"); got != "esperanza" {
			t.Fatalf("name filter not forwarded, got %q", got)
		}
		json.NewEncoder(w).Encode(school.PaginatedSchools{
			Schools: []school.SchoolData{
				{School: school.School{ID: "s1", Name: "IE La Esperanza"}},
				{School: school.School{ID: "s2", Name: "IE Esperanza Norte"}},
			},
			Metadata: school.Metadata{Total: 25, Page: 1, Limit: 10},
		})
	})
	f := newFixture(t, upstream)

	w := do(f, http.MethodGet, "/schools?name=esperanza&page=1&limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("schools: %d %s", w.Code, w.Body.String())
	}

	var body schoolListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Schools) != 2 || body.Schools[0].ID != "s1" {
		t.Fatalf("schools not flattened: %+v", body)
	}
	if body.TotalPages != 3 {
		t.Fatalf("expected 3 pages for 25/10, got %d", body.TotalPages)
	}
}

func TestListSchoolUsers_SelectsRequestedSchool(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(school.PaginatedSchoolUsers{
			Schools: []school.SchoolWithUsers{
				{School: school.School{ID: "s1"}, Users: []school.User{{ID: "u1"}}},
				{School: school.School{ID: "s2"}, Users: []school.User{{ID: "u2"}, {ID: "u3"}}},
			},
			Metadata: school.Metadata{Total: 3, Page: 1, Limit: 10, TotalPages: 1},
		})
	})
	f := newFixture(t, upstream)

	w := do(f, http.MethodGet, "/auth/view-registered?schoolId=s2&page=1&limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("view-registered: %d %s", w.Code, w.Body.String())
	}

	var body schoolUsersResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Users) != 2 || body.Users[0].ID != "u2" {
		t.Fatalf("wrong school selected: %+v", body)
	}
}

func TestListSchoolUsers_RequiresSchoolID(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("upstream must not be called")
	}))
	if w := do(f, http.MethodGet, "/auth/view-registered", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLogout_DropsSessionAndClearsCookies(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})
	f := newFixture(t, upstream)

	_ = f.sessions.Put(context.Background(), state.Session{
		UserID:    "user-1",
		User:      school.User{ID: "user-1"},
		ExpiresAt: time.Now().Add(time.Hour),
	})

	w := do(f, http.MethodGet, "/auth/logout", nil, accessCookie(t, "user-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("logout: %d", w.Code)
	}

	cleared := 0
	for _, ck := range w.Result().Cookies() {
		if (ck.Name == auth.AccessCookieName || ck.Name == auth.RefreshCookieName) && ck.MaxAge < 0 {
			cleared++
		}
	}
	if cleared != 2 {
		t.Fatalf("expected credential pair cleared, got %v", w.Result().Cookies())
	}

	if _, err := f.sessions.Get(context.Background(), "user-1"); err == nil {
		t.Fatalf("expected edge session deleted")
	}
}

func TestSessionEndpoints_RoundTrip(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("upstream must not be called")
	}))

	_ = f.sessions.Put(context.Background(), state.Session{
		UserID:    "user-1",
		User:      school.User{ID: "user-1", Email: "admin@eduadmin.test"},
		ExpiresAt: time.Now().Add(time.Hour),
	})
	ck := accessCookie(t, "user-1")

	inst := school.School{ID: "s1", Name: "IE La Esperanza"}
	if w := do(f, http.MethodPut, "/session/institution", inst, ck); w.Code != http.StatusOK {
		t.Fatalf("set institution: %d %s", w.Code, w.Body.String())
	}

	w := do(f, http.MethodGet, "/session/me", nil, ck)
	if w.Code != http.StatusOK {
		t.Fatalf("me: %d", w.Code)
	}
	var sess state.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.Institution == nil || sess.Institution.ID != "s1" {
		t.Fatalf("institution not returned: %+v", sess)
	}
}

func TestHandlerLogsCarryRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	h := Handlers{API: apiclient.New("http://127.0.0.1:1")} // nothing listens here

	r := gin.New()
	r.Use(logger.Middleware(slog.New(slog.NewJSONHandler(&buf, nil))))
	r.GET("/schools", h.ListSchools)

	req := httptest.NewRequest(http.MethodGet, "/schools", nil)
	req.Header.Set("X-Request-Id", "req-42")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if !strings.Contains(out, "upstream call failed") {
		t.Fatalf("handler error not logged: %s", out)
	}
	if !strings.Contains(out, `"request_id":"req-42"`) {
		t.Fatalf("handler log line missing request scope: %s", out)
	}
}

func TestSessionEndpoints_RequireVerifiedCredential(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("upstream must not be called")
	}))

	if w := do(f, http.MethodGet, "/session/me", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credential, got %d", w.Code)
	}
	bad := &http.Cookie{Name: auth.AccessCookieName, Value: "garbage"}
	if w := do(f, http.MethodGet, "/session/me", nil, bad); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage credential, got %d", w.Code)
	}
}
