package console

import (
	"errors"
	"math"
	"net/http"
	"net/url"
	"time"

	"eduadmin-console/internal/apiclient"
	"eduadmin-console/internal/auth"
	"eduadmin-console/internal/school"
	"eduadmin-console/internal/state"
	"eduadmin-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups the console's HTTP handlers for dependency injection.
// Keep these thin: forward the browser's cookies upstream, reshape the
// upstream reply for the console, propagate any rotated credentials back.

type Handlers struct {
	API        *apiclient.Client
	Verifier   *auth.Verifier
	Sessions   state.Store
	Cookies    auth.CookieOptions
	SessionTTL time.Duration
}

// User-facing fallback messages, used when the upstream reply carries none.
const (
	msgUnexpected    = "Error inesperado. Inténtalo de nuevo."
	msgSchools       = "Error al obtener las escuelas"
	msgSchoolUsers   = "Error al obtener los usuarios registrados"
	msgSessionNeeded = "No autenticado"
	msgSessionLost   = "Sesión expirada"
)

// --- Auth ---

type loginRequest struct {
	SchoolID string `json:"schoolId,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User school.User `json:"user"`
}

// Login proxies the credential exchange and captures the returned user
// snapshot into the edge session store.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid json"})
		return
	}
	if req.Email == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "email y password requeridos"})
		return
	}

	res, err := h.API.Post(c.Request.Context(), "/auth/login", req, c.Request.Cookies())
	if err != nil {
		h.fail(c, err, msgUnexpected)
		return
	}

	var body loginResponse
	if err := res.Decode(&body); err != nil || body.User.ID == "" {
		logger.FromGin(c).Error("login response malformed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": msgUnexpected})
		return
	}

	sess := state.Session{
		UserID:    body.User.ID,
		User:      body.User,
		ExpiresAt: time.Now().Add(h.SessionTTL),
	}
	if err := h.Sessions.Put(c.Request.Context(), sess); err != nil {
		// Losing the snapshot degrades the UI, not authentication.
		logger.FromGin(c).Warn("edge session not stored", "user_id", body.User.ID, "err", err)
	}

	h.propagateCookies(c, res)
	c.JSON(http.StatusOK, body)
}

// Logout invalidates the upstream session, drops the edge session, and
// clears both credential cookies even when the upstream call fails.
func (h Handlers) Logout(c *gin.Context) {
	if userID, ok := h.currentUserID(c); ok {
		if err := h.Sessions.Delete(c.Request.Context(), userID); err != nil {
			logger.FromGin(c).Warn("edge session not deleted", "user_id", userID, "err", err)
		}
	}

	res, err := h.API.Get(c.Request.Context(), "/auth/logout", nil, c.Request.Cookies())
	if err != nil {
		logger.FromGin(c).Info("upstream logout failed", "err", err)
	} else {
		h.propagateCookies(c, res)
	}

	auth.ClearCredentialCookies(c.Writer, h.Cookies)
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (h Handlers) ForgotPassword(c *gin.Context) {
	h.proxyJSON(c, http.MethodPost, "/auth/forgot-password")
}

func (h Handlers) ResetPassword(c *gin.Context) {
	h.proxyJSON(c, http.MethodPost, "/auth/reset-password")
}

// --- Schools ---

type schoolListResponse struct {
	Schools    []school.School `json:"schools"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

// ListSchools flattens the upstream's wrapped school list and computes the
// page count the tables expect.
func (h Handlers) ListSchools(c *gin.Context) {
	query := url.Values{}
	for _, key := range []string{"name", "page", "limit"} {
		if v := c.Query(key); v != "" {
			query.Set(key, v)
		}
	}

	res, err := h.API.Get(c.Request.Context(), "/schools", query, c.Request.Cookies())
	if err != nil {
		h.fail(c, err, msgSchools)
		return
	}

	var body school.PaginatedSchools
	if err := res.Decode(&body); err != nil {
		logger.FromGin(c).Error("schools response malformed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": msgSchools})
		return
	}

	out := schoolListResponse{
		Schools:    make([]school.School, 0, len(body.Schools)),
		Page:       body.Metadata.Page,
		Limit:      body.Metadata.Limit,
		TotalPages: totalPages(body.Metadata.Total, body.Metadata.Limit),
	}
	for _, item := range body.Schools {
		out.Schools = append(out.Schools, item.School)
	}

	h.propagateCookies(c, res)
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CreateSchool(c *gin.Context) {
	h.proxyJSON(c, http.MethodPost, "/schools")
}

func (h Handlers) UpdateSchool(c *gin.Context) {
	h.proxyJSON(c, http.MethodPatch, "/schools")
}

func (h Handlers) CreateSede(c *gin.Context) {
	h.proxyJSON(c, http.MethodPost, "/sedes")
}

// --- School users ---

type schoolUsersResponse struct {
	Users      []school.User `json:"users"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"totalPages"`
}

// ListSchoolUsers returns the registered users of one school from the
// upstream's multi-school listing.
func (h Handlers) ListSchoolUsers(c *gin.Context) {
	schoolID := c.Query("schoolId")
	if schoolID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "schoolId requerido"})
		return
	}

	query := url.Values{"schoolId": {schoolID}}
	for _, key := range []string{"page", "limit"} {
		if v := c.Query(key); v != "" {
			query.Set(key, v)
		}
	}

	res, err := h.API.Get(c.Request.Context(), "/auth/view-registered", query, c.Request.Cookies())
	if err != nil {
		h.fail(c, err, msgSchoolUsers)
		return
	}

	var body school.PaginatedSchoolUsers
	if err := res.Decode(&body); err != nil {
		logger.FromGin(c).Error("view-registered response malformed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": msgSchoolUsers})
		return
	}

	out := schoolUsersResponse{
		Users:      []school.User{},
		Page:       body.Metadata.Page,
		Limit:      body.Metadata.Limit,
		TotalPages: body.Metadata.TotalPages,
	}
	if out.TotalPages == 0 {
		out.TotalPages = 1
	}
	for _, item := range body.Schools {
		if item.School.ID == schoolID {
			out.Users = item.Users
			break
		}
	}

	h.propagateCookies(c, res)
	c.JSON(http.StatusOK, out)
}

func (h Handlers) RegisterUser(c *gin.Context) {
	h.proxyJSON(c, http.MethodPost, "/auth/register")
}

func (h Handlers) UpdateUser(c *gin.Context) {
	h.proxyJSON(c, http.MethodPut, "/auth/update-user")
}

func (h Handlers) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "id requerido"})
		return
	}

	res, err := h.API.Delete(c.Request.Context(), "/auth/user/"+id, c.Request.Cookies())
	if err != nil {
		h.fail(c, err, msgUnexpected)
		return
	}
	h.propagateCookies(c, res)
	c.Data(res.Status, "application/json", res.Body)
}

// --- Edge session state ---

// Me returns the edge session snapshot for the authenticated user.
func (h Handlers) Me(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgSessionNeeded})
		return
	}

	sess, err := h.Sessions.Get(c.Request.Context(), userID)
	if errors.Is(err, state.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": msgSessionLost})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("edge session lookup failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": msgUnexpected})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// GetInstitution returns the currently selected institution, if any.
func (h Handlers) GetInstitution(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgSessionNeeded})
		return
	}

	sess, err := h.Sessions.Get(c.Request.Context(), userID)
	if errors.Is(err, state.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": msgSessionLost})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("edge session lookup failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": msgUnexpected})
		return
	}
	c.JSON(http.StatusOK, gin.H{"institution": sess.Institution})
}

// SetInstitution records the selected institution for the session. A null
// body clears the selection.
func (h Handlers) SetInstitution(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgSessionNeeded})
		return
	}

	var inst *school.School
	if err := c.ShouldBindJSON(&inst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid json"})
		return
	}

	err := h.Sessions.SetInstitution(c.Request.Context(), userID, inst)
	if errors.Is(err, state.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": msgSessionLost})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("institution not stored", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": msgUnexpected})
		return
	}
	c.JSON(http.StatusOK, gin.H{"institution": inst})
}

// --- helpers ---

// currentUserID identifies the caller from the verified access cookie. The
// edge session endpoints rely on the same verification rule as the guard.
func (h Handlers) currentUserID(c *gin.Context) (string, bool) {
	access, _ := auth.CredentialPair(c.Request)
	if access == "" {
		return "", false
	}
	claims, err := h.Verifier.Verify(access, time.Now())
	if err != nil {
		return "", false
	}
	return claims.UserID, true
}

// proxyJSON forwards the request body and cookies upstream verbatim and the
// upstream JSON reply back, with the uniform error mapping.
func (h Handlers) proxyJSON(c *gin.Context, method, path string) {
	var body any
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid json"})
			return
		}
	}

	res, err := h.API.Do(c.Request.Context(), apiclient.Request{
		Method:  method,
		Path:    path,
		Body:    body,
		Cookies: c.Request.Cookies(),
	})
	if err != nil {
		h.fail(c, err, msgUnexpected)
		return
	}

	h.propagateCookies(c, res)
	c.Data(res.Status, "application/json", res.Body)
}

// fail maps client errors onto user-facing JSON. A failed refresh episode
// comes back as 401 so the frontend falls through to the login flow.
func (h Handlers) fail(c *gin.Context, err error, fallback string) {
	var apiErr *apiclient.APIError
	switch {
	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if msg == "" {
			msg = fallback
		}
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"message": msg})
	case errors.Is(err, apiclient.ErrRefreshFailed):
		auth.ClearCredentialCookies(c.Writer, h.Cookies)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgSessionLost})
	default:
		logger.FromGin(c).Error("upstream call failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": fallback})
	}
}

// propagateCookies copies upstream Set-Cookie values (including rotated
// credentials from a silent refresh) onto the browser response.
func (h Handlers) propagateCookies(c *gin.Context, res *apiclient.Response) {
	for _, ck := range res.SetCookies {
		http.SetCookie(c.Writer, ck)
	}
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		return 1
	}
	n := int(math.Ceil(float64(total) / float64(limit)))
	if n < 1 {
		n = 1
	}
	return n
}
