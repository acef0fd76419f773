package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"eduadmin-console/internal/console"
	"eduadmin-console/internal/guard"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to
// internal modules.
func registerRoutes(r *gin.Engine, h console.Handlers, g *guard.Guard, publicDir string) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Browser-facing API surface. Credentials ride on cookies; the upstream
	// client recovers expired access credentials transparently.
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.GET("/logout", h.Logout)
		authGroup.POST("/forgot-password", h.ForgotPassword)
		authGroup.POST("/reset-password", h.ResetPassword)
		authGroup.GET("/view-registered", h.ListSchoolUsers)
		authGroup.POST("/register", h.RegisterUser)
		authGroup.PUT("/update-user", h.UpdateUser)
		authGroup.DELETE("/user/:id", h.DeleteUser)
	}

	r.GET("/schools", h.ListSchools)
	r.POST("/schools", h.CreateSchool)
	r.PATCH("/schools", h.UpdateSchool)
	r.POST("/sedes", h.CreateSede)

	session := r.Group("/session")
	{
		session.GET("/me", h.Me)
		session.GET("/institution", h.GetInstitution)
		session.PUT("/institution", h.SetInstitution)
	}

	// Every other path is a page navigation: the guard decides, then the
	// frontend bundle takes over.
	r.NoRoute(g.Middleware(), servePage(publicDir))
}

// servePage serves the built frontend. Asset paths map straight into the
// public directory; anything else gets the SPA shell.
func servePage(publicDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Status(http.StatusNotFound)
			return
		}

		rel := strings.TrimPrefix(filepath.Clean(c.Request.URL.Path), "/")
		if rel != "" && rel != "." {
			candidate := filepath.Join(publicDir, rel)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				c.File(candidate)
				return
			}
		}
		c.File(filepath.Join(publicDir, "index.html"))
	}
}
