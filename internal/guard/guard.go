package guard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"eduadmin-console/internal/auth"
	"eduadmin-console/internal/policy"

	"github.com/gin-gonic/gin"
)

// Refresher is the server-side variant of the silent refresh primitive.
// Satisfied by *apiclient.Client.
type Refresher interface {
	Refresh(ctx context.Context, cookies []*http.Cookie) ([]*http.Cookie, error)
}

// Guard decides, before any page code runs, whether a navigation is
// allowed, redirected to login, or redirected to the authenticated landing
// page. It is stateless across requests; everything it needs is on the
// incoming request's cookies.
type Guard struct {
	verifier  *auth.Verifier
	policy    policy.Policy
	refresher Refresher
	cookies   auth.CookieOptions
	log       *slog.Logger
	now       func() time.Time
}

func New(v *auth.Verifier, pol policy.Policy, r Refresher, cookies auth.CookieOptions, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}
	return &Guard{
		verifier:  v,
		policy:    pol,
		refresher: r,
		cookies:   cookies,
		log:       log,
		now:       time.Now,
	}
}

type outcome int

const (
	outcomeAllow outcome = iota
	outcomeLogin
	outcomeLanding
)

type decision struct {
	outcome      outcome
	claims       *auth.Claims
	setCookies   []*http.Cookie
	clearCookies bool
}

// Middleware applies the guard to page navigations. Every branch ends in a
// definite allow or redirect; a guard failure must never surface as a 500.
func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		d := g.decide(c.Request)

		for _, ck := range d.setCookies {
			http.SetCookie(c.Writer, ck)
		}
		if d.clearCookies {
			auth.ClearCredentialCookies(c.Writer, g.cookies)
		}

		switch d.outcome {
		case outcomeLogin:
			c.Redirect(http.StatusFound, g.policy.LoginPath)
			c.Abort()
		case outcomeLanding:
			c.Redirect(http.StatusFound, g.policy.LandingPath)
			c.Abort()
		default:
			if d.claims != nil {
				c.Request = c.Request.WithContext(
					auth.WithIdentity(c.Request.Context(), d.claims.UserID, d.claims.Role))
			}
			c.Next()
		}
	}
}

// decide runs the per-request state machine over
// (path class x access credential x refresh credential).
func (g *Guard) decide(r *http.Request) decision {
	path := r.URL.Path
	access, refresh := auth.CredentialPair(r)

	switch g.policy.Classify(path) {
	case policy.ClassPublic:
		// An authenticated visitor has no business on login pages. Only a
		// verified credential redirects; a stale or garbage cookie must not
		// lock a user out of the login form.
		if access != "" {
			if _, err := g.verifier.Verify(access, g.now()); err == nil {
				return decision{outcome: outcomeLanding}
			}
		}
		return decision{outcome: outcomeAllow}

	case policy.ClassPrivate:
		if access == "" {
			if refresh == "" {
				return decision{outcome: outcomeLogin}
			}
			return g.refreshAndDecide(r, path)
		}

		claims, err := g.verifier.Verify(access, g.now())
		if err != nil {
			// Malformed or unverifiable access credential. Fall back on the
			// refresh credential when present; otherwise force a login.
			if refresh != "" {
				return g.refreshAndDecide(r, path)
			}
			g.log.Debug("access credential rejected", "path", path, "err", err)
			return decision{outcome: outcomeLogin}
		}

		if !g.policy.Allows(claims.Role, path) {
			// Authenticated but not authorized for this area: back to the
			// landing page, not to login.
			return decision{outcome: outcomeLanding}
		}
		return decision{outcome: outcomeAllow, claims: &claims}

	default:
		// Static assets and framework-internal routes pass untouched.
		return decision{outcome: outcomeAllow}
	}
}

// refreshAndDecide performs the in-guard silent refresh. On success the
// rotated pair is propagated to the browser and the rotated access
// credential is re-verified before the role rule applies; on any failure
// both credentials are cleared and the user lands on the login page.
func (g *Guard) refreshAndDecide(r *http.Request, path string) decision {
	rotated, err := g.refresher.Refresh(r.Context(), r.Cookies())
	if err != nil {
		g.log.Info("silent refresh failed", "path", path, "err", err)
		return decision{outcome: outcomeLogin, clearCookies: true}
	}

	var rotatedAccess string
	for _, ck := range rotated {
		if ck.Name == auth.AccessCookieName {
			rotatedAccess = ck.Value
		}
	}

	claims, err := g.verifier.Verify(rotatedAccess, g.now())
	if err != nil {
		g.log.Warn("rotated access credential failed verification", "err", err)
		return decision{outcome: outcomeLogin, clearCookies: true}
	}

	if !g.policy.Allows(claims.Role, path) {
		return decision{outcome: outcomeLanding, setCookies: rotated}
	}
	return decision{outcome: outcomeAllow, claims: &claims, setCookies: rotated}
}
