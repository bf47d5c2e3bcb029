package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"procurement/internal/model"
	"procurement/pkg/response"
)

// Permission codes checked by RequirePermission.
const (
	PermApprovalsRead   = "approvals.read"
	PermApprovalsDecide = "approvals.decide"
	PermAuditRead       = "audit.read"
)

// Context keys set by the auth middleware.
const (
	CtxUserID   = "userID"
	CtxUserName = "userName"
	CtxUserRole = "userRole"
)

var rolePermissions = map[string][]string{
	model.RoleAdmin:    {PermApprovalsRead, PermApprovalsDecide, PermAuditRead},
	model.RoleApprover: {PermApprovalsRead, PermApprovalsDecide},
	model.RoleViewer:   {PermApprovalsRead},
}

// PermissionsForRole returns the permission codes granted to role.
func PermissionsForRole(role string) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// HasPermission reports whether role grants perm.
func HasPermission(role, perm string) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Auth validates access tokens signed with a shared HMAC secret.
type Auth struct {
	secret []byte
}

func NewAuth(secret []byte) *Auth {
	return &Auth{secret: secret}
}

// Secret returns the signing key, shared with the websocket feed.
func (a *Auth) Secret() []byte { return a.secret }

// SetTokenCookies sets access_token as an HttpOnly cookie
func SetTokenCookies(c *gin.Context, accessToken string, ttl time.Duration, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie("access_token", accessToken, int(ttl.Seconds()), "/", "", secure, true)
}

// RequireAuth accepts any valid token.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return a.RequirePermission()
}

// RequirePermission validates the JWT and checks that the user's role has
// every required permission code.
func (a *Auth) RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Try cookie first, fallback to Authorization header
		tokenString, cookieErr := c.Cookie("access_token")
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
				return
			}
			tokenString = parts[1]
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
			return
		}

		userID, _ := claims["sub"].(string)
		userRole, ok := claims["role"].(string)
		if !ok || userID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Role not found in token"))
			return
		}
		userName, _ := claims["name"].(string)

		c.Set(CtxUserID, userID)
		c.Set(CtxUserName, userName)
		c.Set(CtxUserRole, userRole)

		for _, required := range requiredPerms {
			if !HasPermission(userRole, required) {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+required+"'"))
				return
			}
		}

		c.Next()
	}
}

// ActorFromContext returns the authenticated user as a decision actor.
func ActorFromContext(c *gin.Context) model.Actor {
	return model.Actor{ID: c.GetString(CtxUserID), Name: c.GetString(CtxUserName)}
}
