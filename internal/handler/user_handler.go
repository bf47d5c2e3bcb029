package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/response"
)

type UserHandler struct {
	userService   service.UserService
	auth          *middleware.Auth
	tokenTTL      time.Duration
	secureCookies bool
}

// NewUserHandler sets up the routing dependencies for User endpoints
func NewUserHandler(userService service.UserService, auth *middleware.Auth, tokenTTL time.Duration, secureCookies bool) *UserHandler {
	return &UserHandler{userService: userService, auth: auth, tokenTTL: tokenTTL, secureCookies: secureCookies}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/login", h.Login)
	router.GET("/me", h.auth.RequireAuth(), h.GetMe)
}

// Login handles POST /login to authenticate and return a JWT token
// @Summary      Login user
// @Description  Authenticates a user by email and password, returning a JWT token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginUserRequest   true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	tokenRes, err := h.userService.Login(c.Request.Context(), req)
	if errors.Is(err, service.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	middleware.SetTokenCookies(c, tokenRes.Token, h.tokenTTL, h.secureCookies)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

// GetMe handles GET /me to return current authenticated user based on JWT
// @Summary      Get current user
// @Description  Get the currently authenticated user and the permissions of their role
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      401      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.userService.GetUserByID(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"id":          user.ID,
		"username":    user.Username,
		"email":       user.Email,
		"role":        user.Role,
		"permissions": middleware.PermissionsForRole(user.Role),
	}))
}
