package session

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nvellore/fraudwatch/internal/accounts"
	"github.com/nvellore/fraudwatch/internal/kvstore"
	"github.com/nvellore/fraudwatch/internal/logging"
	"github.com/nvellore/fraudwatch/internal/metrics"
)

// Handler provides the signup/login/session endpoints.
type Handler struct {
	guard *Guard
}

// NewHandler creates a session handler.
func NewHandler(guard *Guard) *Handler {
	return &Handler{guard: guard}
}

// RegisterRoutes sets up auth routes under the given group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
	r.GET("/session", h.Session)
}

// SignupRequest mirrors the signup form.
type SignupRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	UserType        string `json:"userType" binding:"required"`
	EmployeeID      string `json:"employeeId"`
}

// Signup handles POST /v1/signup. A successful signup also becomes the
// active session, exactly like a login.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if req.Password != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "password_mismatch",
			"message": "Passwords do not match",
		})
		return
	}

	userType := accounts.UserType(req.UserType)
	if !userType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_user_type",
			"message": "userType must be employee or admin",
		})
		return
	}

	account, err := h.guard.Signup(c.Request.Context(), &accounts.Account{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		UserType:   userType,
		EmployeeID: req.EmployeeID,
	})
	if err != nil {
		if errors.Is(err, accounts.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "email_exists",
				"message": "Email already exists",
			})
			return
		}
		logging.L(c.Request.Context()).Error("signup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Error creating account",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":     account,
		"redirect": dashboardFor(account.UserType),
	})
}

// LoginRequest mirrors the login form, including the declared user type.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	UserType string `json:"userType" binding:"required"`
}

// Login handles POST /v1/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	userType := accounts.UserType(req.UserType)
	if !userType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_user_type",
			"message": "userType must be employee or admin",
		})
		return
	}

	account, err := h.guard.Login(c.Request.Context(), req.Email, req.Password, userType)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("failure").Inc()
			// One message for wrong password and wrong declared type
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_credentials",
				"message": "Invalid credentials or wrong user type",
			})
			return
		}
		logging.L(c.Request.Context()).Error("login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Error logging in",
		})
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{
		"user":     account,
		"redirect": dashboardFor(account.UserType),
	})
}

// Session handles GET /v1/session: who is logged in right now.
func (h *Handler) Session(c *gin.Context) {
	account, err := h.guard.CurrentUser(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			c.JSON(http.StatusOK, gin.H{"user": nil})
			return
		}
		if errors.Is(err, kvstore.ErrCorrupt) {
			logging.L(c.Request.Context()).Warn("session record corrupt, treating as logged out")
			c.JSON(http.StatusOK, gin.H{"user": nil})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to read session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": account})
}

func dashboardFor(userType accounts.UserType) string {
	if userType == accounts.TypeAdmin {
		return "/admin-dashboard"
	}
	return "/dashboard"
}
