package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"otp_auth/internal/auth"
	"otp_auth/internal/models"
	"otp_auth/internal/service"

	"github.com/gin-gonic/gin"
)

const apiVersion = "1.0"

type Handler struct {
	serviceLayer service.Service
	limiter      *RateLimiter
	log          *slog.Logger
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type tokenResponse struct {
	response
	Token string `json:"token"`
}

type profileResponse struct {
	response
	User models.Account `json:"user"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, response{Success: false, Message: errMessage})
}

func newSuccessResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, response{Success: true, Message: message})
}

func NewHandler(srvc service.Service, limiter *RateLimiter, lgr *slog.Logger) *Handler {
	return &Handler{
		serviceLayer: srvc,
		limiter:      limiter,
		log:          lgr,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(h.log))

	router.GET("/", h.Home)
	router.GET("/healthz", h.Health)

	api := router.Group("/api")
	{
		limited := api.Group("")
		limited.Use(RateLimit(h.limiter, h.log))
		{
			limited.POST("/register", h.Register)
			limited.POST("/request-otp", h.RequestOTP)
			limited.POST("/verify-otp", h.VerifyOTP)
		}
		api.GET("/profile", h.GetProfile)
	}

	return router
}

// GET /
func (h *Handler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User Login API with Email & OTP",
		"version": apiVersion,
		"endpoints": gin.H{
			"POST /api/register":    "Register new user",
			"POST /api/request-otp": "Request OTP",
			"POST /api/verify-otp":  "Verify OTP and login",
			"GET /api/profile":      "Get user profile (requires token)",
		},
	})
}

// GET /healthz
func (h *Handler) Health(c *gin.Context) {
	newSuccessResponse(c, http.StatusOK, "ok")
}

// POST /api/register
func (h *Handler) Register(c *gin.Context) {
	const op = "handler.Register"

	log := h.log.With(slog.String("op", op))

	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "Invalid request body")

		return
	}

	_, err := h.serviceLayer.Register(c.Request.Context(), req.Email)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidInput):
		newErrorResponse(c, http.StatusBadRequest, "Valid email is required")

		return
	case errors.Is(err, service.ErrConflict):
		newErrorResponse(c, http.StatusBadRequest, "User with this email already exists")

		return
	default:
		log.Error("failed to register user", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, "Registration failed")

		return
	}

	newSuccessResponse(c, http.StatusCreated, "Registration successful. Please verify your email.")
}

// POST /api/request-otp
func (h *Handler) RequestOTP(c *gin.Context) {
	const op = "handler.RequestOTP"

	log := h.log.With(slog.String("op", op))

	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "Invalid request body")

		return
	}

	err := h.serviceLayer.RequestCode(c.Request.Context(), req.Email)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNotFound):
		newErrorResponse(c, http.StatusNotFound, "User not found")

		return
	default:
		log.Error("failed to issue passcode", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, "Failed to send OTP")

		return
	}

	newSuccessResponse(c, http.StatusOK, "OTP sent to your email")
}

// POST /api/verify-otp
func (h *Handler) VerifyOTP(c *gin.Context) {
	const op = "handler.VerifyOTP"

	log := h.log.With(slog.String("op", op))

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "Invalid request body")

		return
	}

	token, err := h.serviceLayer.VerifyCode(c.Request.Context(), req.Email, req.OTP)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidInput):
		newErrorResponse(c, http.StatusBadRequest, "Email and OTP are required")

		return
	case errors.Is(err, service.ErrInvalidCredential):
		newErrorResponse(c, http.StatusBadRequest, "Invalid OTP")

		return
	case errors.Is(err, service.ErrExpired):
		newErrorResponse(c, http.StatusBadRequest, "OTP has expired")

		return
	default:
		log.Error("failed to verify passcode", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, "Verification failed")

		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		response: response{Success: true, Message: "Login successful"},
		Token:    token,
	})
}

// GET /api/profile
func (h *Handler) GetProfile(c *gin.Context) {
	const op = "handler.GetProfile"

	log := h.log.With(slog.String("op", op))

	token, err := auth.BearerToken(c.GetHeader("Authorization"))
	if err != nil {
		newErrorResponse(c, http.StatusUnauthorized, "Authorization token required")

		return
	}

	account, err := h.serviceLayer.GetProfile(c.Request.Context(), token)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrTokenExpired):
		newErrorResponse(c, http.StatusUnauthorized, "Token has expired")

		return
	case errors.Is(err, service.ErrUnauthorized):
		newErrorResponse(c, http.StatusUnauthorized, "Invalid token")

		return
	case errors.Is(err, service.ErrNotFound):
		newErrorResponse(c, http.StatusNotFound, "User not found")

		return
	default:
		log.Error("failed to get profile", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, "Failed to get profile")

		return
	}

	c.JSON(http.StatusOK, profileResponse{
		response: response{Success: true, Message: "Profile retrieved"},
		User:     account,
	})
}
