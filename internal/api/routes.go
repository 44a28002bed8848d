// Package api exposes the HTTP control surface: observer WebSocket,
// operator auth and the explicit emergency-stop operation.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
	"github.com/Airegasm/SwellDreams-sub006/internal/auth"
	"github.com/Airegasm/SwellDreams-sub006/internal/bus"
	"github.com/Airegasm/SwellDreams-sub006/internal/cycle"
	"github.com/Airegasm/SwellDreams-sub006/internal/estop"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Hub         *bus.Hub
	Session     *entities.SessionState
	Scheduler   *cycle.Scheduler
	Stopper     *estop.Coordinator
	Tokens      *auth.Tokens
	OperatorKey string
	Logger      *zap.Logger
}

// InitRoutes registers all API routes.
func InitRoutes(e *echo.Echo, deps Deps) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "swelldreams-server",
		})
	})

	v1 := e.Group("/api/v1")

	v1.POST("/auth", func(c echo.Context) error {
		return operatorAuth(c, deps)
	})

	v1.POST("/emergency-stop", func(c echo.Context) error {
		if err := requireOperator(c, deps); err != nil {
			return err
		}
		var req EmergencyStopRequest
		if err := c.Bind(&req); err != nil {
			req.Reason = ""
		}
		reason := req.Reason
		if reason == "" {
			reason = "api request"
		}
		report := deps.Stopper.Stop(reason)
		return c.JSON(http.StatusOK, report)
	})

	v1.GET("/session", func(c echo.Context) error {
		if err := requireOperator(c, deps); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, deps.Session.Snapshot())
	})

	v1.GET("/devices", func(c echo.Context) error {
		if err := requireOperator(c, deps); err != nil {
			return err
		}
		type deviceView struct {
			entities.DeviceDescriptor
			State  entities.ActuationState `json:"state"`
			Active bool                    `json:"cycling"`
		}
		devices := deps.Scheduler.Devices()
		out := make([]deviceView, 0, len(devices))
		for _, d := range devices {
			out = append(out, deviceView{
				DeviceDescriptor: d,
				State:            deps.Session.DeviceState(d.Key),
				Active:           deps.Scheduler.Active(d.Key),
			})
		}
		return c.JSON(http.StatusOK, map[string]any{"devices": out})
	})

	e.GET("/ws", func(c echo.Context) error {
		if err := requireOperator(c, deps); err != nil {
			return err
		}
		return bus.HandleWebSocket(deps.Hub, c, deps.Logger)
	})
}

func operatorAuth(c echo.Context, deps Deps) error {
	var req OperatorAuthRequest
	if err := c.Bind(&req); err != nil {
		deps.Logger.Error("Failed to bind auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if deps.OperatorKey == "" || req.OperatorKey != deps.OperatorKey {
		deps.Logger.Warn("Operator authentication failed")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid operator key",
		})
	}

	token, err := deps.Tokens.GenerateOperatorToken()
	if err != nil {
		deps.Logger.Error("Failed to generate operator token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusOK, OperatorAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
}

// requireOperator enforces a valid token when an operator key is
// configured. Without one the rig is treated as local and open.
func requireOperator(c echo.Context, deps Deps) error {
	if deps.OperatorKey == "" {
		return nil
	}

	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if token == "" {
		token = c.QueryParam("token")
	}
	if token == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "Operator token is required",
		})
	}

	claims, err := deps.Tokens.Validate(token)
	if err != nil || claims.Role != "operator" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired operator token",
		})
	}
	return nil
}
