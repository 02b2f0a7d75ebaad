package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/utils"
)

// Context keys set by the auth middleware.
const (
	CtxUserID    = "user_id"
	CtxPrincipal = "principal"
)

type APIError struct {
	Code    utils.Code     `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	_ = c.Error(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: ae.Message,
			Details: ae.Meta,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

func badRequest(c *gin.Context, op string, err error) {
	writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
}

func requireUserID(c *gin.Context) (string, bool) {
	if v, ok := c.Get(CtxUserID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}

func requirePrincipal(c *gin.Context) (models.Principal, bool) {
	if v, ok := c.Get(CtxPrincipal); ok {
		if p, ok := v.(*models.Principal); ok && p != nil {
			return *p, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return models.Principal{}, false
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}
