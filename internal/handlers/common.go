package handlers

import (
	"net/http"

	"taskboard/internal/apperr"
	"taskboard/internal/middleware"
	"taskboard/internal/repos"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Data     interface{} `json:"data"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Pages    int         `json:"pages"`
}

// SuccessResponse 成功响应结构
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func paginated[T any](p repos.Page[T]) PaginatedResponse {
	return PaginatedResponse{Data: p.Data, Total: p.Total, Page: p.Page, PageSize: p.PageSize, Pages: p.Pages}
}

// fail writes err with the status it carries.
func fail(c *gin.Context, title string, err error) {
	status := apperr.StatusOf(err)
	c.JSON(status, ErrorResponse{Error: title, Message: err.Error(), Code: status})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error(), Code: http.StatusBadRequest})
}

// workspaceOf and actorOf read the claims the auth middleware stored.
func workspaceOf(c *gin.Context) string { return c.GetString(middleware.ContextWorkspaceID) }

func actorOf(c *gin.Context) string { return c.GetString(middleware.ContextUserID) }
