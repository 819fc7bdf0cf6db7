package handlers

import (
	"net/http"

	"taskboard/internal/services"

	"github.com/gin-gonic/gin"
)

// BoardHandler 看板与列表接口
type BoardHandler struct {
	service *services.BoardService
}

func NewBoardHandler(service *services.BoardService) *BoardHandler {
	return &BoardHandler{service: service}
}

func (h *BoardHandler) CreateBoard(c *gin.Context) {
	var req services.BoardCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.WorkspaceID = workspaceOf(c)
	board, err := h.service.CreateBoard(c.Request.Context(), &req)
	if err != nil {
		fail(c, "Failed to create board", err)
		return
	}
	c.JSON(http.StatusCreated, board)
}

func (h *BoardHandler) ListBoards(c *gin.Context) {
	boards, err := h.service.ListBoards(c.Request.Context(), workspaceOf(c))
	if err != nil {
		fail(c, "Failed to list boards", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": boards})
}

func (h *BoardHandler) GetBoard(c *gin.Context) {
	board, err := h.service.GetBoard(c.Request.Context(), workspaceOf(c), c.Param("id"))
	if err != nil {
		fail(c, "Failed to get board", err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *BoardHandler) CreateList(c *gin.Context) {
	var req services.ListCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.WorkspaceID = workspaceOf(c)
	req.BoardID = c.Param("id")
	list, err := h.service.CreateList(c.Request.Context(), &req)
	if err != nil {
		fail(c, "Failed to create list", err)
		return
	}
	c.JSON(http.StatusCreated, list)
}

func RegisterBoardRoutes(r *gin.RouterGroup, handler *BoardHandler) {
	boards := r.Group("/boards")
	{
		boards.GET("", handler.ListBoards)
		boards.POST("", handler.CreateBoard)
		boards.GET("/:id", handler.GetBoard)
		boards.POST("/:id/lists", handler.CreateList)
	}
}
