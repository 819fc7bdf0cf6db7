package handlers

import (
	"net/http"
	"strconv"

	"taskboard/internal/models"
	"taskboard/internal/services"

	"github.com/gin-gonic/gin"
)

// CardHandler 卡片接口；每次变更都会触发自动化规则
type CardHandler struct {
	service *services.CardService
}

func NewCardHandler(service *services.CardService) *CardHandler {
	return &CardHandler{service: service}
}

func (h *CardHandler) CreateCard(c *gin.Context) {
	var req services.CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.WorkspaceID = workspaceOf(c)
	req.ActorID = actorOf(c)
	card, err := h.service.CreateCard(c.Request.Context(), &req)
	if err != nil {
		fail(c, "Failed to create card", err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

func (h *CardHandler) GetCard(c *gin.Context) {
	card, err := h.service.GetCard(c.Request.Context(), workspaceOf(c), c.Param("id"))
	if err != nil {
		fail(c, "Failed to get card", err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// ListCards lists a list's cards by position; ?archived=true includes archived ones.
func (h *CardHandler) ListCards(c *gin.Context) {
	archived, _ := strconv.ParseBool(c.DefaultQuery("archived", "false"))
	cards, err := h.service.ListCards(c.Request.Context(), workspaceOf(c), c.Param("id"), archived)
	if err != nil {
		fail(c, "Failed to list cards", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cards})
}

func (h *CardHandler) MoveCard(c *gin.Context) {
	var req services.MoveCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.WorkspaceID = workspaceOf(c)
	req.ActorID = actorOf(c)
	req.CardID = c.Param("id")
	h.respond(c, "Failed to move card", http.StatusOK)(h.service.MoveCard(c.Request.Context(), &req))
}

func (h *CardHandler) CopyCard(c *gin.Context) {
	var req services.CopyCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.WorkspaceID = workspaceOf(c)
	req.ActorID = actorOf(c)
	req.CardID = c.Param("id")
	h.respond(c, "Failed to copy card", http.StatusCreated)(h.service.CopyCard(c.Request.Context(), &req))
}

func (h *CardHandler) ArchiveCard(c *gin.Context) {
	h.respond(c, "Failed to archive card", http.StatusOK)(
		h.service.ArchiveCard(c.Request.Context(), workspaceOf(c), c.Param("id"), actorOf(c)))
}

func (h *CardHandler) UnarchiveCard(c *gin.Context) {
	h.respond(c, "Failed to unarchive card", http.StatusOK)(
		h.service.UnarchiveCard(c.Request.Context(), workspaceOf(c), c.Param("id"), actorOf(c)))
}

func (h *CardHandler) AddLabel(c *gin.Context) {
	var req services.LabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.respond(c, "Failed to add label", http.StatusOK)(
		h.service.AddLabel(c.Request.Context(), workspaceOf(c), c.Param("id"), req.Label, actorOf(c)))
}

func (h *CardHandler) RemoveLabel(c *gin.Context) {
	h.respond(c, "Failed to remove label", http.StatusOK)(
		h.service.RemoveLabel(c.Request.Context(), workspaceOf(c), c.Param("id"), c.Param("label"), actorOf(c)))
}

func (h *CardHandler) respond(c *gin.Context, title string, status int) func(*models.Card, error) {
	return func(card *models.Card, err error) {
		if err != nil {
			fail(c, title, err)
			return
		}
		c.JSON(status, card)
	}
}

func RegisterCardRoutes(r *gin.RouterGroup, handler *CardHandler) {
	r.GET("/lists/:id/cards", handler.ListCards)

	cards := r.Group("/cards")
	{
		cards.POST("", handler.CreateCard)
		cards.GET("/:id", handler.GetCard)
		cards.POST("/:id/move", handler.MoveCard)
		cards.POST("/:id/copy", handler.CopyCard)
		cards.POST("/:id/archive", handler.ArchiveCard)
		cards.POST("/:id/unarchive", handler.UnarchiveCard)
		cards.POST("/:id/labels", handler.AddLabel)
		cards.DELETE("/:id/labels/:label", handler.RemoveLabel)
	}
}
