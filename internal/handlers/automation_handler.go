package handlers

import (
	"net/http"

	"taskboard/internal/automation"
	"taskboard/internal/repos"
	"taskboard/internal/services"

	"github.com/gin-gonic/gin"
)

// AutomationHandler 自动化规则、过滤条件与动作的接口
type AutomationHandler struct {
	service *services.AutomationService
}

func NewAutomationHandler(service *services.AutomationService) *AutomationHandler {
	return &AutomationHandler{service: service}
}

// ListRules supports ?type=, ?group_type=, ?condition[key]=value and paging.
func (h *AutomationHandler) ListRules(c *gin.Context) {
	var q services.RuleQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	q.Condition = c.QueryMap("condition")
	page, err := h.service.ListRules(c.Request.Context(), workspaceOf(c), q)
	if err != nil {
		fail(c, "Failed to list rules", err)
		return
	}
	c.JSON(http.StatusOK, paginated(page))
}

func (h *AutomationHandler) CreateRule(c *gin.Context) {
	var req services.RuleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.WorkspaceID = workspaceOf(c)
	req.CreatedBy = actorOf(c)
	rule, err := h.service.CreateRule(c.Request.Context(), &req)
	if err != nil {
		fail(c, "Failed to create rule", err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *AutomationHandler) GetRule(c *gin.Context) {
	rule, err := h.service.GetRule(c.Request.Context(), workspaceOf(c), c.Param("id"))
	if err != nil {
		fail(c, "Failed to get rule", err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *AutomationHandler) UpdateRule(c *gin.Context) {
	var req services.RuleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rule, err := h.service.UpdateRule(c.Request.Context(), workspaceOf(c), c.Param("id"), &req)
	if err != nil {
		fail(c, "Failed to update rule", err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *AutomationHandler) DeleteRule(c *gin.Context) {
	if err := h.service.DeleteRule(c.Request.Context(), workspaceOf(c), c.Param("id")); err != nil {
		fail(c, "Failed to delete rule", err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

type matchRequest struct {
	GroupType string                 `json:"group_type"`
	Type      string                 `json:"type"`
	Condition map[string]interface{} `json:"condition"`
}

// MatchRules 返回与条件有任一键值相同的规则（含比较扩展）及其动作
func (h *AutomationHandler) MatchRules(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rules, err := h.service.MatchRules(c.Request.Context(), workspaceOf(c), repos.RuleFilter{
		GroupType: req.GroupType,
		Type:      req.Type,
		Condition: automation.StringMap(req.Condition),
	})
	if err != nil {
		fail(c, "Failed to match rules", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rules})
}

// Evaluate reports which rules would fire for an event without running them.
func (h *AutomationHandler) Evaluate(c *gin.Context) {
	var ev automation.EventContext
	if err := c.ShouldBindJSON(&ev); err != nil {
		badRequest(c, err)
		return
	}
	ev.WorkspaceID = workspaceOf(c)
	if ev.ActorID == "" {
		ev.ActorID = actorOf(c)
	}
	rules, err := h.service.Evaluate(c.Request.Context(), ev)
	if err != nil {
		fail(c, "Failed to evaluate event", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rules})
}

func (h *AutomationHandler) ListFilters(c *gin.Context) {
	var p repos.Paginate
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.service.ListFilters(c.Request.Context(), workspaceOf(c), c.Param("id"), p)
	if err != nil {
		fail(c, "Failed to list filters", err)
		return
	}
	c.JSON(http.StatusOK, paginated(page))
}

func (h *AutomationHandler) AddFilter(c *gin.Context) {
	var req services.ChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	row, err := h.service.AddFilter(c.Request.Context(), workspaceOf(c), c.Param("id"), req)
	if err != nil {
		fail(c, "Failed to add filter", err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *AutomationHandler) UpdateFilter(c *gin.Context) {
	var req services.ChildUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	row, err := h.service.UpdateFilter(c.Request.Context(), workspaceOf(c), c.Param("id"), &req)
	if err != nil {
		fail(c, "Failed to update filter", err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *AutomationHandler) DeleteFilter(c *gin.Context) {
	if err := h.service.DeleteFilter(c.Request.Context(), workspaceOf(c), c.Param("id")); err != nil {
		fail(c, "Failed to delete filter", err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

func (h *AutomationHandler) ListActions(c *gin.Context) {
	var p repos.Paginate
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.service.ListActions(c.Request.Context(), workspaceOf(c), c.Param("id"), p)
	if err != nil {
		fail(c, "Failed to list actions", err)
		return
	}
	c.JSON(http.StatusOK, paginated(page))
}

func (h *AutomationHandler) AddAction(c *gin.Context) {
	var req services.ChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	row, err := h.service.AddAction(c.Request.Context(), workspaceOf(c), c.Param("id"), req)
	if err != nil {
		fail(c, "Failed to add action", err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *AutomationHandler) UpdateAction(c *gin.Context) {
	var req services.ChildUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	row, err := h.service.UpdateAction(c.Request.Context(), workspaceOf(c), c.Param("id"), &req)
	if err != nil {
		fail(c, "Failed to update action", err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *AutomationHandler) DeleteAction(c *gin.Context) {
	if err := h.service.DeleteAction(c.Request.Context(), workspaceOf(c), c.Param("id")); err != nil {
		fail(c, "Failed to delete action", err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

// Vocabulary 返回触发器/动作模板与可选值，供规则编辑器使用
func (h *AutomationHandler) Vocabulary(c *gin.Context) {
	c.JSON(http.StatusOK, automation.Vocabulary())
}

func (h *AutomationHandler) ListRuns(c *gin.Context) {
	var q services.RunQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.service.ListRuns(c.Request.Context(), workspaceOf(c), q)
	if err != nil {
		fail(c, "Failed to list runs", err)
		return
	}
	c.JSON(http.StatusOK, paginated(page))
}

// RegisterAutomationRoutes 注册路由
func RegisterAutomationRoutes(r *gin.RouterGroup, handler *AutomationHandler) {
	auto := r.Group("/automation")
	{
		auto.GET("/vocabulary", handler.Vocabulary)
		auto.GET("/runs", handler.ListRuns)
		auto.POST("/evaluate", handler.Evaluate)

		auto.GET("/rules", handler.ListRules)
		auto.POST("/rules", handler.CreateRule)
		auto.POST("/rules/match", handler.MatchRules)
		auto.GET("/rules/:id", handler.GetRule)
		auto.PATCH("/rules/:id", handler.UpdateRule)
		auto.DELETE("/rules/:id", handler.DeleteRule)

		auto.GET("/rules/:id/filters", handler.ListFilters)
		auto.POST("/rules/:id/filters", handler.AddFilter)
		auto.PATCH("/filters/:id", handler.UpdateFilter)
		auto.DELETE("/filters/:id", handler.DeleteFilter)

		auto.GET("/rules/:id/actions", handler.ListActions)
		auto.POST("/rules/:id/actions", handler.AddAction)
		auto.PATCH("/actions/:id", handler.UpdateAction)
		auto.DELETE("/actions/:id", handler.DeleteAction)
	}
}
