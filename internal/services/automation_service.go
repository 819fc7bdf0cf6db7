package services

import (
	"context"
	"errors"
	"time"

	"taskboard/internal/apperr"
	"taskboard/internal/automation"
	"taskboard/internal/config"
	appmetrics "taskboard/internal/metrics"
	"taskboard/internal/models"
	"taskboard/internal/observability"
	"taskboard/internal/repos"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// AutomationService 管理自动化规则并为事件解析命中的规则
type AutomationService struct {
	db      *gorm.DB
	logger  *logrus.Logger
	cfg     config.AutomationConfig
	rules   repos.RuleRepo
	filters repos.FilterRepo
	actions repos.ActionRepo
	runs    repos.RunRepo
}

func NewAutomationService(db *gorm.DB, logger *logrus.Logger, cfg config.AutomationConfig) *AutomationService {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.MatchTimeout <= 0 {
		cfg.MatchTimeout = 5 * time.Second
	}
	return &AutomationService{
		db:      db,
		logger:  logger,
		cfg:     cfg,
		rules:   repos.NewRuleRepo(db, logger),
		filters: repos.NewFilterRepo(db, logger),
		actions: repos.NewActionRepo(db, logger),
		runs:    repos.NewRunRepo(db, logger),
	}
}

// ChildRequest describes one filter or action row.
type ChildRequest struct {
	GroupType string                 `json:"group_type"`
	Type      string                 `json:"type" binding:"required"`
	Condition map[string]interface{} `json:"condition"`
}

// RuleCreateRequest 创建规则（含过滤条件与动作）的请求
type RuleCreateRequest struct {
	WorkspaceID string                 `json:"-"`
	CreatedBy   string                 `json:"-"`
	GroupType   string                 `json:"group_type"`
	Type        string                 `json:"type" binding:"required"`
	Condition   map[string]interface{} `json:"condition"`
	Filters     []ChildRequest         `json:"filters"`
	Actions     []ChildRequest         `json:"actions"`
}

// RuleUpdateRequest is a partial update; omitted fields are left as is.
type RuleUpdateRequest struct {
	GroupType *string                 `json:"group_type"`
	Type      *string                 `json:"type"`
	Condition *map[string]interface{} `json:"condition"`
}

// ChildUpdateRequest is RuleUpdateRequest for filter and action rows.
type ChildUpdateRequest RuleUpdateRequest

// RuleQuery narrows ListRules.
type RuleQuery struct {
	GroupType string            `form:"group_type"`
	Type      string            `form:"type"`
	Condition map[string]string `form:"-"`
	repos.Paginate
}

// RuleBundle is a rule with all of its filter and action rows.
type RuleBundle struct {
	models.AutomationRule
	Filters []models.AutomationRuleFilter `json:"filters"`
	Actions []models.AutomationRuleAction `json:"actions"`
}

// CreateRule validates the request and writes the rule, its filters and its
// actions in one transaction.
func (s *AutomationService) CreateRule(ctx context.Context, req *RuleCreateRequest) (*RuleBundle, error) {
	if req == nil {
		return nil, apperr.BadRequest("request required")
	}
	if req.WorkspaceID == "" {
		return nil, apperr.BadRequest("workspace_id is required")
	}
	trigger := automation.TriggerType(req.Type)
	meta, ok := automation.LookupTrigger(trigger)
	if !ok {
		return nil, apperr.BadRequest("unsupported trigger type: %s", req.Type)
	}
	cond, err := canonicalCondition(trigger, automation.StringMap(req.Condition))
	if err != nil {
		return nil, err
	}
	actionRows, err := s.actionRows(req.Actions)
	if err != nil {
		return nil, err
	}
	groupType := req.GroupType
	if groupType == "" {
		groupType = meta.GroupType
	}

	rule := &models.AutomationRule{
		WorkspaceID: req.WorkspaceID,
		GroupType:   groupType,
		Type:        req.Type,
		Condition:   models.JSONCondition(cond),
		CreatedBy:   req.CreatedBy,
	}
	filterRows := filterRows(req.Filters)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.rules.Create(ctx, tx, rule); err != nil {
			return err
		}
		for _, f := range filterRows {
			f.RuleID = rule.ID
		}
		for _, a := range actionRows {
			a.RuleID = rule.ID
		}
		if _, err := s.filters.BulkCreate(ctx, tx, filterRows); err != nil {
			return err
		}
		_, err := s.actions.BulkCreate(ctx, tx, actionRows)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infof("automation: rule %s (%s) created in workspace %s", rule.ID, rule.Type, rule.WorkspaceID)

	bundle := &RuleBundle{AutomationRule: *rule}
	for _, f := range filterRows {
		bundle.Filters = append(bundle.Filters, *f)
	}
	for _, a := range actionRows {
		bundle.Actions = append(bundle.Actions, *a)
	}
	if bundle.Filters == nil {
		bundle.Filters = []models.AutomationRuleFilter{}
	}
	if bundle.Actions == nil {
		bundle.Actions = []models.AutomationRuleAction{}
	}
	return bundle, nil
}

// canonicalCondition parses raw into the typed variant of trigger and returns
// its storable form. Keys outside the trigger template are dropped.
func canonicalCondition(trigger automation.TriggerType, raw map[string]string) (map[string]string, error) {
	parsed, err := automation.ParseCondition(trigger, raw)
	if err != nil {
		return nil, apperr.Invalid(err)
	}
	return parsed.Map(), nil
}

func filterRows(reqs []ChildRequest) []*models.AutomationRuleFilter {
	rows := make([]*models.AutomationRuleFilter, 0, len(reqs))
	for _, f := range reqs {
		group := f.GroupType
		if group == "" {
			group = automation.GroupCard
		}
		rows = append(rows, &models.AutomationRuleFilter{
			GroupType: group,
			Type:      f.Type,
			Condition: models.JSONCondition(automation.StringMap(f.Condition)),
		})
	}
	return rows
}

// actionRows validates known action templates. Unknown types are stored as
// given and skipped at execution time.
func (s *AutomationService) actionRows(reqs []ChildRequest) ([]*models.AutomationRuleAction, error) {
	rows := make([]*models.AutomationRuleAction, 0, len(reqs))
	for _, a := range reqs {
		if a.Type == "" {
			return nil, apperr.BadRequest("action type is required")
		}
		cond := automation.StringMap(a.Condition)
		if _, known := automation.LookupAction(automation.ActionType(a.Type)); known {
			if err := automation.ValidateActionCondition(automation.ActionType(a.Type), cond); err != nil {
				return nil, apperr.Invalid(err)
			}
		}
		group := a.GroupType
		if group == "" {
			group = automation.GroupCard
		}
		rows = append(rows, &models.AutomationRuleAction{
			GroupType: group,
			Type:      a.Type,
			Condition: models.JSONCondition(cond),
		})
	}
	return rows, nil
}

// GetRule returns the rule scoped to workspaceID with its children.
func (s *AutomationService) GetRule(ctx context.Context, workspaceID, id string) (*RuleBundle, error) {
	rule, err := s.ownedRule(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	filters, err := s.filters.GetByRuleID(ctx, nil, rule.ID)
	if err != nil {
		return nil, err
	}
	actions, err := s.actions.GetByRuleID(ctx, nil, rule.ID)
	if err != nil {
		return nil, err
	}
	return &RuleBundle{AutomationRule: *rule, Filters: filters, Actions: actions}, nil
}

func (s *AutomationService) ownedRule(ctx context.Context, workspaceID, id string) (*models.AutomationRule, error) {
	if workspaceID == "" || id == "" {
		return nil, apperr.BadRequest("workspace_id and rule id are required")
	}
	return s.rules.Get(ctx, nil, repos.RuleFilter{ID: id, WorkspaceID: workspaceID})
}

func (s *AutomationService) ListRules(ctx context.Context, workspaceID string, q RuleQuery) (repos.Page[models.AutomationRule], error) {
	if workspaceID == "" {
		return repos.Page[models.AutomationRule]{}, apperr.BadRequest("workspace_id is required")
	}
	return s.rules.GetList(ctx, nil, repos.RuleFilter{
		WorkspaceID: workspaceID,
		GroupType:   q.GroupType,
		Type:        q.Type,
		Condition:   q.Condition,
	}, s.page(q.Paginate))
}

// UpdateRule applies a partial update. When the type or condition changes the
// resulting rule is validated against its trigger template.
func (s *AutomationService) UpdateRule(ctx context.Context, workspaceID, id string, req *RuleUpdateRequest) (*models.AutomationRule, error) {
	if req == nil {
		return nil, apperr.BadRequest("request required")
	}
	current, err := s.ownedRule(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	patch := repos.RuleUpdate{GroupType: req.GroupType, Type: req.Type}
	if req.Type != nil || req.Condition != nil {
		typ := current.Type
		if req.Type != nil {
			typ = *req.Type
		}
		raw := automation.StringMap(current.Condition)
		if req.Condition != nil {
			raw = automation.StringMap(*req.Condition)
		}
		cond, err := canonicalCondition(automation.TriggerType(typ), raw)
		if err != nil {
			return nil, err
		}
		patch.Condition = &cond
	}
	if err := s.rules.Update(ctx, nil, repos.RuleFilter{ID: id, WorkspaceID: workspaceID}, patch); err != nil {
		return nil, err
	}
	return s.rules.Get(ctx, nil, repos.RuleFilter{ID: id})
}

func (s *AutomationService) DeleteRule(ctx context.Context, workspaceID, id string) error {
	if workspaceID == "" || id == "" {
		return apperr.BadRequest("workspace_id and rule id are required")
	}
	if _, err := s.rules.Delete(ctx, nil, repos.RuleFilter{ID: id, WorkspaceID: workspaceID}); err != nil {
		return err
	}
	s.logger.Infof("automation: rule %s deleted", id)
	return nil
}

func (s *AutomationService) ListFilters(ctx context.Context, workspaceID, ruleID string, p repos.Paginate) (repos.Page[models.AutomationRuleFilter], error) {
	if _, err := s.ownedRule(ctx, workspaceID, ruleID); err != nil {
		return repos.Page[models.AutomationRuleFilter]{}, err
	}
	return s.filters.GetList(ctx, nil, repos.ChildFilter{RuleID: ruleID}, s.page(p))
}

func (s *AutomationService) AddFilter(ctx context.Context, workspaceID, ruleID string, req ChildRequest) (*models.AutomationRuleFilter, error) {
	if _, err := s.ownedRule(ctx, workspaceID, ruleID); err != nil {
		return nil, err
	}
	if req.Type == "" {
		return nil, apperr.BadRequest("filter type is required")
	}
	row := filterRows([]ChildRequest{req})[0]
	row.RuleID = ruleID
	return s.filters.Create(ctx, nil, row)
}

func (s *AutomationService) UpdateFilter(ctx context.Context, workspaceID, id string, req *ChildUpdateRequest) (*models.AutomationRuleFilter, error) {
	row, err := s.filters.Get(ctx, nil, repos.ChildFilter{ID: id})
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedRule(ctx, workspaceID, row.RuleID); err != nil {
		return nil, asChildNotFound(err, "automation_rule_filter")
	}
	if err := s.filters.Update(ctx, nil, repos.ChildFilter{ID: id}, childPatch(req)); err != nil {
		return nil, err
	}
	return s.filters.Get(ctx, nil, repos.ChildFilter{ID: id})
}

func (s *AutomationService) DeleteFilter(ctx context.Context, workspaceID, id string) error {
	row, err := s.filters.Get(ctx, nil, repos.ChildFilter{ID: id})
	if err != nil {
		return err
	}
	if _, err := s.ownedRule(ctx, workspaceID, row.RuleID); err != nil {
		return asChildNotFound(err, "automation_rule_filter")
	}
	_, err = s.filters.Delete(ctx, nil, repos.ChildFilter{ID: id})
	return err
}

func (s *AutomationService) ListActions(ctx context.Context, workspaceID, ruleID string, p repos.Paginate) (repos.Page[models.AutomationRuleAction], error) {
	if _, err := s.ownedRule(ctx, workspaceID, ruleID); err != nil {
		return repos.Page[models.AutomationRuleAction]{}, err
	}
	return s.actions.GetList(ctx, nil, repos.ChildFilter{RuleID: ruleID}, s.page(p))
}

func (s *AutomationService) AddAction(ctx context.Context, workspaceID, ruleID string, req ChildRequest) (*models.AutomationRuleAction, error) {
	if _, err := s.ownedRule(ctx, workspaceID, ruleID); err != nil {
		return nil, err
	}
	rows, err := s.actionRows([]ChildRequest{req})
	if err != nil {
		return nil, err
	}
	rows[0].RuleID = ruleID
	return s.actions.Create(ctx, nil, rows[0])
}

func (s *AutomationService) UpdateAction(ctx context.Context, workspaceID, id string, req *ChildUpdateRequest) (*models.AutomationRuleAction, error) {
	row, err := s.actions.Get(ctx, nil, repos.ChildFilter{ID: id})
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedRule(ctx, workspaceID, row.RuleID); err != nil {
		return nil, asChildNotFound(err, "automation_rule_action")
	}
	if req != nil && (req.Type != nil || req.Condition != nil) {
		typ := row.Type
		if req.Type != nil {
			typ = *req.Type
		}
		cond := automation.StringMap(row.Condition)
		if req.Condition != nil {
			cond = automation.StringMap(*req.Condition)
		}
		if _, known := automation.LookupAction(automation.ActionType(typ)); known {
			if err := automation.ValidateActionCondition(automation.ActionType(typ), cond); err != nil {
				return nil, apperr.Invalid(err)
			}
		}
	}
	if err := s.actions.Update(ctx, nil, repos.ChildFilter{ID: id}, childPatch(req)); err != nil {
		return nil, err
	}
	return s.actions.Get(ctx, nil, repos.ChildFilter{ID: id})
}

func (s *AutomationService) DeleteAction(ctx context.Context, workspaceID, id string) error {
	row, err := s.actions.Get(ctx, nil, repos.ChildFilter{ID: id})
	if err != nil {
		return err
	}
	if _, err := s.ownedRule(ctx, workspaceID, row.RuleID); err != nil {
		return asChildNotFound(err, "automation_rule_action")
	}
	_, err = s.actions.Delete(ctx, nil, repos.ChildFilter{ID: id})
	return err
}

func childPatch(req *ChildUpdateRequest) repos.ChildUpdate {
	if req == nil {
		return repos.ChildUpdate{}
	}
	patch := repos.ChildUpdate{GroupType: req.GroupType, Type: req.Type}
	if req.Condition != nil {
		cond := automation.StringMap(*req.Condition)
		patch.Condition = &cond
	}
	return patch
}

// asChildNotFound hides rows of other workspaces behind the child's own 404.
func asChildNotFound(err error, entity string) error {
	if apperr.IsNotFound(err) {
		return apperr.NotFound("%s not found", entity)
	}
	return err
}

// MatchRules runs the union match for f.Condition and returns every candidate
// with its actions attached. The group, type and OR/NOT scopes of f narrow the
// candidates; f.WorkspaceID is always replaced by workspaceID.
func (s *AutomationService) MatchRules(ctx context.Context, workspaceID string, f repos.RuleFilter) ([]models.RuleDetail, error) {
	if workspaceID == "" {
		return nil, apperr.BadRequest("workspace_id is required")
	}
	f.WorkspaceID = workspaceID
	ctx, cancel := context.WithTimeout(ctx, s.cfg.MatchTimeout)
	defer cancel()
	return s.rules.MatchRules(ctx, nil, f)
}

// Evaluate resolves the rules that fire for ev: union match on the event
// probe, then every candidate must accept the event type, satisfy its own
// condition and satisfy each of its filter rows.
func (s *AutomationService) Evaluate(ctx context.Context, ev automation.EventContext) ([]models.RuleDetail, error) {
	ctx, span := observability.StartSpan(ctx, "automation.evaluate",
		attribute.String("event", string(ev.Type)),
		attribute.String("workspace_id", ev.WorkspaceID))
	defer span.End()

	candidates, err := s.MatchRules(ctx, ev.WorkspaceID, repos.RuleFilter{Condition: ev.Probe()})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warnf("automation: match timed out for %s", ev.Type)
		}
		return nil, err
	}
	if len(candidates) == 0 {
		appmetrics.IncAutomationMatch(0)
		return candidates, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	filtersByRule, err := s.filters.GetByRuleIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}

	fired := make([]models.RuleDetail, 0, len(candidates))
	for _, c := range candidates {
		if !automation.TriggerAccepts(automation.TriggerType(c.Type), ev.Type) {
			continue
		}
		if !automation.ConditionHolds(automation.StringMap(c.Condition), c.CreatedBy, ev) {
			continue
		}
		ok := true
		for _, f := range filtersByRule[c.ID] {
			if !automation.ConditionHolds(automation.StringMap(f.Condition), c.CreatedBy, ev) {
				ok = false
				break
			}
		}
		if ok {
			fired = append(fired, c)
		}
	}
	span.SetAttributes(attribute.Int("candidates", len(candidates)), attribute.Int("fired", len(fired)))
	appmetrics.IncAutomationMatch(len(fired))
	s.logger.Debugf("automation: %s matched %d/%d rules", ev.Type, len(fired), len(candidates))
	return fired, nil
}

// RecordRun stores an audit row. Failures are logged, never returned.
func (s *AutomationService) RecordRun(ctx context.Context, run *models.AutomationRun) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if _, err := s.runs.Create(ctx, nil, run); err != nil {
		s.logger.Warnf("automation: record run failed: %v", err)
	}
}

// RunQuery narrows ListRuns.
type RunQuery struct {
	RuleID string `form:"rule_id"`
	CardID string `form:"card_id"`
	Status string `form:"status"`
	Event  string `form:"event"`
	repos.Paginate
}

func (s *AutomationService) ListRuns(ctx context.Context, workspaceID string, q RunQuery) (repos.Page[models.AutomationRun], error) {
	if workspaceID == "" {
		return repos.Page[models.AutomationRun]{}, apperr.BadRequest("workspace_id is required")
	}
	return s.runs.GetList(ctx, nil, repos.RunFilter{
		WorkspaceID: workspaceID,
		RuleID:      q.RuleID,
		CardID:      q.CardID,
		Status:      q.Status,
		Event:       q.Event,
	}, s.page(q.Paginate))
}

// page applies the configured page size defaults before the repository clamp.
func (s *AutomationService) page(p repos.Paginate) repos.Paginate {
	if p.Limit <= 0 && s.cfg.DefaultPageSize > 0 {
		p.Limit = s.cfg.DefaultPageSize
	}
	if s.cfg.MaxPageSize > 0 && p.Limit > s.cfg.MaxPageSize {
		p.Limit = s.cfg.MaxPageSize
	}
	return p
}
