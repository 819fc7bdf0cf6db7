package services

import (
	"context"
	"fmt"

	"taskboard/internal/automation"
	"taskboard/internal/config"
	appmetrics "taskboard/internal/metrics"
	"taskboard/internal/models"

	"github.com/sirupsen/logrus"
)

// CardMutator is the part of CardService that rule actions drive.
type CardMutator interface {
	MoveCard(ctx context.Context, req *MoveCardRequest) (*models.Card, error)
	CopyCard(ctx context.Context, req *CopyCardRequest) (*models.Card, error)
	ArchiveCard(ctx context.Context, workspaceID, cardID, actorID string) (*models.Card, error)
	UnarchiveCard(ctx context.Context, workspaceID, cardID, actorID string) (*models.Card, error)
	AddLabel(ctx context.Context, workspaceID, cardID, label, actorID string) (*models.Card, error)
	RemoveLabel(ctx context.Context, workspaceID, cardID, label, actorID string) (*models.Card, error)
}

type automationRunKey struct{}

// withAutomation marks ctx as running on behalf of ruleID. Mutations made
// under such a context do not emit automation events.
func withAutomation(ctx context.Context, ruleID string) context.Context {
	return context.WithValue(ctx, automationRunKey{}, ruleID)
}

// AutomationRuleFrom returns the rule whose actions are running in ctx.
func AutomationRuleFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(automationRunKey{}).(string)
	return id, ok
}

// AutomationExecutor 执行命中规则的动作并记录执行结果
type AutomationExecutor struct {
	automation *AutomationService
	cards      CardMutator
	notifier   Notifier
	logger     *logrus.Logger
	dryRun     bool
}

func NewAutomationExecutor(svc *AutomationService, cards CardMutator, logger *logrus.Logger, cfg config.AutomationConfig) *AutomationExecutor {
	if logger == nil {
		logger = logrus.New()
	}
	return &AutomationExecutor{automation: svc, cards: cards, logger: logger, dryRun: cfg.DryRun}
}

func (e *AutomationExecutor) SetNotifier(n Notifier) {
	e.notifier = n
}

// Execute runs the actions of every fired rule in order and records one
// AutomationRun per rule. A failing action stops the remaining actions of
// that rule only.
func (e *AutomationExecutor) Execute(ctx context.Context, ev automation.EventContext, rules []models.RuleDetail) []models.AutomationRun {
	runs := make([]models.AutomationRun, 0, len(rules))
	for _, rule := range rules {
		run := models.AutomationRun{
			RuleID:      rule.ID,
			WorkspaceID: ev.WorkspaceID,
			CardID:      ev.CardID,
			Event:       string(ev.Type),
		}
		if e.dryRun {
			run.Status = models.RunSkipped
			run.Message = fmt.Sprintf("dry run: %d action(s)", len(rule.Action))
			e.logger.Infof("automation: dry run rule %s on %s", rule.ID, ev.Type)
		} else {
			e.runRule(withAutomation(ctx, rule.ID), ev, rule, &run)
		}
		if e.automation != nil {
			e.automation.RecordRun(ctx, &run)
		}
		runs = append(runs, run)
	}
	return runs
}

func (e *AutomationExecutor) runRule(ctx context.Context, ev automation.EventContext, rule models.RuleDetail, run *models.AutomationRun) {
	for _, act := range rule.Action {
		ran, err := e.runAction(ctx, ev, rule, act)
		if err != nil {
			appmetrics.IncAutomationAction(false)
			e.logger.Warnf("automation: rule %s action %s failed: %v", rule.ID, act.Type, err)
			run.Status = models.RunFailed
			run.Message = fmt.Sprintf("%s: %v", act.Type, err)
			return
		}
		if !ran {
			appmetrics.IncAutomationSkipped()
			continue
		}
		appmetrics.IncAutomationAction(true)
		run.Actions++
	}
	if run.Actions == 0 {
		run.Status = models.RunSkipped
		run.Message = "no runnable actions"
		return
	}
	run.Status = models.RunSuccess
}

// runAction reports ran=false for action types it does not know.
func (e *AutomationExecutor) runAction(ctx context.Context, ev automation.EventContext, rule models.RuleDetail, act models.AutomationRuleAction) (bool, error) {
	typ := automation.ActionType(act.Type)
	if _, known := automation.LookupAction(typ); !known {
		e.logger.Debugf("automation: skipping unsupported action %s", act.Type)
		return false, nil
	}
	cond := automation.StringMap(act.Condition)
	if err := automation.ValidateActionCondition(typ, cond); err != nil {
		return false, err
	}
	get := func(k automation.SelectionType) string { return cond[string(k)] }

	if typ == automation.ActionNotify {
		if e.notifier == nil {
			return false, nil
		}
		return true, e.notifier.Notify(ctx, AutomationNotice{
			WorkspaceID: ev.WorkspaceID,
			BoardID:     ev.BoardID,
			CardID:      ev.CardID,
			RuleID:      rule.ID,
			Message:     get(automation.SelectionFieldValue),
		})
	}

	if ev.CardID == "" {
		return false, fmt.Errorf("event %s carries no card", ev.Type)
	}
	if e.cards == nil {
		return false, fmt.Errorf("no card mutator configured")
	}
	actor := rule.CreatedBy
	verb := get(automation.SelectionAction)
	var err error
	switch typ {
	case automation.ActionTheCardToPositionList:
		if verb == automation.VerbCopy {
			_, err = e.cards.CopyCard(ctx, &CopyCardRequest{
				WorkspaceID: ev.WorkspaceID, CardID: ev.CardID, ActorID: actor,
				ListID: get(automation.SelectionListRequired), Position: get(automation.SelectionPosition),
			})
		} else {
			_, err = e.cards.MoveCard(ctx, &MoveCardRequest{
				WorkspaceID: ev.WorkspaceID, CardID: ev.CardID, ActorID: actor,
				ListID: get(automation.SelectionListRequired), Position: get(automation.SelectionPosition),
			})
		}
	case automation.ActionTheCardToPosition:
		_, err = e.cards.MoveCard(ctx, &MoveCardRequest{
			WorkspaceID: ev.WorkspaceID, CardID: ev.CardID, ActorID: actor,
			Position: get(automation.SelectionPosition),
		})
	case automation.ActionTheCard:
		if verb == automation.VerbUnarchive {
			_, err = e.cards.UnarchiveCard(ctx, ev.WorkspaceID, ev.CardID, actor)
		} else {
			_, err = e.cards.ArchiveCard(ctx, ev.WorkspaceID, ev.CardID, actor)
		}
	case automation.ActionTheLabel:
		label := get(automation.SelectionFieldValue)
		if verb == automation.VerbRemove {
			_, err = e.cards.RemoveLabel(ctx, ev.WorkspaceID, ev.CardID, label, actor)
		} else {
			_, err = e.cards.AddLabel(ctx, ev.WorkspaceID, ev.CardID, label, actor)
		}
	default:
		return false, nil
	}
	return err == nil, err
}
