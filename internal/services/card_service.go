package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"taskboard/internal/apperr"
	"taskboard/internal/automation"
	"taskboard/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CardService 卡片操作，每次变更后向自动化引擎发出事件
type CardService struct {
	db         *gorm.DB
	logger     *logrus.Logger
	automation *AutomationService
	executor   *AutomationExecutor
}

func NewCardService(db *gorm.DB, logger *logrus.Logger) *CardService {
	if logger == nil {
		logger = logrus.New()
	}
	return &CardService{db: db, logger: logger}
}

// SetAutomation wires the engine after construction; the executor itself
// depends on the card service.
func (s *CardService) SetAutomation(svc *AutomationService, exec *AutomationExecutor) {
	s.automation = svc
	s.executor = exec
}

type CreateCardRequest struct {
	WorkspaceID string   `json:"-"`
	ActorID     string   `json:"-"`
	ListID      string   `json:"list_id" binding:"required"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
	Position    string   `json:"position"`
}

// MoveCardRequest moves a card; an empty ListID keeps the current list.
type MoveCardRequest struct {
	WorkspaceID string `json:"-"`
	ActorID     string `json:"-"`
	CardID      string `json:"-"`
	ListID      string `json:"list_id"`
	Position    string `json:"position"`
}

type CopyCardRequest struct {
	WorkspaceID string `json:"-"`
	ActorID     string `json:"-"`
	CardID      string `json:"-"`
	ListID      string `json:"list_id" binding:"required"`
	Position    string `json:"position"`
}

type LabelRequest struct {
	Label string `json:"label" binding:"required"`
}

func (s *CardService) GetCard(ctx context.Context, workspaceID, id string) (*models.Card, error) {
	return s.loadCard(s.db.WithContext(ctx), workspaceID, id)
}

// ListCards returns the cards of a list in position order.
func (s *CardService) ListCards(ctx context.Context, workspaceID, listID string, includeArchived bool) ([]models.Card, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.loadList(db, workspaceID, listID); err != nil {
		return nil, err
	}
	q := db.Where("list_id = ?", listID)
	if !includeArchived {
		q = q.Where("archived = ?", false)
	}
	cards := []models.Card{}
	if err := q.Order("position ASC").Find(&cards).Error; err != nil {
		return nil, apperr.Internal("list cards", err)
	}
	return cards, nil
}

func (s *CardService) CreateCard(ctx context.Context, req *CreateCardRequest) (*models.Card, error) {
	if req == nil || strings.TrimSpace(req.Title) == "" {
		return nil, apperr.BadRequest("title is required")
	}
	if err := validPosition(req.Position); err != nil {
		return nil, err
	}
	var card models.Card
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		list, err := s.loadList(tx, req.WorkspaceID, req.ListID)
		if err != nil {
			return err
		}
		card = models.Card{
			ID:          uuid.NewString(),
			WorkspaceID: req.WorkspaceID,
			BoardID:     list.BoardID,
			ListID:      list.ID,
			Title:       strings.TrimSpace(req.Title),
			Description: req.Description,
			Labels:      dedupe(req.Labels),
			CreatedBy:   req.ActorID,
		}
		if card.Position, err = s.placeCard(tx, card.ID, list.ID, req.Position); err != nil {
			return err
		}
		if err := tx.Create(&card).Error; err != nil {
			return apperr.Internal("create card", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infof("card: %s created in list %s", card.ID, card.ListID)

	ev := s.event(ctx, automation.EventCreatedIn, &card, req.ActorID)
	s.dispatch(ctx, ev)
	ev.Type = automation.EventCardCreated
	s.dispatch(ctx, ev)
	return s.GetCard(ctx, req.WorkspaceID, card.ID)
}

func (s *CardService) MoveCard(ctx context.Context, req *MoveCardRequest) (*models.Card, error) {
	if req == nil {
		return nil, apperr.BadRequest("request required")
	}
	if err := validPosition(req.Position); err != nil {
		return nil, err
	}
	var before, after models.Card
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := s.loadCard(tx, req.WorkspaceID, req.CardID)
		if err != nil {
			return err
		}
		before = *card
		target := card.ListID
		boardID := card.BoardID
		if req.ListID != "" && req.ListID != card.ListID {
			list, err := s.loadList(tx, req.WorkspaceID, req.ListID)
			if err != nil {
				return err
			}
			target, boardID = list.ID, list.BoardID
		}
		pos, err := s.placeCard(tx, card.ID, target, req.Position)
		if err != nil {
			return err
		}
		if err := tx.Model(card).Updates(map[string]interface{}{
			"list_id":  target,
			"board_id": boardID,
			"position": pos,
		}).Error; err != nil {
			return apperr.Internal("move card", err)
		}
		after = *card
		after.ListID, after.BoardID, after.Position = target, boardID, pos
		return nil
	})
	if err != nil {
		return nil, err
	}

	if before.ListID == after.ListID {
		ev := s.event(ctx, automation.EventCardUpdated, &after, req.ActorID)
		ev.Position = positionOrDefault(req.Position)
		s.dispatch(ctx, ev)
	} else {
		s.logger.Infof("card: %s moved %s -> %s", after.ID, before.ListID, after.ListID)
		out := s.event(ctx, automation.EventCardMovedOutOf, &before, req.ActorID)
		s.dispatch(ctx, out)
		in := s.event(ctx, automation.EventCardMovedInto, &after, req.ActorID)
		in.Position = positionOrDefault(req.Position)
		s.dispatch(ctx, in)
	}
	return s.GetCard(ctx, req.WorkspaceID, after.ID)
}

func (s *CardService) CopyCard(ctx context.Context, req *CopyCardRequest) (*models.Card, error) {
	if req == nil {
		return nil, apperr.BadRequest("request required")
	}
	if err := validPosition(req.Position); err != nil {
		return nil, err
	}
	var clone models.Card
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src, err := s.loadCard(tx, req.WorkspaceID, req.CardID)
		if err != nil {
			return err
		}
		listID := req.ListID
		if listID == "" {
			listID = src.ListID
		}
		list, err := s.loadList(tx, req.WorkspaceID, listID)
		if err != nil {
			return err
		}
		clone = models.Card{
			ID:          uuid.NewString(),
			WorkspaceID: src.WorkspaceID,
			BoardID:     list.BoardID,
			ListID:      list.ID,
			Title:       src.Title,
			Description: src.Description,
			Labels:      dedupe(src.Labels),
			CreatedBy:   req.ActorID,
		}
		if clone.Position, err = s.placeCard(tx, clone.ID, list.ID, req.Position); err != nil {
			return err
		}
		if err := tx.Create(&clone).Error; err != nil {
			return apperr.Internal("copy card", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ev := s.event(ctx, automation.EventCardCopied, &clone, req.ActorID)
	ev.Position = positionOrDefault(req.Position)
	s.dispatch(ctx, ev)
	return s.GetCard(ctx, req.WorkspaceID, clone.ID)
}

func (s *CardService) ArchiveCard(ctx context.Context, workspaceID, cardID, actorID string) (*models.Card, error) {
	return s.setArchived(ctx, workspaceID, cardID, actorID, true)
}

func (s *CardService) UnarchiveCard(ctx context.Context, workspaceID, cardID, actorID string) (*models.Card, error) {
	return s.setArchived(ctx, workspaceID, cardID, actorID, false)
}

// setArchived is a no-op, without an event, when the flag already matches.
func (s *CardService) setArchived(ctx context.Context, workspaceID, cardID, actorID string, archived bool) (*models.Card, error) {
	db := s.db.WithContext(ctx)
	card, err := s.loadCard(db, workspaceID, cardID)
	if err != nil {
		return nil, err
	}
	if card.Archived == archived {
		return card, nil
	}
	if err := db.Model(card).Update("archived", archived).Error; err != nil {
		return nil, apperr.Internal("archive card", err)
	}
	card.Archived = archived
	evType := automation.EventCardArchived
	if !archived {
		evType = automation.EventCardUnarchived
	}
	s.dispatch(ctx, s.event(ctx, evType, card, actorID))
	return card, nil
}

func (s *CardService) AddLabel(ctx context.Context, workspaceID, cardID, label, actorID string) (*models.Card, error) {
	return s.changeLabel(ctx, workspaceID, cardID, label, actorID, true)
}

func (s *CardService) RemoveLabel(ctx context.Context, workspaceID, cardID, label, actorID string) (*models.Card, error) {
	return s.changeLabel(ctx, workspaceID, cardID, label, actorID, false)
}

func (s *CardService) changeLabel(ctx context.Context, workspaceID, cardID, label, actorID string, add bool) (*models.Card, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, apperr.BadRequest("label is required")
	}
	db := s.db.WithContext(ctx)
	card, err := s.loadCard(db, workspaceID, cardID)
	if err != nil {
		return nil, err
	}
	if card.HasLabel(label) == add {
		return card, nil
	}
	labels := make([]string, 0, len(card.Labels)+1)
	for _, l := range card.Labels {
		if l != label {
			labels = append(labels, l)
		}
	}
	if add {
		labels = append(labels, label)
	}
	card.Labels = labels
	if err := db.Model(card).Update("labels", card.Labels).Error; err != nil {
		return nil, apperr.Internal("update labels", err)
	}

	ev := s.event(ctx, automation.EventCardLabelAdded, card, actorID)
	ev.Set = automation.SetAddedTo
	if !add {
		ev.Type = automation.EventCardLabelRemoved
		ev.Set = automation.SetRemovedFrom
	}
	ev.Field = label
	s.dispatch(ctx, ev)
	return card, nil
}

// event builds the context for card, counting the open cards of its list.
func (s *CardService) event(ctx context.Context, typ automation.UserActionEvent, card *models.Card, actorID string) automation.EventContext {
	ev := automation.EventContext{
		Type:        typ,
		WorkspaceID: card.WorkspaceID,
		ActorID:     actorID,
		BoardID:     card.BoardID,
		ListID:      card.ListID,
		CardID:      card.ID,
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Card{}).
		Where("list_id = ? AND archived = ?", card.ListID, false).
		Count(&n).Error; err == nil {
		count := int(n)
		ev.NumericValue = &count
	}
	return ev
}

// dispatch evaluates ev and executes what fired. Mutations made by rule
// actions are not dispatched again.
func (s *CardService) dispatch(ctx context.Context, ev automation.EventContext) {
	if s.automation == nil {
		return
	}
	if ruleID, ok := AutomationRuleFrom(ctx); ok {
		s.logger.Debugf("card: %s from rule %s not re-evaluated", ev.Type, ruleID)
		return
	}
	fired, err := s.automation.Evaluate(ctx, ev)
	if err != nil {
		s.logger.Warnf("card: automation evaluate %s failed: %v", ev.Type, err)
		return
	}
	if len(fired) == 0 || s.executor == nil {
		return
	}
	s.executor.Execute(ctx, ev, fired)
}

func (s *CardService) loadList(db *gorm.DB, workspaceID, listID string) (*models.List, error) {
	if workspaceID == "" || listID == "" {
		return nil, apperr.BadRequest("workspace_id and list_id are required")
	}
	var list models.List
	err := db.Joins("JOIN boards ON boards.id = lists.board_id").
		Where("lists.id = ? AND boards.workspace_id = ?", listID, workspaceID).
		First(&list).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("list %s not found", listID)
	}
	if err != nil {
		return nil, apperr.Internal("load list", err)
	}
	return &list, nil
}

func (s *CardService) loadCard(db *gorm.DB, workspaceID, id string) (*models.Card, error) {
	if workspaceID == "" || id == "" {
		return nil, apperr.BadRequest("workspace_id and card id are required")
	}
	var card models.Card
	err := db.Where("id = ? AND workspace_id = ?", id, workspaceID).First(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("card %s not found", id)
	}
	if err != nil {
		return nil, apperr.Internal("load card", err)
	}
	return &card, nil
}

// placeCard returns the position for cardID in listID. Top shifts the other
// cards down by one; bottom appends after the current last card.
func (s *CardService) placeCard(tx *gorm.DB, cardID, listID, position string) (int, error) {
	if position == automation.PositionTop {
		if err := tx.Model(&models.Card{}).
			Where("list_id = ? AND id <> ?", listID, cardID).
			Update("position", gorm.Expr("position + 1")).Error; err != nil {
			return 0, apperr.Internal("shift cards", err)
		}
		return 0, nil
	}
	var last sql.NullInt64
	if err := tx.Model(&models.Card{}).
		Where("list_id = ? AND id <> ?", listID, cardID).
		Select("MAX(position)").Scan(&last).Error; err != nil {
		return 0, apperr.Internal("last position", err)
	}
	if !last.Valid {
		return 0, nil
	}
	return int(last.Int64) + 1, nil
}

func validPosition(p string) error {
	switch p {
	case "", automation.PositionTop, automation.PositionBottom:
		return nil
	}
	return apperr.BadRequest("invalid position %q", p)
}

func positionOrDefault(p string) string {
	if p == "" {
		return automation.PositionBottom
	}
	return p
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
