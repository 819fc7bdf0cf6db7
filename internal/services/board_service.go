package services

import (
	"context"
	"errors"
	"strings"

	"taskboard/internal/apperr"
	"taskboard/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BoardService 管理工作区、看板与列
type BoardService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewBoardService(db *gorm.DB, logger *logrus.Logger) *BoardService {
	if logger == nil {
		logger = logrus.New()
	}
	return &BoardService{db: db, logger: logger}
}

type BoardCreateRequest struct {
	WorkspaceID string `json:"-"`
	Name        string `json:"name" binding:"required"`
}

type ListCreateRequest struct {
	WorkspaceID string `json:"-"`
	BoardID     string `json:"-"`
	Name        string `json:"name" binding:"required"`
}

// BoardView is a board with its lists in display order.
type BoardView struct {
	models.Board
	Lists []models.List `json:"lists"`
}

// EnsureWorkspace creates the workspace row on first use.
func (s *BoardService) EnsureWorkspace(ctx context.Context, id, name string) (*models.Workspace, error) {
	if id == "" {
		return nil, apperr.BadRequest("workspace id is required")
	}
	if name == "" {
		name = id
	}
	ws := models.Workspace{ID: id, Name: name}
	if err := s.db.WithContext(ctx).Where(models.Workspace{ID: id}).FirstOrCreate(&ws).Error; err != nil {
		return nil, apperr.Internal("ensure workspace", err)
	}
	return &ws, nil
}

func (s *BoardService) CreateBoard(ctx context.Context, req *BoardCreateRequest) (*models.Board, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return nil, apperr.BadRequest("name is required")
	}
	if _, err := s.EnsureWorkspace(ctx, req.WorkspaceID, ""); err != nil {
		return nil, err
	}
	board := &models.Board{WorkspaceID: req.WorkspaceID, Name: strings.TrimSpace(req.Name)}
	if err := s.db.WithContext(ctx).Create(board).Error; err != nil {
		return nil, apperr.Internal("create board", err)
	}
	s.logger.Infof("board: %s created in workspace %s", board.ID, board.WorkspaceID)
	return board, nil
}

func (s *BoardService) GetBoard(ctx context.Context, workspaceID, id string) (*BoardView, error) {
	board, err := s.loadBoard(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	lists := []models.List{}
	if err := s.db.WithContext(ctx).Where("board_id = ?", id).Order("position ASC").Find(&lists).Error; err != nil {
		return nil, apperr.Internal("load lists", err)
	}
	return &BoardView{Board: *board, Lists: lists}, nil
}

func (s *BoardService) ListBoards(ctx context.Context, workspaceID string) ([]models.Board, error) {
	boards := []models.Board{}
	if err := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).Order("created_at ASC").Find(&boards).Error; err != nil {
		return nil, apperr.Internal("list boards", err)
	}
	return boards, nil
}

// CreateList appends a list at the end of the board.
func (s *BoardService) CreateList(ctx context.Context, req *ListCreateRequest) (*models.List, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return nil, apperr.BadRequest("name is required")
	}
	if _, err := s.loadBoard(ctx, req.WorkspaceID, req.BoardID); err != nil {
		return nil, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.List{}).Where("board_id = ?", req.BoardID).Count(&n).Error; err != nil {
		return nil, apperr.Internal("count lists", err)
	}
	list := &models.List{BoardID: req.BoardID, Name: strings.TrimSpace(req.Name), Position: int(n)}
	if err := s.db.WithContext(ctx).Create(list).Error; err != nil {
		return nil, apperr.Internal("create list", err)
	}
	return list, nil
}

func (s *BoardService) loadBoard(ctx context.Context, workspaceID, id string) (*models.Board, error) {
	if workspaceID == "" || id == "" {
		return nil, apperr.BadRequest("workspace_id and board id are required")
	}
	var board models.Board
	err := s.db.WithContext(ctx).Where("id = ? AND workspace_id = ?", id, workspaceID).First(&board).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("board %s not found", id)
	}
	if err != nil {
		return nil, apperr.Internal("load board", err)
	}
	return &board, nil
}
