package service

import (
	"context"
	"errors"
	"time"

	"github.com/leadgate/leadgate/internal/model"
	"github.com/leadgate/leadgate/internal/pkg/apperrors"
	"github.com/leadgate/leadgate/internal/repository"
)

// LineRepo is the LINE messaging persistence surface.
type LineRepo interface {
	CreateMessage(ctx context.Context, m *model.LineMessage) error
	GetMessage(ctx context.Context, id int64) (*model.LineMessage, error)
	UpdateMessage(ctx context.Context, m *model.LineMessage) error
	DeleteMessage(ctx context.Context, id int64) (*model.LineMessage, error)
	ListMessages(ctx context.Context, skip, limit int) ([]*model.LineMessage, error)

	CreateUser(ctx context.Context, u *model.LineUser) error
	GetUser(ctx context.Context, lineUserID string) (*model.LineUser, error)
	UpdateUser(ctx context.Context, u *model.LineUser) error
	DeleteUser(ctx context.Context, lineUserID string) (*model.LineUser, error)
	ListUsers(ctx context.Context, skip, limit int) ([]*model.LineUser, error)
}

type LineMessageCreateRequest struct {
	LineUserID  string `json:"user_id" binding:"required"`
	MessageText string `json:"message_text"`
	MessageType string `json:"message_type"`
	StickerID   string `json:"sticker_id"`
	StickerURL  string `json:"sticker_url"`
	ReplyToken  string `json:"reply_token"`
	IsRead      bool   `json:"is_read"`
}

type LineMessageUpdateRequest struct {
	MessageText *string `json:"message_text"`
	MessageType *string `json:"message_type"`
	StickerID   *string `json:"sticker_id"`
	StickerURL  *string `json:"sticker_url"`
	IsRead      *bool   `json:"is_read"`
}

// LineUserUpsertRequest creates or refreshes a LINE contact profile.
type LineUserUpsertRequest struct {
	LineUserID    string     `json:"user_id" binding:"required"`
	DisplayName   string     `json:"display_name"`
	PictureURL    string     `json:"picture_url"`
	StatusMessage string     `json:"status_message"`
	LastTyping    *time.Time `json:"last_typing"`
}

// LineService owns the LINE messaging records and feeds the chat log.
type LineService struct {
	repo LineRepo
	chat *ChatLogger
}

func NewLineService(repo LineRepo, chat *ChatLogger) *LineService {
	return &LineService{repo: repo, chat: chat}
}

// CreateMessage stores one relayed chat message and records it in the chat
// log. Messages arriving with a reply token are inbound from LINE.
func (s *LineService) CreateMessage(ctx context.Context, req LineMessageCreateRequest, actorID *int64) (*model.LineMessage, error) {
	msg := &model.LineMessage{
		LineUserID:  req.LineUserID,
		MessageText: req.MessageText,
		MessageType: req.MessageType,
		StickerID:   req.StickerID,
		StickerURL:  req.StickerURL,
		ReplyToken:  req.ReplyToken,
		IsRead:      req.IsRead,
	}
	if msg.MessageType == "" {
		msg.MessageType = "text"
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to store line message", err)
	}
	direction := "outbound"
	if msg.ReplyToken != "" {
		direction = "inbound"
	}
	s.chat.Message(ctx, msg.LineUserID, direction, msg.MessageType, msg.MessageText, actorID)
	return msg, nil
}

func (s *LineService) GetMessage(ctx context.Context, id int64) (*model.LineMessage, error) {
	msg, err := s.repo.GetMessage(ctx, id)
	if err != nil {
		return nil, mapLineErr(err)
	}
	return msg, nil
}

func (s *LineService) UpdateMessage(ctx context.Context, id int64, req LineMessageUpdateRequest) (*model.LineMessage, error) {
	msg, err := s.repo.GetMessage(ctx, id)
	if err != nil {
		return nil, mapLineErr(err)
	}
	if req.MessageText != nil {
		msg.MessageText = *req.MessageText
	}
	if req.MessageType != nil {
		msg.MessageType = *req.MessageType
	}
	if req.StickerID != nil {
		msg.StickerID = *req.StickerID
	}
	if req.StickerURL != nil {
		msg.StickerURL = *req.StickerURL
	}
	if req.IsRead != nil {
		msg.IsRead = *req.IsRead
	}
	if err := s.repo.UpdateMessage(ctx, msg); err != nil {
		return nil, mapLineErr(err)
	}
	return msg, nil
}

func (s *LineService) DeleteMessage(ctx context.Context, id int64, actorID *int64) (*model.LineMessage, error) {
	msg, err := s.repo.DeleteMessage(ctx, id)
	if err != nil {
		return nil, mapLineErr(err)
	}
	s.chat.Moderation(ctx, msg.LineUserID, "message_deleted", "", actorID)
	return msg, nil
}

func (s *LineService) ListMessages(ctx context.Context, page, size int) ([]*model.LineMessage, error) {
	page, size = normalizePage(page, size)
	messages, err := s.repo.ListMessages(ctx, (page-1)*size, size)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to list line messages", err)
	}
	return messages, nil
}

// UpsertUser creates the contact on first sight and refreshes the profile
// afterwards. A first sight is recorded as a follow event.
func (s *LineService) UpsertUser(ctx context.Context, req LineUserUpsertRequest) (*model.LineUser, error) {
	existing, err := s.repo.GetUser(ctx, req.LineUserID)
	if errors.Is(err, repository.ErrLineUserNotFound) {
		user := &model.LineUser{
			LineUserID:    req.LineUserID,
			DisplayName:   req.DisplayName,
			PictureURL:    req.PictureURL,
			StatusMessage: req.StatusMessage,
			LastTyping:    req.LastTyping,
		}
		if err := s.repo.CreateUser(ctx, user); err != nil {
			return nil, apperrors.New(apperrors.ErrInternal, "failed to store line user", err)
		}
		s.chat.Event(ctx, user.LineUserID, "follow")
		return user, nil
	}
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to load line user", err)
	}

	if req.DisplayName != "" {
		existing.DisplayName = req.DisplayName
	}
	if req.PictureURL != "" {
		existing.PictureURL = req.PictureURL
	}
	if req.StatusMessage != "" {
		existing.StatusMessage = req.StatusMessage
	}
	if req.LastTyping != nil {
		existing.LastTyping = req.LastTyping
	}
	if err := s.repo.UpdateUser(ctx, existing); err != nil {
		return nil, mapLineErr(err)
	}
	return existing, nil
}

func (s *LineService) GetUser(ctx context.Context, lineUserID string) (*model.LineUser, error) {
	user, err := s.repo.GetUser(ctx, lineUserID)
	if err != nil {
		return nil, mapLineErr(err)
	}
	return user, nil
}

// MarkTyping stamps the contact's last typing activity.
func (s *LineService) MarkTyping(ctx context.Context, lineUserID string) (*model.LineUser, error) {
	user, err := s.repo.GetUser(ctx, lineUserID)
	if err != nil {
		return nil, mapLineErr(err)
	}
	now := time.Now().UTC()
	user.LastTyping = &now
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, mapLineErr(err)
	}
	s.chat.Event(ctx, lineUserID, "typing")
	return user, nil
}

func (s *LineService) DeleteUser(ctx context.Context, lineUserID string, actorID *int64) (*model.LineUser, error) {
	user, err := s.repo.DeleteUser(ctx, lineUserID)
	if err != nil {
		return nil, mapLineErr(err)
	}
	s.chat.Moderation(ctx, lineUserID, "user_removed", "", actorID)
	return user, nil
}

func (s *LineService) ListUsers(ctx context.Context, page, size int) ([]*model.LineUser, error) {
	page, size = normalizePage(page, size)
	users, err := s.repo.ListUsers(ctx, (page-1)*size, size)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to list line users", err)
	}
	return users, nil
}

func mapLineErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrLineMessageNotFound):
		return apperrors.NewNotFound("line message not found")
	case errors.Is(err, repository.ErrLineUserNotFound):
		return apperrors.NewNotFound("line user not found")
	}
	return apperrors.New(apperrors.ErrInternal, "failed to access line records", err)
}
