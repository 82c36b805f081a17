package services

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/search"
	"chat-hub/errors"
	"chat-hub/moderation"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Below this confidence the detected language is not recorded.
const minLanguageConfidence = 0.5

type MessageSettings struct {
	MaxContentLength int
	DefaultPageSize  int
	MaxPageSize      int
}

// MessageService owns the lifecycle of a message: creation, edition and
// soft deletion. Nothing here broadcasts, the caller does once the store
// write succeeded.
type MessageService struct {
	messages  contract.IMessageRepository
	index     contract.IMessageIndex
	queue     contract.IIndexQueue
	moderator *moderation.Moderator
	settings  MessageSettings
	log       *slog.Logger
	now       func() time.Time
	newID     func() string
}

func NewMessageService(
	messages contract.IMessageRepository,
	index contract.IMessageIndex,
	queue contract.IIndexQueue,
	moderator *moderation.Moderator,
	settings MessageSettings,
	log *slog.Logger,
) *MessageService {
	return &MessageService{
		messages:  messages,
		index:     index,
		queue:     queue,
		moderator: moderator,
		settings:  settings,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Create validates a draft, resolves its thread parent and persists it.
// A reply to a reply is attached to the root of the thread.
func (s *MessageService) Create(ctx context.Context, sender domain.User, draft domain.Draft) (domain.Message, error) {
	if sender.ID == "" {
		return domain.Message{}, errors.ErrUnauthenticated
	}
	if err := s.validateDraft(&draft); err != nil {
		return domain.Message{}, err
	}

	replyTo, err := s.threadRoot(ctx, draft)
	if err != nil {
		return domain.Message{}, err
	}

	content := s.moderate(draft.Content, sender.ID)
	now := s.now().UTC()
	message := domain.Message{
		ID:          s.newID(),
		Content:     content,
		SenderID:    sender.ID,
		SenderName:  sender.Name,
		Kind:        draft.Kind,
		RoomID:      draft.RoomID,
		ProjectID:   draft.ProjectID,
		TaskID:      draft.TaskID,
		ReplyToID:   replyTo,
		Mentions:    draft.Mentions,
		Attachments: draft.Attachments,
		Language:    detectLanguage(content),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err = s.messages.Save(ctx, message); err != nil {
		return domain.Message{}, storeFailure(err)
	}
	s.submit(contract.IndexJob{Message: message})
	return message, nil
}

// Update replaces the content of a live message. Only its sender may edit it
// and a deleted message can never come back.
func (s *MessageService) Update(ctx context.Context, messageID, content, requestorID string) (domain.Message, error) {
	message, err := s.ownedLiveMessage(ctx, messageID, requestorID)
	if err != nil {
		return domain.Message{}, err
	}
	if err = s.validateContent(content); err != nil {
		return domain.Message{}, err
	}

	message.Content = s.moderate(content, requestorID)
	message.Language = detectLanguage(message.Content)
	message.IsEdited = true
	message.UpdatedAt = s.later(message.UpdatedAt)

	if err = s.messages.Update(ctx, message); err != nil {
		return domain.Message{}, storeFailure(err)
	}
	s.submit(contract.IndexJob{Message: message})
	return message, nil
}

// SoftDelete stamps the deletion time. Replies are left untouched.
func (s *MessageService) SoftDelete(ctx context.Context, messageID, requestorID string) (domain.Message, error) {
	message, err := s.ownedLiveMessage(ctx, messageID, requestorID)
	if err != nil {
		return domain.Message{}, err
	}

	deletedAt := s.later(message.UpdatedAt)
	message.DeletedAt = &deletedAt
	message.UpdatedAt = deletedAt

	if err = s.messages.Update(ctx, message); err != nil {
		return domain.Message{}, storeFailure(err)
	}
	s.submit(contract.IndexJob{Message: message, Remove: true})
	return message, nil
}

// Find returns a live message.
func (s *MessageService) Find(ctx context.Context, messageID string) (domain.Message, error) {
	message, err := s.messages.Find(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if message.IsDeleted() {
		return domain.Message{}, fmt.Errorf("message %s: %w", messageID, errors.ErrNotFound)
	}
	return message, nil
}

// ListForRoom returns a newest-first page of live messages. Pages start at 1.
func (s *MessageService) ListForRoom(ctx context.Context, roomID string, page, pageSize int) ([]domain.Message, error) {
	page = max(page, 1)
	if pageSize <= 0 {
		pageSize = s.settings.DefaultPageSize
	}
	if s.settings.MaxPageSize > 0 {
		pageSize = min(pageSize, s.settings.MaxPageSize)
	}

	messages, err := s.messages.ListByRoom(ctx, roomID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, storeFailure(err)
	}
	return lo.Filter(messages, func(m domain.Message, _ int) bool { return !m.IsDeleted() }), nil
}

// Search resolves index hits back to live messages of the room.
// Hits deleted after indexing are skipped.
func (s *MessageService) Search(ctx context.Context, roomID string, query search.Query) ([]domain.Message, error) {
	if query.Empty() {
		return nil, fmt.Errorf("%w: empty search", errors.ErrValidation)
	}
	if query.Limit <= 0 {
		query.Limit = search.DefaultLimit
	}
	query.Limit = min(query.Limit, search.MaxLimit)
	if s.settings.MaxPageSize > 0 {
		query.Limit = min(query.Limit, s.settings.MaxPageSize)
	}
	ids, err := s.index.Search(ctx, roomID, query)
	if err != nil {
		return nil, err
	}

	var found []domain.Message
	for _, id := range ids {
		message, err := s.messages.Find(ctx, id)
		if err != nil {
			s.log.Debug("Search hit not found", "message_id", id, "error", err)
			continue
		}
		if message.IsDeleted() || !message.InRoom(roomID) {
			continue
		}
		found = append(found, message)
	}
	return found, nil
}

func (s *MessageService) validateDraft(draft *domain.Draft) error {
	if err := validateStruct(draft); err != nil {
		return err
	}
	if err := s.validateContent(draft.Content); err != nil {
		return err
	}
	for i, attachment := range draft.Attachments {
		if attachment.MimeType == "" {
			continue
		}
		mime := mimetype.Lookup(attachment.MimeType)
		if mime == nil {
			return fmt.Errorf("%w: unsupported attachment type %q", errors.ErrValidation, attachment.MimeType)
		}
		draft.Attachments[i].MimeType = mime.String()
	}

	switch {
	case draft.Kind == "":
		draft.Kind = inferKind(draft.Attachments)
	case !draft.Kind.Valid():
		return fmt.Errorf("%w: unknown message kind %q", errors.ErrValidation, draft.Kind)
	}
	draft.Mentions = lo.Uniq(lo.Compact(draft.Mentions))
	return nil
}

func (s *MessageService) validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is empty", errors.ErrValidation)
	}
	if s.settings.MaxContentLength > 0 && utf8.RuneCountInString(content) > s.settings.MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", errors.ErrValidation, s.settings.MaxContentLength)
	}
	return nil
}

// threadRoot checks the parent lives in the same room and flattens deeper
// replies onto the first message of the thread.
func (s *MessageService) threadRoot(ctx context.Context, draft domain.Draft) (*string, error) {
	if draft.ReplyToID == nil {
		return nil, nil
	}
	parent, err := s.messages.Find(ctx, *draft.ReplyToID)
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		return nil, fmt.Errorf("reply target %s: %w", *draft.ReplyToID, errors.ErrNotFound)
	case err != nil:
		return nil, storeFailure(err)
	}
	if parent.IsDeleted() || draft.RoomID == nil || !parent.InRoom(*draft.RoomID) {
		return nil, fmt.Errorf("reply target %s: %w", *draft.ReplyToID, errors.ErrNotFound)
	}
	if parent.ReplyToID != nil {
		return parent.ReplyToID, nil
	}
	return lo.ToPtr(parent.ID), nil
}

func (s *MessageService) ownedLiveMessage(ctx context.Context, messageID, requestorID string) (domain.Message, error) {
	message, err := s.messages.Find(ctx, messageID)
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		return domain.Message{}, err
	case err != nil:
		return domain.Message{}, storeFailure(err)
	}
	if message.IsDeleted() {
		return domain.Message{}, fmt.Errorf("message %s is deleted: %w", messageID, errors.ErrNotFound)
	}
	if requestorID == "" || message.SenderID != requestorID {
		return domain.Message{}, fmt.Errorf("message %s: %w", messageID, errors.ErrPermissionDenied)
	}
	return message, nil
}

func (s *MessageService) moderate(content, userID string) string {
	if s.moderator == nil {
		return content
	}
	censored, words := s.moderator.Censor(content)
	if len(words) > 0 {
		s.log.Info("Message censored", "user_id", userID, "words", len(words))
	}
	return censored
}

// later returns the current time, forced past previous so that an edit
// always moves the update timestamp forward.
func (s *MessageService) later(previous time.Time) time.Time {
	now := s.now().UTC()
	if !now.After(previous) {
		return previous.Add(time.Nanosecond)
	}
	return now
}

func (s *MessageService) submit(job contract.IndexJob) {
	if s.queue == nil {
		return
	}
	if !s.queue.Submit(job) {
		s.log.Warn("Index queue full, message not indexed", "message_id", job.Message.ID)
	}
}

func inferKind(attachments []domain.Attachment) domain.MessageKind {
	if len(attachments) == 0 {
		return domain.KindText
	}
	if strings.HasPrefix(attachments[0].MimeType, "image/") {
		return domain.KindImage
	}
	return domain.KindFile
}

func detectLanguage(content string) string {
	info := whatlanggo.Detect(content)
	if info.Confidence < minLanguageConfidence {
		return ""
	}
	return info.Lang.Iso6391()
}

func storeFailure(err error) error {
	if stderrors.Is(err, errors.ErrStoreFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", errors.ErrStoreFailure, err)
}
