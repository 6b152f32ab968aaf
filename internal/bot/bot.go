package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"casual-tasker/internal/cache"
	"casual-tasker/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageName
	stageDescription
	stageCategory
	stageDueDate
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

type confirmationAction int

const (
	actionDeleteTask confirmationAction = iota
	actionDeleteCategory
)

type confirmationRequest struct {
	id     uint
	action confirmationAction
}

// sender is the part of the Telegram API the handlers talk to.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Services are the use cases the bot exposes.
type Services struct {
	Categories *service.CategoryService
	Tasks      *service.TaskService
	Reports    *service.ReportService
	Data       *cache.DataRepository
}

// Bot aggregates Telegram API with services.
type Bot struct {
	client        *tgbotapi.BotAPI
	api           sender
	svc           Services
	allowedChatID int64
	logger        *slog.Logger
	now           func() time.Time

	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

// New authorizes against Telegram. When allowedChatID is non-zero the bot
// answers that chat only; otherwise it answers private chats.
func New(token string, allowedChatID int64, svc Services, logger *slog.Logger) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	b := newBot(client, allowedChatID, svc, logger)
	b.client = client
	b.logger.Info("bot authorized", "account", client.Self.UserName)
	return b, nil
}

func newBot(api sender, allowedChatID int64, svc Services, logger *slog.Logger) *Bot {
	return &Bot{
		api:           api,
		svc:           svc,
		allowedChatID: allowedChatID,
		logger:        logger.With("component", "bot"),
		now:           time.Now,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.client.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.client.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil || !b.allowed(cb.Message.Chat) {
			return
		}
		if err := b.handleCallback(ctx, cb); err != nil {
			b.logger.Error("handle callback", "data", cb.Data, "error", err)
		}
	case update.Message != nil:
		if !b.allowed(update.Message.Chat) {
			b.logger.Debug("message from foreign chat ignored", "chat", chatID(update.Message.Chat))
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.logger.Error("handle message", "text", update.Message.Text, "error", err)
		}
	}
}

func (b *Bot) allowed(chat *tgbotapi.Chat) bool {
	if chat == nil {
		return false
	}
	if b.allowedChatID != 0 {
		return chat.ID == b.allowedChatID
	}
	return chat.IsPrivate()
}

// SendReport posts the task summary to the configured chat.
func (b *Bot) SendReport(ctx context.Context) error {
	if b.allowedChatID == 0 {
		b.logger.Debug("no chat configured, report skipped")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.sendText(b.allowedChatID, b.svc.Reports.Summary(b.now()))
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ackCallback(cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("callback ack", "error", err)
	}
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func chatID(chat *tgbotapi.Chat) int64 {
	if chat == nil {
		return 0
	}
	return chat.ID
}
