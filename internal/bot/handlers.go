package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"casual-tasker/internal/model"
	"casual-tasker/internal/repository"
	"casual-tasker/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
)

const dateLayout = "2006-01-02"

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Ввод отменён.")
	}

	if msg.IsCommand() {
		b.logger.Info("command", "user", msg.From.ID, "command", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if state := b.getConversation(msg.From.ID); state != nil {
		b.logger.Debug("conversation step", "user", msg.From.ID, "stage", state.stage)
		return b.handleConversation(ctx, msg, state)
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /newtask, чтобы добавить задачу, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "categories":
		return b.handleCategories(msg)
	case "newcategory":
		return b.handleNewCategory(ctx, msg)
	case "renamecategory":
		return b.handleRenameCategory(ctx, msg)
	case "deletecategory":
		return b.handleDeleteCategory(msg)
	case "tasks":
		return b.handleListTasks(msg)
	case "newtask":
		return b.startNewTaskConversation(msg)
	case "status":
		return b.handleStatus(ctx, msg)
	case "deletetask":
		return b.handleDeleteTask(msg)
	case "report":
		return b.sendText(msg.Chat.ID, b.svc.Reports.Summary(b.now()))
	case "refresh":
		return b.handleRefresh(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Ввод отменён.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}
	text := fmt.Sprintf("👋 Привет, %s!\n<b>Я веду твои задачи по категориям.</b>\n\n%s", escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Подсказки</b>\n"+helpText)
}

func (b *Bot) handleCategories(msg *tgbotapi.Message) error {
	categories := b.svc.Categories.List()
	if len(categories) == 0 {
		return b.sendText(msg.Chat.ID, "Категорий пока нет. Добавь через /newcategory.")
	}
	var builder strings.Builder
	builder.WriteString("📂 <b>Категории</b>\n")
	for _, category := range categories {
		builder.WriteString(formatCategory(category))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleNewCategory(ctx context.Context, msg *tgbotapi.Message) error {
	name, color := splitColor(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Укажи название: /newcategory Работа #3366FF")
	}

	category, err := b.svc.Categories.Create(ctx, name, color)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось создать категорию: %s", describe(err)))
	}
	b.logger.Info("category created", "entity", category)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Категория создана:\n%s", formatCategory(category)))
}

func (b *Bot) handleRenameCategory(ctx context.Context, msg *tgbotapi.Message) error {
	id, rest, err := leadingID(msg.CommandArguments())
	if err != nil || rest == "" {
		return b.sendText(msg.Chat.ID, "Формат: /renamecategory &lt;id&gt; &lt;новое название&gt;")
	}

	category, err := b.svc.Categories.Rename(ctx, id, rest)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось переименовать категорию: %s", describe(err)))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✏️ Категория переименована:\n%s", formatCategory(category)))
}

func (b *Bot) handleDeleteCategory(msg *tgbotapi.Message) error {
	id, _, err := leadingID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID категории: /deletecategory 3")
	}
	category, err := b.svc.Categories.Get(id)
	if err != nil {
		return b.sendText(msg.Chat.ID, describe(err))
	}

	text := fmt.Sprintf("Удалить категорию «%s» (#%d)? Её задачи перейдут в «%s».",
		escape(category.Name), category.ID, repository.DeletedCategoryName)
	b.setConfirmation(msg.From.ID, confirmationRequest{id: category.ID, action: actionDeleteCategory})
	return b.sendWithReplyMarkup(msg.Chat.ID, text, confirmKeyboard())
}

func (b *Bot) handleListTasks(msg *tgbotapi.Message) error {
	var categoryID uint
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		id, _, err := leadingID(args)
		if err != nil {
			return b.sendText(msg.Chat.ID, "ID категории должен быть числом: /tasks 3")
		}
		if _, err := b.svc.Categories.Get(id); err != nil {
			return b.sendText(msg.Chat.ID, describe(err))
		}
		categoryID = id
	}
	return b.sendTaskList(msg.Chat.ID, categoryID)
}

func (b *Bot) sendTaskList(chatID int64, categoryID uint) error {
	tasks := b.svc.Tasks.ListTasks(categoryID)
	if len(tasks) == 0 {
		return b.sendText(chatID, "Задач нет. Добавь новую через /newtask.")
	}

	now := b.now()
	var builder strings.Builder
	builder.WriteString("📋 <b>Задачи</b>\n")
	builder.WriteString("Кнопки ниже отмечают задачу выполненной или удаляют её.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		builder.WriteString(formatTask(task, now))
		var row []tgbotapi.InlineKeyboardButton
		if task.Status != model.StatusCompleted {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Name, 20)),
				fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)))
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("🗑 #%d", task.ID),
			fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)))
		buttons = append(buttons, row)
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) error {
	id, rest, err := leadingID(msg.CommandArguments())
	if err != nil || rest == "" {
		return b.sendText(msg.Chat.ID, "Формат: /status &lt;id&gt; inprogress|completed|postponed")
	}
	status, err := model.ParseTaskStatus(rest)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Статус: inprogress, completed или postponed.")
	}

	task, err := b.svc.Tasks.SetStatus(ctx, id, status)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось обновить задачу: %s", describe(err)))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("%s Задача «%s» теперь: %s.", statusIcon(task.Status), escape(normalizeTitle(task.Name)), statusLabel(task.Status)))
}

func (b *Bot) handleDeleteTask(msg *tgbotapi.Message) error {
	id, _, err := leadingID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID задачи: /deletetask 12")
	}
	return b.askDeleteTaskConfirmation(msg.Chat.ID, msg.From.ID, id)
}

func (b *Bot) askDeleteTaskConfirmation(chatID, userID int64, taskID uint) error {
	task, err := b.svc.Tasks.GetTask(taskID)
	if err != nil {
		return b.sendText(chatID, describe(err))
	}

	text := fmt.Sprintf("Удалить задачу «%s» (#%d)?", escape(normalizeTitle(task.Name)), task.ID)
	b.setConfirmation(userID, confirmationRequest{id: task.ID, action: actionDeleteTask})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleRefresh(ctx context.Context, msg *tgbotapi.Message) error {
	if err := b.svc.Data.UpdateFromDB(ctx); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось перечитать базу: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔄 Данные обновлены: категорий %d, задач %d.",
		len(b.svc.Categories.List()), len(b.svc.Tasks.ListTasks(0))))
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		if req.action == actionDeleteCategory {
			return b.deleteCategory(ctx, msg.Chat.ID, req.id)
		}
		return b.deleteTask(ctx, msg.Chat.ID, req.id)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Хорошо, ничего не удаляю.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Подтверди или отмени удаление.", confirmKeyboard())
	}
}

func (b *Bot) deleteCategory(ctx context.Context, chatID int64, id uint) error {
	category, err := b.svc.Categories.Get(id)
	if err != nil {
		return b.sendText(chatID, describe(err))
	}
	if err := b.svc.Categories.Delete(ctx, id); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось удалить категорию: %s", describe(err)))
	}
	b.logger.Info("category deleted", "entity", category)
	return b.sendText(chatID, fmt.Sprintf("🗑 Категория «%s» удалена, её задачи перенесены в «%s».",
		escape(category.Name), repository.DeletedCategoryName))
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, id uint) error {
	task, err := b.svc.Tasks.GetTask(id)
	if err != nil {
		return b.sendText(chatID, describe(err))
	}
	if err := b.svc.Tasks.DeleteTask(ctx, id); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось удалить задачу: %s", describe(err)))
	}
	b.logger.Info("task deleted", "entity", task)
	return b.sendText(chatID, fmt.Sprintf("🗑 Задача «%s» удалена.", escape(normalizeTitle(task.Name))))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	b.ackCallback(cb)
	if cb.From == nil {
		return nil
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		taskID, err := parseTaskID(data, cbCompletePrefix)
		if err != nil {
			return nil
		}
		task, err := b.svc.Tasks.SetStatus(ctx, taskID, model.StatusCompleted)
		if err != nil {
			return b.sendText(chatID, describe(err))
		}
		b.logger.Info("task completed", "entity", task)
		if err := b.sendText(chatID, fmt.Sprintf("✅ Задача «%s» выполнена.", escape(normalizeTitle(task.Name)))); err != nil {
			return err
		}
		return b.sendTaskList(chatID, 0)
	case strings.HasPrefix(data, cbDeletePrefix):
		taskID, err := parseTaskID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askDeleteTaskConfirmation(chatID, cb.From.ID, taskID)
	default:
		return nil
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.sendTaskList(msg.Chat.ID, 0)
	case strings.ToLower(menuLabelCategories):
		return true, b.handleCategories(msg)
	case strings.ToLower(menuLabelReport):
		return true, b.sendText(msg.Chat.ID, b.svc.Reports.Summary(b.now()))
	default:
		return false, nil
	}
}

func (b *Bot) startNewTaskConversation(msg *tgbotapi.Message) error {
	b.logger.Info("start new task conversation", "user", msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageName})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Создаём новую задачу.\n<b>Шаг 1:</b> как её назвать?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageName:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Название не может быть пустым.", cancelKeyboard())
		}
		state.input.Name = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Добавь короткое описание (или нажми «Пропустить»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Выбери категорию или отправь новую (можно «Пропустить»).", b.categoryKeyboard())
	case stageCategory:
		if !isSkipInput(text) {
			id, err := b.resolveCategory(ctx, text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("Не получилось с категорией: %s", describe(err)), b.categoryKeyboard())
			}
			state.input.CategoryID = id
		}
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Укажи срок в формате <code>2025-11-30</code> (или «Пропустить»).", skipKeyboard())
	case stageDueDate:
		if !isSkipInput(text) {
			parsed, err := time.ParseInLocation(dateLayout, text, b.now().Location())
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Не могу распознать дату. Используй формат <code>2025-11-30</code> или «Пропустить».", skipKeyboard())
			}
			state.input.DueDate = parsed
		}
		err := b.finishTaskCreation(ctx, msg.Chat.ID, state.input)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Диалог сброшен. Попробуй ещё раз через /newtask.")
	}
}

// resolveCategory finds a category by name, ignoring case, or creates it.
func (b *Bot) resolveCategory(ctx context.Context, name string) (uint, error) {
	clean := strings.TrimSpace(name)
	for _, category := range b.svc.Categories.List() {
		if strings.EqualFold(category.Name, clean) {
			return category.ID, nil
		}
	}
	category, err := b.svc.Categories.Create(ctx, clean, "")
	if err != nil {
		return 0, err
	}
	b.logger.Info("category created from dialog", "entity", category)
	return category.ID, nil
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, input service.TaskInput) error {
	task, err := b.svc.Tasks.CreateTask(ctx, input)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось сохранить задачу: %s", describe(err)))
	}

	b.logger.Info("task created", "entity", task)

	var summary strings.Builder
	summary.WriteString("✅ <b>Задача сохранена</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Название:</b> %s\n", escape(normalizeTitle(task.Name))))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Описание:</b> %s\n", escape(task.Description)))
	}
	if task.Category != nil {
		summary.WriteString(fmt.Sprintf("• <b>Категория:</b> %s\n", escape(task.Category.Name)))
	}
	if !task.DueDate.IsZero() {
		summary.WriteString(fmt.Sprintf("• <b>Срок:</b> %s\n", task.DueDate.Format(dateLayout)))
	}
	return b.sendText(chatID, strings.TrimSpace(summary.String()))
}

func parseTaskID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

// leadingID splits "12 rest of text" into 12 and "rest of text".
func leadingID(args string) (uint, string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, "", errors.New("missing id")
	}
	value, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil || value == 0 {
		return 0, "", fmt.Errorf("invalid id %q", fields[0])
	}
	return uint(value), strings.Join(fields[1:], " "), nil
}

// splitColor takes a trailing #RRGGBB token off a category name.
func splitColor(args string) (name, color string) {
	fields := strings.Fields(args)
	if n := len(fields); n > 1 && strings.HasPrefix(fields[n-1], "#") {
		return strings.Join(fields[:n-1], " "), fields[n-1]
	}
	return strings.Join(fields, " "), ""
}

func describe(err error) string {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return "задача не найдена."
	case errors.Is(err, service.ErrCategoryNotFound):
		return "категория не найдена."
	case errors.Is(err, service.ErrCategoryProtected):
		return fmt.Sprintf("служебные категории «%s» и «%s» нельзя удалить или переименовать.",
			repository.DeletedCategoryName, repository.CommonCategoryName)
	case errors.Is(err, service.ErrInvalidColor):
		return "цвет указывается как #RRGGBB."
	case errors.Is(err, service.ErrEmptyName), errors.Is(err, repository.ErrValidation):
		return "название не может быть пустым."
	default:
		return escape(err.Error())
	}
}
