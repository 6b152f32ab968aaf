package bot

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"casual-tasker/internal/model"
	"casual-tasker/internal/repository"
)

const (
	btnSkip             = "⏭️ Пропустить"
	btnConfirm          = "✅ Подтвердить"
	btnCancel           = "↩️ Отмена"
	btnCancelDialog     = "⏪ Отменить ввод"
	iconDefault         = "🟢"
	iconDue             = "⏳"
	iconOverdue         = "⚠️"
	menuLabelNewTask    = "➕ Новая задача"
	menuLabelTasks      = "📋 Задачи"
	menuLabelCategories = "📂 Категории"
	menuLabelReport     = "📊 Отчёт"
)

const helpText = "• /newtask — добавить задачу пошагово\n" +
	"• /tasks [id категории] — задачи, можно только одной категории\n" +
	"• /status &lt;id&gt; &lt;inprogress|completed|postponed&gt; — сменить статус\n" +
	"• /deletetask &lt;id&gt; — удалить задачу\n" +
	"• /categories — список категорий\n" +
	"• /newcategory &lt;название&gt; [#цвет] — новая категория\n" +
	"• /renamecategory &lt;id&gt; &lt;название&gt; — переименовать\n" +
	"• /deletecategory &lt;id&gt; — удалить категорию\n" +
	"• /report — сводка по задачам\n" +
	"• /refresh — перечитать данные из базы\n" +
	"• /cancel — отменить текущий ввод"

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelCategories),
			tgbotapi.NewKeyboardButton(menuLabelReport),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// categoryKeyboard offers the mirrored categories, two per row. The deleted
// category is not offered.
func (b *Bot) categoryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, category := range b.svc.Categories.List() {
		if category.Name == repository.DeletedCategoryName {
			continue
		}
		row = append(row, tgbotapi.NewKeyboardButton(category.Name))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnSkip),
		tgbotapi.NewKeyboardButton(btnCancelDialog),
	))

	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "пропустить" || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "подтвердить" || value == "да"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "отмена" || value == "нет"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "отменить ввод"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func formatCategory(category *model.Category) string {
	return fmt.Sprintf("• <b>#%d</b> %s <code>%s</code>\n", category.ID, escape(strings.TrimSpace(category.Name)), escape(category.Color))
}

func formatTask(task *model.Task, now time.Time) string {
	var b strings.Builder
	icon := statusIcon(task.Status)
	if task.Status == model.StatusInProgress {
		icon = iconDefault
		if !task.DueDate.IsZero() {
			d := task.DueDate.In(now.Location())
			if now.After(d) {
				icon = iconOverdue
			} else if d.Sub(now) <= 48*time.Hour {
				icon = iconDue
			}
		}
	}
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s", icon, task.ID, escape(normalizeTitle(task.Name))))
	if task.Category != nil {
		b.WriteString(fmt.Sprintf(" <i>(%s)</i>", escape(strings.TrimSpace(task.Category.Name))))
	}
	b.WriteByte('\n')
	if !task.DueDate.IsZero() && task.Status == model.StatusInProgress {
		d := task.DueDate.In(now.Location())
		if now.After(d) {
			b.WriteString(fmt.Sprintf("   ⏰ Срок: %s, <b>просрочено</b>\n", d.Format(dateLayout)))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			b.WriteString(fmt.Sprintf("   ⏰ Срок: %s · осталось ≈%d дн.\n", d.Format(dateLayout), daysLeft))
		}
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	b.WriteByte('\n')
	return b.String()
}

func statusIcon(status model.TaskStatus) string {
	switch status {
	case model.StatusCompleted:
		return "✅"
	case model.StatusPostponed:
		return "💤"
	default:
		return "🔥"
	}
}

func statusLabel(status model.TaskStatus) string {
	switch status {
	case model.StatusCompleted:
		return "выполнена"
	case model.StatusPostponed:
		return "отложена"
	default:
		return "в работе"
	}
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
