package bot

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"casual-tasker/internal/cache"
	"casual-tasker/internal/logging"
	"casual-tasker/internal/model"
	"casual-tasker/internal/repository"
	"casual-tasker/internal/service"
)

const (
	testChat = int64(42)
	testUser = int64(7)
)

type fakeSender struct {
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type harness struct {
	bot  *Bot
	api  *fakeSender
	data *cache.DataRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := repository.NewDB(repository.Options{Driver: repository.DriverPureSQLite, DSN: ":memory:", LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := logging.Discard()
	fallback := repository.NewCategoryFallback(db)
	categories := repository.NewCategoryStore(db, log, fallback)
	tasks := repository.NewTaskStore(db, log, fallback)
	require.NoError(t, repository.Seed(ctx, categories, tasks, fallback, log))

	data, err := cache.NewDataRepository(ctx, categories, tasks, fallback, log)
	require.NoError(t, err)
	t.Cleanup(data.Close)

	api := &fakeSender{}
	b := newBot(api, testChat, Services{
		Categories: service.NewCategoryService(data.Categories),
		Tasks:      service.NewTaskService(data.Tasks),
		Reports:    service.NewReportService(data.Tasks, data.Categories),
		Data:       data,
	}, log)
	b.now = func() time.Time { return time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC) }
	return &harness{bot: b, api: api, data: data}
}

// say delivers text from the test user in the test chat.
func (h *harness) say(text string) {
	h.sayIn(testChat, text)
}

func (h *harness) sayIn(chat int64, text string) {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chat, Type: "group"},
		From: &tgbotapi.User{ID: testUser, FirstName: "Ann"},
	}
	if strings.HasPrefix(text, "/") {
		length := len(strings.Fields(text)[0])
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	}
	h.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: msg})
}

func (h *harness) categoryID(t *testing.T, name string) uint {
	t.Helper()
	for _, c := range h.data.Categories.Entities() {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("category %q not mirrored", name)
	return 0
}

func (h *harness) taskByName(t *testing.T, name string) *model.Task {
	t.Helper()
	for _, task := range h.data.Tasks.Entities() {
		if task.Name == name {
			return task
		}
	}
	t.Fatalf("task %q not mirrored", name)
	return nil
}

func TestIgnoresForeignChats(t *testing.T) {
	h := newHarness(t)

	h.sayIn(999, "/start")
	assert.Empty(t, h.api.sent)

	h.say("/start")
	msg := h.api.last(t)
	assert.Equal(t, testChat, msg.ChatID)
	assert.Contains(t, msg.Text, "Ann")
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
}

func TestCategoryCommands(t *testing.T) {
	h := newHarness(t)

	h.say("/newcategory Deep Work #00ff00")
	assert.Contains(t, h.api.last(t).Text, "Категория создана")
	id := h.categoryID(t, "Deep Work")
	assert.Equal(t, "#00FF00", h.data.Categories.Get(id).Color)

	h.say("/newcategory Bad #zzz")
	assert.Contains(t, h.api.last(t).Text, "#RRGGBB")

	h.say("/renamecategory " + uintStr(id) + " Office")
	assert.Contains(t, h.api.last(t).Text, "Office")
	assert.Equal(t, "Office", h.data.Categories.Get(id).Name)

	h.say("/categories")
	list := h.api.last(t).Text
	assert.Contains(t, list, repository.DeletedCategoryName)
	assert.Contains(t, list, "Office")
}

func TestDeleteCategoryMovesTasks(t *testing.T) {
	h := newHarness(t)

	h.say("/newcategory Work")
	work := h.categoryID(t, "Work")
	_, err := h.bot.svc.Tasks.CreateTask(context.Background(), service.TaskInput{Name: "T2", CategoryID: work})
	require.NoError(t, err)

	h.say("/deletecategory " + uintStr(work))
	assert.Contains(t, h.api.last(t).Text, "Удалить категорию")
	assert.NotNil(t, h.data.Categories.Get(work), "nothing happens before confirmation")

	h.say(btnConfirm)
	assert.Contains(t, h.api.last(t).Text, "удалена")
	assert.Nil(t, h.data.Categories.Get(work))
	assert.Equal(t, repository.DeletedCategoryName, h.taskByName(t, "T2").Category.Name)

	deleted := h.categoryID(t, repository.DeletedCategoryName)
	h.say("/deletecategory " + uintStr(deleted))
	h.say(btnConfirm)
	assert.Contains(t, h.api.last(t).Text, "нельзя удалить")
	assert.NotNil(t, h.data.Categories.Get(deleted))
}

func TestRenameFallbackCategoryRefused(t *testing.T) {
	h := newHarness(t)
	common := h.categoryID(t, repository.CommonCategoryName)

	h.say("/renamecategory " + uintStr(common) + " Misc")
	assert.Contains(t, h.api.last(t).Text, "нельзя удалить или переименовать")
	assert.Equal(t, repository.CommonCategoryName, h.data.Categories.Get(common).Name)
}

func TestNewTaskDialog(t *testing.T) {
	h := newHarness(t)

	h.say("/newtask")
	h.say("buy milk")
	h.say("two litres")
	h.say("Покупки")
	h.say("2026-05-11")

	assert.Contains(t, h.api.last(t).Text, "Задача сохранена")
	task := h.taskByName(t, "buy milk")
	assert.Equal(t, "two litres", task.Description)
	assert.Equal(t, "Покупки", task.Category.Name)
	assert.Equal(t, "2026-05-11", task.DueDate.Format(dateLayout))
	assert.Nil(t, h.bot.getConversation(testUser))

	h.say("/newtask")
	h.say("plain")
	h.say(btnSkip)
	h.say(btnSkip)
	h.say("not a date")
	assert.Contains(t, h.api.last(t).Text, "Не могу распознать дату")
	h.say(btnSkip)

	plain := h.taskByName(t, "plain")
	assert.Equal(t, repository.CommonCategoryName, plain.Category.Name)
	assert.True(t, plain.DueDate.IsZero())
}

func TestNewTaskDialogCancel(t *testing.T) {
	h := newHarness(t)
	before := len(h.data.Tasks.Entities())

	h.say("/newtask")
	h.say("never saved")
	h.say(btnCancelDialog)

	assert.Nil(t, h.bot.getConversation(testUser))
	assert.Len(t, h.data.Tasks.Entities(), before)
}

func TestTaskCommands(t *testing.T) {
	h := newHarness(t)
	starter := h.data.Tasks.First()

	h.say("/status " + uintStr(starter.ID) + " postponed")
	assert.Contains(t, h.api.last(t).Text, "отложена")
	assert.Equal(t, model.StatusPostponed, h.data.Tasks.Get(starter.ID).Status)

	h.say("/status " + uintStr(starter.ID) + " whatever")
	assert.Contains(t, h.api.last(t).Text, "inprogress")

	h.say("/tasks")
	list := h.api.last(t)
	assert.Contains(t, list.Text, "Начало")
	markup, ok := list.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)

	h.say("/deletetask 999")
	assert.Contains(t, h.api.last(t).Text, "не найдена")

	h.say("/deletetask " + uintStr(starter.ID))
	h.say(btnCancel)
	assert.NotNil(t, h.data.Tasks.Get(starter.ID))

	h.say("/deletetask " + uintStr(starter.ID))
	h.say(btnConfirm)
	assert.Nil(t, h.data.Tasks.Get(starter.ID))
}

func TestTasksFilterByCategory(t *testing.T) {
	h := newHarness(t)
	h.say("/newcategory Work")
	work := h.categoryID(t, "Work")
	_, err := h.bot.svc.Tasks.CreateTask(context.Background(), service.TaskInput{Name: "in work", CategoryID: work})
	require.NoError(t, err)

	h.say("/tasks " + uintStr(work))
	text := h.api.last(t).Text
	assert.Contains(t, text, "In work")
	assert.NotContains(t, text, "Начало")

	h.say("/tasks 999")
	assert.Contains(t, h.api.last(t).Text, "не найдена")
}

func TestCompleteCallback(t *testing.T) {
	h := newHarness(t)
	starter := h.data.Tasks.First()

	h.bot.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: testUser},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: testChat}},
		Data:    cbCompletePrefix + uintStr(starter.ID),
	}})

	assert.Len(t, h.api.requests, 1)
	assert.Equal(t, model.StatusCompleted, h.data.Tasks.Get(starter.ID).Status)
}

func TestReportAndRefresh(t *testing.T) {
	h := newHarness(t)

	h.say("/report")
	assert.Contains(t, h.api.last(t).Text, "Отчёт по задачам")

	require.NoError(t, h.bot.SendReport(context.Background()))
	assert.Equal(t, testChat, h.api.last(t).ChatID)

	h.say("/refresh")
	assert.Contains(t, h.api.last(t).Text, "категорий 2, задач 1")
}

func TestArgumentHelpers(t *testing.T) {
	id, rest, err := leadingID(" 12  new  name ")
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)
	assert.Equal(t, "new name", rest)

	_, _, err = leadingID("x")
	assert.Error(t, err)
	_, _, err = leadingID("0")
	assert.Error(t, err)

	name, color := splitColor("Home office #123abc")
	assert.Equal(t, "Home office", name)
	assert.Equal(t, "#123abc", color)

	name, color = splitColor("#hashtag")
	assert.Equal(t, "#hashtag", name)
	assert.Empty(t, color)

	assert.Equal(t, "Abc…", shortTitle("abcdef", 4))
}

func uintStr(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
