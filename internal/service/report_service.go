package service

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"casual-tasker/internal/cache"
	"casual-tasker/internal/model"
)

// ReportService builds human-readable summaries of the task mirror.
type ReportService struct {
	tasks      *cache.TaskCache
	categories *cache.CategoryCache
}

func NewReportService(tasks *cache.TaskCache, categories *cache.CategoryCache) *ReportService {
	return &ReportService{tasks: tasks, categories: categories}
}

// Summary groups tasks by category, open tasks first and by due date.
func (s *ReportService) Summary(now time.Time) string {
	byCategory := make(map[uint][]*model.Task)
	counts := make(map[model.TaskStatus]int)
	for _, task := range s.tasks.Entities() {
		byCategory[task.CategoryID] = append(byCategory[task.CategoryID], task)
		counts[task.Status]++
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Отчёт по задачам</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("02.01.2006")))
	builder.WriteString(fmt.Sprintf("🔥 в работе: %d · ✅ выполнено: %d · 💤 отложено: %d\n",
		counts[model.StatusInProgress], counts[model.StatusCompleted], counts[model.StatusPostponed]))

	if len(byCategory) == 0 {
		builder.WriteString("\n— задач нет\n")
		return strings.TrimSpace(builder.String())
	}

	for _, category := range s.categories.Entities() {
		tasks := byCategory[category.ID]
		if len(tasks) == 0 {
			continue
		}
		delete(byCategory, category.ID)
		writeCategory(&builder, category.Name, tasks, now)
	}

	// tasks whose category is not mirrored yet
	var orphanIDs []uint
	for id := range byCategory {
		orphanIDs = append(orphanIDs, id)
	}
	sort.Slice(orphanIDs, func(i, j int) bool { return orphanIDs[i] < orphanIDs[j] })
	for _, id := range orphanIDs {
		writeCategory(&builder, fmt.Sprintf("#%d", id), byCategory[id], now)
	}

	return strings.TrimSpace(builder.String())
}

func writeCategory(builder *strings.Builder, name string, tasks []*model.Task, now time.Time) {
	sort.SliceStable(tasks, func(i, j int) bool {
		oi, oj := tasks[i].Status == model.StatusInProgress, tasks[j].Status == model.StatusInProgress
		if oi != oj {
			return oi
		}
		switch {
		case tasks[i].DueDate.IsZero() && tasks[j].DueDate.IsZero():
			return tasks[i].ID < tasks[j].ID
		case tasks[i].DueDate.IsZero():
			return false
		case tasks[j].DueDate.IsZero():
			return true
		default:
			return tasks[i].DueDate.Before(tasks[j].DueDate)
		}
	})

	builder.WriteString(fmt.Sprintf("\n📁 <b>%s</b> (%d)\n", html.EscapeString(strings.TrimSpace(name)), len(tasks)))
	for _, task := range tasks {
		builder.WriteString(formatTask(task, now))
	}
}

func formatTask(task *model.Task, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s [%d] %s", statusIcon(task, now), task.ID, html.EscapeString(strings.TrimSpace(task.Name))))

	if !task.DueDate.IsZero() && task.Status == model.StatusInProgress {
		d := task.DueDate.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ до %s, <b>просрочено</b>", d.Format("2006-01-02")))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			sb.WriteString(fmt.Sprintf("\n   ⏰ до %s · осталось ≈%d дн.", d.Format("2006-01-02"), daysLeft))
		}
	}

	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func statusIcon(task *model.Task, now time.Time) string {
	switch task.Status {
	case model.StatusCompleted:
		return "✅"
	case model.StatusPostponed:
		return "💤"
	}
	if task.DueDate.IsZero() {
		return "🟢"
	}
	d := task.DueDate.In(now.Location())
	switch {
	case now.After(d):
		return "⚠️"
	case d.Sub(now) <= 48*time.Hour:
		return "⏳"
	default:
		return "🟢"
	}
}
