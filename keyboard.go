package main

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const buttonsPerRow = 5

// CallbackKind тип нажатой кнопки
type CallbackKind int

const (
	CallbackPick CallbackKind = iota + 1
	CallbackAudio
	CallbackVideo
	CallbackRefresh
	CallbackCancel
	CallbackBack
)

// Callback разобранный payload inline-кнопки
type Callback struct {
	Kind  CallbackKind
	Index int    // для pick_<n>, начиная с 1
	ID    string // для aud_<id> и vid_<id>
}

// ParseCallback разбирает pick_<n>, aud_<id>, vid_<id>, refresh, cancel и back,
// границы выбора проверяет вызывающий по сессии
func ParseCallback(data string) (Callback, error) {
	switch data {
	case "refresh":
		return Callback{Kind: CallbackRefresh}, nil
	case "cancel":
		return Callback{Kind: CallbackCancel}, nil
	case "back":
		return Callback{Kind: CallbackBack}, nil
	}

	if rest, ok := strings.CutPrefix(data, "pick_"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
		}
		return Callback{Kind: CallbackPick, Index: n}, nil
	}
	if id, ok := strings.CutPrefix(data, "aud_"); ok && id != "" {
		return Callback{Kind: CallbackAudio, ID: id}, nil
	}
	if id, ok := strings.CutPrefix(data, "vid_"); ok && id != "" {
		return Callback{Kind: CallbackVideo, ID: id}, nil
	}
	return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
}

// ResultsKeyboard кнопка с номером на каждый результат и ряд обновить/отмена
func ResultsKeyboard(count int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i := 1; i <= count; i++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(i), fmt.Sprintf("pick_%d", i)))
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Обновить", "refresh"),
		tgbotapi.NewInlineKeyboardButtonData("✖️ Отмена", "cancel"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// TrackKeyboard действия для выбранного трека
func TrackKeyboard(entry SearchEntry) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎵 Аудио", "aud_"+entry.ID),
			tgbotapi.NewInlineKeyboardButtonData("🎬 Видео", "vid_"+entry.ID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🔗 Источник", entry.URL),
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", "back"),
		),
	)
}

func ResultsText(query string, entries []SearchEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Результаты по запросу «%s»:\n\n", query)
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s", i+1, e.Title)
		if e.Uploader != "" {
			fmt.Fprintf(&b, " — %s", e.Uploader)
		}
		if e.HasDuration() {
			fmt.Fprintf(&b, " (%s)", formatDuration(e.Duration))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nВыберите номер трека:")
	return b.String()
}

func TrackText(entry SearchEntry) string {
	var b strings.Builder
	b.WriteString(entry.Title)
	b.WriteString("\n")
	if entry.Uploader != "" {
		b.WriteString(entry.Uploader)
	}
	if entry.HasDuration() {
		if entry.Uploader != "" {
			b.WriteString(" · ")
		}
		b.WriteString(formatDuration(entry.Duration))
	}
	b.WriteString("\n")
	b.WriteString(entry.URL)
	return b.String()
}
