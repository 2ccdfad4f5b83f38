package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// TelegramBot интерфейс для работы с Telegram
type TelegramBot interface {
	Start(ctx context.Context, service *DownloadService)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendKeyboard(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string) error
	EditKeyboard(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(callbackID, text string, alert bool) error
	// SendFile загружает файл и возвращает его file_id
	SendFile(chatID int64, filePath string, kind MediaKind, caption string) (string, error)
	SendFileID(chatID int64, fileID string, kind MediaKind, caption string) error
	DownloadFile(ctx context.Context, fileID, dst string) error
}

type TelegramBotImpl struct {
	bot    *tgbotapi.BotAPI
	http   *http.Client
	logger *logrus.Logger
}

func NewTelegramBot(cfg TelegramConfig, logger *logrus.Logger) (*TelegramBotImpl, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, err
	}
	bot.Debug = cfg.Debug
	logger.Printf("Бот авторизован как @%s", bot.Self.UserName)
	return &TelegramBotImpl{bot: bot, http: &http.Client{}, logger: logger}, nil
}

// Start читает обновления до отмены ctx; каждое обновление обрабатывается в своей горутине
func (t *TelegramBotImpl) Start(ctx context.Context, service *DownloadService) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						t.logger.Errorf("Panic в обработчике обновления %d: %v", update.UpdateID, r)
					}
				}()
				service.HandleUpdate(ctx, update)
			}()
		}
	}
}

func (t *TelegramBotImpl) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	return t.bot.Send(msg)
}

func (t *TelegramBotImpl) SendKeyboard(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = markup
	return t.bot.Send(msg)
}

func (t *TelegramBotImpl) EditMessage(chatID int64, messageID int, text string) error {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

func (t *TelegramBotImpl) EditKeyboard(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

func (t *TelegramBotImpl) AnswerCallback(callbackID, text string, alert bool) error {
	cfg := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	_, err := t.bot.Request(cfg)
	return err
}

func (t *TelegramBotImpl) SendFile(chatID int64, filePath string, kind MediaKind, caption string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	sent, err := t.bot.Send(mediaMessage(chatID, tgbotapi.FileReader{
		Name:   filepath.Base(filePath),
		Reader: file,
	}, kind, caption))
	if err != nil {
		return "", err
	}
	return fileIDOf(sent), nil
}

func (t *TelegramBotImpl) SendFileID(chatID int64, fileID string, kind MediaKind, caption string) error {
	_, err := t.bot.Send(mediaMessage(chatID, tgbotapi.FileID(fileID), kind, caption))
	return err
}

func (t *TelegramBotImpl) DownloadFile(ctx context.Context, fileID, dst string) error {
	link, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return fmt.Errorf("get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func mediaMessage(chatID int64, file tgbotapi.RequestFileData, kind MediaKind, caption string) tgbotapi.Chattable {
	switch kind {
	case KindVideo:
		video := tgbotapi.NewVideo(chatID, file)
		video.Caption = caption
		video.SupportsStreaming = true
		return video
	case KindAudio:
		audio := tgbotapi.NewAudio(chatID, file)
		audio.Caption = caption
		return audio
	default:
		doc := tgbotapi.NewDocument(chatID, file)
		doc.Caption = caption
		return doc
	}
}

func fileIDOf(msg tgbotapi.Message) string {
	switch {
	case msg.Video != nil:
		return msg.Video.FileID
	case msg.Audio != nil:
		return msg.Audio.FileID
	case msg.Document != nil:
		return msg.Document.FileID
	}
	return ""
}
