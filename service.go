package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const (
	msgStart = "Привет! Отправьте мне ссылку на видео с YouTube, TikTok, Instagram и других поддерживаемых сайтов, " +
		"и я пришлю файл.\nМожно просто написать название песни: я найду её и предложу варианты.\n" +
		"Голосовое или аудио сообщение я попробую распознать.\n\nОграничение Telegram: до ~2 ГБ на файл."
	msgHelp = "Как пользоваться:\n" +
		"- Отправьте ссылку на видео. Если ссылок несколько, каждая обрабатывается отдельно.\n" +
		"- /audio <ссылка> пришлёт только аудио в MP3.\n" +
		"- /search <запрос> или просто текст без ссылки покажет список найденных треков.\n" +
		"- Отправьте голосовое, аудио или видео, чтобы узнать, что за песня играет.\n" +
		"- Если сайт требует вход или видео заблокировано, скачать его может не получиться."
	msgSendLink         = "Пожалуйста, отправьте корректную ссылку на видео."
	msgUnknownCommand   = "Неизвестная команда. Используйте /help для справки."
	msgSearchUsage      = "Использование: /search <запрос>"
	msgUnsupported      = "Эта ссылка не поддерживается: %s"
	msgLoading          = "Загрузка: %s ...\n%s"
	msgNotFound         = "Видео не найдено или не удалось загрузить."
	msgTooLarge         = "Файл слишком большой (%.1f MB). Лимит Telegram ~%d MB."
	msgTooLong          = "Ролик слишком длинный (%s), лимит %s."
	msgSendError        = "Ошибка отправки: %v"
	msgDone             = "Готово ✅"
	msgNothingSent      = "Ни один файл не отправлен."
	msgCaption          = "Загружено ✅"
	msgNoResults        = "Ничего не найдено по запросу «%s»."
	msgSearchError      = "Ошибка поиска, попробуйте позже."
	msgSessionError     = "Не удалось сохранить результаты поиска, попробуйте ещё раз."
	msgInvalidSelection = "Неверный выбор."
	msgSearchFirst      = "Сначала выполните поиск."
	msgCancelled        = "Поиск отменён."
	msgFetching         = "Загружаю…"
	msgListening        = "Слушаю фрагмент…"
	msgRecognitionOff   = "Распознавание песен отключено."
	msgNoSong           = "Не удалось распознать песню."
	msgRecognitionError = "Ошибка распознавания, попробуйте позже."
)

// ServiceDeps зависимости DownloadService, Recognizer, Converter и Previewer могут быть nil
type ServiceDeps struct {
	Downloader Downloader
	Searcher   Searcher
	Converter  Converter
	Recognizer Recognizer
	Previewer  Previewer
	Storage    Storage
	Sessions   SessionStore
	Telegram   TelegramBot
	Classifier *LinkClassifier
	Metrics    *Metrics
	Logger     *logrus.Logger
}

type ServiceOptions struct {
	Workers       int
	SearchEnabled bool
	SearchLimit   int
	MaxUploadSize int64
	MaxDuration   time.Duration
	SampleSeconds int
}

// DownloadService основной сервис для обработки сообщений и кнопок
type DownloadService struct {
	downloader Downloader
	searcher   Searcher
	converter  Converter
	recognizer Recognizer
	previewer  Previewer
	storage    Storage
	sessions   SessionStore
	telegram   TelegramBot
	classifier *LinkClassifier
	metrics    *Metrics
	logger     *logrus.Logger
	workers    *semaphore.Weighted
	opts       ServiceOptions

	// блокировки по userID для чтения-изменения-записи сессии
	userLocks sync.Map
}

func NewDownloadService(deps ServiceDeps, opts ServiceOptions) *DownloadService {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = MaxUploadSize
	}
	if deps.Classifier == nil {
		deps.Classifier = NewLinkClassifier(nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	return &DownloadService{
		downloader: deps.Downloader,
		searcher:   deps.Searcher,
		converter:  deps.Converter,
		recognizer: deps.Recognizer,
		previewer:  deps.Previewer,
		storage:    deps.Storage,
		sessions:   deps.Sessions,
		telegram:   deps.Telegram,
		classifier: deps.Classifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		workers:    semaphore.NewWeighted(int64(opts.Workers)),
		opts:       opts,
	}
}

func (s *DownloadService) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		s.metrics.Request("callback")
		s.HandleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		s.handleMessage(ctx, update.Message)
	}
}

func (s *DownloadService) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	userID := chatID
	if msg.From != nil {
		userID = msg.From.ID
	}

	if msg.IsCommand() {
		s.metrics.Request("command")
		switch msg.Command() {
		case "start":
			s.reply(chatID, msgStart)
		case "help":
			s.reply(chatID, msgHelp)
		case "search":
			query := strings.TrimSpace(msg.CommandArguments())
			if query == "" {
				s.reply(chatID, msgSearchUsage)
				return
			}
			s.HandleSearch(ctx, chatID, userID, query)
		case "audio":
			s.HandleLinks(ctx, chatID, msg.CommandArguments(), ModeAudio)
		default:
			s.reply(chatID, msgUnknownCommand)
		}
		return
	}

	if fileID := recognizableFileID(msg); fileID != "" {
		s.metrics.Request("recognize")
		s.HandleRecognize(ctx, chatID, userID, fileID)
		return
	}

	if msg.Text != "" {
		s.metrics.Request("text")
		s.HandleText(ctx, chatID, userID, msg.Text)
	}
}

func recognizableFileID(msg *tgbotapi.Message) string {
	switch {
	case msg.Voice != nil:
		return msg.Voice.FileID
	case msg.Audio != nil:
		return msg.Audio.FileID
	case msg.Video != nil:
		return msg.Video.FileID
	case msg.VideoNote != nil:
		return msg.VideoNote.FileID
	}
	return ""
}

// HandleText отправляет ссылки на скачивание, а текст без ссылок на поиск
func (s *DownloadService) HandleText(ctx context.Context, chatID, userID int64, text string) {
	urls := ExtractURLs(text)
	if len(urls) == 0 {
		query := strings.TrimSpace(text)
		if s.opts.SearchEnabled && s.searcher != nil && query != "" {
			s.HandleSearch(ctx, chatID, userID, query)
			return
		}
		s.reply(chatID, msgSendLink)
		return
	}
	s.deliverAll(ctx, chatID, urls, ModeVideo)
}

// HandleLinks скачивает все ссылки из text в указанном режиме
func (s *DownloadService) HandleLinks(ctx context.Context, chatID int64, text string, mode Mode) {
	urls := ExtractURLs(text)
	if len(urls) == 0 {
		s.reply(chatID, msgSendLink)
		return
	}
	s.deliverAll(ctx, chatID, urls, mode)
}

func (s *DownloadService) deliverAll(ctx context.Context, chatID int64, urls []string, mode Mode) {
	for _, url := range urls {
		if err := s.classifier.Classify(url); err != nil {
			s.logger.WithFields(logrus.Fields{"url": url, "kind": KindOf(err)}).Info("Ссылка отклонена")
			s.reply(chatID, fmt.Sprintf(msgUnsupported, url))
			continue
		}
		_ = s.Deliver(ctx, chatID, url, mode)
	}
}

// Deliver скачивает url и отправляет результат в чат, все ошибки уже показаны
// пользователю, возвращаемое значение нужно для логов и тестов
func (s *DownloadService) Deliver(ctx context.Context, chatID int64, url string, mode Mode) error {
	log := s.logger.WithFields(logrus.Fields{"chat_id": chatID, "url": url, "mode": mode})

	taskID, err := s.storage.SaveTask(url, mode)
	if err != nil {
		log.Printf("Ошибка сохранения задачи: %v", err)
	}

	if s.sendCached(chatID, url, mode) {
		log.Info("Отправлено из кэша file_id")
		s.updateTask(taskID, StatusCompleted, "")
		return nil
	}

	title := "источник"
	if s.previewer != nil {
		if p, err := s.previewer.Preview(ctx, url); err == nil {
			if s.opts.MaxDuration > 0 && p.Duration > s.opts.MaxDuration {
				s.reply(chatID, fmt.Sprintf(msgTooLong, formatDuration(p.Duration), formatDuration(s.opts.MaxDuration)))
				s.updateTask(taskID, StatusFailed, "")
				return newMediaError(FailureFetch, url, ErrTooLong)
			}
			title = fmt.Sprintf("%s (%s)", p.Title, formatDuration(p.Duration))
		}
	}
	status, _ := s.telegram.SendMessage(chatID, fmt.Sprintf(msgLoading, title, url))

	if err := s.workers.Acquire(ctx, 1); err != nil {
		s.edit(chatID, status.MessageID, msgNotFound)
		s.updateTask(taskID, StatusFailed, "")
		return newMediaError(FailureFetch, url, err)
	}
	started := time.Now()
	files, err := s.downloader.Fetch(ctx, url, mode)
	s.workers.Release(1)
	s.metrics.Fetch(mode, err, time.Since(started).Seconds())
	if err != nil {
		log.Printf("Ошибка скачивания: %v", err)
		s.edit(chatID, status.MessageID, msgNotFound)
		s.updateTask(taskID, StatusFailed, "")
		return err
	}
	for _, f := range files {
		s.storage.StoreFileRecord(f)
	}

	sent, err := s.sendFiles(chatID, url, mode, files)
	if sent > 0 {
		s.edit(chatID, status.MessageID, msgDone)
		s.updateTask(taskID, StatusCompleted, filepath.Base(files[0]))
	} else {
		s.edit(chatID, status.MessageID, msgNothingSent)
		s.updateTask(taskID, StatusFailed, "")
	}
	if err != nil {
		log.Printf("Не все файлы отправлены: %v", err)
	}
	return err
}

func (s *DownloadService) sendCached(chatID int64, url string, mode Mode) bool {
	cached, ok, err := s.storage.GetCachedFile(url, mode)
	if err != nil {
		s.logger.Printf("Ошибка чтения кэша: %v", err)
		return false
	}
	if !ok {
		return false
	}
	if err := s.telegram.SendFileID(chatID, cached.FileID, cached.Kind, msgCaption); err != nil {
		s.logger.Printf("file_id из кэша не принят, скачиваем заново: %v", err)
		if err := s.storage.DeleteCachedFile(url, mode); err != nil {
			s.logger.Printf("Ошибка удаления из кэша: %v", err)
		}
		return false
	}
	s.metrics.Send(nil)
	return true
}

// sendFiles отправляет файлы по одному; файлы удаляются при любом исходе
func (s *DownloadService) sendFiles(chatID int64, url string, mode Mode, files []string) (int, error) {
	defer s.cleanup(files)

	sent := 0
	var errs []error
	for _, path := range files {
		kind, size, err := s.checkUpload(path)
		if err != nil {
			s.metrics.Send(err)
			errs = append(errs, err)
			if KindOf(err) == FailureOversize {
				s.reply(chatID, fmt.Sprintf(msgTooLarge, float64(size)/1024/1024, s.opts.MaxUploadSize/1024/1024))
			} else {
				s.reply(chatID, fmt.Sprintf(msgSendError, errors.Unwrap(err)))
			}
			continue
		}

		fileID, err := s.telegram.SendFile(chatID, path, kind, msgCaption)
		if err != nil {
			err = newMediaError(FailureSend, url, err)
			s.metrics.Send(err)
			errs = append(errs, err)
			s.reply(chatID, fmt.Sprintf(msgSendError, errors.Unwrap(err)))
			continue
		}
		s.metrics.Send(nil)
		sent++

		// повторная отправка из кэша эквивалентна только для одиночного файла
		if fileID != "" && len(files) == 1 {
			if err := s.storage.StoreCachedFile(url, mode, CachedFile{FileID: fileID, Kind: kind}); err != nil {
				s.logger.Printf("Ошибка сохранения file_id: %v", err)
			}
		}
	}
	return sent, errors.Join(errs...)
}

// checkUpload отсекает файлы больше лимита и выбирает тип сообщения
func (s *DownloadService) checkUpload(path string) (MediaKind, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, newMediaError(FailureSend, "", err)
	}
	if info.Size() > s.opts.MaxUploadSize {
		return "", info.Size(), newMediaError(FailureOversize, "", fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size()))
	}
	return KindForPath(path), info.Size(), nil
}

func (s *DownloadService) cleanup(files []string) {
	removeFiles(files, s.logger)
	for _, f := range files {
		s.storage.ForgetFileRecord(f)
	}
}

// HandleSearch ищет треки и показывает пронумерованный список
func (s *DownloadService) HandleSearch(ctx context.Context, chatID, userID int64, query string) {
	results, err := s.search(ctx, query)
	if err != nil {
		s.logger.WithField("query", query).Printf("Ошибка поиска: %v", err)
		s.reply(chatID, msgSearchError)
		return
	}
	if len(results) == 0 {
		s.reply(chatID, fmt.Sprintf(msgNoResults, query))
		return
	}
	unlock := s.lockUser(userID)
	err = s.sessions.Put(ctx, userID, &Session{Query: query, Results: results})
	unlock()
	if err != nil {
		s.logger.Printf("Ошибка сохранения сессии: %v", err)
		s.reply(chatID, msgSessionError)
		return
	}
	if _, err := s.telegram.SendKeyboard(chatID, ResultsText(query, results), ResultsKeyboard(len(results))); err != nil {
		s.logger.Printf("Ошибка отправки списка: %v", err)
	}
}

func (s *DownloadService) search(ctx context.Context, query string) ([]SearchEntry, error) {
	if s.searcher == nil {
		return nil, errors.New("search is not configured")
	}
	if err := s.workers.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.workers.Release(1)
	return s.searcher.Search(ctx, query, s.opts.SearchLimit)
}

// HandleCallback обрабатывает нажатия inline-кнопок списка и трека
func (s *DownloadService) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || cq.Message.Chat == nil || cq.From == nil {
		s.answer(cq.ID, msgInvalidSelection, true)
		return
	}
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID
	userID := cq.From.ID

	cb, err := ParseCallback(cq.Data)
	if err != nil {
		s.answer(cq.ID, msgInvalidSelection, true)
		return
	}

	switch cb.Kind {
	case CallbackRefresh:
		s.refreshResults(ctx, cq.ID, chatID, messageID, userID)
	case CallbackAudio, CallbackVideo:
		entry, ok := s.pickedEntry(ctx, cq.ID, userID, cb.ID)
		if !ok {
			return
		}
		s.answer(cq.ID, msgFetching, false)
		mode := ModeVideo
		if cb.Kind == CallbackAudio {
			mode = ModeAudio
		}
		_ = s.Deliver(ctx, chatID, entry.URL, mode)
	default:
		s.navigate(ctx, cq.ID, chatID, messageID, userID, cb)
	}
}

// lockUser захватывает блокировку пользователя и возвращает функцию освобождения
func (s *DownloadService) lockUser(userID int64) func() {
	v, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// loadSession отвечает "сначала выполните поиск", если сессии нет
func (s *DownloadService) loadSession(ctx context.Context, callbackID string, userID int64) (*Session, bool) {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			s.logger.Printf("Ошибка чтения сессии: %v", err)
		}
		s.answer(callbackID, msgSearchFirst, true)
		return nil, false
	}
	return sess, true
}

// navigate выбор, возврат к списку и отмена под блокировкой пользователя
func (s *DownloadService) navigate(ctx context.Context, callbackID string, chatID int64, messageID int, userID int64, cb Callback) {
	defer s.lockUser(userID)()

	sess, ok := s.loadSession(ctx, callbackID, userID)
	if !ok {
		return
	}

	switch cb.Kind {
	case CallbackPick:
		index := cb.Index - 1
		entry, ok := sess.Entry(index)
		if !ok {
			s.answer(callbackID, msgInvalidSelection, true)
			return
		}
		sess.Picked = &index
		if !s.saveSession(ctx, callbackID, userID, sess) {
			return
		}
		s.editKeyboard(chatID, messageID, TrackText(entry), TrackKeyboard(entry))
		s.answer(callbackID, "", false)

	case CallbackBack:
		sess.Picked = nil
		if !s.saveSession(ctx, callbackID, userID, sess) {
			return
		}
		s.editKeyboard(chatID, messageID, ResultsText(sess.Query, sess.Results), ResultsKeyboard(len(sess.Results)))
		s.answer(callbackID, "", false)

	case CallbackCancel:
		if err := s.sessions.Delete(ctx, userID); err != nil {
			s.logger.Printf("Ошибка удаления сессии: %v", err)
		}
		s.edit(chatID, messageID, msgCancelled)
		s.answer(callbackID, "", false)
	}
}

// pickedEntry трек, выбранный в сессии; aud_/vid_ принимаются только для него
func (s *DownloadService) pickedEntry(ctx context.Context, callbackID string, userID int64, id string) (SearchEntry, bool) {
	defer s.lockUser(userID)()

	sess, ok := s.loadSession(ctx, callbackID, userID)
	if !ok {
		return SearchEntry{}, false
	}
	if sess.Picked == nil {
		s.answer(callbackID, msgInvalidSelection, true)
		return SearchEntry{}, false
	}
	entry, ok := sess.Entry(*sess.Picked)
	if !ok || entry.ID != id {
		s.answer(callbackID, msgInvalidSelection, true)
		return SearchEntry{}, false
	}
	return entry, true
}

// refreshResults повторяет поиск без блокировки, а результат сохраняет,
// только если сессия с тем же запросом ещё существует
func (s *DownloadService) refreshResults(ctx context.Context, callbackID string, chatID int64, messageID int, userID int64) {
	sess, ok := s.loadSession(ctx, callbackID, userID)
	if !ok {
		return
	}
	results, err := s.search(ctx, sess.Query)
	if err != nil || len(results) == 0 {
		if err != nil {
			s.logger.Printf("Ошибка повторного поиска: %v", err)
		}
		s.answer(callbackID, fmt.Sprintf(msgNoResults, sess.Query), true)
		return
	}

	defer s.lockUser(userID)()
	current, ok := s.loadSession(ctx, callbackID, userID)
	if !ok {
		return
	}
	if current.Query != sess.Query {
		s.answer(callbackID, "", false)
		return
	}
	current.Results = results
	current.Picked = nil
	if !s.saveSession(ctx, callbackID, userID, current) {
		return
	}
	s.editKeyboard(chatID, messageID, ResultsText(current.Query, results), ResultsKeyboard(len(results)))
	s.answer(callbackID, "", false)
}

func (s *DownloadService) saveSession(ctx context.Context, callbackID string, userID int64, sess *Session) bool {
	if err := s.sessions.Put(ctx, userID, sess); err != nil {
		s.logger.Printf("Ошибка сохранения сессии: %v", err)
		s.answer(callbackID, msgSessionError, true)
		return false
	}
	return true
}

// HandleRecognize распознаёт песню в голосовом, аудио или видео сообщении
func (s *DownloadService) HandleRecognize(ctx context.Context, chatID, userID int64, fileID string) {
	if s.recognizer == nil || s.converter == nil {
		s.reply(chatID, msgRecognitionOff)
		return
	}
	status, _ := s.telegram.SendMessage(chatID, msgListening)

	src := filepath.Join(os.TempDir(), tempFilePrefix+uuid.NewString())
	defer os.Remove(src)
	if err := s.telegram.DownloadFile(ctx, fileID, src); err != nil {
		err = newMediaError(FailureRecognition, "", err)
		s.metrics.Recognition(err)
		s.logger.Printf("Ошибка загрузки файла из Telegram: %v", err)
		s.edit(chatID, status.MessageID, msgRecognitionError)
		return
	}

	sample, err := s.converter.ExtractSample(ctx, src, s.opts.SampleSeconds)
	if err != nil {
		err = newMediaError(FailureRecognition, "", err)
		s.metrics.Recognition(err)
		s.edit(chatID, status.MessageID, msgRecognitionError)
		return
	}
	defer os.Remove(sample)

	track, err := s.recognizer.Recognize(ctx, sample)
	s.metrics.Recognition(err)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			s.edit(chatID, status.MessageID, msgNoSong)
			return
		}
		s.logger.Printf("Ошибка распознавания: %v", err)
		s.edit(chatID, status.MessageID, msgRecognitionError)
		return
	}

	s.edit(chatID, status.MessageID, trackText(track))
	if s.opts.SearchEnabled && s.searcher != nil {
		s.HandleSearch(ctx, chatID, userID, track.Query())
	}
}

func trackText(t Track) string {
	text := "🎵 " + t.Title
	if a := t.Artist(); a != "" {
		text = fmt.Sprintf("🎵 %s — %s", a, t.Title)
	}
	if t.Album != "" {
		text += "\nАльбом: " + t.Album
	}
	return text
}

func (s *DownloadService) reply(chatID int64, text string) {
	if _, err := s.telegram.SendMessage(chatID, text); err != nil {
		s.logger.Printf("Ошибка отправки сообщения: %v", err)
	}
}

func (s *DownloadService) edit(chatID int64, messageID int, text string) {
	if messageID == 0 {
		s.reply(chatID, text)
		return
	}
	if err := s.telegram.EditMessage(chatID, messageID, text); err != nil {
		s.logger.Printf("Ошибка редактирования сообщения: %v", err)
	}
}

func (s *DownloadService) editKeyboard(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) {
	if err := s.telegram.EditKeyboard(chatID, messageID, text, markup); err != nil {
		s.logger.Printf("Ошибка редактирования клавиатуры: %v", err)
	}
}

func (s *DownloadService) answer(callbackID, text string, alert bool) {
	if err := s.telegram.AnswerCallback(callbackID, text, alert); err != nil {
		s.logger.Printf("Ошибка ответа на callback: %v", err)
	}
}

func (s *DownloadService) updateTask(id int64, status, filePath string) {
	if id == 0 {
		return
	}
	if err := s.storage.UpdateTaskStatus(id, status, filePath); err != nil {
		s.logger.Printf("Ошибка обновления задачи %d: %v", id, err)
	}
}
