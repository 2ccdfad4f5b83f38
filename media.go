package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// MaxUploadSize лимит Telegram на размер отправляемого файла (~2 ГБ)
const MaxUploadSize int64 = 2 * 1024 * 1024 * 1024

// Mode режим загрузки: видео или только аудио
type Mode string

const (
	ModeVideo Mode = "video"
	ModeAudio Mode = "audio"
)

// MediaKind тип исходящего сообщения
type MediaKind string

const (
	KindVideo    MediaKind = "video"
	KindAudio    MediaKind = "audio"
	KindDocument MediaKind = "document"
)

var (
	videoExts = map[string]bool{".mp4": true, ".mov": true, ".mkv": true, ".webm": true}
	audioExts = map[string]bool{".mp3": true, ".m4a": true, ".opus": true, ".ogg": true, ".flac": true, ".wav": true}
)

// KindForPath тип сообщения по расширению файла
func KindForPath(path string) MediaKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case videoExts[ext]:
		return KindVideo
	case audioExts[ext]:
		return KindAudio
	default:
		return KindDocument
	}
}

// SearchEntry один результат поиска, Duration равен нулю, если длительность неизвестна
type SearchEntry struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Duration time.Duration `json:"duration,omitempty"`
	Uploader string        `json:"uploader,omitempty"`
	URL      string        `json:"url"`
}

func (e SearchEntry) HasDuration() bool { return e.Duration > 0 }

func formatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
