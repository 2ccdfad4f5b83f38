package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultSearchLimit сколько результатов показывать в списке
const DefaultSearchLimit = 10

type ytdlpEntry struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Duration   *float64 `json:"duration"`
	Uploader   string   `json:"uploader"`
	Channel    string   `json:"channel"`
	WebpageURL string   `json:"webpage_url"`
	URL        string   `json:"url"`
}

func (d *YTDLPDownloader) Search(ctx context.Context, query string, limit int) ([]SearchEntry, error) {
	if limit <= 0 || limit > DefaultSearchLimit {
		limit = DefaultSearchLimit
	}
	if d.searchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.searchTimeout)
		defer cancel()
	}

	cmd := d.command().FlatPlaylist().DumpJSON()
	if d.socketTimeout > 0 {
		cmd = cmd.SocketTimeout(d.socketTimeout.Seconds())
	}
	res, err := cmd.Run(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query))
	if err != nil && (res == nil || res.Stdout == "") {
		return nil, fmt.Errorf("yt-dlp search %q: %w", query, err)
	}

	entries := parseSearchOutput(res.Stdout, limit, d.logger)
	d.logger.WithFields(logrus.Fields{"query": query, "results": len(entries)}).Debug("Поиск завершён")
	return entries, nil
}

// parseSearchOutput читает по одному JSON-объекту на строку, порядок сохраняется
func parseSearchOutput(out string, limit int, logger *logrus.Logger) []SearchEntry {
	var entries []SearchEntry
	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var raw ytdlpEntry
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			logger.Printf("Пропускаем некорректную строку JSON: %v", err)
			continue
		}
		if raw.ID == "" {
			continue
		}
		entries = append(entries, raw.toEntry())
		if len(entries) == limit {
			break
		}
	}
	return entries
}

func (r ytdlpEntry) toEntry() SearchEntry {
	e := SearchEntry{
		ID:       r.ID,
		Title:    r.Title,
		Uploader: r.Uploader,
		URL:      r.WebpageURL,
	}
	if e.Uploader == "" {
		e.Uploader = r.Channel
	}
	if e.URL == "" && strings.HasPrefix(r.URL, "http") {
		e.URL = r.URL
	}
	if e.URL == "" {
		e.URL = "https://www.youtube.com/watch?v=" + r.ID
	}
	if e.Title == "" {
		e.Title = r.ID
	}
	if r.Duration != nil && *r.Duration > 0 {
		e.Duration = time.Duration(*r.Duration * float64(time.Second))
	}
	return e
}
