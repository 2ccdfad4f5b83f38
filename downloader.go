package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lrstanley/go-ytdlp"
	"github.com/sirupsen/logrus"
)

// Downloader интерфейс для загрузки файлов, возвращённые пути принадлежат
// вызывающему, он же их удаляет
type Downloader interface {
	Fetch(ctx context.Context, url string, mode Mode) ([]string, error)
}

// Searcher интерфейс для поиска треков
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchEntry, error)
}

// YTDLPDownloader реализует загрузку и поиск через yt-dlp
type YTDLPDownloader struct {
	executable    string
	socketTimeout time.Duration
	fetchTimeout  time.Duration
	searchTimeout time.Duration
	outputDir     string
	logger        *logrus.Logger
}

func NewYTDLPDownloader(cfg DownloaderConfig, logger *logrus.Logger) *YTDLPDownloader {
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	return &YTDLPDownloader{
		executable:    cfg.Executable,
		socketTimeout: cfg.SocketTimeout,
		fetchTimeout:  cfg.FetchTimeout,
		searchTimeout: cfg.SearchTimeout,
		outputDir:     outputDir,
		logger:        logger,
	}
}

func (d *YTDLPDownloader) command() *ytdlp.Command {
	cmd := ytdlp.New()
	if d.executable != "" {
		cmd = cmd.SetExecutable(d.executable)
	}
	return cmd.Quiet().NoWarnings()
}

func (d *YTDLPDownloader) Fetch(ctx context.Context, url string, mode Mode) ([]string, error) {
	if d.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.fetchTimeout)
		defer cancel()
	}

	scratch, err := os.MkdirTemp("", "dl_")
	if err != nil {
		return nil, newMediaError(FailureFetch, url, err)
	}
	defer os.RemoveAll(scratch)

	cmd := d.command().
		NoPlaylist().
		IgnoreErrors().
		Output(filepath.Join(scratch, "%(title)s [%(id)s].%(ext)s"))
	if d.socketTimeout > 0 {
		cmd = cmd.SocketTimeout(d.socketTimeout.Seconds())
	}
	if mode == ModeAudio {
		cmd = cmd.Format("bestaudio/best").ExtractAudio().AudioFormat("mp3")
	} else {
		cmd = cmd.Format("bestvideo*+bestaudio/best").MergeOutputFormat("mp4").RecodeVideo("mp4")
	}

	d.logger.WithFields(logrus.Fields{"url": url, "mode": mode}).Info("Начинаем скачивание")
	if _, err := cmd.Run(ctx, url); err != nil {
		// с --ignore-errors часть файлов могла всё же скачаться
		d.logger.Printf("Ошибка скачивания с yt-dlp: %v", err)
	}

	produced, err := producedFiles(scratch)
	if err != nil {
		return nil, newMediaError(FailureFetch, url, err)
	}
	if len(produced) == 0 {
		if ctx.Err() != nil {
			return nil, newMediaError(FailureFetch, url, fmt.Errorf("%w: %v", ErrNoFiles, ctx.Err()))
		}
		return nil, newMediaError(FailureFetch, url, ErrNoFiles)
	}

	final := copyOut(produced, d.outputDir, d.logger)
	if len(final) == 0 {
		return nil, newMediaError(FailureFetch, url, ErrNoFiles)
	}
	return final, nil
}

// producedFiles список готовых файлов в dir без недокачанных частей yt-dlp
func producedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") || strings.HasSuffix(name, ".temp") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// copyOut копирует файлы из временного каталога до его удаления,
// файлы, которые не удалось скопировать, пропускаются
func copyOut(files []string, dstDir string, logger *logrus.Logger) []string {
	var out []string
	for _, src := range files {
		dst := filepath.Join(dstDir, tempFilePrefix+uuid.NewString()+strings.ToLower(filepath.Ext(src)))
		if err := copyFile(src, dst); err != nil {
			logger.Printf("Ошибка копирования %s: %v", src, err)
			os.Remove(dst)
			continue
		}
		out = append(out, dst)
	}
	return out
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func removeFiles(paths []string, logger *logrus.Logger) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.Printf("Ошибка удаления файла %s: %v", p, err)
		}
	}
}
