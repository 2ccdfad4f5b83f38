package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// tempFilePrefix префикс файлов, которые бот создаёт во временном каталоге
const tempFilePrefix = "tg_"

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// CachedFile file_id уже отправленного в Telegram файла
type CachedFile struct {
	FileID string
	Kind   MediaKind
}

// FileRecord хранит информацию о файле для очистки
type FileRecord struct {
	Path      string
	CreatedAt time.Time
}

// Storage интерфейс для работы с хранилищем
type Storage interface {
	SaveTask(url string, mode Mode) (int64, error)
	UpdateTaskStatus(id int64, status, filePath string) error
	GetCachedFile(url string, mode Mode) (CachedFile, bool, error)
	StoreCachedFile(url string, mode Mode, file CachedFile) error
	DeleteCachedFile(url string, mode Mode) error
	StoreFileRecord(filePath string)
	ForgetFileRecord(filePath string)
}

type SQLiteStorage struct {
	db     *sql.DB
	files  sync.Map
	logger *logrus.Logger
}

func NewSQLiteStorage(dbPath string, logger *logrus.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS downloads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL,
			mode TEXT NOT NULL,
			file_path TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS file_cache (
			url TEXT NOT NULL,
			mode TEXT NOT NULL,
			file_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (url, mode)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStorage{db: db, logger: logger}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) SaveTask(url string, mode Mode) (int64, error) {
	res, err := s.db.Exec("INSERT INTO downloads (url, mode, status) VALUES (?, ?, ?)", url, string(mode), StatusPending)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStorage) UpdateTaskStatus(id int64, status, filePath string) error {
	_, err := s.db.Exec("UPDATE downloads SET status = ?, file_path = ? WHERE id = ?", status, filePath, id)
	return err
}

// TaskStatus возвращает статус задачи, нужен в основном для тестов и отладки
func (s *SQLiteStorage) TaskStatus(id int64) (string, error) {
	var status string
	err := s.db.QueryRow("SELECT status FROM downloads WHERE id = ?", id).Scan(&status)
	return status, err
}

func (s *SQLiteStorage) GetCachedFile(url string, mode Mode) (CachedFile, bool, error) {
	var file CachedFile
	var kind string
	err := s.db.QueryRow("SELECT file_id, kind FROM file_cache WHERE url = ? AND mode = ?", url, string(mode)).Scan(&file.FileID, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedFile{}, false, nil
	}
	if err != nil {
		return CachedFile{}, false, err
	}
	file.Kind = MediaKind(kind)
	return file, true, nil
}

func (s *SQLiteStorage) StoreCachedFile(url string, mode Mode, file CachedFile) error {
	_, err := s.db.Exec(`
		INSERT INTO file_cache (url, mode, file_id, kind) VALUES (?, ?, ?, ?)
		ON CONFLICT (url, mode) DO UPDATE SET file_id = excluded.file_id, kind = excluded.kind, created_at = CURRENT_TIMESTAMP
	`, url, string(mode), file.FileID, string(file.Kind))
	return err
}

// DeleteCachedFile убирает устаревший file_id (например, Telegram его больше не принимает)
func (s *SQLiteStorage) DeleteCachedFile(url string, mode Mode) error {
	_, err := s.db.Exec("DELETE FROM file_cache WHERE url = ? AND mode = ?", url, string(mode))
	return err
}

func (s *SQLiteStorage) StoreFileRecord(filePath string) {
	s.files.Store(filePath, FileRecord{
		Path:      filePath,
		CreatedAt: time.Now(),
	})
}

func (s *SQLiteStorage) ForgetFileRecord(filePath string) {
	s.files.Delete(filePath)
}

// CleanupWorker удаляет забытые файлы старше maxAge, пока не отменён ctx,
// в каталогах dirs дополнительно удаляются осиротевшие файлы с префиксом tg_
func (s *SQLiteStorage) CleanupWorker(ctx context.Context, interval, maxAge time.Duration, dirs ...string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(time.Now(), maxAge, dirs)
		}
	}
}

func (s *SQLiteStorage) cleanup(now time.Time, maxAge time.Duration, dirs []string) {
	s.files.Range(func(key, value any) bool {
		record := value.(FileRecord)
		if now.Sub(record.CreatedAt) > maxAge {
			s.logger.Printf("Удаляем старый файл: %s", record.Path)
			if err := os.Remove(record.Path); err != nil && !os.IsNotExist(err) {
				s.logger.Printf("Ошибка удаления файла: %v", err)
			}
			s.files.Delete(key)
		}
		return true
	})
	for _, dir := range dirs {
		if n := sweepTempFiles(dir, tempFilePrefix, now, maxAge, s.logger); n > 0 {
			s.logger.Printf("Удалено временных файлов в %s: %d", dir, n)
		}
	}
}

// sweepTempFiles удаляет файлы с префиксом старше maxAge и возвращает их число
func sweepTempFiles(dir, prefix string, now time.Time, maxAge time.Duration, logger *logrus.Logger) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Printf("Cleanup: не удалось прочитать %s: %v", dir, err)
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			logger.Printf("Cleanup: не удалось удалить %s: %v", e.Name(), err)
			continue
		}
		removed++
	}
	return removed
}
