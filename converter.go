package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Converter интерфейс для подготовки аудиофрагмента к распознаванию
type Converter interface {
	ExtractSample(ctx context.Context, inputFile string, seconds int) (string, error)
}

type FFmpegConverter struct {
	executable string
	logger     *logrus.Logger
}

func NewFFmpegConverter(executable string, logger *logrus.Logger) *FFmpegConverter {
	if executable == "" {
		executable = "ffmpeg"
	}
	return &FFmpegConverter{executable: executable, logger: logger}
}

// ExtractSample вырезает первые seconds секунд в моно MP3, файл удаляет вызывающий
func (c *FFmpegConverter) ExtractSample(ctx context.Context, inputFile string, seconds int) (string, error) {
	outputFile := filepath.Join(os.TempDir(), "sample_"+uuid.NewString()+".mp3")
	cmd := exec.CommandContext(ctx, c.executable, sampleArgs(inputFile, outputFile, seconds)...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Run(); err != nil {
		c.logger.Printf("Ошибка нарезки фрагмента: %v, output: %s", err, stderrBuf.String())
		os.Remove(outputFile)
		return "", fmt.Errorf("ffmpeg sample: %w", err)
	}
	return outputFile, nil
}

func sampleArgs(inputFile, outputFile string, seconds int) []string {
	args := []string{"-y", "-i", inputFile}
	if seconds > 0 {
		args = append(args, "-t", strconv.Itoa(seconds))
	}
	return append(args, "-vn", "-ac", "1", "-ar", "44100", "-b:a", "128k", outputFile)
}
