package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	acrIdentifyPath = "/v1/identify"
	acrNoResultCode = 1001
)

// Track результат распознавания
type Track struct {
	Title   string
	Artists []string
	Album   string
}

func (t Track) Artist() string { return strings.Join(t.Artists, ", ") }

// Query строка для поиска найденного трека
func (t Track) Query() string {
	if a := t.Artist(); a != "" {
		return a + " " + t.Title
	}
	return t.Title
}

// Recognizer интерфейс для распознавания песни по фрагменту
type Recognizer interface {
	Recognize(ctx context.Context, samplePath string) (Track, error)
}

// ACRCloudRecognizer клиент ACRCloud identify API
type ACRCloudRecognizer struct {
	endpoint     string
	accessKey    string
	accessSecret string
	client       *http.Client
	logger       *logrus.Logger
	now          func() time.Time
}

func NewACRCloudRecognizer(cfg RecognizerConfig, logger *logrus.Logger) *ACRCloudRecognizer {
	endpoint := strings.TrimRight(cfg.Host, "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	return &ACRCloudRecognizer{
		endpoint:     endpoint + acrIdentifyPath,
		accessKey:    cfg.AccessKey,
		accessSecret: cfg.AccessSecret,
		client:       &http.Client{Timeout: cfg.Timeout},
		logger:       logger,
		now:          time.Now,
	}
}

func (r *ACRCloudRecognizer) sign(timestamp string) string {
	stringToSign := strings.Join([]string{
		http.MethodPost, acrIdentifyPath, r.accessKey, "audio", "1", timestamp,
	}, "\n")
	mac := hmac.New(sha1.New, []byte(r.accessSecret))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type acrResponse struct {
	Status struct {
		Msg  string `json:"msg"`
		Code int    `json:"code"`
	} `json:"status"`
	Metadata struct {
		Music []struct {
			Title   string `json:"title"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Name string `json:"name"`
			} `json:"album"`
		} `json:"music"`
	} `json:"metadata"`
}

func (r *ACRCloudRecognizer) Recognize(ctx context.Context, samplePath string) (Track, error) {
	sample, err := os.ReadFile(samplePath)
	if err != nil {
		return Track{}, newMediaError(FailureRecognition, "", err)
	}

	timestamp := strconv.FormatInt(r.now().Unix(), 10)
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := map[string]string{
		"access_key":        r.accessKey,
		"sample_bytes":      strconv.Itoa(len(sample)),
		"timestamp":         timestamp,
		"signature":         r.sign(timestamp),
		"data_type":         "audio",
		"signature_version": "1",
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return Track{}, newMediaError(FailureRecognition, "", err)
		}
	}
	part, err := w.CreateFormFile("sample", filepath.Base(samplePath))
	if err != nil {
		return Track{}, newMediaError(FailureRecognition, "", err)
	}
	if _, err := part.Write(sample); err != nil {
		return Track{}, newMediaError(FailureRecognition, "", err)
	}
	if err := w.Close(); err != nil {
		return Track{}, newMediaError(FailureRecognition, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &body)
	if err != nil {
		return Track{}, newMediaError(FailureRecognition, "", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return Track{}, newMediaError(FailureRecognition, "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Track{}, newMediaError(FailureRecognition, "", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Track{}, newMediaError(FailureRecognition, "", fmt.Errorf("acrcloud status %d: %s", resp.StatusCode, string(raw)))
	}

	var parsed acrResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Track{}, newMediaError(FailureRecognition, "", fmt.Errorf("decode acrcloud response: %w", err))
	}
	switch {
	case parsed.Status.Code == acrNoResultCode:
		return Track{}, newMediaError(FailureRecognition, "", ErrNoMatch)
	case parsed.Status.Code != 0:
		return Track{}, newMediaError(FailureRecognition, "", fmt.Errorf("acrcloud code %d: %s", parsed.Status.Code, parsed.Status.Msg))
	case len(parsed.Metadata.Music) == 0:
		return Track{}, newMediaError(FailureRecognition, "", ErrNoMatch)
	}

	best := parsed.Metadata.Music[0]
	track := Track{Title: best.Title, Album: best.Album.Name}
	for _, a := range best.Artists {
		track.Artists = append(track.Artists, a.Name)
	}
	r.logger.WithFields(logrus.Fields{"title": track.Title, "artist": track.Artist()}).Info("Трек распознан")
	return track, nil
}
