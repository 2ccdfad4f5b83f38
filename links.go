package main

import (
	"net/url"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`(?i)https?://[^\s]+`)

// DefaultAllowedDomains список поддерживаемых медиа-сайтов
var DefaultAllowedDomains = []string{
	"youtube.com", "youtu.be",
	"tiktok.com",
	"instagram.com", "cdninstagram.com",
	"facebook.com", "fb.watch",
	"twitter.com", "x.com",
	"reddit.com",
	"vk.com",
	"dailymotion.com",
	"vimeo.com",
}

// ExtractURLs все ссылки из текста в порядке появления
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// LinkClassifier проверяет хост ссылки по списку разрешённых доменов
type LinkClassifier struct {
	domains []string
}

func NewLinkClassifier(domains []string) *LinkClassifier {
	if len(domains) == 0 {
		domains = DefaultAllowedDomains
	}
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	return &LinkClassifier{domains: normalized}
}

// Classify возвращает nil для разрешённой ссылки, иначе MediaError
// с FailureClassification (не разбирается) или FailureDomain
func (c *LinkClassifier) Classify(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return newMediaError(FailureClassification, raw, ErrBadURL)
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range c.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return nil
		}
	}
	return newMediaError(FailureDomain, raw, ErrDomain)
}

func (c *LinkClassifier) IsAllowed(raw string) bool {
	return c.Classify(raw) == nil
}

var defaultClassifier = NewLinkClassifier(nil)

// IsAllowedURL проверяет ссылку по списку доменов по умолчанию
func IsAllowedURL(raw string) bool {
	return defaultClassifier.IsAllowed(raw)
}
