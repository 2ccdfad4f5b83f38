package main

import (
	"errors"
	"fmt"
)

var (
	ErrBadURL      = errors.New("malformed url")
	ErrDomain      = errors.New("domain is not allowed")
	ErrNoFiles     = errors.New("no files produced")
	ErrTooLarge    = errors.New("file exceeds upload limit")
	ErrTooLong     = errors.New("media exceeds duration limit")
	ErrNoMatch     = errors.New("no match")
	ErrNoSession   = errors.New("session not found")
	ErrBadCallback = errors.New("malformed callback payload")
	ErrNoPreview   = errors.New("preview not available")
)

// FailureKind категория ошибки, по которой обработчики выбирают ответ пользователю
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureClassification
	FailureDomain
	FailureFetch
	FailureOversize
	FailureSend
	FailureRecognition
)

func (k FailureKind) String() string {
	switch k {
	case FailureClassification:
		return "classification"
	case FailureDomain:
		return "domain"
	case FailureFetch:
		return "fetch"
	case FailureOversize:
		return "oversize"
	case FailureSend:
		return "send"
	case FailureRecognition:
		return "recognition"
	default:
		return "unknown"
	}
}

// MediaError связывает ошибку с её категорией и исходным URL
type MediaError struct {
	Kind FailureKind
	URL  string
	Err  error
}

func (e *MediaError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *MediaError) Unwrap() error { return e.Err }

func newMediaError(kind FailureKind, url string, err error) *MediaError {
	return &MediaError{Kind: kind, URL: url, Err: err}
}

// KindOf категория ошибки err или FailureUnknown
func KindOf(err error) FailureKind {
	var me *MediaError
	if errors.As(err, &me) {
		return me.Kind
	}
	return FailureUnknown
}
