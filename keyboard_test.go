package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestResultsKeyboard(t *testing.T) {
	for n := 1; n <= DefaultSearchLimit; n++ {
		t.Run(fmt.Sprintf("%d results", n), func(t *testing.T) {
			markup := ResultsKeyboard(n)
			rows := markup.InlineKeyboard
			if len(rows) < 2 {
				t.Fatalf("expected at least a number row and a control row, got %d rows", len(rows))
			}

			var numbered []string
			for _, row := range rows[:len(rows)-1] {
				if len(row) > buttonsPerRow {
					t.Errorf("row has %d buttons, limit is %d", len(row), buttonsPerRow)
				}
				for _, b := range row {
					numbered = append(numbered, *b.CallbackData)
					if want := strings.TrimPrefix(*b.CallbackData, "pick_"); b.Text != want {
						t.Errorf("button text %q does not match payload %q", b.Text, *b.CallbackData)
					}
				}
			}
			if len(numbered) != n {
				t.Fatalf("expected %d numbered buttons, got %d", n, len(numbered))
			}
			for i, data := range numbered {
				if want := fmt.Sprintf("pick_%d", i+1); data != want {
					t.Errorf("button %d: expected %q, got %q", i, want, data)
				}
			}

			control := rows[len(rows)-1]
			if len(control) != 2 || *control[0].CallbackData != "refresh" || *control[1].CallbackData != "cancel" {
				t.Errorf("unexpected control row: %+v", control)
			}
		})
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Callback
		wantErr bool
	}{
		{name: "pick", data: "pick_3", want: Callback{Kind: CallbackPick, Index: 3}},
		{name: "pick ten", data: "pick_10", want: Callback{Kind: CallbackPick, Index: 10}},
		{name: "audio", data: "aud_dQw4w9WgXcQ", want: Callback{Kind: CallbackAudio, ID: "dQw4w9WgXcQ"}},
		{name: "video id with underscore", data: "vid_a_b-c", want: Callback{Kind: CallbackVideo, ID: "a_b-c"}},
		{name: "refresh", data: "refresh", want: Callback{Kind: CallbackRefresh}},
		{name: "cancel", data: "cancel", want: Callback{Kind: CallbackCancel}},
		{name: "back", data: "back", want: Callback{Kind: CallbackBack}},
		{name: "pick zero", data: "pick_0", wantErr: true},
		{name: "pick negative", data: "pick_-1", wantErr: true},
		{name: "pick not a number", data: "pick_x", wantErr: true},
		{name: "empty audio id", data: "aud_", wantErr: true},
		{name: "unknown", data: "download", wantErr: true},
		{name: "empty", data: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCallback(tt.data)
			if tt.wantErr {
				if !errors.Is(err, ErrBadCallback) {
					t.Fatalf("expected ErrBadCallback, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestTrackKeyboard(t *testing.T) {
	entry := SearchEntry{ID: "abc123", Title: "Ocean Eyes", URL: "https://www.youtube.com/watch?v=abc123"}
	rows := TrackKeyboard(entry).InlineKeyboard
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if *rows[0][0].CallbackData != "aud_abc123" || *rows[0][1].CallbackData != "vid_abc123" {
		t.Errorf("unexpected action row: %q %q", *rows[0][0].CallbackData, *rows[0][1].CallbackData)
	}
	if rows[1][0].URL == nil || *rows[1][0].URL != entry.URL {
		t.Errorf("expected source button to link %s", entry.URL)
	}
	if *rows[1][1].CallbackData != "back" {
		t.Errorf("expected back button, got %q", *rows[1][1].CallbackData)
	}
}

func TestResultsText(t *testing.T) {
	entries := []SearchEntry{
		{ID: "1", Title: "Ocean Eyes", Uploader: "Billie Eilish", Duration: 200 * time.Second},
		{ID: "2", Title: "Ocean Eyes (Live)"},
	}
	text := ResultsText("ocean eyes", entries)

	for _, want := range []string{
		"Результаты по запросу «ocean eyes»:",
		"1. Ocean Eyes — Billie Eilish (3:20)",
		"2. Ocean Eyes (Live)\n",
		"Выберите номер трека:",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected text to contain %q, got:\n%s", want, text)
		}
	}
}

func TestTrackText(t *testing.T) {
	entry := SearchEntry{Title: "Ocean Eyes", Uploader: "Billie Eilish", Duration: 200 * time.Second, URL: "https://youtu.be/x"}
	want := "Ocean Eyes\nBillie Eilish · 3:20\nhttps://youtu.be/x"
	if got := TrackText(entry); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
