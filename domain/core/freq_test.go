package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		alias   string
		wantErr bool
	}{
		{"1s", false},
		{"1m", false},
		{"30m", false},
		{"1h", false},
		{"1d", false},
		{"1w", false},
		{"1mo", false},
		{"3mo", false},
		{"1y", false},
		{"1i", false},
		{"2h", true},
		{"", true},
		{"daily", true},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			f, err := ParseFrequency(tt.alias)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFrequency) {
					t.Fatalf("expected ErrUnknownFrequency, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Alias() != tt.alias {
				t.Errorf("alias = %q, want %q", f.Alias(), tt.alias)
			}
		})
	}
}

func TestFrequencyAdd(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()

	t.Run("index steps", func(t *testing.T) {
		f := MustFrequency(FreqIndex)
		if got := f.Add(10, 3); got != 13 {
			t.Errorf("Add(10, 3) = %d, want 13", got)
		}
	})

	t.Run("hourly steps", func(t *testing.T) {
		f := MustFrequency(FreqHour)
		if got := f.Add(jan1, 2); got != jan1+7200 {
			t.Errorf("Add = %d, want %d", got, jan1+7200)
		}
	})

	t.Run("monthly steps use calendar arithmetic", func(t *testing.T) {
		f := MustFrequency(FreqMonth)
		got := f.Add(jan1, 1)
		want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).Unix()
		if got != want {
			t.Errorf("Add = %d, want %d", got, want)
		}
	})

	t.Run("quarterly spans three months", func(t *testing.T) {
		f := MustFrequency(FreqQuarter)
		got := f.Add(jan1, 2)
		want := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC).Unix()
		if got != want {
			t.Errorf("Add = %d, want %d", got, want)
		}
	})
}
