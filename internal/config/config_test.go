package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"QUIZ_DURATION_SECONDS", "SUBMIT_DELAY_MS", "PASS_THRESHOLD", "QUESTION_SOURCE", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.QuizDuration != 1500*time.Second {
		t.Errorf("expected 1500s, got %s", cfg.QuizDuration)
	}
	if cfg.SubmitDelay != 800*time.Millisecond {
		t.Errorf("expected 800ms, got %s", cfg.SubmitDelay)
	}
	if cfg.PassThreshold != 60 {
		t.Errorf("expected 60, got %v", cfg.PassThreshold)
	}
	if cfg.QuestionSource != SourcePostgres {
		t.Errorf("expected postgres, got %q", cfg.QuestionSource)
	}
	if cfg.AllowedOrigins != nil {
		t.Errorf("expected allow-all origins, got %v", cfg.AllowedOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("QUIZ_DURATION_SECONDS", "90")
	t.Setenv("SUBMIT_DELAY_MS", "0")
	t.Setenv("PASS_THRESHOLD", "75.5")
	t.Setenv("QUESTION_SOURCE", " FILE ")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()

	if cfg.QuizDuration != 90*time.Second {
		t.Errorf("expected 90s, got %s", cfg.QuizDuration)
	}
	if cfg.SubmitDelay != 0 {
		t.Errorf("expected 0, got %s", cfg.SubmitDelay)
	}
	if cfg.PassThreshold != 75.5 {
		t.Errorf("expected 75.5, got %v", cfg.PassThreshold)
	}
	if cfg.QuestionSource != SourceFile {
		t.Errorf("expected file, got %q", cfg.QuestionSource)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoad_BadNumbersFallBack(t *testing.T) {
	t.Setenv("QUIZ_DURATION_SECONDS", "soon")
	t.Setenv("PASS_THRESHOLD", "most")

	cfg := Load()

	if cfg.QuizDuration != 1500*time.Second || cfg.PassThreshold != 60 {
		t.Errorf("expected defaults, got %s and %v", cfg.QuizDuration, cfg.PassThreshold)
	}
}

func TestCacheKey(t *testing.T) {
	if got := CacheKey.QuestionSetKey("physics", "2023", "dhaka"); got != "questions:physics:2023:dhaka" {
		t.Errorf("unexpected key %q", got)
	}
	if got := CacheKey.SessionSnapshotKey("abc"); got != "session:abc:snapshot" {
		t.Errorf("unexpected key %q", got)
	}
}
