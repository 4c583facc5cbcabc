package config

import "testing"

func TestLoadIncludesQueueDefaults(t *testing.T) {
	t.Setenv("QUEUE_CLASSIFICATION", "")
	t.Setenv("QUEUE_ACK_WAIT_SECONDS", "")
	t.Setenv("QUEUE_MAX_DELIVER", "")
	t.Setenv("EXPIRY_LOOKAHEAD_DAYS", "")

	cfg := Load()
	if cfg.QueueClassification != "docs.classification" {
		t.Fatalf("expected default classification queue, got %q", cfg.QueueClassification)
	}
	if cfg.QueueAckWaitSeconds != 30 {
		t.Fatalf("expected default ack wait 30, got %d", cfg.QueueAckWaitSeconds)
	}
	if cfg.QueueMaxDeliver != 5 {
		t.Fatalf("expected default max deliver 5, got %d", cfg.QueueMaxDeliver)
	}
	if cfg.ExpiryLookaheadDays != 30 {
		t.Fatalf("expected default lookahead 30, got %d", cfg.ExpiryLookaheadDays)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("QUEUE_MAX_DELIVER", "8")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("RATE_LIMIT_PER_SECOND", "2.5")
	t.Setenv("EXPIRY_SWEEP_SCHEDULE", "15 7 * * *")

	cfg := Load()
	if cfg.QueueMaxDeliver != 8 {
		t.Fatalf("expected max deliver 8, got %d", cfg.QueueMaxDeliver)
	}
	if cfg.MaxUploadBytes != 1048576 {
		t.Fatalf("expected upload cap 1 MiB, got %d", cfg.MaxUploadBytes)
	}
	if cfg.RateLimitPerSecond != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.RateLimitPerSecond)
	}
	if cfg.ExpirySweepSchedule != "15 7 * * *" {
		t.Fatalf("expected schedule override, got %q", cfg.ExpirySweepSchedule)
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("QUEUE_MAX_DELIVER", "not-a-number")

	cfg := Load()
	if cfg.QueueMaxDeliver != 5 {
		t.Fatalf("expected fallback max deliver 5, got %d", cfg.QueueMaxDeliver)
	}
}
