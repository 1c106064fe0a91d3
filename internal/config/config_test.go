package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Pipeline.DeadlineMarginMS != 1000 {
		t.Fatalf("expected default margin 1000, got %d", cfg.Pipeline.DeadlineMarginMS)
	}
	if cfg.Retention.Capacity != 2 {
		t.Fatalf("expected default retention capacity 2, got %d", cfg.Retention.Capacity)
	}
	if cfg.Escalation.WindowMS != 30000 || cfg.Escalation.CooldownMS != 60000 {
		t.Fatalf("unexpected escalation defaults: %+v", cfg.Escalation)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VIGIL_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("VIGIL_BUS_USERNAME", "alice")
	t.Setenv("VIGIL_BUS_PASSWORD", "secret")
	t.Setenv("VIGIL_PIPELINE_DEADLINE_MARGIN_MS", "500")
	t.Setenv("VIGIL_PIPELINE_QUEUE_DEPTH", "8")
	t.Setenv("VIGIL_ESCALATION_WINDOW_MS", "15000")
	t.Setenv("VIGIL_ESCALATION_COOLDOWN_MS", "45000")
	t.Setenv("VIGIL_RETENTION_MODE", "sqlite")
	t.Setenv("VIGIL_RETENTION_PATH", "./tmp.db")
	t.Setenv("VIGIL_RETENTION_CAPACITY", "5")
	t.Setenv("VIGIL_SCORER_CLASSIFIER_ENABLED", "true")
	t.Setenv("VIGIL_SCORER_CLASSIFIER_MODE", "http")
	t.Setenv("VIGIL_SCORER_CLASSIFIER_ENDPOINT", "http://localhost:9000/classify")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if cfg.Pipeline.DeadlineMarginMS != 500 {
		t.Fatalf("expected margin override, got %d", cfg.Pipeline.DeadlineMarginMS)
	}
	if cfg.Pipeline.QueueDepth != 8 {
		t.Fatalf("expected queue depth override, got %d", cfg.Pipeline.QueueDepth)
	}
	if cfg.Escalation.WindowMS != 15000 || cfg.Escalation.CooldownMS != 45000 {
		t.Fatalf("expected escalation overrides, got %+v", cfg.Escalation)
	}
	if cfg.Retention.Mode != "sqlite" || cfg.Retention.Path != "./tmp.db" || cfg.Retention.Capacity != 5 {
		t.Fatalf("expected retention overrides, got %+v", cfg.Retention)
	}
	if !cfg.Scorer.ClassifierEnabled || cfg.Scorer.ClassifierMode != "http" {
		t.Fatalf("expected classifier overrides, got %+v", cfg.Scorer)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero margin", func(c *Config) { c.Pipeline.DeadlineMarginMS = 0 }},
		{"zero retention capacity", func(c *Config) { c.Retention.Capacity = 0 }},
		{"bad retention mode", func(c *Config) { c.Retention.Mode = "redis" }},
		{"bad keyword tier", func(c *Config) {
			c.Scorer.KeywordTiers = []KeywordTier{{Tier: "catastrophic", Terms: []string{"x"}}}
		}},
		{"exec transcriber without command", func(c *Config) { c.Transcriber.Mode = "exec" }},
		{"classifier http without endpoint", func(c *Config) {
			c.Scorer.ClassifierEnabled = true
			c.Scorer.ClassifierMode = "http"
		}},
		{"webhook sink without url", func(c *Config) {
			c.Alerts.Sinks = []AlertSinkConfig{{Type: "webhook"}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
