package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}

	if cfg.App.Name != "pairwatcher" {
		t.Fatalf("app.name = %q", cfg.App.Name)
	}
	if cfg.Scheduler.Interval != time.Minute {
		t.Fatalf("scheduler.interval = %s", cfg.Scheduler.Interval)
	}
	if cfg.Detector.Threshold != 100 {
		t.Fatalf("detector.threshold = %d", cfg.Detector.Threshold)
	}
	if cfg.Detector.Policy != "rate" {
		t.Fatalf("detector.policy = %q", cfg.Detector.Policy)
	}
	if cfg.Detector.Window != 10 {
		t.Fatalf("detector.window = %d", cfg.Detector.Window)
	}
	if cfg.API.ListenAddr != ":8080" {
		t.Fatalf("api.listen_addr = %q", cfg.API.ListenAddr)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
detector:
  threshold: 250
  policy: delta
  window: 4
ledger:
  owner_address: "0x00000000000000000000000000000000000000A1"
ethereum:
  rpc_url: "http://localhost:8545"
  factory_address: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
scheduler:
  interval: 30s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Detector.Threshold != 250 || cfg.Detector.Policy != "delta" || cfg.Detector.Window != 4 {
		t.Fatalf("detector section mismatch: %+v", cfg.Detector)
	}
	if cfg.Scheduler.Interval != 30*time.Second {
		t.Fatalf("scheduler.interval = %s", cfg.Scheduler.Interval)
	}
	if owner := cfg.Ledger.Owner().Hex(); !strings.EqualFold(owner, "0x00000000000000000000000000000000000000A1") {
		t.Fatalf("owner = %s", owner)
	}
}

func TestLoadBindsEnvForUnsetKeys(t *testing.T) {
	t.Setenv("PAIRWATCHER_DATABASE_DSN", "postgres://watcher@localhost:5432/pairs")
	t.Setenv("PAIRWATCHER_ETHEREUM_RPC_URL", "http://localhost:8545")
	t.Setenv("PAIRWATCHER_ETHEREUM_FACTORY_ADDRESS", "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	t.Setenv("PAIRWATCHER_LEDGER_OWNER_ADDRESS", "0x00000000000000000000000000000000000000A1")
	t.Setenv("PAIRWATCHER_ALERTING_TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("PAIRWATCHER_LOGGING_FILE", "pairwatcher.log")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Database.DSN != "postgres://watcher@localhost:5432/pairs" {
		t.Fatalf("database.dsn not bound from env: %q", cfg.Database.DSN)
	}
	if cfg.Ethereum.RPCURL != "http://localhost:8545" {
		t.Fatalf("ethereum.rpc_url not bound from env: %q", cfg.Ethereum.RPCURL)
	}
	if cfg.Ethereum.FactoryAddress != "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f" {
		t.Fatalf("ethereum.factory_address not bound from env: %q", cfg.Ethereum.FactoryAddress)
	}
	if owner := cfg.Ledger.Owner().Hex(); !strings.EqualFold(owner, "0x00000000000000000000000000000000000000A1") {
		t.Fatalf("ledger.owner_address not bound from env: %s", owner)
	}
	if cfg.Alerting.Telegram.BotToken != "123:abc" {
		t.Fatalf("alerting.telegram.bot_token not bound from env: %q", cfg.Alerting.Telegram.BotToken)
	}
	if cfg.Logging.File != "pairwatcher.log" {
		t.Fatalf("logging.file not bound from env: %q", cfg.Logging.File)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("load defaults: %v", err)
		}
		return cfg
	}

	cfg := base()
	cfg.Detector.Policy = "median"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown policy should fail validation")
	}

	cfg = base()
	cfg.Detector.Window = 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("window below 2 should fail validation")
	}

	cfg = base()
	cfg.Ledger.OwnerAddress = "not-an-address"
	if err := cfg.Validate(); err == nil {
		t.Fatal("malformed owner address should fail validation")
	}

	cfg = base()
	cfg.Alerting.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("telegram without credentials should fail validation")
	}

	cfg = base()
	cfg.API.Enabled = true
	cfg.API.ListenAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("api without listen addr should fail validation")
	}
}
