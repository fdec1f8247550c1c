package poolconfig

import (
	"testing"
)

func TestPresetsValidate(t *testing.T) {
	if err := Validate(Dev("dev-chain", "https://node-a")); err != nil {
		t.Fatalf("Dev preset failed validation: %v", err)
	}
	if err := Validate(Testnet("testnet-chain", "https://node-a", "https://node-b")); err != nil {
		t.Fatalf("Testnet preset failed validation: %v", err)
	}
	if err := Validate(Prod("prod-chain", "https://node-a", "https://node-b", "https://node-c")); err != nil {
		t.Fatalf("Prod preset failed validation: %v", err)
	}
}

func TestValidateRejectsEmptyEndpoints(t *testing.T) {
	cfg := Dev("dev-chain")
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for zero endpoints")
	}
}

func TestValidateRejectsDuplicateEndpoints(t *testing.T) {
	cfg := Testnet("dup", "https://node-a", "https://node-a")
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for duplicate endpoint url")
	}
}

func TestValidateRejectsOversizedMinConnections(t *testing.T) {
	cfg := Dev("oversized", "https://node-a")
	cfg.MinConnections = 1000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error when min_connections exceeds capacity")
	}
}

func TestValidateRejectsNonPositiveIntervals(t *testing.T) {
	cfg := Dev("intervals", "https://node-a")
	cfg.HealthCheckInterval = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for zero health_check_interval")
	}

	cfg = Dev("intervals", "https://node-a")
	cfg.IdleTimeout = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for zero idle_timeout")
	}
}
