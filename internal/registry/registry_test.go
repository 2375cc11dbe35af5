package registry

import (
	"path/filepath"
	"testing"

	tfterrors "github.com/tft-collector/tftcollector/internal/errors"
)

func newTestRegistry(t *testing.T) *Embedded {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.json")
	reg, err := NewEmbedded(path, DefaultEmbeddedOptions())
	if err != nil {
		t.Fatalf("NewEmbedded: %v", err)
	}
	return reg
}

func TestClaim_FirstTimeIsClaimed(t *testing.T) {
	reg := newTestRegistry(t)
	result, err := reg.Claim("NA1_1", "20251101")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if result != Claimed {
		t.Fatalf("Claim result = %v, want Claimed", result)
	}
}

func TestClaim_SkipsComplete(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.Claim("NA1_1", "20251101"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := reg.Complete("NA1_1", "20251101"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	result, err := reg.Claim("NA1_1", "20251108")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if result != SkipComplete {
		t.Fatalf("Claim result = %v, want SkipComplete", result)
	}
}

func TestClaim_SkipsInFlight(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.Claim("NA1_1", "20251101"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	result, err := reg.Claim("NA1_1", "20251101")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if result != SkipInFlight {
		t.Fatalf("Claim result = %v, want SkipInFlight", result)
	}
}

func TestComplete_FreezesStatus(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.Complete("NA1_1", "20251101"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := reg.Fail("NA1_1", tfterrors.CategoryTransport); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	status, err := reg.Status("NA1_1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != StatusComplete {
		t.Fatalf("status after Fail on a COMPLETE match = %v, want COMPLETE (frozen)", status)
	}
}

func TestStatus_UnseenIsBloomShortCircuited(t *testing.T) {
	reg := newTestRegistry(t)
	status, err := reg.Status("NA1_never_seen")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != StatusUnseen {
		t.Fatalf("status = %v, want UNSEEN", status)
	}
}

func TestFlushLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	reg, err := NewEmbedded(path, DefaultEmbeddedOptions())
	if err != nil {
		t.Fatalf("NewEmbedded: %v", err)
	}
	if err := reg.Complete("NA1_1", "20251101"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := reg.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reloaded, err := NewEmbedded(path, DefaultEmbeddedOptions())
	if err != nil {
		t.Fatalf("reload NewEmbedded: %v", err)
	}
	status, err := reloaded.Status("NA1_1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != StatusComplete {
		t.Fatalf("reloaded status = %v, want COMPLETE", status)
	}
}
