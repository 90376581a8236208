package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	registry := NewSuspensionRegistry()

	if err := Guard(nil, SectionIssuance); err != nil {
		t.Fatalf("nil view must pass: %v", err)
	}
	if err := Guard(registry, SectionIssuance); err != nil {
		t.Fatalf("unsuspended section must pass: %v", err)
	}

	registry.Suspend(SectionIssuance, "debt ratio deviation")
	if err := Guard(registry, SectionIssuance); !errors.Is(err, ErrSectionSuspended) {
		t.Fatalf("err = %v, want ErrSectionSuspended", err)
	}
	if err := Guard(registry, SectionBurning); err != nil {
		t.Fatalf("unrelated section must pass: %v", err)
	}

	registry.Resume(SectionIssuance)
	if err := Guard(registry, SectionIssuance); err != nil {
		t.Fatalf("resumed section must pass: %v", err)
	}
}

func TestSuspensionRegistryReason(t *testing.T) {
	registry := NewSuspensionRegistry()

	if _, ok := registry.Reason(SectionClaims); ok {
		t.Fatal("no reason expected before suspension")
	}
	registry.Suspend(SectionClaims, "incident")
	reason, ok := registry.Reason(SectionClaims)
	if !ok || reason != "incident" {
		t.Fatalf("reason = %q ok = %v", reason, ok)
	}
	registry.Suspend(SectionClaims, "followup")
	reason, _ = registry.Reason(SectionClaims)
	if reason != "followup" {
		t.Fatalf("reason = %q, want updated", reason)
	}
}

func TestSuspensionRegistryOnChange(t *testing.T) {
	registry := NewSuspensionRegistry()
	var gotSection, gotReason string
	calls := 0
	registry.OnChange(func(section, reason string) {
		gotSection, gotReason = section, reason
		calls++
	})

	registry.Suspend(SectionFeePeriod, "maintenance")
	if calls != 1 || gotSection != SectionFeePeriod || gotReason != "maintenance" {
		t.Fatalf("calls = %d section = %q reason = %q", calls, gotSection, gotReason)
	}
	registry.Resume(SectionFeePeriod)
	if calls != 2 || gotReason != "" {
		t.Fatalf("calls = %d reason = %q after resume", calls, gotReason)
	}
}
