package domain

import (
	"testing"
	"time"
)

func TestParseEffectStatus(t *testing.T) {
	for _, s := range []string{"INACTIVE", "ACTIVE", "EXPIRED"} {
		got, err := ParseEffectStatus(s)
		if err != nil {
			t.Errorf("ParseEffectStatus(%q) unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseEffectStatus(%q) = %q", s, got)
		}
	}
	if _, err := ParseEffectStatus("CANCELLED"); err == nil {
		t.Error("ParseEffectStatus(\"CANCELLED\") expected error, got nil")
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to EffectStatus
		want     bool
	}{
		{StatusInactive, StatusActive, true},
		{StatusInactive, StatusExpired, true},
		{StatusActive, StatusExpired, true},
		{StatusActive, StatusInactive, false},
		{StatusExpired, StatusActive, false},
		{StatusExpired, StatusInactive, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestEntitlementExhaustion(t *testing.T) {
	e := UserEntitlement{UsageLimit: 2, UsedTime: 1}
	if e.UsageExhausted() {
		t.Error("one use left, should not be exhausted")
	}
	e.UsedTime = 2
	if !e.UsageExhausted() {
		t.Error("limit reached, should be exhausted")
	}
	unlimited := UserEntitlement{UsageLimit: 0, UsedTime: 1000}
	if unlimited.UsageExhausted() {
		t.Error("unlimited entitlement must never exhaust")
	}
}

func TestEntitlementTimeExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	e := UserEntitlement{EndDate: &past}
	if !e.TimeExpired(now) {
		t.Error("end date in the past, should be expired")
	}
	lifetime := UserEntitlement{EndDate: nil}
	if lifetime.TimeExpired(now) {
		t.Error("lifetime entitlement must never time-expire")
	}
}

func TestJobSearchable(t *testing.T) {
	now := time.Now()
	j := Job{Status: JobOpen, ExpiresAt: now.Add(24 * time.Hour)}
	if !j.Searchable(now) {
		t.Error("open unexpired job should be searchable")
	}
	j.Status = JobClosed
	if j.Searchable(now) {
		t.Error("closed job should not be searchable")
	}
	j.Status = JobOpen
	j.ExpiresAt = now.Add(-time.Minute)
	if j.Searchable(now) {
		t.Error("expired job should not be searchable")
	}
}
