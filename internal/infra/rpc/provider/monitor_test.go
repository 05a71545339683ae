package provider

import (
	"testing"
	"time"
)

func TestMonitorAccumulation(t *testing.T) {
	m := NewProviderMonitor()

	m.RecordRequest(100 * time.Millisecond)

	stats := m.GetStats()
	if stats.RequestsLast1Hour != 1 {
		t.Errorf("Expected 1 request, got %d", stats.RequestsLast1Hour)
	}

	for i := 0; i < 100; i++ {
		m.RecordRequest(50 * time.Millisecond)
	}

	stats = m.GetStats()
	if stats.RequestsLast1Hour != 101 {
		t.Errorf("Expected 101 requests, got %d", stats.RequestsLast1Hour)
	}
	if stats.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %v", stats.Status)
	}
}

func TestMonitorThrottled(t *testing.T) {
	m := NewProviderMonitor()

	m.RecordThrottle("30")
	m.RecordThrottle("30")
	if got := m.CheckProviderStatus(); got != StatusHealthy {
		t.Errorf("two 429s should not mark throttled, got %v", got)
	}

	m.RecordThrottle("30")
	if got := m.CheckProviderStatus(); got != StatusThrottled {
		t.Errorf("Expected throttled, got %v", got)
	}

	if ra := m.GetRetryAfter(); ra <= 0 || ra > 30*time.Second {
		t.Errorf("GetRetryAfter() = %v, want (0, 30s]", ra)
	}
}

func TestMonitorAuthRejectedUntilSuccess(t *testing.T) {
	m := NewProviderMonitor()

	m.RecordAuthFailure(401)
	m.RecordAuthFailure(403)
	stats := m.GetStats()
	if stats.Status != StatusBlocked {
		t.Errorf("Expected blocked, got %v", stats.Status)
	}
	if stats.AuthFailures401 != 1 || stats.AuthFailures403 != 1 {
		t.Errorf("auth counters = %d/%d", stats.AuthFailures401, stats.AuthFailures403)
	}

	m.RecordRequest(10 * time.Millisecond)
	if got := m.CheckProviderStatus(); got != StatusHealthy {
		t.Errorf("success should clear blocked status, got %v", got)
	}
}

func TestMonitorDegraded(t *testing.T) {
	m := NewProviderMonitor()
	for i := 0; i < 12; i++ {
		m.RecordRequest(4 * time.Second)
	}
	if got := m.CheckProviderStatus(); got != StatusDegraded {
		t.Errorf("Expected degraded, got %v", got)
	}
}
