package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestFastPathNoTelemetry(t *testing.T) {
	// Ensure no telemetry or hooks
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	// Create an error - should use fast path
	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.GetComponent() != "unknown" {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' in fast path, got '%s'", ee.Category)
	}
}

func TestBuilderExplicitValues(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	ee := Newf("device %d busy", 2).
		Component("camera").
		Category(CategoryDevice).
		Context("device", 2).
		Build()

	if ee.GetComponent() != "camera" {
		t.Errorf("Expected component 'camera', got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryDevice {
		t.Errorf("Expected category '%s', got '%s'", CategoryDevice, ee.Category)
	}

	ctx := ee.GetContext()
	if ctx == nil {
		t.Fatal("Expected context map, got nil")
	}
	if ctx["device"] != 2 {
		t.Errorf("Expected context device=2, got %v", ctx["device"])
	}

	// The returned map is a copy, mutating it must not affect the error
	ctx["device"] = 99
	if ee.GetContext()["device"] != 2 {
		t.Error("Context copy leaked back into the error")
	}
}

func TestHookNotification(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()
	defer ClearErrorHooks()

	var seen *EnhancedError
	AddErrorHook(func(ee *EnhancedError) {
		seen = ee
	})

	ee := New(fmt.Errorf("embedding mismatch")).Category(CategoryEmbedding).Build()

	if seen == nil {
		t.Fatal("Expected hook to receive the built error")
	}
	if seen != ee {
		t.Error("Hook received a different error instance")
	}
	if seen.Category != CategoryEmbedding {
		t.Errorf("Expected category '%s', got '%s'", CategoryEmbedding, seen.Category)
	}
}

func TestCategoryDetectionHeuristics(t *testing.T) {
	cases := []struct {
		msg      string
		expected ErrorCategory
	}{
		{"failed to load model file", CategoryModelLoad},
		{"camera device busy", CategoryDevice},
		{"no face descriptor produced", CategoryEmbedding},
		{"connection refused", CategoryNetwork},
		{"invalid tolerance value", CategoryValidation},
	}

	for _, tc := range cases {
		got := detectCategory(fmt.Errorf("%s", tc.msg), "")
		if got != tc.expected {
			t.Errorf("detectCategory(%q) = %s, want %s", tc.msg, got, tc.expected)
		}
	}
}

func TestIsCategory(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	notFound := Newf("identifier not in roster").Category(CategoryNotFound).Build()

	if !IsCategory(notFound, CategoryNotFound) {
		t.Error("Expected IsCategory to match CategoryNotFound")
	}
	if IsCategory(notFound, CategoryDatabase) {
		t.Error("Expected IsCategory to reject CategoryDatabase")
	}
	if !IsNotFound(notFound) {
		t.Error("Expected IsNotFound to be true")
	}

	// Wrapped enhanced errors still match through the chain
	wrapped := fmt.Errorf("lookup: %w", notFound)
	if !IsNotFound(wrapped) {
		t.Error("Expected IsNotFound to unwrap to the enhanced error")
	}

	if IsNotFound(fmt.Errorf("plain error")) {
		t.Error("Expected IsNotFound to be false for plain errors")
	}
}

func TestRegexPrecompilation(t *testing.T) {
	t.Parallel()

	// Test that regex patterns are pre-compiled and work correctly

	// Test URL scrubbing
	testMessage1 := "Error at https://api.example.com?api_key=secret123&token=abc"
	scrubbed1 := basicURLScrub(testMessage1)
	expected1 := "Error at https://api.example.com?[REDACTED]"
	if scrubbed1 != expected1 {
		t.Errorf("URL scrubbing failed. Expected: %s, got: %s", expected1, scrubbed1)
	}

	// Test API key scrubbing in non-URL context
	testMessage2 := "Config error: api_key=secret123 is invalid"
	scrubbed2 := basicURLScrub(testMessage2)
	if !strings.Contains(scrubbed2, "[API_KEY_REDACTED]") {
		t.Errorf("API key scrubbing failed. Expected to contain '[API_KEY_REDACTED]', got: %s", scrubbed2)
	}

	// Test multiple patterns
	testMessage3 := "Auth failed with token=abc123 and auth=xyz789"
	scrubbed3 := basicURLScrub(testMessage3)
	if strings.Contains(scrubbed3, "abc123") || strings.Contains(scrubbed3, "xyz789") {
		t.Errorf("Token scrubbing failed. Sensitive data still present: %s", scrubbed3)
	}

	// Registration numbers count as identifiers
	testMessage4 := "lookup failed for regno=22BCE1234"
	scrubbed4 := basicURLScrub(testMessage4)
	if strings.Contains(scrubbed4, "22BCE1234") {
		t.Errorf("Identifier scrubbing failed. Sensitive data still present: %s", scrubbed4)
	}
}
