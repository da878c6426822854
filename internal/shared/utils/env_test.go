package utils

import "testing"

func TestGetEnv(t *testing.T) {
	t.Setenv("TRADERS_TEST_STRING", "value")
	t.Setenv("TRADERS_TEST_EMPTY", "")
	t.Setenv("TRADERS_TEST_INT", "42")
	t.Setenv("TRADERS_TEST_BAD_INT", "forty")
	t.Setenv("TRADERS_TEST_BOOL", "true")

	if got := GetEnv("TRADERS_TEST_STRING", "fallback"); got != "value" {
		t.Errorf("GetEnv(set) = %q, want %q", got, "value")
	}
	if got := GetEnv("TRADERS_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Errorf("GetEnv(empty) = %q, want %q", got, "fallback")
	}
	if got := GetEnvInt("TRADERS_TEST_INT", 7); got != 42 {
		t.Errorf("GetEnvInt(set) = %d, want 42", got)
	}
	if got := GetEnvInt("TRADERS_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("GetEnvInt(malformed) = %d, want 7", got)
	}
	if got := GetEnvBool("TRADERS_TEST_BOOL", false); !got {
		t.Errorf("GetEnvBool(set) = %v, want true", got)
	}
	if got := GetEnvBool("TRADERS_TEST_UNSET", true); !got {
		t.Errorf("GetEnvBool(unset) = %v, want true", got)
	}
}
