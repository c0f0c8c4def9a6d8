package config

import "testing"

func TestLogLevelIsValid(t *testing.T) {
	valid := []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, ""}
	for _, l := range valid {
		if !l.IsValid() {
			t.Errorf("expected %q to be valid", l)
		}
	}
	if LogLevel("verbose").IsValid() {
		t.Error("expected 'verbose' to be invalid")
	}
}
