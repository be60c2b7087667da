package logger

import "testing"

func TestSetupFormats(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		Setup("info", format)
		if Log == nil {
			t.Fatalf("Log nil after Setup(%q)", format)
		}
		Log.Info("test message", "key", "value")
	}
}

func TestSetupLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		Setup(level, "json")
		Log.Debug("debug line")
		Log.Warn("warn line", "n", 1)
		Log.Error("error line", "err", "synthetic")
	}
	Setup("info", "console")
}

func TestOddKeyValuePairs(t *testing.T) {
	// A trailing key without a value must not panic.
	Log.Info("message", "orphan")
	Log.Info("message", "key", "value", "orphan")
	Log.Info("message", 42, "non-string key")
}
