package logging

import "testing"

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerDoesNotPanic(t *testing.T) {
	l := New("test", LevelWarn)
	l.Debugf("dropped below threshold")
	l.Infof("also dropped")
	l.Warnf("visible")
	l.Errorf("also visible: %d", 42)
}
