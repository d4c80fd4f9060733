package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("segment %d", 3)
	if got != "segment 3" {
		t.Errorf("custom logger got %q, want %q", got, "segment 3")
	}

	got = ""
	SetLogger(nil)
	Logf("muted")
	if got != "" {
		t.Errorf("no-op logger should not reach the previous logger, got %q", got)
	}
}

func TestQuiet(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	calls := 0
	SetLogger(func(string, ...interface{}) { calls++ })

	restore := Quiet()
	Logf("hidden")
	if calls != 0 {
		t.Fatalf("expected muted logger, got %d calls", calls)
	}

	restore()
	Logf("visible")
	if calls != 1 {
		t.Errorf("expected restored logger to be called once, got %d", calls)
	}
}

func TestPrefixed(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	logf := Prefixed("pointer")

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	logf("skipped line %q", "x")
	if want := `pointer: skipped line "x"`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
