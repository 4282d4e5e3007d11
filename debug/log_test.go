package debug

import (
	"bytes"
	"strings"
	"testing"
)

func TestLog_DisabledWritesNothing(t *testing.T) {
	Disable()
	Log("test", "hello %d", 1)
	if Enabled() {
		t.Fatal("expected logging to be disabled")
	}
}

func TestLog_WritesCategoryAndMessage(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	Log("player", "seek to %s", "1s")

	out := buf.String()
	if !strings.Contains(out, "player") || !strings.Contains(out, "seek to 1s") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestLogEvery_Throttles(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()
	buf.Reset()

	for i := 0; i < 10; i++ {
		LogEvery(5, "tick", "update")
	}

	if got := strings.Count(buf.String(), "update"); got != 2 {
		t.Errorf("logged %d times, want 2:\n%s", got, buf.String())
	}
}
