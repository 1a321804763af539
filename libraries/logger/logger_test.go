package logger

import (
	"bytes"
	"strings"
	"testing"
)

func withCapturedOutput(t *testing.T, fn func(buf *bytes.Buffer)) {
	t.Helper()

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)
	defer SetMinLevel(LevelInfo)
	defer SetCategoryFilter(nil)

	fn(&buf)
}

func TestPrintfIncludesCategory(t *testing.T) {
	withCapturedOutput(t, func(buf *bytes.Buffer) {
		Printf("startup", "hello %d", 42)

		out := buf.String()
		if !strings.Contains(out, "startup") {
			t.Errorf("output missing category: %q", out)
		}
		if !strings.Contains(out, "hello 42") {
			t.Errorf("output missing message: %q", out)
		}
		if !strings.HasSuffix(out, "\n") {
			t.Errorf("output not newline terminated: %q", out)
		}
	})
}

func TestDebugCategorySuppressedAtInfo(t *testing.T) {
	withCapturedOutput(t, func(buf *bytes.Buffer) {
		SetMinLevel(LevelInfo)
		Printf("debug-timing", "should not appear")
		if buf.Len() != 0 {
			t.Errorf("debug output leaked at info level: %q", buf.String())
		}

		SetMinLevel(LevelDebug)
		Printf("debug-timing", "should appear")
		if buf.Len() == 0 {
			t.Error("debug output missing at debug level")
		}
	})
}

func TestCategoryFilter(t *testing.T) {
	withCapturedOutput(t, func(buf *bytes.Buffer) {
		SetCategoryFilter([]string{"blocklog"})

		Printf("http", "filtered out")
		if buf.Len() != 0 {
			t.Errorf("filtered category leaked: %q", buf.String())
		}

		Printf("blocklog", "allowed")
		if buf.Len() == 0 {
			t.Error("allowed category suppressed")
		}

		buf.Reset()
		Error("errors always pass")
		if buf.Len() == 0 {
			t.Error("error suppressed by category filter")
		}
	})
}

func TestFilterEnablesDebugCategory(t *testing.T) {
	withCapturedOutput(t, func(buf *bytes.Buffer) {
		SetMinLevel(LevelInfo)
		SetCategoryFilter([]string{"debug-recovery"})

		Printf("debug-recovery", "explicitly enabled")
		if buf.Len() == 0 {
			t.Error("explicitly enabled debug category suppressed")
		}
	})
}

func TestInvalidCategoryFolded(t *testing.T) {
	withCapturedOutput(t, func(buf *bytes.Buffer) {
		Printf("BadCategory", "message")
		if !strings.Contains(buf.String(), "invalid_category") {
			t.Errorf("uppercase category not folded: %q", buf.String())
		}
	})
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, c := range cases {
		if got := FormatBytes(c.in); got != c.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatCount(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{999, "999"},
		{1500, "1.5K"},
		{2_000_000, "2.0M"},
		{3_000_000_000, "3.0B"},
	}
	for _, c := range cases {
		if got := FormatCount(c.in); got != c.want {
			t.Errorf("FormatCount(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
