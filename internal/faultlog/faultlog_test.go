package faultlog

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_ReportRateLimitsByCategory(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, time.Minute, 2)

	l.Report("handler", "panic:console", "boom %d", 1)
	l.Report("handler", "panic:console", "boom %d", 2)
	l.Report("handler", "panic:console", "boom %d", 3) // exceeds window budget, suppressed

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "boom 1")
	assert.Contains(t, lines[1], "boom 2")
}

func TestLog_ReportDifferentCategoriesIndependentlyLimited(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, time.Minute, 1)

	l.Report("handler", "panic:a", "a fault")
	l.Report("handler", "panic:b", "b fault")

	out := buf.String()
	assert.Contains(t, out, "a fault")
	assert.Contains(t, out, "b fault")
}

func TestLog_ReportAlwaysBypassesLimit(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, time.Minute, 1)

	l.ReportAlways("relay", "dropped %d", 1)
	l.ReportAlways("relay", "dropped %d", 2)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
}

func TestLog_DefaultsForInvalidConstruction(t *testing.T) {
	l := New(nil, 0, 0)
	require.NotNil(t, l.w)
	require.NotNil(t, l.limiter)
}
