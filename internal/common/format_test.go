package common

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestReport_PurchaseList(t *testing.T) {
	var buf bytes.Buffer
	r := NewReport(&buf, 20)

	r.Section("User: %s", "Ada")
	r.Field("Balance: %s", FormatTSU(decimal.RequireFromString("195")))
	r.Divider()
	r.Item(false, "ethereum")
	r.Detail(false, "ref: 0xabc")
	r.Item(true, "bitcoin")
	r.Detail(true, "ref: f00d")

	want := strings.Join([]string{
		"",
		"┌─ User: Ada",
		"│  Balance: 195.00000000 TSU",
		"├" + strings.Repeat("─", 18),
		"│   ethereum",
		"│     ref: 0xabc",
		"└   bitcoin",
		"      ref: f00d",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("unexpected report:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestReport_HeaderFooterStatus(t *testing.T) {
	var buf bytes.Buffer
	r := NewReport(&buf, 5)

	r.Header("SETUP")
	r.Status(true, "%s ok", "ethereum")
	r.Status(false, "%s failed", "bitcoin")
	r.Footer("done")

	want := "\n=====\nSETUP\n=====\n✓ ethereum ok\n✗ bitcoin failed\n\n=====\ndone\n=====\n\n"
	if buf.String() != want {
		t.Errorf("unexpected report %q, want %q", buf.String(), want)
	}
}

func TestNewReport_DefaultWidth(t *testing.T) {
	var buf bytes.Buffer
	NewReport(&buf, 0).Rule()
	if got := len(strings.TrimSuffix(buf.String(), "\n")); got != ReportWidth {
		t.Errorf("expected %d columns, got %d", ReportWidth, got)
	}
}
