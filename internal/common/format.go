package common

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	ReportWidth     = 80
	WideReportWidth = 100

	tsuDisplayPlaces = 8
)

// Report renders the box-drawn console output of the admin tools.
type Report struct {
	w     io.Writer
	width int
}

func NewReport(w io.Writer, width int) *Report {
	if width <= 0 {
		width = ReportWidth
	}
	return &Report{w: w, width: width}
}

func (r *Report) rule(char string) string {
	return strings.Repeat(char, r.width)
}

// Header prints a blank line, then title between two "=" rules
func (r *Report) Header(title string) {
	fmt.Fprintf(r.w, "\n%s\n%s\n%s\n", r.rule("="), title, r.rule("="))
}

// Footer closes a report with a summary line
func (r *Report) Footer(summary string) {
	fmt.Fprintf(r.w, "\n%s\n%s\n%s\n\n", r.rule("="), summary, r.rule("="))
}

// Rule closes a block without a summary
func (r *Report) Rule() {
	fmt.Fprintln(r.w, r.rule("="))
}

func (r *Report) Line(format string, args ...any) {
	fmt.Fprintf(r.w, format+"\n", args...)
}

// Section opens a per-user block
func (r *Report) Section(format string, args ...any) {
	fmt.Fprintf(r.w, "\n┌─ "+format+"\n", args...)
}

// Field prints a line inside an open section
func (r *Report) Field(format string, args ...any) {
	fmt.Fprintf(r.w, "│  "+format+"\n", args...)
}

// Divider separates a section's fields from its list
func (r *Report) Divider() {
	fmt.Fprintln(r.w, "├"+strings.Repeat("─", r.width-2))
}

// Item prints a list entry; the last entry closes the branch
func (r *Report) Item(isLast bool, format string, args ...any) {
	prefix := "│  "
	if isLast {
		prefix = "└  "
	}
	fmt.Fprintf(r.w, prefix+" "+format+"\n", args...)
}

// Detail prints a continuation line under the preceding Item
func (r *Report) Detail(isLast bool, format string, args ...any) {
	prefix := "│  "
	if isLast {
		prefix = "   "
	}
	fmt.Fprintf(r.w, prefix+"   "+format+"\n", args...)
}

// Status prints a ✓ or ✗ outcome line
func (r *Report) Status(ok bool, format string, args ...any) {
	mark := "✗"
	if ok {
		mark = "✓"
	}
	fmt.Fprintf(r.w, mark+" "+format+"\n", args...)
}

// FormatTSU renders a TSU amount at ledger precision
func FormatTSU(amount decimal.Decimal) string {
	return amount.StringFixed(tsuDisplayPlaces) + " TSU"
}
