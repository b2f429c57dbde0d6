package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
)

// TableReporter writes object and gap tables to a console.
type TableReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTableReporter returns a reporter writing to w.
func NewTableReporter(w io.Writer) *TableReporter {
	return &TableReporter{w: w}
}

// ObjectTable renders one row per object. An empty list renders nothing.
func ObjectTable(scan Scan) string {
	if len(scan.Objects.Objects) == 0 {
		return ""
	}
	t := table.NewWriter()
	t.SetTitle("OBJECT LIST")
	t.AppendHeader(table.Row{"#", "Distance (cm)", "Mid Angle", "Start", "End", "Width (cm)"})
	for i, o := range scan.Objects.Objects {
		t.AppendRow(table.Row{
			i,
			fmt.Sprintf("%.3f", o.Distance),
			o.MidpointAngle,
			o.StartAngle,
			o.EndAngle,
			fmt.Sprintf("%.3f", o.LinearWidth),
		})
	}
	if scan.Objects.Dropped > 0 {
		t.AppendFooter(table.Row{"", "", "", "", "dropped", scan.Objects.Dropped})
	}
	return t.Render()
}

// GapTable renders one row per gap and marks the widest.
func GapTable(scan Scan) string {
	if len(scan.Gaps.Gaps) == 0 {
		return ""
	}
	t := table.NewWriter()
	t.SetTitle("GAP LIST")
	t.AppendHeader(table.Row{"#", "Distance (cm)", "Mid Angle", "Start", "End", "Width (cm)", ""})
	for i, g := range scan.Gaps.Gaps {
		var note string
		switch {
		case g.Degenerate:
			note = "single object"
		case i == scan.Gaps.Widest:
			note = "widest"
		}
		t.AppendRow(table.Row{
			i,
			fmt.Sprintf("%.3f", g.Distance),
			g.MidpointAngle,
			g.StartAngle,
			g.EndAngle,
			fmt.Sprintf("%.3f", g.LinearWidth),
			note,
		})
	}
	return t.Render()
}

// ScanSummary names the nearest and narrowest objects and counts the gaps wide enough for the
// rover. Each line ends in CRLF.
func ScanSummary(scan Scan) string {
	var b strings.Builder
	if o, err := scan.Objects.Nearest(); err == nil {
		fmt.Fprintf(&b, "nearest object: %.1fcm at %d deg\r\n", o.Distance, o.MidpointAngle)
	}
	if o, err := scan.Objects.Narrowest(); err == nil {
		fmt.Fprintf(&b, "narrowest object: %.1fcm wide at %d deg\r\n", o.LinearWidth, o.MidpointAngle)
	}
	if scan.RoverWidthCM > 0 && len(scan.Gaps.Gaps) > 0 {
		passable := scan.Gaps.Passable(scan.RoverWidthCM)
		fmt.Fprintf(&b, "passable gaps at %.1fcm: %d\r\n", scan.RoverWidthCM, len(passable))
	}
	return b.String()
}

// ReportScan writes the object and gap tables, the scan summary and the clear path ahead.
func (tr *TableReporter) ReportScan(ctx context.Context, scan Scan) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, s := range []string{ObjectTable(scan), GapTable(scan)} {
		if s == "" {
			continue
		}
		if _, err := fmt.Fprintf(tr.w, "%s\r\n", s); err != nil {
			return errors.Wrap(err, "writing scan table")
		}
	}
	if _, err := io.WriteString(tr.w, ScanSummary(scan)); err != nil {
		return errors.Wrap(err, "writing scan summary")
	}
	_, err := fmt.Fprintf(tr.w, "clear path ahead: %.1fcm\r\n", scan.Clearance)
	return errors.Wrap(err, "writing scan table")
}

// ReportPosition writes the status line.
func (tr *TableReporter) ReportPosition(ctx context.Context, pos Position) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	_, err := fmt.Fprintf(tr.w, "Dist: %-7.3f || Angle: %-3d\r\n", pos.BudgetCM, pos.HeadingDeg)
	return errors.Wrap(err, "writing position")
}

// Close does nothing.
func (tr *TableReporter) Close(ctx context.Context) error {
	return nil
}
