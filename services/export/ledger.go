package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/mrdawstar/LinguaLab-sub000/core/lessonpkg"
)

const (
	PackagesSheet = "Packages"
	SummarySheet  = "Summary"
)

var packagesHeader = []string{
	"Package ID", "Student ID", "School ID", "Lessons total", "Lessons used", "Remaining",
	"Status", "Purchase date", "Expires at", "Last activity",
}

// PackageLedger is a workbook listing package purchases and their usage.
type PackageLedger struct {
	File *excelize.File
}

// NewPackageLedger builds the ledger of `purchases`: one row per package, plus per-status totals.
func NewPackageLedger(purchases []lessonpkg.Purchase) (*PackageLedger, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", PackagesSheet); err != nil {
		return nil, errors.Wrap(err, "renaming sheet")
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, errors.Wrap(err, "creating summary sheet")
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, errors.Wrap(err, "creating header style")
	}

	rows := make([][]interface{}, 0, len(purchases))
	for _, p := range purchases {
		expires := ""
		if p.ExpiresAt != nil {
			expires = p.ExpiresAt.Format(time.RFC3339)
		}
		rows = append(rows, []interface{}{
			p.ID, p.StudentID, p.SchoolID, p.LessonsTotal, p.LessonsUsed, p.Remaining(),
			string(p.Status), p.PurchaseDate.Format(time.RFC3339), expires, p.UpdatedAt.Format(time.RFC3339),
		})
	}
	if err = writeSheet(f, PackagesSheet, packagesHeader, rows, bold); err != nil {
		return nil, err
	}

	type totals struct{ count, total, used int }
	byStatus := make(map[lessonpkg.Status]*totals, len(lessonpkg.AllStatuses))
	for _, st := range lessonpkg.AllStatuses {
		byStatus[st] = new(totals)
	}
	for _, p := range purchases {
		if t, ok := byStatus[p.Status]; ok {
			t.count++
			t.total += p.LessonsTotal
			t.used += p.LessonsUsed
		}
	}
	summary := make([][]interface{}, 0, len(lessonpkg.AllStatuses))
	for _, st := range lessonpkg.AllStatuses {
		t := byStatus[st]
		summary = append(summary, []interface{}{string(st), t.count, t.total, t.used, t.total - t.used})
	}
	summaryHeader := []string{"Status", "Packages", "Lessons total", "Lessons used", "Remaining"}
	if err = writeSheet(f, SummarySheet, summaryHeader, summary, bold); err != nil {
		return nil, err
	}

	return &PackageLedger{File: f}, nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]interface{}, headerStyle int) error {
	for c, h := range header {
		cell := colName(c+1) + "1"
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return errors.Wrapf(err, "setting cell %s", cell)
		}
	}
	end := colName(len(header)) + "1"
	_ = f.SetCellStyle(sheet, "A1", end, headerStyle)
	_ = f.AutoFilter(sheet, "A1:"+end, nil)

	widths := make([]int, len(header))
	for c, h := range header {
		widths[c] = len(h)
	}
	for r, row := range rows {
		for c, val := range row {
			cell := colName(c+1) + strconv.Itoa(r+2)
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return errors.Wrapf(err, "setting cell %s", cell)
			}
			if l := len(fmt.Sprint(val)); l > widths[c] {
				widths[c] = l
			}
		}
	}

	for c, w := range widths {
		width := float64(w) * 0.9
		if width < 12 {
			width = 12
		}
		if width > 40 {
			width = 40
		}
		col := colName(c + 1)
		_ = f.SetColWidth(sheet, col, col, width)
	}
	return nil
}

// Write streams the workbook as xlsx.
func (l *PackageLedger) Write(w io.Writer) error {
	return errors.Wrap(l.File.Write(w), "writing workbook")
}

// Filename returns the default file name of a ledger exported at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("packages_%s.xlsx", t.Format("2006-01-02"))
}

// colName converts a 1-based column index to its letters: 1 -> A, 27 -> AA.
func colName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}
