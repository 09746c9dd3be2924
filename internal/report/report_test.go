package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"example.com/segyfix/internal/edit"
	"example.com/segyfix/internal/validate"
)

func TestChangelogWritesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changelog.csv")
	c, err := NewChangelog(path)
	require.NoError(t, err)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Record(edit.ChangeEvent{
		File: "a.sgy", Ts: ts, Region: edit.RegionBinary, Field: "sample_interval",
		TraceIndex: -1, Old: "4000", New: "2000",
	})
	c.Record(edit.ChangeEvent{
		File: "a.sgy", Ts: ts, Region: edit.RegionTrace, Field: "source_x",
		TraceIndex: 7, Old: "1", New: "10",
	})
	require.NoError(t, c.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, changelogColumns, rows[0])
	assert.Equal(t, []string{"a.sgy", "2024-03-01T12:00:00Z", "", "binary", "sample_interval", "4000", "2000"}, rows[1])
	assert.Equal(t, []string{"a.sgy", "2024-03-01T12:00:00Z", "7", "trace", "source_x", "1", "10"}, rows[2])
	assert.Equal(t, int64(2), c.Records())
}

func TestChangelogConcurrentRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changelog.csv")
	c, err := NewChangelog(path)
	require.NoError(t, err)

	done := make(chan struct{})
	for w := 0; w < 4; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 500; i++ {
				c.Record(edit.ChangeEvent{
					File: "f.sgy", Ts: time.Now(), Region: edit.RegionTrace,
					Field: "source_x", TraceIndex: int64(i), Old: "0", New: "1",
				})
			}
		}(w)
	}
	for w := 0; w < 4; w++ {
		<-done
	}
	require.NoError(t, c.Close())
	assert.Equal(t, int64(2000), c.Records())
}

func sampleReports() []FileReport {
	return []FileReport{
		{
			File:    "line1.sgy",
			Status:  "WARNING",
			Message: "2 findings",
			Findings: []validate.Finding{
				{File: "line1.sgy", TraceIndex: -1, Severity: validate.SeverityInfo, Kind: "file_structure", Message: "ok"},
				{File: "line1.sgy", TraceIndex: 42, Severity: validate.SeverityWarning, Kind: "coordinate_outlier", Message: "source_x deviates", Context: "MAD 10"},
			},
			Changes:  3,
			Duration: 1500 * time.Millisecond,
		},
		{
			File:   "line2.sgy",
			Status: "FAIL",
			Findings: []validate.Finding{
				{File: "line2.sgy", TraceIndex: -1, Severity: validate.SeverityError, Kind: "file_structure", Message: "size mismatch"},
			},
		},
	}
}

func TestWriteExcelReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteExcelReport(path, sampleReports()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Summary")
	assert.Contains(t, sheets, "line1_Val")
	assert.Contains(t, sheets, "line2_Val")

	got, err := f.GetCellValue("Summary", "A2")
	require.NoError(t, err)
	assert.Equal(t, "line1.sgy", got)

	sev, err := f.GetCellValue("line1_Val", "A3")
	require.NoError(t, err)
	assert.Equal(t, "warning", sev)
	scope, err := f.GetCellValue("line1_Val", "C3")
	require.NoError(t, err)
	assert.Equal(t, "42", scope)
	fileScope, err := f.GetCellValue("line1_Val", "C2")
	require.NoError(t, err)
	assert.Equal(t, "file", fileScope)
}

func TestWritePDFReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	hash := "a3f5c9d2e8b14467a3f5c9d2e8b14467a3f5c9d2e8b14467a3f5c9d2e8b14467"
	require.NoError(t, WritePDFReport(sampleReports(), hash, path))

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, st.Size(), int64(1000))

	head := make([]byte, 5)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Read(head)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(head))
}

func TestWritePDFReportWithoutHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, WritePDFReport(sampleReports(), "", path))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, "PASS", StatusOf(nil))
	assert.Equal(t, "WARNING", StatusOf([]validate.Finding{{Severity: validate.SeverityWarning}}))
	assert.Equal(t, "FAIL", StatusOf([]validate.Finding{
		{Severity: validate.SeverityWarning},
		{Severity: validate.SeverityError},
	}))
}

func TestSafeSheetName(t *testing.T) {
	assert.Equal(t, "line_001__Val", safeSheetName("/data/line[001].sgy"))
	long := safeSheetName("a_really_long_file_name_that_exceeds_excel_limits.sgy")
	assert.LessOrEqual(t, len(long), 31)
}
