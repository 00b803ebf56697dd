// -----------------------------------------------------------------------
// Workbook Interfaces - spreadsheet input and report output
// -----------------------------------------------------------------------

package interfaces

import (
	"github.com/ternarybob/recon/internal/models"
)

// Workbook is a read-only handle over a multi-sheet spreadsheet.
type Workbook interface {
	// SheetNames lists the sheets in workbook order.
	SheetNames() []string

	// Sheet reads the named sheet (exact, case-sensitive match). The first row is
	// the header.
	Sheet(name string) (*models.Table, error)
}

// ReportSection is one named sheet of the output report.
type ReportSection struct {
	Name  string
	Table *models.Table
}

// ReportWriter renders ordered sections into a spreadsheet document.
type ReportWriter interface {
	Write(sections []ReportSection) ([]byte, error)
}
