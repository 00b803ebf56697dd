package pdf

import (
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	pageMargin  = 10.0
	pageWidth   = 190.0 // A4 width minus margins
	pageBottom  = 297.0 - pageMargin
	bodyFont    = "Arial"
	codeFont    = "Courier"
	bodySize    = 9.0
	lineHeight  = 5.0
	tableSize   = 8.0
	tableLine   = 4.0
	maxRowLines = 8
)

// pdfRenderer walks a goldmark AST and writes it to an fpdf document.
// Core fonts are cp1252, so text passes through the unicode translator first.
type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	tr        func(string) string
	bold      bool
	italic    bool
	listLevel int
}

func newRenderer(pdf *fpdf.Fpdf, source []byte) *pdfRenderer {
	pdf.SetFont(bodyFont, "", bodySize)
	return &pdfRenderer{
		pdf:    pdf,
		source: source,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

func (r *pdfRenderer) render(node ast.Node) error {
	return ast.Walk(node, r.walk)
}

func (r *pdfRenderer) resetFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(bodyFont, style, bodySize)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		r.heading(node, entering)
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(lineHeight + 2)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(lineHeight, r.tr(string(node.Segment.Value(r.source))))
			if node.HardLineBreak() {
				r.pdf.Ln(lineHeight)
			} else if node.SoftLineBreak() {
				r.pdf.Write(lineHeight, " ")
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.resetFont()
	case *ast.CodeSpan:
		if entering {
			r.pdf.SetFont(codeFont, "", bodySize)
			r.pdf.Write(lineHeight, r.tr(inlineText(node, r.source)))
			r.resetFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock:
		if entering {
			r.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			r.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		r.list(entering)
	case *ast.ListItem:
		if entering {
			r.pdf.Ln(lineHeight)
			r.pdf.SetX(pageMargin + 5 + float64(r.listLevel)*5)
			r.pdf.Write(lineHeight, "- ")
		}
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(2)
			y := r.pdf.GetY()
			r.pdf.Line(pageMargin, y, pageMargin+pageWidth, y)
			r.pdf.Ln(2)
		}
	case *extast.Table:
		if entering {
			r.table(tableRows(node, r.source))
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) heading(n *ast.Heading, entering bool) {
	if !entering {
		r.pdf.Ln(lineHeight + 1)
		r.resetFont()
		return
	}
	size := 10.0
	switch n.Level {
	case 1:
		size = 14
	case 2:
		size = 12
	case 3:
		size = 11
	}
	r.pdf.Ln(lineHeight)
	r.pdf.SetFont(bodyFont, "B", size)
}

func (r *pdfRenderer) list(entering bool) {
	if entering {
		r.listLevel++
		return
	}
	r.listLevel--
	if r.listLevel == 0 {
		r.pdf.Ln(lineHeight + 2)
	}
}

func (r *pdfRenderer) codeBlock(lines *text.Segments) {
	r.pdf.Ln(2)
	r.pdf.SetFont(codeFont, "", bodySize)
	r.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		value := strings.TrimRight(string(line.Value(r.source)), "\n")
		r.pdf.MultiCell(0, lineHeight, r.tr(value), "", "L", true)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.resetFont()
	r.pdf.Ln(2)
}

// table draws rows as a bordered grid; the first row is the header.
func (r *pdfRenderer) table(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}
	cols := len(rows[0])
	widths := r.columnWidths(rows, cols)

	r.pdf.Ln(2)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont(bodyFont, style, tableSize)

		// Wrap every cell first so the row height fits the tallest cell
		wrapped := make([][]string, cols)
		lines := 1
		for j := 0; j < cols && j < len(row); j++ {
			wrapped[j] = r.pdf.SplitText(r.tr(row[j]), widths[j]-2)
			if len(wrapped[j]) > maxRowLines {
				wrapped[j] = wrapped[j][:maxRowLines]
			}
			if len(wrapped[j]) > lines {
				lines = len(wrapped[j])
			}
		}
		height := float64(lines)*tableLine + 2

		x, y := r.pdf.GetXY()
		if y+height > pageBottom {
			r.pdf.AddPage()
			x, y = r.pdf.GetXY()
		}

		cellX := x
		for j := 0; j < cols; j++ {
			if i == 0 {
				r.pdf.SetFillColor(230, 230, 230)
				r.pdf.Rect(cellX, y, widths[j], height, "FD")
			} else {
				r.pdf.Rect(cellX, y, widths[j], height, "D")
			}
			for k, line := range wrapped[j] {
				r.pdf.SetXY(cellX+1, y+1+float64(k)*tableLine)
				r.pdf.CellFormat(widths[j]-2, tableLine, line, "", 0, "L", false, 0, "")
			}
			cellX += widths[j]
		}
		r.pdf.SetXY(x, y+height)
	}

	r.pdf.SetFillColor(255, 255, 255)
	r.pdf.Ln(3)
	r.resetFont()
}

// columnWidths sizes columns to their widest cell, then scales the set to the page width.
func (r *pdfRenderer) columnWidths(rows [][]string, cols int) []float64 {
	const minWidth = 12.0
	maxWidth := pageWidth / 3

	widths := make([]float64, cols)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont(bodyFont, style, tableSize)
		for j := 0; j < cols && j < len(row); j++ {
			if w := r.pdf.GetStringWidth(r.tr(row[j])) + 4; w > widths[j] {
				widths[j] = w
			}
		}
	}

	total := 0.0
	for j := range widths {
		if widths[j] < minWidth {
			widths[j] = minWidth
		}
		if widths[j] > maxWidth {
			widths[j] = maxWidth
		}
		total += widths[j]
	}
	if total > pageWidth {
		for j := range widths {
			widths[j] *= pageWidth / total
		}
	}
	return widths
}

// tableRows collects header and body cells as plain text.
func tableRows(table *extast.Table, source []byte) [][]string {
	var rows [][]string
	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.(type) {
		case *extast.TableHeader, *extast.TableRow:
			var row []string
			for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
				row = append(row, inlineText(cell, source))
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// inlineText concatenates the text segments beneath n.
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := child.(*ast.Text); ok && entering {
			b.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
