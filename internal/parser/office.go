package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"docchat/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// extractPDF yields one segment per page with text, in page order.
func extractPDF(data []byte) ([]models.Segment, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var segments []models.Segment
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if isBlank(pageText) {
			continue
		}
		segments = append(segments, models.Segment{
			Text:   strings.TrimSpace(pageText),
			Source: fmt.Sprintf("page %d", i),
		})
	}
	return segments, nil
}

var (
	wordTextRe  = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	slideTextRe = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)
	slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// extractDOCX returns the document body as one segment, one line per paragraph.
func extractDOCX(data []byte) ([]models.Segment, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	// GetContent returns the raw document.xml
	content := r.Editable().GetContent()
	var paragraphs []string
	for _, p := range strings.Split(content, "</w:p>") {
		var b strings.Builder
		for _, m := range wordTextRe.FindAllStringSubmatch(p, -1) {
			b.WriteString(html.UnescapeString(m[1]))
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	if len(paragraphs) == 0 {
		return nil, nil
	}
	return []models.Segment{{Text: strings.Join(paragraphs, "\n")}}, nil
}

// extractXLSX yields one tab separated segment per non-empty sheet.
func extractXLSX(data []byte) ([]models.Segment, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var segments []models.Segment
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		var lines []string
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
			if !isBlank(line) {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		segments = append(segments, models.Segment{
			Text:   strings.Join(lines, "\n"),
			Source: sheet,
		})
	}
	return segments, nil
}

// extractPPTX reads slide xml straight from the zip container.
func extractPPTX(data []byte) ([]models.Segment, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, file := range zr.File {
		m := slideNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", num, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", num, err)
		}
		slides = append(slides, slide{num: num, text: extractTextFromXML(string(raw))})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var segments []models.Segment
	for _, s := range slides {
		if isBlank(s.text) {
			continue
		}
		segments = append(segments, models.Segment{
			Text:   s.text,
			Source: fmt.Sprintf("slide %d", s.num),
		})
	}
	return segments, nil
}

func extractTextFromXML(xmlContent string) string {
	var parts []string
	for _, m := range slideTextRe.FindAllStringSubmatch(xmlContent, -1) {
		if t := strings.TrimSpace(html.UnescapeString(m[1])); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
