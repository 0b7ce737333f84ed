package parser

import (
	"errors"
	"fmt"
	"strings"

	"docchat/internal/models"
)

// extractCSV emits one segment per non-blank line. Line 0 is the header,
// data rows are labelled with their line position so blank lines leave gaps.
func extractCSV(data []byte) ([]models.Segment, error) {
	content := decodeText(data)
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	var segments []models.Segment
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if isBlank(line) {
			continue
		}
		cells := splitCSVLine(line)
		joined := strings.Join(cells, " | ")
		if i == 0 {
			segments = append(segments, models.Segment{Text: "Headers: " + joined, Source: "headers"})
			continue
		}
		segments = append(segments, models.Segment{
			Text:   fmt.Sprintf("Row %d: %s", i, joined),
			Source: fmt.Sprintf("row %d", i),
		})
	}
	if len(segments) == 0 {
		return nil, errors.New("no non-blank lines")
	}
	return segments, nil
}

// splitCSVLine splits one line on commas outside double quotes.
// A doubled quote inside a quoted field is a literal quote.
func splitCSVLine(line string) []string {
	var (
		cells    []string
		cur      strings.Builder
		inQuotes bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' && inQuotes && i+1 < len(runes) && runes[i+1] == '"':
			cur.WriteRune('"')
			i++
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(cells, strings.TrimSpace(cur.String()))
}
