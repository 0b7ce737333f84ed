package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"docchat/internal/models"
)

// Format is the closed set of file formats the extractors understand.
type Format int

const (
	FormatUnsupported Format = iota
	FormatPDF
	FormatMarkdown
	FormatText
	FormatCSV
	FormatJSON
	FormatDOCX
	FormatXLSX
	FormatPPTX
)

var formatNames = map[Format]string{
	FormatUnsupported: "unsupported",
	FormatPDF:         "pdf",
	FormatMarkdown:    "markdown",
	FormatText:        "text",
	FormatCSV:         "csv",
	FormatJSON:        "json",
	FormatDOCX:        "docx",
	FormatXLSX:        "xlsx",
	FormatPPTX:        "pptx",
}

func (f Format) String() string { return formatNames[f] }

var extensions = map[string]Format{
	".pdf":      FormatPDF,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".txt":      FormatText,
	".csv":      FormatCSV,
	".json":     FormatJSON,
	".docx":     FormatDOCX,
	".xlsx":     FormatXLSX,
	".pptx":     FormatPPTX,
}

type extractFunc func(data []byte) ([]models.Segment, error)

var extractors = map[Format]extractFunc{
	FormatPDF:      extractPDF,
	FormatMarkdown: extractMarkdown,
	FormatText:     extractText,
	FormatCSV:      extractCSV,
	FormatJSON:     extractJSON,
	FormatDOCX:     extractDOCX,
	FormatXLSX:     extractXLSX,
	FormatPPTX:     extractPPTX,
}

// DetectFormat maps a filename to its format by extension.
func DetectFormat(filename string) Format {
	if f, ok := extensions[strings.ToLower(filepath.Ext(filename))]; ok {
		return f
	}
	return FormatUnsupported
}

// Supported reports whether filename can be extracted.
func Supported(filename string) bool {
	return DetectFormat(filename) != FormatUnsupported
}

// SupportedExtensions lists the accepted extensions, for error messages.
func SupportedExtensions() []string {
	return []string{".pdf", ".md", ".txt", ".csv", ".json", ".docx", ".xlsx", ".pptx"}
}

// Extract turns raw file bytes into ordered text segments.
// Empty, all-blank or unreadable content is an ErrExtraction failure.
func Extract(data []byte, filename string) (segments []models.Segment, err error) {
	format := DetectFormat(filename)
	extract, ok := extractors[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, filepath.Ext(filename))
	}

	// some pdf inputs make the reader panic instead of returning an error
	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = fmt.Errorf("%w: %s: %v", models.ErrExtraction, filename, r)
		}
	}()

	segments, err = extract(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrExtraction, filename, err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s: no extractable text", models.ErrExtraction, filename)
	}
	return segments, nil
}

func decodeText(data []byte) string {
	s := strings.TrimPrefix(string(data), "\ufeff")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	return s
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
