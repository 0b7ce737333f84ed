package parser

import (
	"archive/zip"
	"bytes"
	"testing"

	"docchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"report.PDF":   FormatPDF,
		"notes.md":     FormatMarkdown,
		"a.txt":        FormatText,
		"data.csv":     FormatCSV,
		"x.json":       FormatJSON,
		"memo.docx":    FormatDOCX,
		"sheet.xlsx":   FormatXLSX,
		"deck.pptx":    FormatPPTX,
		"image.png":    FormatUnsupported,
		"no-extension": FormatUnsupported,
	}
	for name, want := range tests {
		assert.Equal(t, want, DetectFormat(name), name)
	}
}

func TestExtractUnsupported(t *testing.T) {
	_, err := Extract([]byte("hello"), "photo.png")
	require.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestExtractBlankInputFails(t *testing.T) {
	for _, name := range []string{"a.pdf", "a.md", "a.txt", "a.csv", "a.json", "a.docx", "a.xlsx", "a.pptx"} {
		for _, content := range []string{"", "  \n\t\n"} {
			_, err := Extract([]byte(content), name)
			require.ErrorIs(t, err, models.ErrExtraction, "%s with %q", name, content)
		}
	}
}

func TestExtractText(t *testing.T) {
	segs, err := Extract([]byte("The sky is blue. Grass is green."), "facts.txt")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "The sky is blue. Grass is green.", segs[0].Text)
}

func TestExtractMarkdownKeepsContent(t *testing.T) {
	src := "Intro line\n\n# Release *Notes*\n\n- item one\n"
	segs, err := Extract([]byte(src), "notes.md")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, src, segs[0].Text)
	assert.Equal(t, "Release Notes", segs[0].Source)
}

func TestExtractCSV(t *testing.T) {
	segs, err := Extract([]byte("a,b\n1,\"x,y\"\n"), "data.csv")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "Headers: a | b", segs[0].Text)
	assert.Equal(t, "Row 1: 1 | x,y", segs[1].Text)
}

func TestExtractCSVQuotesAndBlankLines(t *testing.T) {
	src := "name,quote\r\n\r\nann,\"she said \"\"hi\"\"\"\r\n\r\nbob,plain\r\n"
	segs, err := Extract([]byte(src), "q.csv")
	require.NoError(t, err)

	var texts []string
	for _, s := range segs {
		texts = append(texts, s.Text)
	}
	assert.Equal(t, []string{
		"Headers: name | quote",
		`Row 2: ann | she said "hi"`,
		"Row 4: bob | plain",
	}, texts)
}

func TestExtractJSONFlatten(t *testing.T) {
	segs, err := Extract([]byte(`{"a":{"b":1},"c":[2,3]}`), "doc.json")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "a.b: 1\nc[0]: 2\nc[1]: 3", segs[0].Text)
}

func TestExtractJSONScalarsAndOrder(t *testing.T) {
	src := `{"z":"last?","a":[{"ok":true,"n":null}],"f":1.50}`
	segs, err := Extract([]byte(src), "doc.json")
	require.NoError(t, err)
	assert.Equal(t, "z: last?\na[0].ok: true\na[0].n: null\nf: 1.50", segs[0].Text)
}

func TestExtractJSONFailures(t *testing.T) {
	for _, src := range []string{`{"a":`, `{"a":1}{`, `{}`, `[]`, `{"a":1,}`} {
		_, err := Extract([]byte(src), "bad.json")
		require.ErrorIs(t, err, models.ErrExtraction, src)
	}
}

func TestExtractXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "city"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "population"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Oslo"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 709000))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	segs, err := Extract(buf.Bytes(), "cities.xlsx")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "Sheet1", segs[0].Source)
	assert.Equal(t, "city\tpopulation\nOslo\t709000", segs[0].Text)
}

func TestExtractPPTXOrdersSlides(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	slides := map[string]string{
		"ppt/slides/slide10.xml": `<p:sld><a:t>tenth</a:t></p:sld>`,
		"ppt/slides/slide2.xml":  `<p:sld><a:t lang="en">second</a:t><a:t>slide &amp; more</a:t></p:sld>`,
		"ppt/slides/slide3.xml":  `<p:sld></p:sld>`,
	}
	for _, name := range []string{"ppt/slides/slide10.xml", "ppt/slides/slide2.xml", "ppt/slides/slide3.xml"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(slides[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	segs, err := Extract(buf.Bytes(), "deck.pptx")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, models.Segment{Text: "second slide & more", Source: "slide 2"}, segs[0])
	assert.Equal(t, models.Segment{Text: "tenth", Source: "slide 10"}, segs[1])
}

func TestExtractCorruptPDF(t *testing.T) {
	_, err := Extract([]byte("%PDF-1.4 not really"), "broken.pdf")
	require.ErrorIs(t, err, models.ErrExtraction)
}
