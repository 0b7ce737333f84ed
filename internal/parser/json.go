package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"docchat/internal/models"
)

// extractJSON flattens the document into "path: value" lines in document order.
func extractJSON(data []byte) ([]models.Segment, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var lines []string
	if err := flattenJSON(dec, "", &lines); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errBlank
		}
		return nil, fmt.Errorf("malformed json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("malformed json: trailing data")
	}
	if len(lines) == 0 {
		return nil, errors.New("json has no scalar values")
	}
	return []models.Segment{{Text: strings.Join(lines, "\n")}}, nil
}

func flattenJSON(dec *json.Decoder, path string, lines *[]string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return err
				}
				key, ok := keyTok.(string)
				if !ok {
					return fmt.Errorf("unexpected object key %v", keyTok)
				}
				child := key
				if path != "" {
					child = path + "." + key
				}
				if err := flattenJSON(dec, child, lines); err != nil {
					return unexpectedEOF(err)
				}
			}
		case '[':
			for i := 0; dec.More(); i++ {
				if err := flattenJSON(dec, fmt.Sprintf("%s[%d]", path, i), lines); err != nil {
					return unexpectedEOF(err)
				}
			}
		default:
			return fmt.Errorf("unexpected delimiter %v", v)
		}
		// closing delimiter
		if _, err := dec.Token(); err != nil {
			return unexpectedEOF(err)
		}
		return nil
	case string:
		emit(lines, path, v)
	case json.Number:
		emit(lines, path, v.String())
	case bool:
		emit(lines, path, strconv.FormatBool(v))
	case nil:
		emit(lines, path, "null")
	}
	return nil
}

func emit(lines *[]string, path, value string) {
	if path == "" {
		*lines = append(*lines, value)
		return
	}
	*lines = append(*lines, path+": "+value)
}

// a nested EOF means truncated input, not an empty document
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
