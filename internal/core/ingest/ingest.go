// Package ingest turns an uploaded file into the fields of a new transcript.
package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/agenthands/depo/internal/core/model"
)

const (
	DefaultWitnessName = "Unknown Witness"
	DefaultWitnessType = "Witness"
)

// Upload is a received file plus the optional form metadata.
type Upload struct {
	CaseID      int64
	Filename    string
	Data        []byte
	Title       string
	WitnessName string
	WitnessType string
	Date        string
}

// FieldError reports a single invalid field of an upload.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

var validate = validator.New()

// ExtractText returns the textual content of a file. Only .docx gets a real format
// extraction; other formats, including .pdf, are decoded as UTF-8 with invalid bytes
// replaced.
func ExtractText(filename string, data []byte) string {
	if strings.EqualFold(filepath.Ext(filename), ".docx") {
		if text, err := extractDocx(data); err == nil {
			return text
		}
	}
	return toValidUTF8(data)
}

// DetectMIME sniffs the content type of data.
func DetectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// toValidUTF8 replaces every invalid byte with U+FFFD.
func toValidUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	var sb strings.Builder
	sb.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
		} else {
			sb.Write(data[:size])
		}
		data = data[size:]
	}
	return sb.String()
}

// CountPages approximates pages as ceil(nonBlankLines / linesPerPage).
func CountPages(content string, linesPerPage int) int {
	if linesPerPage <= 0 {
		linesPerPage = 25
	}
	lines := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	return (lines + linesPerPage - 1) / linesPerPage
}

// Build applies the metadata defaults, parses the date and validates the result.
func Build(u Upload, linesPerPage int, now time.Time) (model.InsertTranscript, error) {
	title := strings.TrimSpace(u.Title)
	if title == "" {
		title = u.Filename
	}
	witness := strings.TrimSpace(u.WitnessName)
	if witness == "" {
		witness = DefaultWitnessName
	}
	witnessType := strings.TrimSpace(u.WitnessType)
	if witnessType == "" {
		witnessType = DefaultWitnessType
	}

	date := now
	if d := strings.TrimSpace(u.Date); d != "" {
		parsed, err := ParseDate(d)
		if err != nil {
			return model.InsertTranscript{}, &FieldError{Field: "date", Message: "must be a valid date"}
		}
		date = parsed
	}

	content := ExtractText(u.Filename, u.Data)
	in := model.InsertTranscript{
		CaseID:      u.CaseID,
		Title:       title,
		WitnessName: witness,
		WitnessType: &witnessType,
		Date:        &date,
		Content:     content,
		Pages:       CountPages(content, linesPerPage),
	}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return model.InsertTranscript{}, &FieldError{Field: lowerFirst(verrs[0].Field()), Message: "is required"}
		}
		return model.InsertTranscript{}, err
	}
	return in, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006",
}

func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// extractDocx reads the w:t runs of word/document.xml, one line per paragraph.
func extractDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml: %w", err)
		}
		defer rc.Close()
		return docxText(rc)
	}
	return "", fmt.Errorf("docx has no word/document.xml")
}

func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
