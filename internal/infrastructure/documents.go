package infrastructure

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText = "text/plain"
)

var ErrUnsupportedDocument = errors.New("unsupported document type")

// DocumentKind classifies an upload by mime type, falling back to the extension.
func DocumentKind(filename, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case mimeType == MimePDF || ext == ".pdf":
		return "pdf"
	case mimeType == MimeDOCX || ext == ".docx":
		return "docx"
	case strings.HasPrefix(mimeType, MimeText) || ext == ".txt":
		return "txt"
	}
	return ""
}

// ExtractText returns the plain text of a pdf, docx or txt upload.
func ExtractText(filename, mimeType string, data []byte) (string, error) {
	switch DocumentKind(filename, mimeType) {
	case "pdf":
		return extractPDF(data)
	case "docx":
		return extractDOCX(data)
	case "txt":
		return string(data), nil
	}
	return "", ErrUnsupportedDocument
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// extractDOCX walks the document body collecting w:t runs, one line per paragraph.
func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	defer r.Close()

	var sb strings.Builder
	dec := xml.NewDecoder(strings.NewReader(r.Editable().GetContent()))
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse docx: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// ChunkText collapses whitespace and splits into pieces of at most size runes.
func ChunkText(text string, size int) []string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" || size <= 0 {
		return nil
	}
	runes := []rune(normalized)
	chunks := make([]string, 0, len(runes)/size+1)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
