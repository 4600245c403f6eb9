package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// InitPDFLicense registers the UniPDF metered key. PDF extraction fails
// without it.
func InitPDFLicense(key string) error {
	if key == "" {
		return fmt.Errorf("UNIDOC_LICENSE_KEY is not set")
	}
	return license.SetMeteredKey(key)
}

// IsSupportedFile reports whether the extension of name can be extracted.
func IsSupportedFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".pdf":
		return true
	default:
		return false
	}
}

// ExtractText returns the text of an uploaded file, picking the decoder from
// the extension of filename.
func ExtractText(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".txt", ".md":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedDocument, filename)
		}
		return string(data), nil
	case ".pdf":
		text, err := extractTextFromPDF(data)
		if err != nil {
			return "", fmt.Errorf("%w: read pdf %s: %v", ErrUnsupportedDocument, filename, err)
		}
		return text, nil
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", ErrUnsupportedDocument, ext)
	}
}

// ExtractTextFromFile reads path from disk and extracts its text.
func ExtractTextFromFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return ExtractText(filepath.Base(path), content)
}

// extractTextFromPDF uses UniPDF to get all text from a PDF document.
func extractTextFromPDF(data []byte) (string, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", err
		}

		ex, err := extractor.New(page)
		if err != nil {
			return "", err
		}

		text, err := ex.ExtractText()
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}
