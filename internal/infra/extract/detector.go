package extract

import (
	"bytes"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

const (
	MimePlainText = "text/plain"
	MimeMarkdown  = "text/markdown"
	MimePDF       = "application/pdf"
	MimeDOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeOctet     = "application/octet-stream"
)

var (
	pdfMagic = []byte("%PDF-")
	zipMagic = []byte("PK\x03\x04")
)

// ContentTypeDetector はファイルの種別（MIMEタイプ）を判定する。
type ContentTypeDetector struct{}

// NewContentTypeDetector は ContentTypeDetector を生成する。
func NewContentTypeDetector() *ContentTypeDetector {
	return &ContentTypeDetector{}
}

// DetectContentType はファイル名と内容からMIMEタイプを判定する。
// ファイル名が空の場合は内容のみで判定する。
func (d *ContentTypeDetector) DetectContentType(path string, content []byte) string {
	if bytes.HasPrefix(content, pdfMagic) {
		return MimePDF
	}
	if bytes.HasPrefix(content, zipMagic) && bytes.Contains(content, []byte("word/document.xml")) {
		return MimeDOCX
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return MimePDF
	case ".docx":
		return MimeDOCX
	}

	if len(content) > 0 && enry.IsBinary(content) {
		return MimeOctet
	}

	filename := filepath.Base(path)
	if path == "" {
		filename = ""
	}
	switch enry.GetLanguage(filename, content) {
	case "Markdown":
		return MimeMarkdown
	case "Text":
		return MimePlainText
	}

	if len(content) > 0 {
		detected := http.DetectContentType(content)
		if idx := strings.Index(detected, ";"); idx != -1 {
			detected = detected[:idx]
		}
		return strings.TrimSpace(detected)
	}

	return MimePlainText
}
