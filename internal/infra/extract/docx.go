package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/core/ingestion"
)

const docxBodyPath = "word/document.xml"

// ExtractDOCX は word/document.xml の段落テキストを抽出する。
// DOCX はページ情報を持たないため1ページとして返す。
func ExtractDOCX(ctx context.Context, content []byte) (*ingestion.Extraction, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open docx: %v", apperr.ErrExtraction, err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPath {
			body = f
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("%w: %s not found", apperr.ErrExtraction, docxBodyPath)
	}

	rc, err := body.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", apperr.ErrExtraction, docxBodyPath, err)
	}
	defer rc.Close()

	text, err := readParagraphs(ctx, rc)
	if err != nil {
		return nil, err
	}

	return &ingestion.Extraction{
		Pages: []ingestion.Page{{Number: 1, Text: text}},
	}, nil
}

// readParagraphs は w:p ごとに改行を入れて w:t のテキストを連結する
func readParagraphs(ctx context.Context, r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var sb strings.Builder
	var paragraph strings.Builder
	inText := false

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: malformed %s: %v", apperr.ErrExtraction, docxBodyPath, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				paragraph.WriteByte('\t')
			case "br", "cr":
				paragraph.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(paragraph.String()); s != "" {
					sb.WriteString(s)
					sb.WriteByte('\n')
				}
				paragraph.Reset()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}
