package importer

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	apperrors "github.com/vytor/bunpo/internal/errors"
)

const docxBody = "word/document.xml"

// ExtractDocxText returns the raw text of a .docx file with one line per
// paragraph. Formatting, tables and images are ignored.
func ExtractDocxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperrors.NewMalformedImportError("not a .docx file", err)
	}
	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", apperrors.NewMalformedImportError("missing "+docxBody, nil)
	}
	rc, err := body.Open()
	if err != nil {
		return "", apperrors.NewMalformedImportError("unreadable document body", err)
	}
	defer rc.Close()

	var sb strings.Builder
	dec := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", apperrors.NewMalformedImportError("invalid document xml", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
