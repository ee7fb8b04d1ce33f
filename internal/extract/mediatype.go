package extract

import (
	"archive/zip"
	"bytes"
	"net/http"
	"path/filepath"
	"strings"
)

// ResolveMediaType returns the concrete media type for an upload. Declared
// types are lowercased and stripped of parameters. Generic container types
// (zip, octet-stream, empty) are resolved from the payload and extension.
func ResolveMediaType(declared, fileName string, data []byte) string {
	clean := baseType(declared)
	switch clean {
	case "", "application/zip", "application/x-zip-compressed", "application/octet-stream", "binary/octet-stream":
	default:
		return clean
	}

	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return MediaTypePDF
	}
	if mapped := mapOOXMLFromZip(data); mapped != "" {
		return mapped
	}
	if byExt := mediaTypeFromExt(fileName); byExt != "" {
		return byExt
	}
	if clean == "" && len(data) > 0 {
		return baseType(http.DetectContentType(data))
	}
	if clean == "" {
		return "application/octet-stream"
	}
	return clean
}

func mediaTypeFromExt(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return MediaTypePDF
	case ".docx":
		return MediaTypeDOCX
	case ".xlsx":
		return MediaTypeXLSX
	case ".txt", ".text", ".log":
		return "text/plain"
	case ".md", ".markdown":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	case ".json":
		return MediaTypeJSON
	default:
		return ""
	}
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		switch strings.ReplaceAll(f.Name, "\\", "/") {
		case "word/document.xml":
			return MediaTypeDOCX
		case "xl/workbook.xml":
			return MediaTypeXLSX
		case "ppt/presentation.xml":
			return MediaTypePPTX
		}
	}
	return ""
}
