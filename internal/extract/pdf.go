package extract

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfText reads the text layer page by page. Pages that fail to decode are
// skipped so one bad content stream does not lose the rest of the document.
func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	pages := r.NumPage()
	if pages == 0 {
		return "", errors.New("pdf has no pages")
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}
