package extract

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

// xlsxText renders every sheet as tab-separated rows under a sheet heading.
func xlsxText(data []byte) (string, error) {
	xf, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer xf.Close()

	var sb strings.Builder
	for _, sheet := range xf.GetSheetList() {
		rows, err := xf.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		sb.WriteString(sheet)
		sb.WriteString("\n")
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
