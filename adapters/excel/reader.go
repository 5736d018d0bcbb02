package excel

import (
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"pmbr/domain/trial"
)

// ReadTrials loads the Trials sheet of an exported workbook back into records
func ReadTrials(path string) ([]trial.Record, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("workbook not found: %s", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetTrials)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", SheetTrials, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s sheet has no header row", SheetTrials)
	}

	records := make([]trial.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		cells := make([]string, len(trial.RecordHeader))
		for j := range cells {
			if j < len(row) {
				cells[j] = strings.TrimSpace(row[j])
			}
		}
		rec, err := trial.ParseRow(cells)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
