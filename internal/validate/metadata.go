package validate

import (
	"encoding/csv"
	"os"
)

// readMetadataCSV reads a metadata CSV file and returns its header row
// and data rows. Ragged rows are tolerated (FieldsPerRecord disabled)
// since the validator only reads indexed columns it has already located.
func readMetadataCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, os.ErrInvalid
	}
	return records[0], records[1:], nil
}
