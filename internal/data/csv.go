package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// LoadCSV reads the Kaggle layout: a header row, then
// label,pixel0,...,pixel783 per sample with pixels in 0..255.
func LoadCSV(path string, limit int) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ds, err := ReadCSV(f, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV decodes 28x28 samples from r. Rows are streamed, so limit bounds
// the work as well as the result.
func ReadCSV(r io.Reader, limit int) (*Dataset, error) {
	const rows, cols = 28, 28
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 1 + rows*cols
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv: missing header row")
		}
		return nil, fmt.Errorf("csv header: %w", err)
	}

	ds := &Dataset{Rows: rows, Cols: cols}
	for line := 2; limit <= 0 || ds.Len() < limit; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		label, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: label: %w", line, err)
		}
		if label < 0 || label >= NumClasses {
			return nil, fmt.Errorf("csv line %d: %w: %d", line, ErrLabelRange, label)
		}
		img := make([]float32, rows*cols)
		for j := range img {
			p, err := strconv.Atoi(rec[j+1])
			if err != nil || p < 0 || p > 255 {
				return nil, fmt.Errorf("csv line %d: pixel %d: invalid value %q", line, j, rec[j+1])
			}
			img[j] = float32(p) / 255
		}
		ds.Images = append(ds.Images, img)
		ds.Labels = append(ds.Labels, int32(label))
	}
	if ds.Len() == 0 {
		return nil, errors.New("csv: no samples")
	}
	return ds, nil
}
