// Package data loads handwritten-digit datasets and cuts them into
// mini-batches.
//
// Every loader yields pixels scaled to [0, 1] (the ToTensor step). Normalize
// then maps them to (x - mean) / std; with the usual 0.5 / 0.5 this gives
// [-1, 1].
package data

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// NumClasses is the number of digit classes.
const NumClasses = 10

var (
	// ErrBadMagic is returned when an IDX file does not start with the
	// expected magic number.
	ErrBadMagic = errors.New("data: bad IDX magic number")

	// ErrCountMismatch is returned when images and labels disagree in count.
	ErrCountMismatch = errors.New("data: image and label counts differ")

	// ErrBadHeader is returned when an IDX header declares more items or
	// larger images than any digit dataset has.
	ErrBadHeader = errors.New("data: implausible IDX header")

	// ErrLabelRange is returned for a label outside [0, 9].
	ErrLabelRange = errors.New("data: label out of range")
)

// Dataset holds flattened images and their labels.
type Dataset struct {
	Images [][]float32 // [n][Rows*Cols]
	Labels []int32
	Rows   int
	Cols   int
}

func (d *Dataset) Len() int { return len(d.Labels) }

// Features is the flattened image size.
func (d *Dataset) Features() int { return d.Rows * d.Cols }

// Validate checks that every image has Rows*Cols pixels, counts match and
// labels are digits.
func (d *Dataset) Validate() error {
	if len(d.Images) != len(d.Labels) {
		return fmt.Errorf("%w: %d images, %d labels", ErrCountMismatch, len(d.Images), len(d.Labels))
	}
	n := d.Features()
	for i, img := range d.Images {
		if len(img) != n {
			return fmt.Errorf("data: image %d has %d pixels, want %d", i, len(img), n)
		}
	}
	for i, l := range d.Labels {
		if l < 0 || l >= NumClasses {
			return fmt.Errorf("%w: %d at index %d", ErrLabelRange, l, i)
		}
	}
	return nil
}

// Subset returns the first n samples (all of them when n <= 0 or n >= Len).
// The slices are shared with d.
func (d *Dataset) Subset(n int) *Dataset {
	if n <= 0 || n >= d.Len() {
		return d
	}
	return &Dataset{Images: d.Images[:n], Labels: d.Labels[:n], Rows: d.Rows, Cols: d.Cols}
}

// Split keeps the first 1-ratio of the samples for training and returns the
// rest for validation. Both halves share storage with d.
func (d *Dataset) Split(ratio float64) (train, val *Dataset, err error) {
	if ratio < 0 || ratio >= 1 {
		return nil, nil, fmt.Errorf("data: validation ratio %v outside [0, 1)", ratio)
	}
	cut := int(float64(d.Len()) * (1 - ratio))
	train = &Dataset{Images: d.Images[:cut], Labels: d.Labels[:cut], Rows: d.Rows, Cols: d.Cols}
	val = &Dataset{Images: d.Images[cut:], Labels: d.Labels[cut:], Rows: d.Rows, Cols: d.Cols}
	return train, val, nil
}

// Normalize maps every pixel x to (x - mean) / std in place.
func (d *Dataset) Normalize(mean, std float32) error {
	if std <= 0 {
		return fmt.Errorf("data: normalize std must be positive, got %v", std)
	}
	for _, img := range d.Images {
		for j, x := range img {
			img[j] = (x - mean) / std
		}
	}
	return nil
}

// PixelStats returns the mean and population standard deviation over every
// pixel of every image.
func (d *Dataset) PixelStats() (mean, std float64) {
	n := d.Len() * d.Features()
	if n == 0 {
		return 0, 0
	}
	row := make([]float64, d.Features())
	var sum, sumSq float64
	for _, img := range d.Images {
		for j, x := range img {
			row[j] = float64(x)
		}
		sum += floats.Sum(row)
		sumSq += floats.Dot(row, row)
	}
	mean = sum / float64(n)
	return mean, math.Sqrt(max(sumSq/float64(n)-mean*mean, 0))
}

// ClassCounts returns how many samples carry each label.
func (d *Dataset) ClassCounts() [NumClasses]int {
	var counts [NumClasses]int
	for _, l := range d.Labels {
		if l >= 0 && l < NumClasses {
			counts[l]++
		}
	}
	return counts
}
