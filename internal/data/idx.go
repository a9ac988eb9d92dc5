package data

import (
	"bufio"
	"compress/gzip"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049

	// Header sanity bounds. Counts are checked before anything is allocated
	// and storage then grows with the data actually read.
	maxIDXItems = 1 << 24
	maxIDXSide  = 1 << 10
	idxChunk    = 4096
)

// Standard file names of the MNIST distribution.
const (
	TrainImagesFile = "train-images-idx3-ubyte"
	TrainLabelsFile = "train-labels-idx1-ubyte"
	TestImagesFile  = "t10k-images-idx3-ubyte"
	TestLabelsFile  = "t10k-labels-idx1-ubyte"
)

// Digests holds the SHA-256 of the published .gz files.
var Digests = map[string]string{
	TrainImagesFile + ".gz": "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609",
	TrainLabelsFile + ".gz": "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c",
	TestImagesFile + ".gz":  "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6",
	TestLabelsFile + ".gz":  "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6",
}

// LoadIDX reads the training (train=true) or test split from dir. Each file
// may be stored raw or gzip-compressed with a .gz suffix. At most limit
// samples are kept when limit > 0.
func LoadIDX(dir string, train bool, limit int) (*Dataset, error) {
	imageFile, labelFile := TestImagesFile, TestLabelsFile
	if train {
		imageFile, labelFile = TrainImagesFile, TrainLabelsFile
	}

	var (
		images     [][]float32
		rows, cols int
	)
	err := withIDXFile(filepath.Join(dir, imageFile), func(r io.Reader) error {
		var err error
		images, rows, cols, err = ReadIDXImages(r, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load images: %w", err)
	}

	var labels []int32
	err = withIDXFile(filepath.Join(dir, labelFile), func(r io.Reader) error {
		var err error
		labels, err = ReadIDXLabels(r, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	ds := &Dataset{Images: images, Labels: labels, Rows: rows, Cols: cols}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// withIDXFile opens path, or path+".gz" when path is missing, and hands fn a
// decompressed reader.
func withIDXFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		path += ".gz"
		f, err = os.Open(path)
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		defer gz.Close()
		r = gz
	}
	if err := fn(r); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadIDXImages decodes an idx3-ubyte stream:
//
//	magic 2051 | count | rows | cols | count*rows*cols pixel bytes
//
// all big-endian uint32. Pixels are scaled to [0, 1].
func ReadIDXImages(r io.Reader, limit int) (images [][]float32, rows, cols int, err error) {
	var hdr [4]uint32
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, 0, 0, fmt.Errorf("read header: %w", err)
	}
	if hdr[0] != idxImagesMagic {
		return nil, 0, 0, fmt.Errorf("%w: got %d, want %d", ErrBadMagic, hdr[0], idxImagesMagic)
	}
	if hdr[1] > maxIDXItems || hdr[2] == 0 || hdr[2] > maxIDXSide || hdr[3] == 0 || hdr[3] > maxIDXSide {
		return nil, 0, 0, fmt.Errorf("%w: %d images of %dx%d", ErrBadHeader, hdr[1], hdr[2], hdr[3])
	}
	n, rows, cols := int(hdr[1]), int(hdr[2]), int(hdr[3])
	if limit > 0 && limit < n {
		n = limit
	}
	size := rows * cols
	buf := make([]byte, size)
	images = make([][]float32, 0, min(n, idxChunk))
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, 0, 0, fmt.Errorf("read image %d: %w", i, err)
		}
		img := make([]float32, size)
		for j, p := range buf {
			img[j] = float32(p) / 255
		}
		images = append(images, img)
	}
	return images, rows, cols, nil
}

// ReadIDXLabels decodes an idx1-ubyte stream: magic 2049 | count | labels.
func ReadIDXLabels(r io.Reader, limit int) ([]int32, error) {
	var hdr [2]uint32
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if hdr[0] != idxLabelsMagic {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadMagic, hdr[0], idxLabelsMagic)
	}
	if hdr[1] > maxIDXItems {
		return nil, fmt.Errorf("%w: %d labels", ErrBadHeader, hdr[1])
	}
	n := int(hdr[1])
	if limit > 0 && limit < n {
		n = limit
	}
	chunk := make([]byte, min(n, idxChunk))
	labels := make([]int32, 0, len(chunk))
	for len(labels) < n {
		part := chunk[:min(n-len(labels), len(chunk))]
		if _, err := io.ReadFull(r, part); err != nil {
			return nil, fmt.Errorf("read labels %d..%d: %w", len(labels), len(labels)+len(part), err)
		}
		for _, l := range part {
			labels = append(labels, int32(l))
		}
	}
	return labels, nil
}

// WriteIDX encodes ds as an image/label file pair.
func WriteIDX(images, labels io.Writer, ds *Dataset) error {
	hdr := [4]uint32{idxImagesMagic, uint32(ds.Len()), uint32(ds.Rows), uint32(ds.Cols)}
	if err := binary.Write(images, binary.BigEndian, hdr); err != nil {
		return err
	}
	buf := make([]byte, ds.Features())
	for _, img := range ds.Images {
		for j, x := range img {
			buf[j] = byte(clamp01(x)*255 + 0.5)
		}
		if _, err := images.Write(buf); err != nil {
			return err
		}
	}
	if err := binary.Write(labels, binary.BigEndian, [2]uint32{idxLabelsMagic, uint32(ds.Len())}); err != nil {
		return err
	}
	raw := make([]byte, ds.Len())
	for i, l := range ds.Labels {
		raw[i] = byte(l)
	}
	_, err := labels.Write(raw)
	return err
}

// VerifyDigests checks every published .gz file present in dir against
// Digests. Missing files are skipped; it returns the names it verified.
func VerifyDigests(dir string) ([]string, error) {
	var verified []string
	for _, name := range []string{TrainImagesFile, TrainLabelsFile, TestImagesFile, TestLabelsFile} {
		name += ".gz"
		f, err := os.Open(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return verified, err
		}
		h := sha256.New()
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return verified, fmt.Errorf("%s: %w", name, err)
		}
		if got := hex.EncodeToString(h.Sum(nil)); got != Digests[name] {
			return verified, fmt.Errorf("%s: sha256 %s does not match published %s", name, got, Digests[name])
		}
		verified = append(verified, name)
	}
	return verified, nil
}

func clamp01(x float32) float32 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
