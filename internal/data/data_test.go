package data_test

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/digitgrad/internal/backend/cpu"
	"github.com/born-ml/digitgrad/internal/data"
	"github.com/born-ml/digitgrad/internal/tensor"
)

func tinyDataset(n int) *data.Dataset {
	ds := &data.Dataset{Rows: 2, Cols: 2}
	for i := 0; i < n; i++ {
		v := float32(i) / float32(n)
		ds.Images = append(ds.Images, []float32{v, v, v, v})
		ds.Labels = append(ds.Labels, int32(i%data.NumClasses))
	}
	return ds
}

func writeIDXPair(t *testing.T, dir string, train, compress bool, ds *data.Dataset) {
	t.Helper()
	var images, labels bytes.Buffer
	require.NoError(t, data.WriteIDX(&images, &labels, ds))

	imageFile, labelFile := data.TestImagesFile, data.TestLabelsFile
	if train {
		imageFile, labelFile = data.TrainImagesFile, data.TrainLabelsFile
	}
	write := func(name string, b []byte) {
		if compress {
			var gz bytes.Buffer
			w := gzip.NewWriter(&gz)
			_, err := w.Write(b)
			require.NoError(t, err)
			require.NoError(t, w.Close())
			name, b = name+".gz", gz.Bytes()
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o600))
	}
	write(imageFile, images.Bytes())
	write(labelFile, labels.Bytes())
}

func TestLoadIDX_RawAndGzip(t *testing.T) {
	src := data.Synthetic(12, rand.New(rand.NewSource(1)))
	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("gzip=%v", compress), func(t *testing.T) {
			dir := t.TempDir()
			writeIDXPair(t, dir, true, compress, src)

			ds, err := data.LoadIDX(dir, true, 0)
			require.NoError(t, err)
			assert.Equal(t, 12, ds.Len())
			assert.Equal(t, 28, ds.Rows)
			assert.Equal(t, 784, ds.Features())
			assert.Equal(t, src.Labels, ds.Labels)
			for i := range src.Images {
				assert.InDeltaSlice(t, src.Images[i], ds.Images[i], 1.0/255)
			}

			limited, err := data.LoadIDX(dir, true, 5)
			require.NoError(t, err)
			assert.Equal(t, 5, limited.Len())

			_, err = data.LoadIDX(dir, false, 0)
			assert.Error(t, err, "test split was never written")
		})
	}
}

func TestReadIDX_BadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [4]uint32{1234, 0, 28, 28}))
	_, _, _, err := data.ReadIDXImages(&buf, 0)
	assert.ErrorIs(t, err, data.ErrBadMagic)

	buf.Reset()
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [2]uint32{2051, 0}))
	_, err = data.ReadIDXLabels(&buf, 0)
	assert.ErrorIs(t, err, data.ErrBadMagic)
}

func TestReadIDX_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [4]uint32{2051, 2, 2, 2}))
	buf.Write([]byte{0, 0, 0, 0, 255})
	_, _, _, err := data.ReadIDXImages(&buf, 0)
	assert.ErrorContains(t, err, "read image 1")
}

func TestReadIDX_ImplausibleHeader(t *testing.T) {
	for _, hdr := range [][4]uint32{
		{2051, 0xFFFFFFFF, 28, 28},
		{2051, 10, 0xFFFFFFFF, 0xFFFFFFFF},
		{2051, 10, 0, 28},
	} {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.BigEndian, hdr))
		_, _, _, err := data.ReadIDXImages(&buf, 0)
		assert.ErrorIs(t, err, data.ErrBadHeader, "%v", hdr)
	}

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [2]uint32{2049, 0xFFFFFFFF}))
	_, err := data.ReadIDXLabels(&buf, 0)
	assert.ErrorIs(t, err, data.ErrBadHeader)
}

func TestReadIDXLabels_TruncatedAcrossChunks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [2]uint32{2049, 10000}))
	buf.Write(bytes.Repeat([]byte{7}, 5000))
	_, err := data.ReadIDXLabels(&buf, 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	buf.Reset()
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [2]uint32{2049, 5000}))
	buf.Write(bytes.Repeat([]byte{3}, 5000))
	labels, err := data.ReadIDXLabels(&buf, 0)
	require.NoError(t, err)
	require.Len(t, labels, 5000)
	assert.Equal(t, int32(3), labels[4999])
}

func TestLoadIDX_CountMismatch(t *testing.T) {
	dir := t.TempDir()
	writeIDXPair(t, dir, true, false, tinyDataset(4))

	var labels bytes.Buffer
	require.NoError(t, binary.Write(&labels, binary.BigEndian, [2]uint32{2049, 3}))
	labels.Write([]byte{1, 2, 3})
	require.NoError(t, os.WriteFile(filepath.Join(dir, data.TrainLabelsFile), labels.Bytes(), 0o600))

	_, err := data.LoadIDX(dir, true, 0)
	assert.ErrorIs(t, err, data.ErrCountMismatch)
}

func TestLoadIDX_LabelRange(t *testing.T) {
	dir := t.TempDir()
	ds := tinyDataset(2)
	ds.Labels[1] = 12
	writeIDXPair(t, dir, false, false, ds)
	_, err := data.LoadIDX(dir, false, 0)
	assert.ErrorIs(t, err, data.ErrLabelRange)
}

func csvFixture(rows ...string) string {
	header := make([]string, 785)
	header[0] = "label"
	for i := 1; i < 785; i++ {
		header[i] = fmt.Sprintf("pixel%d", i-1)
	}
	return strings.Join(append([]string{strings.Join(header, ",")}, rows...), "\n") + "\n"
}

func csvRow(label int, pixel int) string {
	fields := make([]string, 785)
	fields[0] = fmt.Sprint(label)
	for i := 1; i < 785; i++ {
		fields[i] = fmt.Sprint(pixel)
	}
	return strings.Join(fields, ",")
}

func TestReadCSV(t *testing.T) {
	ds, err := data.ReadCSV(strings.NewReader(csvFixture(csvRow(5, 255), csvRow(0, 51), csvRow(9, 0))), 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{5, 0, 9}, ds.Labels)
	assert.InDelta(t, 1.0, float64(ds.Images[0][0]), 1e-6)
	assert.InDelta(t, 0.2, float64(ds.Images[1][783]), 1e-6)

	limited, err := data.ReadCSV(strings.NewReader(csvFixture(csvRow(1, 0), csvRow(2, 0))), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, limited.Len())
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := data.ReadCSV(strings.NewReader(""), 0)
	assert.ErrorContains(t, err, "missing header")

	_, err = data.ReadCSV(strings.NewReader(csvFixture()), 0)
	assert.ErrorContains(t, err, "no samples")

	_, err = data.ReadCSV(strings.NewReader(csvFixture(csvRow(11, 0))), 0)
	assert.ErrorIs(t, err, data.ErrLabelRange)

	_, err = data.ReadCSV(strings.NewReader(csvFixture(csvRow(1, 300))), 0)
	assert.ErrorContains(t, err, "pixel 0")

	_, err = data.ReadCSV(strings.NewReader(csvFixture("1,2,3")), 0)
	assert.Error(t, err)
}

func TestLoadCSV_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvFixture(csvRow(3, 10))), 0o600))
	ds, err := data.LoadCSV(path, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{3}, ds.Labels)

	_, err = data.LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), 0)
	assert.Error(t, err)
}

func TestSynthetic_Deterministic(t *testing.T) {
	a := data.Synthetic(20, rand.New(rand.NewSource(9)))
	b := data.Synthetic(20, rand.New(rand.NewSource(9)))
	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.Images, b.Images)
	require.NoError(t, a.Validate())
	for _, img := range a.Images {
		for _, p := range img {
			require.GreaterOrEqual(t, p, float32(0))
			require.LessOrEqual(t, p, float32(1))
		}
	}
}

func TestDataset_NormalizeSplitSubset(t *testing.T) {
	ds := &data.Dataset{Images: [][]float32{{0, 0.5, 1}}, Labels: []int32{1}, Rows: 1, Cols: 3}
	require.NoError(t, ds.Normalize(0.5, 0.5))
	assert.Equal(t, []float32{-1, 0, 1}, ds.Images[0])
	assert.Error(t, ds.Normalize(0, 0))

	big := tinyDataset(10)
	train, val, err := big.Split(0.2)
	require.NoError(t, err)
	assert.Equal(t, 8, train.Len())
	assert.Equal(t, 2, val.Len())
	assert.Equal(t, int32(8), val.Labels[0])
	_, _, err = big.Split(1)
	assert.Error(t, err)

	assert.Equal(t, 3, big.Subset(3).Len())
	assert.Same(t, big, big.Subset(0))
	assert.Equal(t, [data.NumClasses]int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, big.ClassCounts())
}

func TestLoader_Batches(t *testing.T) {
	b := cpu.New()
	ds := tinyDataset(10)
	l, err := data.NewLoader(ds, data.LoaderConfig{BatchSize: 4}, b)
	require.NoError(t, err)
	assert.Equal(t, 3, l.NumBatches())

	var sizes []int
	var labels []int32
	for batch := range l.Batches() {
		sizes = append(sizes, batch.Size)
		assert.Equal(t, tensor.Shape{batch.Size, 1, 2, 2}, batch.Images.Shape())
		labels = append(labels, batch.Labels.Data()...)
	}
	assert.Equal(t, []int{4, 4, 2}, sizes)
	assert.Equal(t, ds.Labels, labels, "unshuffled order is preserved")
}

func TestLoader_DropLastAndShuffle(t *testing.T) {
	b := cpu.New()
	ds := tinyDataset(10)
	l, err := data.NewLoader(ds, data.LoaderConfig{BatchSize: 4, DropLast: true, Shuffle: true, Seed: 3}, b)
	require.NoError(t, err)
	assert.Equal(t, 2, l.NumBatches())

	pass := func() []int32 {
		var out []int32
		for batch := range l.Batches() {
			assert.Equal(t, 4, batch.Size)
			out = append(out, batch.Labels.Data()...)
		}
		return out
	}
	first, second := pass(), pass()
	assert.Len(t, first, 8)
	assert.NotEqual(t, first, second, "each pass reshuffles")

	again, err := data.NewLoader(ds, data.LoaderConfig{BatchSize: 4, DropLast: true, Shuffle: true, Seed: 3}, b)
	require.NoError(t, err)
	var replay []int32
	for batch := range again.Batches() {
		replay = append(replay, batch.Labels.Data()...)
	}
	assert.Equal(t, first, replay, "same seed, same order")
}

func TestLoader_BreakEarly(t *testing.T) {
	l, err := data.NewLoader(tinyDataset(10), data.LoaderConfig{BatchSize: 2}, cpu.New())
	require.NoError(t, err)
	seen := 0
	for range l.Batches() {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestNewLoader_Errors(t *testing.T) {
	b := cpu.New()
	_, err := data.NewLoader(tinyDataset(3), data.LoaderConfig{BatchSize: 0}, b)
	assert.Error(t, err)
	_, err = data.NewLoader(&data.Dataset{}, data.LoaderConfig{BatchSize: 2}, b)
	assert.Error(t, err)
	_, err = data.NewLoader(tinyDataset(3), data.LoaderConfig{BatchSize: 4, DropLast: true}, b)
	assert.Error(t, err)
}

func TestVerifyDigests(t *testing.T) {
	dir := t.TempDir()
	verified, err := data.VerifyDigests(dir)
	require.NoError(t, err)
	assert.Empty(t, verified)

	require.NoError(t, os.WriteFile(filepath.Join(dir, data.TestLabelsFile+".gz"), []byte("not mnist"), 0o600))
	_, err = data.VerifyDigests(dir)
	assert.ErrorContains(t, err, "does not match")
}

func TestDataset_PixelStats(t *testing.T) {
	ds := &data.Dataset{
		Images: [][]float32{{0, 1}, {1, 0}},
		Labels: []int32{0, 1},
		Rows:   1,
		Cols:   2,
	}
	mean, std := ds.PixelStats()
	assert.InDelta(t, 0.5, mean, 1e-12)
	assert.InDelta(t, 0.5, std, 1e-12)

	require.NoError(t, ds.Normalize(0.5, 0.5))
	mean, std = ds.PixelStats()
	assert.InDelta(t, 0.0, mean, 1e-6)
	assert.InDelta(t, 1.0, std, 1e-6)

	mean, std = (&data.Dataset{}).PixelStats()
	assert.Zero(t, mean)
	assert.Zero(t, std)
}
