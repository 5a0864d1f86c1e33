package dataset

import (
	"encoding/csv"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Transform mutates a decoded image before it is returned, e.g. a resize or
// crop. Transforms must be side-effect-free: GetImage may be called from many
// goroutines at once.
type Transform func(image.Image) image.Image

// CheXpert is a randomly-indexable dataset backed by one split CSV. Each item
// pairs a chest radiograph with its fixed-order multi-label vector. The
// dataset holds no mutable state after construction, so concurrent access
// needs no locking. Images are decoded on every access; caching and shuffling
// belong to the batch-loading layer.
type CheXpert struct {
	rootDir   string
	transform Transform
	paths     []string
	labels    [][]float32
}

// NewCheXpert loads the split CSV at csvPath. Image paths in the CSV are
// relative; they are joined to rootDir at access time. transform may be nil.
func NewCheXpert(csvPath, rootDir string, transform Transform) (*CheXpert, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open split CSV %s", csvPath)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse split CSV %s", csvPath)
	}
	if len(records) < 2 {
		return nil, errors.Errorf("split CSV %s has no data rows", csvPath)
	}

	header := records[0]
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}

	pathIdx, ok := columns["Path"]
	if !ok {
		return nil, errors.Errorf("split CSV %s has no Path column", csvPath)
	}

	d := &CheXpert{
		rootDir:   rootDir,
		transform: transform,
		paths:     make([]string, 0, len(records)-1),
		labels:    make([][]float32, 0, len(records)-1),
	}
	for _, record := range records[1:] {
		d.paths = append(d.paths, record[pathIdx])
		d.labels = append(d.labels, LabelVector(columns, record))
	}

	return d, nil
}

// Len returns the number of items in the dataset.
func (d *CheXpert) Len() int {
	return len(d.paths)
}

// NumLabels returns the width of every label vector.
func (d *CheXpert) NumLabels() int {
	return len(ObservationColumns)
}

// GetItem returns the image path and label vector at the given index. The
// path is already joined to the dataset root. This is the cheap accessor the
// batch loader uses; decoding happens in GetImage.
func (d *CheXpert) GetItem(index int) (string, []float32, error) {
	if index < 0 || index >= len(d.paths) {
		return "", nil, errors.Errorf("index %d out of range [0, %d)", index, len(d.paths))
	}
	return filepath.Join(d.rootDir, filepath.FromSlash(d.paths[index])), d.labels[index], nil
}

// GetImage decodes the image at the given index as 3-channel RGB, applies the
// transform if one is set, and returns it with the label vector. Decode
// failures propagate to the caller; there is no retry.
func (d *CheXpert) GetImage(index int) (image.Image, []float32, error) {
	path, labels, err := d.GetItem(index)
	if err != nil {
		return nil, nil, err
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to decode image %s", path)
	}

	// Clone normalizes every source format to an RGB(A) pixel layout.
	decoded := image.Image(imaging.Clone(img))
	if d.transform != nil {
		decoded = d.transform(decoded)
	}
	return decoded, labels, nil
}
