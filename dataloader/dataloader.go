package dataloader

import (
	"math/rand"
	"sync"
	"time"

	"github.com/tsawler/go-chexpert/preprocessing"
)

// Dataset interface defines the contract for datasets consumed by the loader.
// GetItem returns a resolvable image path plus the multi-label vector for
// that item.
type Dataset interface {
	Len() int
	GetItem(index int) (imagePath string, labels []float32, err error)
}

// DataLoader handles batch loading over a Dataset: shuffling, batching and a
// bounded cache of decoded images. Shuffling lives here, not in the dataset,
// so the dataset itself can stay read-only.
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	numLabels int
	indices   []int
	position  int
	rng       *rand.Rand
	mu        sync.Mutex

	// Buffer reuse for memory efficiency
	imageDataBuffer []float32
	labelDataBuffer []float32

	cache     *Cache
	processor *preprocessing.Processor
	imageSize int
}

// Config holds configuration for DataLoader
type Config struct {
	BatchSize    int
	Shuffle      bool
	MaxCacheSize int // Maximum number of decoded images to cache
	ImageSize    int
	NumLabels    int   // Width of every label vector
	Seed         int64 // Shuffle seed; 0 means time-based
}

// NewDataLoader creates a new data loader
func NewDataLoader(dataset Dataset, config Config) *DataLoader {
	if config.MaxCacheSize == 0 {
		config.MaxCacheSize = 1000
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}
	if config.Shuffle {
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	return &DataLoader{
		dataset:   dataset,
		batchSize: config.BatchSize,
		shuffle:   config.Shuffle,
		numLabels: config.NumLabels,
		indices:   indices,
		position:  0,
		rng:       rng,
		cache:     NewCache(config.MaxCacheSize),
		processor: preprocessing.NewProcessor(config.ImageSize),
		imageSize: config.ImageSize,
	}
}

// Reset rewinds the loader to the beginning, reshuffling if configured.
func (dl *DataLoader) Reset() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.position = 0
	if dl.shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
}

// NextBatch loads the next batch of images. imageData is CHW float32 per
// image, labelData is numLabels floats per image. A (nil, nil, 0, nil)
// return means the epoch is exhausted. Items whose image cannot be read are
// skipped rather than aborting the batch.
func (dl *DataLoader) NextBatch() (imageData []float32, labelData []float32, actualBatchSize int, err error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	remaining := len(dl.indices) - dl.position
	if remaining <= 0 {
		return nil, nil, 0, nil
	}

	batchSize := dl.batchSize
	if remaining < batchSize {
		batchSize = remaining
	}

	pixelsPerImage := 3 * dl.imageSize * dl.imageSize
	requiredImageSize := batchSize * pixelsPerImage
	requiredLabelSize := batchSize * dl.numLabels

	if len(dl.imageDataBuffer) < requiredImageSize {
		dl.imageDataBuffer = make([]float32, requiredImageSize)
	}
	if len(dl.labelDataBuffer) < requiredLabelSize {
		dl.labelDataBuffer = make([]float32, requiredLabelSize)
	}

	imageData = dl.imageDataBuffer[:requiredImageSize]
	labelData = dl.labelDataBuffer[:requiredLabelSize]

	actualBatchSize = 0
	for i := 0; i < batchSize; i++ {
		if dl.position >= len(dl.indices) {
			break
		}

		idx := dl.indices[dl.position]
		imagePath, labels, err := dl.dataset.GetItem(idx)
		if err != nil {
			dl.position++
			continue
		}

		imgData, err := dl.loadImageWithCache(imagePath)
		if err != nil {
			dl.position++
			continue
		}

		copy(imageData[actualBatchSize*pixelsPerImage:(actualBatchSize+1)*pixelsPerImage], imgData)
		copy(labelData[actualBatchSize*dl.numLabels:(actualBatchSize+1)*dl.numLabels], labels)

		actualBatchSize++
		dl.position++
	}

	return imageData[:actualBatchSize*pixelsPerImage], labelData[:actualBatchSize*dl.numLabels], actualBatchSize, nil
}

// loadImageWithCache loads a decoded image, consulting the cache first.
func (dl *DataLoader) loadImageWithCache(imagePath string) ([]float32, error) {
	if cached, exists := dl.cache.Get(imagePath); exists {
		return cached, nil
	}

	processed, err := dl.processor.ProcessFile(imagePath)
	if err != nil {
		return nil, err
	}

	dl.cache.Put(imagePath, processed.Data)
	return processed.Data, nil
}

// Progress returns the current position within the epoch.
func (dl *DataLoader) Progress() (current, total int) {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.position, len(dl.indices)
}

// Stats returns cache statistics.
func (dl *DataLoader) Stats() string {
	return dl.cache.Stats().String()
}
