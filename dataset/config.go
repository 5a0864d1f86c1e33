package dataset

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ManualArchiveName is the filename Kaggle's browser download produces.
// The pipeline renames it to Config.ZipName so every later step sees one
// canonical archive path.
const ManualArchiveName = "archive.zip"

// Config describes one downloadable dataset: where it lives on Kaggle, what
// its archive is called locally, and which entries must exist under the raw
// directory once extraction succeeded.
type Config struct {
	// Name is matched (case-insensitive substring) against extracted
	// top-level directories when flattening nested archives.
	Name           string   `yaml:"name"`
	KaggleSlug     string   `yaml:"kaggle_slug"`
	ZipName        string   `yaml:"zip_name"`
	ExpectedSizeGB float64  `yaml:"expected_size_gb"`
	DirsToCheck    []string `yaml:"dirs_to_check"`
	FilesToCheck   []string `yaml:"files_to_check"`
}

// DefaultConfig returns the CheXpert dataset configuration.
func DefaultConfig() Config {
	return Config{
		Name:           "chexpert",
		KaggleSlug:     "ashery/chexpert",
		ZipName:        "chexpert.zip",
		ExpectedSizeGB: 11.5,
		DirsToCheck:    []string{"train", "valid"},
		FilesToCheck:   []string{"train.csv", "valid.csv"},
	}
}

// LoadConfig reads a YAML dataset configuration. Fields left empty in the
// file keep their default values, so a file only needs to list overrides.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read dataset config %s", path)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse dataset config %s", path)
	}

	if cfg.Name == "" || cfg.ZipName == "" {
		return Config{}, errors.Errorf("dataset config %s must set name and zip_name", path)
	}

	return cfg, nil
}
