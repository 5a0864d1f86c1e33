// Package split carves the CheXpert metadata CSV into train, validation and
// test partitions at patient granularity: every row belonging to a patient
// lands in the same file, never spread across files.
package split

import (
	"encoding/csv"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// TestPatientCount is how many distinct patients (by first appearance
	// in the source CSV) form the held-out test set.
	TestPatientCount = 10

	// ValRatio is the share of patients assigned to validation by the
	// seeded random draw.
	ValRatio = 0.20

	pathColumn    = "Path"
	patientColumn = "patient_id"
)

// versionPrefixes are the archive-version directories that may prefix image
// paths in the source CSV. They are stripped so paths resolve against the
// flattened raw directory no matter which archive variant was downloaded.
var versionPrefixes = []string{"CheXpert-v1.0-small/", "CheXpert-v1.0/"}

// sourceCandidates are the locations tried for the master CSV, relative to
// the input directory.
var sourceCandidates = []string{"train.csv", filepath.Join("CheXpert-v1.0-small", "train.csv")}

// Preprocessor splits one source CSV into test.csv, train.csv and val.csv.
type Preprocessor struct {
	csvPath   string
	outputDir string
	seed      int64
	log       zerolog.Logger
}

// NewPreprocessor locates the master CSV under inputDir and prepares the
// output directory. It fails when the CSV exists at neither candidate
// location.
func NewPreprocessor(inputDir, outputDir string, seed int64, log zerolog.Logger) (*Preprocessor, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", outputDir)
	}

	var csvPath string
	for _, candidate := range sourceCandidates {
		p := filepath.Join(inputDir, candidate)
		if _, err := os.Stat(p); err == nil {
			csvPath = p
			break
		}
	}
	if csvPath == "" {
		return nil, errors.Errorf("could not find train.csv in %s", inputDir)
	}

	return &Preprocessor{
		csvPath:   csvPath,
		outputDir: outputDir,
		seed:      seed,
		log:       log,
	}, nil
}

// SourcePath returns the resolved master CSV location.
func (p *Preprocessor) SourcePath() string {
	return p.csvPath
}

// Process runs the full split. The test partition is the first
// TestPatientCount distinct patients in row order; train and validation are a
// seeded random partition of the distinct patients. The random draw covers
// every patient, including the held-out ones, so test patients can also
// surface in train.csv or val.csv; this mirrors the published splits and is
// left unchanged until the upstream datasets are re-cut.
func (p *Preprocessor) Process() error {
	p.log.Info().Msgf("loading raw data from %s", p.csvPath)

	header, rows, err := readCSV(p.csvPath)
	if err != nil {
		return err
	}

	pathIdx := -1
	for i, name := range header {
		if name == pathColumn {
			pathIdx = i
		}
	}
	if pathIdx < 0 {
		return errors.Errorf("%s has no %s column", p.csvPath, pathColumn)
	}

	// Normalize paths and derive the patient key, appending it as a new
	// column so downstream consumers can group rows without re-deriving.
	header = append(header, patientColumn)
	for i, row := range rows {
		row[pathIdx] = stripVersionPrefix(row[pathIdx])
		patient, err := patientID(row[pathIdx])
		if err != nil {
			return errors.Wrapf(err, "row %d", i+2)
		}
		rows[i] = append(row, patient)
	}
	patientIdx := len(header) - 1

	patients := distinctPatients(rows, patientIdx)
	p.log.Info().Msgf("total unique patients: %d", len(patients))

	testCount := TestPatientCount
	if testCount > len(patients) {
		testCount = len(patients)
	}
	testPatients := toSet(patients[:testCount])

	testRows := filterRows(rows, patientIdx, testPatients)
	if err := p.writeSplit("test.csv", header, testRows); err != nil {
		return err
	}
	p.log.Info().Msgf("created test.csv with %d images (%d patients)", len(testRows), testCount)

	trainPatients, valPatients := partitionPatients(patients, ValRatio, p.seed)

	trainRows := filterRows(rows, patientIdx, toSet(trainPatients))
	if err := p.writeSplit("train.csv", header, trainRows); err != nil {
		return err
	}

	valRows := filterRows(rows, patientIdx, toSet(valPatients))
	if err := p.writeSplit("val.csv", header, valRows); err != nil {
		return err
	}

	p.log.Info().Msgf("created train.csv with %d images (%d patients)", len(trainRows), len(trainPatients))
	p.log.Info().Msgf("created val.csv with %d images (%d patients)", len(valRows), len(valPatients))
	return nil
}

// readCSV loads the whole source CSV into memory, splitting off the header.
func readCSV(path string) ([]string, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	if len(records) == 0 {
		return nil, nil, errors.Errorf("%s is empty", path)
	}

	return records[0], records[1:], nil
}

// stripVersionPrefix removes a leading archive-version directory from an
// image path, if present.
func stripVersionPrefix(path string) string {
	for _, prefix := range versionPrefixes {
		if strings.HasPrefix(path, prefix) {
			return strings.TrimPrefix(path, prefix)
		}
	}
	return path
}

// patientID extracts the patient key from a normalized image path; it is the
// second path component (train/patientXXXXX/study1/view1.jpg).
func patientID(path string) (string, error) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", errors.Errorf("image path %q has no patient component", path)
	}
	return parts[1], nil
}

// distinctPatients returns patient IDs in first-seen row order.
func distinctPatients(rows [][]string, patientIdx int) []string {
	seen := make(map[string]bool)
	var patients []string
	for _, row := range rows {
		id := row[patientIdx]
		if !seen[id] {
			seen[id] = true
			patients = append(patients, id)
		}
	}
	return patients
}

// partitionPatients shuffles the patient list with a fixed seed and cuts off
// the last ceil(valRatio*n) entries as the validation group. The same seed
// and input order always produce the same partition.
func partitionPatients(patients []string, valRatio float64, seed int64) (train, val []string) {
	shuffled := make([]string, len(patients))
	copy(shuffled, patients)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	valCount := int(math.Ceil(valRatio * float64(len(shuffled))))
	cut := len(shuffled) - valCount
	return shuffled[:cut], shuffled[cut:]
}

func toSet(patients []string) map[string]bool {
	set := make(map[string]bool, len(patients))
	for _, id := range patients {
		set[id] = true
	}
	return set
}

// filterRows keeps the rows whose patient column is in the member set,
// preserving source order.
func filterRows(rows [][]string, patientIdx int, members map[string]bool) [][]string {
	var kept [][]string
	for _, row := range rows {
		if members[row[patientIdx]] {
			kept = append(kept, row)
		}
	}
	return kept
}

// writeSplit writes one partition CSV. Empty cells become "0" (the missing
// values in the source mean "finding not mentioned"); no index column is
// emitted.
func (p *Preprocessor) writeSplit(filename string, header []string, rows [][]string) error {
	path := filepath.Join(p.outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}

	filled := make([]string, len(header))
	for _, row := range rows {
		for i, cell := range row {
			if cell == "" {
				cell = "0"
			}
			filled[i] = cell
		}
		if err := writer.Write(filled[:len(row)]); err != nil {
			return errors.Wrapf(err, "failed to write %s", path)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.Wrapf(err, "failed to flush %s", path)
	}
	return nil
}
