package dataset

import (
	"strconv"
	"strings"
)

// ObservationColumns lists the CheXpert findings in their canonical order.
// Label vectors produced by this package always follow this ordering.
var ObservationColumns = []string{
	"No Finding",
	"Enlarged Cardiomediastinum",
	"Cardiomegaly",
	"Lung Opacity",
	"Lung Lesion",
	"Edema",
	"Consolidation",
	"Pneumonia",
	"Atelectasis",
	"Pneumothorax",
	"Pleural Effusion",
	"Pleural Other",
	"Fracture",
	"Support Devices",
}

// LabelValue parses one raw label cell into its training value. Blank cells
// (unmentioned findings) and the uncertainty marker -1 both map to 0; the
// uncertain-as-negative policy is applied here, at load time, so the CSVs on
// disk keep the raw annotations.
func LabelValue(raw string) float32 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0
	}
	if v == -1 {
		return 0
	}
	return float32(v)
}

// LabelVector builds the fixed-order label vector for one CSV record.
// columns maps header names to field positions; findings absent from the
// header contribute 0.
func LabelVector(columns map[string]int, record []string) []float32 {
	vec := make([]float32, len(ObservationColumns))
	for i, name := range ObservationColumns {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			continue
		}
		vec[i] = LabelValue(record[idx])
	}
	return vec
}
