package dataset

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

// writePNG creates a small solid-color PNG at path
func writePNG(t *testing.T, path string, c color.Color, w, h int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create image directory: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create image file: %v", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
}

// writeSplitCSV writes a split CSV with a Path column and two label columns
func writeSplitCSV(t *testing.T, dir string, rows [][3]string) string {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("Path,Cardiomegaly,Edema\n")
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s\n", row[0], row[1], row[2]))
	}

	csvPath := filepath.Join(dir, "train.csv")
	if err := os.WriteFile(csvPath, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("Failed to write CSV: %v", err)
	}
	return csvPath
}

// TestNewCheXpert tests dataset construction from a split CSV
func TestNewCheXpert(t *testing.T) {
	t.Run("ValidCSV", func(t *testing.T) {
		dir := t.TempDir()
		csvPath := writeSplitCSV(t, dir, [][3]string{
			{"train/patient00001/study1/view1.png", "1", "-1"},
			{"train/patient00002/study1/view1.png", "0", "1"},
		})

		d, err := NewCheXpert(csvPath, dir, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if d.Len() != 2 {
			t.Errorf("Expected 2 items, got %d", d.Len())
		}
		if d.NumLabels() != len(ObservationColumns) {
			t.Errorf("Expected %d labels, got %d", len(ObservationColumns), d.NumLabels())
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := NewCheXpert(filepath.Join(t.TempDir(), "absent.csv"), ".", nil); err == nil {
			t.Error("Expected error for missing CSV")
		}
	})

	t.Run("NoPathColumn", func(t *testing.T) {
		dir := t.TempDir()
		csvPath := filepath.Join(dir, "bad.csv")
		if err := os.WriteFile(csvPath, []byte("Image,Label\na.png,1\n"), 0o644); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}

		if _, err := NewCheXpert(csvPath, dir, nil); err == nil {
			t.Error("Expected error for CSV without Path column")
		}
	})

	t.Run("HeaderOnly", func(t *testing.T) {
		dir := t.TempDir()
		csvPath := filepath.Join(dir, "empty.csv")
		if err := os.WriteFile(csvPath, []byte("Path,Cardiomegaly\n"), 0o644); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}

		if _, err := NewCheXpert(csvPath, dir, nil); err == nil {
			t.Error("Expected error for CSV with no data rows")
		}
	})
}

// TestCheXpertGetItem tests path resolution and label normalization
func TestCheXpertGetItem(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeSplitCSV(t, dir, [][3]string{
		{"train/patient00001/study1/view1.png", "1", "-1"},
		{"train/patient00002/study1/view1.png", "", "1"},
	})

	d, err := NewCheXpert(csvPath, dir, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	t.Run("ResolvesPath", func(t *testing.T) {
		path, _, err := d.GetItem(0)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		want := filepath.Join(dir, "train", "patient00001", "study1", "view1.png")
		if path != want {
			t.Errorf("Expected path %s, got %s", want, path)
		}
	})

	t.Run("NormalizesLabels", func(t *testing.T) {
		_, labels, err := d.GetItem(0)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if labels[2] != 1 { // Cardiomegaly
			t.Errorf("Expected Cardiomegaly=1, got %v", labels[2])
		}
		if labels[5] != 0 { // Edema, uncertain
			t.Errorf("Expected uncertain Edema=0, got %v", labels[5])
		}

		_, labels, err = d.GetItem(1)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if labels[2] != 0 { // Cardiomegaly, missing
			t.Errorf("Expected missing Cardiomegaly=0, got %v", labels[2])
		}
		if labels[5] != 1 { // Edema
			t.Errorf("Expected Edema=1, got %v", labels[5])
		}
	})

	t.Run("IndexOutOfRange", func(t *testing.T) {
		if _, _, err := d.GetItem(-1); err == nil {
			t.Error("Expected error for negative index")
		}
		if _, _, err := d.GetItem(2); err == nil {
			t.Error("Expected error for index past the end")
		}
	})
}

// TestCheXpertGetImage tests image decoding and the optional transform
func TestCheXpertGetImage(t *testing.T) {
	t.Run("DecodesImage", func(t *testing.T) {
		dir := t.TempDir()
		writePNG(t, filepath.Join(dir, "train", "patient00001", "study1", "view1.png"),
			color.RGBA{R: 200, G: 100, B: 50, A: 255}, 8, 6)
		csvPath := writeSplitCSV(t, dir, [][3]string{
			{"train/patient00001/study1/view1.png", "1", "0"},
		})

		d, err := NewCheXpert(csvPath, dir, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		img, labels, err := d.GetImage(0)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
			t.Errorf("Unexpected image size: %v", img.Bounds())
		}
		if labels[2] != 1 {
			t.Errorf("Expected Cardiomegaly=1, got %v", labels[2])
		}
	})

	t.Run("AppliesTransform", func(t *testing.T) {
		dir := t.TempDir()
		writePNG(t, filepath.Join(dir, "train", "patient00001", "study1", "view1.png"),
			color.White, 16, 16)
		csvPath := writeSplitCSV(t, dir, [][3]string{
			{"train/patient00001/study1/view1.png", "0", "0"},
		})

		resize := func(img image.Image) image.Image {
			return imaging.Resize(img, 4, 4, imaging.Linear)
		}
		d, err := NewCheXpert(csvPath, dir, resize)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		img, _, err := d.GetImage(0)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
			t.Errorf("Transform not applied, size: %v", img.Bounds())
		}
	})

	t.Run("MissingImagePropagates", func(t *testing.T) {
		dir := t.TempDir()
		csvPath := writeSplitCSV(t, dir, [][3]string{
			{"train/patient00001/study1/absent.png", "0", "0"},
		})

		d, err := NewCheXpert(csvPath, dir, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if _, _, err := d.GetImage(0); err == nil {
			t.Error("Expected error for missing image file")
		}
	})
}
