package dataset

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// Downloader fetches a dataset archive into destDir. Implementations report
// transport and credential problems through the returned error; they never
// terminate the process themselves.
type Downloader interface {
	Fetch(ctx context.Context, slug, destDir string) error
}

// KaggleCLI downloads datasets by shelling out to the kaggle command-line
// tool, which handles authentication via the user's kaggle.json.
type KaggleCLI struct{}

// Fetch runs `kaggle datasets download -d <slug> -p <destDir>`.
func (KaggleCLI) Fetch(ctx context.Context, slug, destDir string) error {
	cmd := exec.CommandContext(ctx, "kaggle", "datasets", "download", "-d", slug, "-p", destDir)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return errors.Wrap(err, "kaggle CLI not found; install it with: pip install kaggle")
		}
		return errors.Wrap(err, "kaggle download failed; check your API credentials (kaggle.json)")
	}
	return nil
}

// ManagerConfig holds configuration for Manager
type ManagerConfig struct {
	OutputDir  string
	Dataset    Config
	UseKaggle  bool
	Downloader Downloader // optional; defaults to KaggleCLI
	Logger     zerolog.Logger
}

// Manager acquires a dataset archive and organizes it into the expected raw
// directory layout. Every step is idempotent: re-running a finished step is
// a cheap no-op, so an interrupted pipeline can simply be started again.
type Manager struct {
	cfg        Config
	rawDir     string
	useKaggle  bool
	downloader Downloader
	log        zerolog.Logger
}

// NewManager creates a manager rooted at <outputDir>/raw.
func NewManager(config ManagerConfig) (*Manager, error) {
	rawDir := filepath.Join(config.OutputDir, "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create raw directory %s", rawDir)
	}

	downloader := config.Downloader
	if downloader == nil {
		downloader = KaggleCLI{}
	}

	return &Manager{
		cfg:        config.Dataset,
		rawDir:     rawDir,
		useKaggle:  config.UseKaggle,
		downloader: downloader,
		log:        config.Logger,
	}, nil
}

// RawDir returns the directory holding the archive and the extracted tree.
func (m *Manager) RawDir() string {
	return m.rawDir
}

// ArchivePath returns the canonical archive location.
func (m *Manager) ArchivePath() string {
	return filepath.Join(m.rawDir, m.cfg.ZipName)
}

// NormalizeArchiveName reconciles the two filenames an archive can arrive
// under. Manual browser downloads produce archive.zip; the pipeline expects
// Config.ZipName. If only the manual name exists it is renamed once. Returns
// whether the canonical file now exists. Safe to call any number of times.
func (m *Manager) NormalizeArchiveName() bool {
	canonical := m.ArchivePath()
	manual := filepath.Join(m.rawDir, ManualArchiveName)

	if _, err := os.Stat(canonical); err == nil {
		return true
	}

	if _, err := os.Stat(manual); err == nil {
		m.log.Info().Msgf("detected manual download (%s), renaming to %s", ManualArchiveName, m.cfg.ZipName)
		if err := os.Rename(manual, canonical); err != nil {
			m.log.Error().Err(err).Msg("failed to rename manual download")
			return false
		}
		return true
	}

	return false
}

// EnsureArchive makes sure the canonical archive exists locally, downloading
// it through the configured provider when necessary. An archive that is
// already present is never re-downloaded.
func (m *Manager) EnsureArchive(ctx context.Context) error {
	if m.NormalizeArchiveName() {
		m.log.Info().Msgf("archive already exists at %s, skipping download", m.ArchivePath())
		return nil
	}

	if !m.useKaggle {
		return errors.New("kaggle download disabled and no local archive found")
	}

	m.log.Info().Msgf("starting kaggle download: %s", m.cfg.KaggleSlug)
	if err := m.downloader.Fetch(ctx, m.cfg.KaggleSlug, m.rawDir); err != nil {
		return err
	}

	if !m.NormalizeArchiveName() {
		return errors.Errorf("download finished but %s is still missing", m.ArchivePath())
	}

	m.checkArchiveSize()
	m.log.Info().Msg("kaggle download completed")
	return nil
}

// checkArchiveSize warns when the archive is implausibly small for the
// dataset, which usually means an HTML error page was saved instead.
func (m *Manager) checkArchiveSize() {
	info, err := os.Stat(m.ArchivePath())
	if err != nil || m.cfg.ExpectedSizeGB <= 0 {
		return
	}

	expectedBytes := m.cfg.ExpectedSizeGB * 1024 * 1024 * 1024
	if float64(info.Size()) < expectedBytes/100 {
		m.log.Warn().Msgf("archive is only %d bytes, expected roughly %.1f GB; the download may be truncated",
			info.Size(), m.cfg.ExpectedSizeGB)
	}
}

// ValidateStructure reports whether every required subdirectory and file
// exists directly under the raw directory. It reads nothing and recurses
// nowhere; any single missing entry invalidates the layout.
func (m *Manager) ValidateStructure() bool {
	return len(m.missingEntries()) == 0
}

func (m *Manager) missingEntries() []string {
	var missing []string

	for _, d := range m.cfg.DirsToCheck {
		if _, err := os.Stat(filepath.Join(m.rawDir, d)); err != nil {
			missing = append(missing, d)
		}
	}
	for _, f := range m.cfg.FilesToCheck {
		if _, err := os.Stat(filepath.Join(m.rawDir, f)); err != nil {
			missing = append(missing, f)
		}
	}

	return missing
}

// ExtractAndOrganize unpacks the archive into the raw directory and flattens
// one level of nesting if the archive wrapped everything in a dataset-named
// directory. It skips all work when the layout is already valid, and final
// success is decided by re-validating the layout, never by the extraction
// itself.
func (m *Manager) ExtractAndOrganize() error {
	if m.ValidateStructure() {
		m.log.Info().Msg("dataset already extracted and validated, skipping")
		return nil
	}

	zipPath := m.ArchivePath()
	if _, err := os.Stat(zipPath); err != nil {
		return errors.Errorf("archive not found: %s", zipPath)
	}

	m.log.Info().Msgf("extracting %s", filepath.Base(zipPath))

	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open archive %s (it may be corrupted)", zipPath)
	}
	defer reader.Close()

	bar := progressbar.Default(int64(len(reader.File)), "extracting")
	for _, member := range reader.File {
		if err := m.extractMember(member); err != nil {
			return err
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if err := m.flatten(); err != nil {
		return err
	}

	if missing := m.missingEntries(); len(missing) > 0 {
		return errors.Errorf("extraction finished but required entries are missing: %s", strings.Join(missing, ", "))
	}

	m.log.Info().Msg("dataset structure validated successfully")
	return nil
}

// extractMember writes one archive entry under the raw directory, rejecting
// entries whose path would escape it.
func (m *Manager) extractMember(member *zip.File) error {
	dest := filepath.Join(m.rawDir, member.Name)
	if !strings.HasPrefix(dest, filepath.Clean(m.rawDir)+string(os.PathSeparator)) {
		return errors.Errorf("archive entry %q escapes the target directory", member.Name)
	}

	if member.FileInfo().IsDir() {
		return errors.Wrapf(os.MkdirAll(dest, 0o755), "failed to create directory %s", dest)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", dest)
	}

	src, err := member.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to read archive entry %s", member.Name)
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, member.Mode())
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dest)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return errors.Wrapf(err, "failed to extract %s", member.Name)
	}
	return nil
}

// flatten moves the contents of a single dataset-named wrapper directory up
// into the raw directory. With zero or several candidates nothing is moved;
// the ambiguity is logged and the layout validation decides the outcome.
func (m *Manager) flatten() error {
	entries, err := os.ReadDir(m.rawDir)
	if err != nil {
		return errors.Wrapf(err, "failed to list %s", m.rawDir)
	}

	var candidates []string
	needle := strings.ToLower(m.cfg.Name)
	for _, entry := range entries {
		if entry.IsDir() && strings.Contains(strings.ToLower(entry.Name()), needle) {
			candidates = append(candidates, entry.Name())
		}
	}

	switch len(candidates) {
	case 0:
		return nil
	case 1:
		// fall through to the move below
	default:
		m.log.Warn().Msgf("found %d extracted directories matching %q (%s), not flattening",
			len(candidates), m.cfg.Name, strings.Join(candidates, ", "))
		return nil
	}

	nested := filepath.Join(m.rawDir, candidates[0])
	m.log.Info().Msgf("detected nested structure in %s, moving files up", candidates[0])

	children, err := os.ReadDir(nested)
	if err != nil {
		return errors.Wrapf(err, "failed to list %s", nested)
	}
	for _, child := range children {
		from := filepath.Join(nested, child.Name())
		to := filepath.Join(m.rawDir, child.Name())
		if err := os.Rename(from, to); err != nil {
			return errors.Wrapf(err, "failed to move %s", from)
		}
	}

	return errors.Wrapf(os.Remove(nested), "failed to remove emptied directory %s", nested)
}

// Run executes the full acquisition flow: normalize the archive name, fetch
// the archive if it is absent, then extract and validate. On acquisition
// failure it logs manual-recovery instructions before returning the error.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.EnsureArchive(ctx); err != nil {
		m.log.Error().Err(err).Msg("download failed or skipped")
		m.log.Info().Msgf("PLEASE MANUALLY DOWNLOAD: https://www.kaggle.com/%s", m.cfg.KaggleSlug)
		m.log.Info().Msgf("place the file in: %s", m.rawDir)
		return err
	}

	if err := m.ExtractAndOrganize(); err != nil {
		m.log.Error().Err(err).Msg("extraction failed, see logs for details")
		return err
	}

	m.log.Info().Msgf("dataset is ready at: %s", m.rawDir)
	return nil
}
