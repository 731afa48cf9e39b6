package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/database"
	"github.com/junghoon-woo/danta/internal/domain"
)

// archiveTimeLayout names archives so lexical order is chronological order.
const archiveTimeLayout = "20060102_150405"

// Archiver builds the nightly tar.gz — a consistent database copy plus the
// day's snapshot files — uploads it, and prunes archives beyond the
// retention count.
type Archiver struct {
	store       ObjectStore
	db          *database.DB
	snapshotDir string
	prefix      string
	keep        int
	clock       domain.Clock
	log         zerolog.Logger
}

// NewArchiver wires an archiver. keep <= 0 disables pruning.
func NewArchiver(store ObjectStore, db *database.DB, snapshotDir, prefix string,
	keep int, clock domain.Clock, log zerolog.Logger) *Archiver {
	return &Archiver{
		store:       store,
		db:          db,
		snapshotDir: snapshotDir,
		prefix:      strings.TrimSuffix(prefix, "/"),
		keep:        keep,
		clock:       clock,
		log:         log.With().Str("component", "archiver").Logger(),
	}
}

// Run performs one archive cycle: stage, pack, upload, prune.
func (a *Archiver) Run(ctx context.Context) error {
	started := a.clock.Now()

	staging, err := os.MkdirTemp("", "danta-archive-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	files, err := a.stage(staging)
	if err != nil {
		return err
	}

	archivePath := filepath.Join(staging, a.archiveName(started))
	if err := createArchive(archivePath, files); err != nil {
		return fmt.Errorf("failed to build archive: %w", err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	key := a.prefix + "/" + filepath.Base(archivePath)
	if err := a.store.Upload(ctx, key, f); err != nil {
		return err
	}

	if err := a.prune(ctx); err != nil {
		// A failed prune does not void a successful upload.
		a.log.Warn().Err(err).Msg("archive pruning failed")
	}

	a.log.Info().Str("key", key).Dur("elapsed", a.clock.Now().Sub(started)).
		Int("files", len(files)).Msg("archive cycle completed")
	return nil
}

// stage copies the database (via VACUUM INTO, a consistent point-in-time
// copy that ignores the live WAL) and collects today's snapshot files.
func (a *Archiver) stage(staging string) ([]string, error) {
	dbCopy := filepath.Join(staging, "danta.db")
	target := strings.ReplaceAll(dbCopy, "'", "''")
	if _, err := a.db.Exec("VACUUM INTO '" + target + "'"); err != nil {
		return nil, fmt.Errorf("failed to copy database: %w", err)
	}
	files := []string{dbCopy}

	date := a.clock.Now().In(domain.MarketLocation()).Format("20060102")
	entries, err := os.ReadDir(a.snapshotDir)
	if err != nil {
		if os.IsNotExist(err) {
			return files, nil
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), date) || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		files = append(files, filepath.Join(a.snapshotDir, e.Name()))
	}
	return files, nil
}

func (a *Archiver) archiveName(now time.Time) string {
	return "danta-" + now.In(domain.MarketLocation()).Format(archiveTimeLayout) + ".tar.gz"
}

// prune deletes the oldest archives beyond the retention count. Keys embed
// the timestamp, so lexical order is age order.
func (a *Archiver) prune(ctx context.Context) error {
	if a.keep <= 0 {
		return nil
	}
	objects, err := a.store.List(ctx, a.prefix+"/")
	if err != nil {
		return err
	}
	if len(objects) <= a.keep {
		return nil
	}
	for _, obj := range objects[:len(objects)-a.keep] {
		if err := a.store.Delete(ctx, obj.Key); err != nil {
			return err
		}
		a.log.Info().Str("key", obj.Key).Msg("old archive pruned")
	}
	return nil
}

func createArchive(archivePath string, files []string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	for _, path := range files {
		if err := addFile(tw, path); err != nil {
			return fmt.Errorf("failed to add %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func addFile(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header := &tar.Header{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
