package assets

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// ManifestName is the file listing everything in the output directory
const ManifestName = "manifest.json"

// Manifest lists the packaged files
type Manifest struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Files       []ManifestFile `json:"files"`
}

// ManifestFile is one packaged file. Path is slash-separated and relative
// to the output directory.
type ManifestFile struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Package assembles the output directory from the generated artifacts and
// writes a manifest with a digest of each file
func (t *Toolkit) Package(ctx context.Context) (bool, error) {
	return done(t.pack(ctx))
}

func (t *Toolkit) pack(ctx context.Context) error {
	out := t.cfg.OutputDir
	if err := resetDir(out); err != nil {
		return fmt.Errorf("prepare output dir: %w", err)
	}

	var rel []string
	for _, dir := range []string{"icons", "whites"} {
		names, err := listFiles(filepath.Join(t.cfg.WorkDir, dir), ".png")
		if err != nil {
			return fmt.Errorf("list %s: %w", dir, err)
		}
		for _, name := range names {
			rel = append(rel, filepath.Join(dir, name))
		}
	}
	for _, path := range []string{t.atlasImage(), t.atlasIndex(), t.groupsFile(), t.databaseZip()} {
		rel = append(rel, filepath.Base(path))
	}

	manifest := Manifest{
		GeneratedAt: time.Now().UTC(),
		Files:       make([]ManifestFile, 0, len(rel)),
	}
	for _, name := range rel {
		if err := ctx.Err(); err != nil {
			return err
		}

		dst := filepath.Join(out, name)
		if err := copyFile(filepath.Join(t.cfg.WorkDir, name), dst); err != nil {
			return fmt.Errorf("copy %s: %w", name, err)
		}
		sum, size, err := fileDigest(dst)
		if err != nil {
			return err
		}
		manifest.Files = append(manifest.Files, ManifestFile{
			Path:   filepath.ToSlash(name),
			Size:   size,
			SHA256: sum,
		})
	}

	if err := writeJSON(filepath.Join(out, ManifestName), manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	t.logger.Info("output packaged",
		zap.String("dir", out),
		zap.Int("files", len(manifest.Files)))
	return nil
}
