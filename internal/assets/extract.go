package assets

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

// Extract unpacks the export bundle into the work directory
func (t *Toolkit) Extract(ctx context.Context) (bool, error) {
	return done(t.extract(ctx))
}

func (t *Toolkit) extract(ctx context.Context) error {
	r, err := zip.OpenReader(t.cfg.Bundle)
	if err != nil {
		return fmt.Errorf("open bundle: %w", err)
	}
	defer r.Close()

	dest := t.exportDir()
	if err := resetDir(dest); err != nil {
		return fmt.Errorf("prepare export dir: %w", err)
	}

	files := 0
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
		files++
	}

	if _, err := os.Stat(t.imagesDir()); err != nil {
		return fmt.Errorf("bundle has no images directory: %w", err)
	}

	t.logger.Info("bundle extracted",
		zap.String("bundle", t.cfg.Bundle),
		zap.Int("files", files))
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// safeJoin resolves an archive entry under dest, rejecting entries that escape it
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the export directory", name)
	}
	return target, nil
}
