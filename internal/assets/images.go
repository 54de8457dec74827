package assets

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// AtlasEntry locates one icon in the atlas image
type AtlasEntry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AtlasIndex describes the atlas image
type AtlasIndex struct {
	Image    string                `json:"image"`
	Width    int                   `json:"width"`
	Height   int                   `json:"height"`
	IconSize int                   `json:"icon_size"`
	Icons    map[string]AtlasEntry `json:"icons"`
}

// ApplyOverrides copies replacement images over the extracted ones.
// Without an override directory there is nothing to do.
func (t *Toolkit) ApplyOverrides(ctx context.Context) (bool, error) {
	return done(t.applyOverrides(ctx))
}

func (t *Toolkit) applyOverrides(ctx context.Context) error {
	if t.cfg.OverrideDir == "" {
		t.logger.Debug("no override directory configured")
		return nil
	}

	names, err := listFiles(t.cfg.OverrideDir, ".png")
	if err != nil {
		return fmt.Errorf("list overrides: %w", err)
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := copyFile(filepath.Join(t.cfg.OverrideDir, name), filepath.Join(t.imagesDir(), name)); err != nil {
			return fmt.Errorf("apply override %s: %w", name, err)
		}
	}

	t.logger.Info("override images applied", zap.Int("count", len(names)))
	return nil
}

// GenerateIcons scales every extracted image to fit a square icon
func (t *Toolkit) GenerateIcons(ctx context.Context) (bool, error) {
	defer t.reclaim()
	return done(t.transformImages(ctx, t.imagesDir(), t.iconsDir(), t.icon))
}

// GenerateWhites renders a white silhouette of every icon
func (t *Toolkit) GenerateWhites(ctx context.Context) (bool, error) {
	return done(t.transformImages(ctx, t.iconsDir(), t.whitesDir(), whiteSilhouette))
}

// transformImages applies fn to every PNG in src and writes the results to
// dst, using up to one goroutine per CPU
func (t *Toolkit) transformImages(ctx context.Context, src, dst string, fn func(image.Image) image.Image) error {
	names, err := listFiles(src, ".png")
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("no images found in %s", src)
	}
	if err := resetDir(dst); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, name := range names {
		name := name // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := readPNG(filepath.Join(src, name))
			if err != nil {
				return err
			}
			return writePNG(filepath.Join(dst, name), fn(img))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	t.logger.Info("images generated",
		zap.String("dir", dst),
		zap.Int("count", len(names)))
	return nil
}

// icon scales img to fit an IconSize square, centred on a transparent canvas
func (t *Toolkit) icon(img image.Image) image.Image {
	size := t.cfg.IconSize
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return dst
	}

	tw, th := size, size
	if w > h {
		th = max(1, h*size/w)
	} else if h > w {
		tw = max(1, w*size/h)
	}
	x0 := (size - tw) / 2
	y0 := (size - th) / 2

	draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+tw, y0+th), img, b, draw.Over, nil)
	return dst
}

// whiteSilhouette keeps the alpha channel and paints every pixel white
func whiteSilhouette(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			dst.SetNRGBA(x, y, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: uint8(a >> 8)})
		}
	}
	return dst
}

// BuildAtlas packs every icon into one sprite sheet with a JSON index
func (t *Toolkit) BuildAtlas(ctx context.Context) (bool, error) {
	defer t.reclaim()
	return done(t.buildAtlas(ctx))
}

func (t *Toolkit) buildAtlas(ctx context.Context) error {
	names, err := listFiles(t.iconsDir(), ".png")
	if err != nil {
		return fmt.Errorf("list icons: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("no icons to pack")
	}

	size := t.cfg.IconSize
	cols := min(t.cfg.AtlasColumns, len(names))
	rows := (len(names) + cols - 1) / cols

	sheet := image.NewNRGBA(image.Rect(0, 0, cols*size, rows*size))
	index := AtlasIndex{
		Image:    filepath.Base(t.atlasImage()),
		Width:    cols * size,
		Height:   rows * size,
		IconSize: size,
		Icons:    make(map[string]AtlasEntry, len(names)),
	}

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := readPNG(filepath.Join(t.iconsDir(), name))
		if err != nil {
			return err
		}

		x, y := (i%cols)*size, (i/cols)*size
		cell := image.Rect(x, y, x+size, y+size)
		draw.Draw(sheet, cell, img, img.Bounds().Min, draw.Src)
		index.Icons[baseName(name)] = AtlasEntry{X: x, Y: y, Width: size, Height: size}
	}

	if err := writePNG(t.atlasImage(), sheet); err != nil {
		return err
	}
	if err := writeJSON(t.atlasIndex(), index); err != nil {
		return err
	}

	t.logger.Info("atlas built",
		zap.Int("icons", len(names)),
		zap.Int("columns", cols),
		zap.Int("rows", rows))
	return nil
}
