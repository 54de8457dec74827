package assets

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/aescanero/assetforge/pkg/domain"
)

// Step names
const (
	StepExtract  domain.StepName = "extract"
	StepImages   domain.StepName = "images"
	StepIcons    domain.StepName = "icons"
	StepWhites   domain.StepName = "whites"
	StepAtlas    domain.StepName = "atlas"
	StepGroups   domain.StepName = "groups"
	StepDatabase domain.StepName = "database"
	StepPackage  domain.StepName = "package"
	StepPublish  domain.StepName = "publish"
)

// Config locates inputs and outputs and sizes generated images
type Config struct {
	Bundle       string
	WorkDir      string
	OutputDir    string
	OverrideDir  string
	IconSize     int
	AtlasColumns int
	// MaxRetries is the retry budget of retryable steps
	MaxRetries int
}

// Registrar accepts step definitions
type Registrar interface {
	RegisterStep(def domain.StepDefinition) error
}

// Toolkit builds the asset step actions
type Toolkit struct {
	cfg       Config
	logger    *zap.Logger
	reclaim   func()
	publisher *Publisher
}

// Option configures a Toolkit
type Option func(*Toolkit)

// WithReclaim sets a hook run after memory-heavy image steps
func WithReclaim(fn func()) Option {
	return func(t *Toolkit) { t.reclaim = fn }
}

// WithPublisher adds the publish step
func WithPublisher(p *Publisher) Option {
	return func(t *Toolkit) { t.publisher = p }
}

// NewToolkit creates a toolkit
func NewToolkit(cfg Config, logger *zap.Logger, opts ...Option) (*Toolkit, error) {
	if cfg.Bundle == "" || cfg.WorkDir == "" || cfg.OutputDir == "" {
		return nil, fmt.Errorf("bundle, work dir and output dir are required")
	}
	if cfg.IconSize < 1 {
		return nil, fmt.Errorf("icon size must be positive, got %d", cfg.IconSize)
	}
	if cfg.AtlasColumns < 1 {
		return nil, fmt.Errorf("atlas columns must be positive, got %d", cfg.AtlasColumns)
	}

	t := &Toolkit{
		cfg:     cfg,
		logger:  logger,
		reclaim: func() {},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Definitions returns every step in registration order
func (t *Toolkit) Definitions() []domain.StepDefinition {
	retry := t.cfg.MaxRetries

	defs := []domain.StepDefinition{
		{
			Name:        StepExtract,
			Description: "Extract the export bundle",
			Retryable:   true,
			MaxRetries:  retry,
			Action:      t.Extract,
		},
		{
			Name:         StepImages,
			Description:  "Apply override images",
			Dependencies: []domain.StepName{StepExtract},
			Action:       t.ApplyOverrides,
		},
		{
			Name:         StepIcons,
			Description:  "Generate icons",
			Dependencies: []domain.StepName{StepImages},
			Retryable:    true,
			MaxRetries:   retry,
			Action:       t.GenerateIcons,
		},
		{
			Name:         StepWhites,
			Description:  "Generate white icon variants",
			Dependencies: []domain.StepName{StepIcons},
			Retryable:    true,
			MaxRetries:   retry,
			Action:       t.GenerateWhites,
		},
		{
			Name:         StepAtlas,
			Description:  "Build the icon atlas",
			Dependencies: []domain.StepName{StepIcons},
			Retryable:    true,
			MaxRetries:   retry,
			Action:       t.BuildAtlas,
		},
		{
			Name:         StepGroups,
			Description:  "Group icons by category",
			Dependencies: []domain.StepName{StepExtract},
			Action:       t.BuildGroups,
		},
		{
			Name:         StepDatabase,
			Description:  "Package the database",
			Dependencies: []domain.StepName{StepExtract},
			Retryable:    true,
			MaxRetries:   retry,
			Action:       t.PackageDatabase,
		},
		{
			Name:         StepPackage,
			Description:  "Assemble the output directory",
			Dependencies: []domain.StepName{StepWhites, StepAtlas, StepGroups, StepDatabase},
			Action:       t.Package,
		},
	}

	if t.publisher != nil {
		defs = append(defs, domain.StepDefinition{
			Name:         StepPublish,
			Description:  "Upload the output to object storage",
			Dependencies: []domain.StepName{StepPackage},
			Retryable:    true,
			MaxRetries:   retry,
			Action:       t.Publish,
		})
	}
	return defs
}

// Register adds defs to r in order, stopping at the first error
func Register(r Registrar, defs []domain.StepDefinition) error {
	for _, def := range defs {
		if err := r.RegisterStep(def); err != nil {
			return fmt.Errorf("register step %q: %w", def.Name, err)
		}
	}
	return nil
}

func (t *Toolkit) exportDir() string   { return filepath.Join(t.cfg.WorkDir, "export") }
func (t *Toolkit) imagesDir() string   { return filepath.Join(t.exportDir(), "images") }
func (t *Toolkit) dataDir() string     { return filepath.Join(t.exportDir(), "data") }
func (t *Toolkit) iconsDir() string    { return filepath.Join(t.cfg.WorkDir, "icons") }
func (t *Toolkit) whitesDir() string   { return filepath.Join(t.cfg.WorkDir, "whites") }
func (t *Toolkit) atlasImage() string  { return filepath.Join(t.cfg.WorkDir, "atlas.png") }
func (t *Toolkit) atlasIndex() string  { return filepath.Join(t.cfg.WorkDir, "atlas.json") }
func (t *Toolkit) groupsFile() string  { return filepath.Join(t.cfg.WorkDir, "groups.json") }
func (t *Toolkit) databaseZip() string { return filepath.Join(t.cfg.WorkDir, "database.zip") }

// done wraps a step body so that an error is a failed attempt
func done(err error) (bool, error) {
	if err != nil {
		return false, err
	}
	return true, nil
}
