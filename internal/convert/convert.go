// Package convert drives whole-file conversions: it loads a model or
// walkmesh in either form, runs geometry post-processing, and writes
// the requested target form. All state lives on the Context so
// conversions are independent of each other.
package convert

import (
	"fmt"
	gomath "math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/aurora-mdl/internal/config"
	"github.com/Faultbox/aurora-mdl/pkg/formats"
	"github.com/Faultbox/aurora-mdl/pkg/geometry"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// Context carries the settings for one batch of conversions.
type Context struct {
	log     *zap.Logger
	dialect *formats.Dialect
	gopts   geometry.Options

	supermodelDirs []string
	outputDir      string
}

// New builds a Context from a loaded config.
func New(cfg *config.Config, log *zap.Logger) (*Context, error) {
	dialect, err := formats.DialectByName(cfg.Convert.Dialect)
	if err != nil {
		return nil, err
	}

	gopts := geometry.DefaultOptions()
	gopts.Logger = log
	if cfg.Convert.WeldTolerance > 0 {
		gopts.WeldTolerance = cfg.Convert.WeldTolerance
	}
	gopts.AreaWeight = cfg.Convert.AreaWeight
	gopts.AngleWeight = cfg.Convert.AngleWeight
	if cfg.Convert.CreaseAngleDeg > 0 {
		gopts.CreaseAngle = cfg.Convert.CreaseAngleDeg * (gomath.Pi / 180)
	}

	return &Context{
		log:            log,
		dialect:        dialect,
		gopts:          gopts,
		supermodelDirs: cfg.Paths.SupermodelDirs,
		outputDir:      cfg.Paths.OutputDir,
	}, nil
}

// Dialect returns the target binary dialect.
func (c *Context) Dialect() *formats.Dialect { return c.dialect }

func (c *Context) codecOpts() *formats.CodecOptions {
	return &formats.CodecOptions{Logger: c.log}
}

// isBinaryModel reports whether data looks like a compiled model. The
// compiled form always starts with a zero lead word; the text form
// starts with printable keywords.
func isBinaryModel(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return data[0] == 0 && data[1] == 0 && data[2] == 0 && data[3] == 0
}

// LoadModel reads a model file in either form, sniffing the content,
// and post-processes it. For the compiled form the vertex stream is
// read from the sibling .mdx file.
func (c *Context) LoadModel(path string) (*model.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var m *model.Model
	if isBinaryModel(data) {
		mdxPath := siblingPath(path, ".mdx")
		mdx, err := os.ReadFile(mdxPath)
		if err != nil {
			return nil, fmt.Errorf("reading vertex stream %s: %w", mdxPath, err)
		}
		var dialect *formats.Dialect
		m, dialect, err = formats.ReadModel(data, mdx, c.codecOpts())
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		c.log.Debug("loaded compiled model",
			zap.String("path", path),
			zap.String("dialect", dialect.Name),
			zap.Int("nodes", len(m.Nodes)))
	} else {
		m, err = formats.ReadASCII(data, c.codecOpts())
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		c.log.Debug("loaded text model",
			zap.String("path", path),
			zap.Int("nodes", len(m.Nodes)))
	}

	super := c.resolveSupermodel(m, nil)
	geometry.Process(m, super, c.gopts)
	return m, nil
}

// resolveSupermodel loads the model's supermodel chain from the
// configured search directories. A missing supermodel is a warning,
// not an error. seen guards against reference cycles.
func (c *Context) resolveSupermodel(m *model.Model, seen map[string]bool) *model.Model {
	name := strings.ToLower(strings.TrimSpace(m.Supermodel))
	if name == "" || name == "null" {
		return nil
	}
	if seen == nil {
		seen = map[string]bool{strings.ToLower(m.Name): true}
	}
	if seen[name] {
		c.log.Warn("supermodel reference cycle", zap.String("supermodel", name))
		return nil
	}
	seen[name] = true

	for _, dir := range c.supermodelDirs {
		mdlPath := filepath.Join(dir, name+".mdl")
		data, err := os.ReadFile(mdlPath)
		if err != nil {
			continue
		}

		var super *model.Model
		if isBinaryModel(data) {
			mdx, err := os.ReadFile(siblingPath(mdlPath, ".mdx"))
			if err != nil {
				c.log.Warn("supermodel vertex stream missing",
					zap.String("supermodel", name), zap.Error(err))
				continue
			}
			super, _, err = formats.ReadModel(data, mdx, c.codecOpts())
			if err != nil {
				c.log.Warn("supermodel unreadable",
					zap.String("supermodel", name), zap.Error(err))
				continue
			}
		} else {
			super, err = formats.ReadASCII(data, c.codecOpts())
			if err != nil {
				c.log.Warn("supermodel unreadable",
					zap.String("supermodel", name), zap.Error(err))
				continue
			}
		}

		// The chain inherits bone numbering top-down.
		geometry.Process(super, c.resolveSupermodel(super, seen), c.gopts)
		return super
	}

	c.log.Warn("supermodel not found, bone numbering will not be inherited",
		zap.String("supermodel", name),
		zap.Strings("searched", c.supermodelDirs))
	return nil
}

// SaveModelBinary writes the compiled model pair. path names the .mdl
// file; the vertex stream goes to the sibling .mdx. A failed write
// removes both partial outputs.
func (c *Context) SaveModelBinary(m *model.Model, path string) error {
	mdl, mdx, err := formats.WriteModel(m, c.dialect, c.codecOpts())
	if err != nil {
		return fmt.Errorf("compiling %s: %w", m.Name, err)
	}

	mdxPath := siblingPath(path, ".mdx")
	if err := os.WriteFile(path, mdl, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.WriteFile(mdxPath, mdx, 0644); err != nil {
		os.Remove(path)
		os.Remove(mdxPath)
		return fmt.Errorf("writing %s: %w", mdxPath, err)
	}
	return nil
}

// SaveModelASCII writes the text form of a model.
func (c *Context) SaveModelASCII(m *model.Model, path string) error {
	data, err := formats.WriteASCII(m, c.codecOpts())
	if err != nil {
		return fmt.Errorf("rendering %s: %w", m.Name, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// LoadWalkmesh reads a walkmesh in either form, sniffing the content,
// and post-processes it.
func (c *Context) LoadWalkmesh(path string) (*model.Walkmesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var wm *model.Walkmesh
	if len(data) >= 4 && string(data[:4]) == "BWM " {
		wm, err = formats.ReadWalkmesh(data, c.codecOpts())
	} else {
		wm, err = formats.ReadWalkmeshASCII(data, c.codecOpts())
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	geometry.ProcessWalkmesh(wm, c.gopts)
	return wm, nil
}

// SaveWalkmeshBinary writes the compiled walkmesh form.
func (c *Context) SaveWalkmeshBinary(wm *model.Walkmesh, path string) error {
	data, err := formats.WriteWalkmesh(wm, c.codecOpts())
	if err != nil {
		return fmt.Errorf("compiling walkmesh: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// SaveWalkmeshASCII writes the text walkmesh form.
func (c *Context) SaveWalkmeshASCII(wm *model.Walkmesh, path string) error {
	data, err := formats.WriteWalkmeshASCII(wm, c.codecOpts())
	if err != nil {
		return fmt.Errorf("rendering walkmesh: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// OutputPath places name in the configured output directory, or next
// to ref when none is configured.
func (c *Context) OutputPath(ref, name string) string {
	if c.outputDir != "" {
		return filepath.Join(c.outputDir, name)
	}
	return filepath.Join(filepath.Dir(ref), name)
}

// siblingPath swaps the extension of path.
func siblingPath(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
