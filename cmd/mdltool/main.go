// mdltool is a CLI utility for converting Odyssey engine models
// between their compiled and text forms.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/aurora-mdl/internal/config"
	"github.com/Faultbox/aurora-mdl/internal/convert"
	"github.com/Faultbox/aurora-mdl/internal/logger"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "ascii", "decompile":
		cmdASCII(args)
	case "compile":
		cmdCompile(args)
	case "roundtrip":
		cmdRoundtrip(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`mdltool - Odyssey model converter

Usage:
  mdltool <command> [options] <file>...

Commands:
  info <file.mdl>       Show model structure
  ascii <file.mdl>      Convert compiled model to text form
  compile <file.ascii>  Compile text form to the binary pair
  roundtrip <file.mdl>  Decompile and recompile, reporting differences

Options (all commands):
  -config <path>          Config file
  -debug                  Enable debug logging
  -dialect k1|k2          Target binary dialect
  -out <dir>              Output directory
  -supermodel-dir <dir>   Extra supermodel search directory

Examples:
  mdltool info c_bantha.mdl
  mdltool ascii -out ./work c_bantha.mdl
  mdltool compile -dialect k2 c_bantha.mdl.ascii`)
}

// setup parses the shared flags, loads config and builds the
// conversion context. It returns the remaining positional args.
func setup(name string, args []string) (*convert.Context, []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var ov config.Overrides
	ov.Register(fs)
	fs.Parse(args)

	cfg, err := config.Load(ov.Config, &ov)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, err := convert.New(cfg, logger.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return ctx, fs.Args()
}

func cmdInfo(args []string) {
	ctx, files := setup("info", args)
	if len(files) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: mdltool info <file.mdl>")
		os.Exit(1)
	}

	failed := 0
	for _, path := range files {
		m, err := ctx.LoadModel(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed++
			continue
		}
		printModelInfo(path, m)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func printModelInfo(path string, m *model.Model) {
	fmt.Printf("Model:      %s (%s)\n", m.Name, path)
	fmt.Printf("Class:      %s\n", m.Classification)
	if m.Supermodel != "" {
		fmt.Printf("Supermodel: %s\n", m.Supermodel)
	}
	fmt.Printf("Nodes:      %d\n", len(m.Nodes))
	fmt.Printf("Animations: %d\n", len(m.Anims))

	var meshes, textured int
	for _, n := range m.Nodes {
		if n.Mesh == nil {
			continue
		}
		meshes++
		if n.Mesh.HasUVs() {
			textured++
		}
	}
	fmt.Printf("Meshes:     %d (%d faces, %d vertices, %d textured)\n",
		meshes, m.TotalFaceCount(), m.TotalVertexCount(), textured)

	for _, a := range m.Anims {
		fmt.Printf("  anim %-16s %.2fs, %d nodes\n", a.Name, a.Length, len(a.Nodes))
	}
	fmt.Println()
}

func cmdASCII(args []string) {
	ctx, files := setup("ascii", args)
	if len(files) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: mdltool ascii <file.mdl>...")
		os.Exit(1)
	}

	failed := 0
	for _, path := range files {
		m, err := ctx.LoadModel(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed++
			continue
		}
		out := ctx.OutputPath(path, baseName(path)+".mdl.ascii")
		if err := ctx.SaveModelASCII(m, out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed++
			continue
		}
		fmt.Printf("Wrote: %s\n", out)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func cmdCompile(args []string) {
	ctx, files := setup("compile", args)
	if len(files) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: mdltool compile <file.ascii>...")
		os.Exit(1)
	}

	failed := 0
	for _, path := range files {
		m, err := ctx.LoadModel(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed++
			continue
		}
		out := ctx.OutputPath(path, baseName(path)+".mdl")
		if err := ctx.SaveModelBinary(m, out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed++
			continue
		}
		fmt.Printf("Wrote: %s (+ vertex stream, %s dialect)\n", out, ctx.Dialect().Name)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func cmdRoundtrip(args []string) {
	ctx, files := setup("roundtrip", args)
	if len(files) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: mdltool roundtrip <file.mdl>...")
		os.Exit(1)
	}

	failed := 0
	for _, path := range files {
		if err := roundtrip(ctx, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("OK: %s\n", path)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// roundtrip decompiles, recompiles and reloads a model, checking that
// the structure survives.
func roundtrip(ctx *convert.Context, path string) error {
	m, err := ctx.LoadModel(path)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "mdltool-roundtrip")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	binPath := filepath.Join(tmpDir, m.Name+".mdl")
	if err := ctx.SaveModelBinary(m, binPath); err != nil {
		return err
	}
	m2, err := ctx.LoadModel(binPath)
	if err != nil {
		return err
	}

	if len(m2.Nodes) != len(m.Nodes) {
		return fmt.Errorf("node count changed: %d -> %d", len(m.Nodes), len(m2.Nodes))
	}
	if len(m2.Anims) != len(m.Anims) {
		return fmt.Errorf("animation count changed: %d -> %d", len(m.Anims), len(m2.Anims))
	}
	for i, n := range m.Nodes {
		n2 := m2.Nodes[i]
		if m.Names[n.NameIndex] != m2.Names[n2.NameIndex] {
			return fmt.Errorf("node %d renamed: %q -> %q",
				i, m.Names[n.NameIndex], m2.Names[n2.NameIndex])
		}
		if (n.Mesh == nil) != (n2.Mesh == nil) {
			return fmt.Errorf("node %d mesh payload changed", i)
		}
		if n.Mesh != nil && len(n.Mesh.Faces) != len(n2.Mesh.Faces) {
			return fmt.Errorf("node %d face count changed: %d -> %d",
				i, len(n.Mesh.Faces), len(n2.Mesh.Faces))
		}
	}
	return nil
}

// baseName strips the full extension chain: "c_bantha.mdl.ascii"
// becomes "c_bantha".
func baseName(path string) string {
	name := filepath.Base(path)
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}
