// walktool is a CLI utility for converting Odyssey engine walkmeshes
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
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`walktool - Odyssey walkmesh converter

Usage:
  walktool <command> [options] <file>...

Commands:
  info <file.wok>       Show walkmesh statistics
  ascii <file.wok>      Convert compiled walkmesh to text form
  compile <file.ascii>  Compile text form to binary

Options (all commands):
  -config <path>   Config file
  -debug           Enable debug logging
  -out <dir>       Output directory

Examples:
  walktool info m01aa.wok
  walktool ascii -out ./work m01aa.wok
  walktool compile m01aa.wok.ascii`)
}

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
		fmt.Fprintln(os.Stderr, "Usage: walktool info <file.wok>...")
		os.Exit(1)
	}

	failed := 0
	for _, path := range files {
		wm, err := ctx.LoadWalkmesh(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed++
			continue
		}
		printInfo(path, wm)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func printInfo(path string, wm *model.Walkmesh) {
	kind := "area"
	if wm.Type == model.WalkmeshHook {
		kind = "hook"
	}
	fmt.Printf("Walkmesh:   %s (%s)\n", path, kind)
	fmt.Printf("Vertices:   %d\n", len(wm.Verts))
	fmt.Printf("Faces:      %d (%d walkable)\n", len(wm.Faces), wm.WalkableFaceCount())

	// Material histogram
	matCount := make(map[uint32]int)
	for _, f := range wm.Faces {
		matCount[f.Material]++
	}
	fmt.Println("Surfaces:")
	for mat := uint32(0); mat <= 30; mat++ {
		if n := matCount[mat]; n > 0 {
			fmt.Printf("  %2d  %d faces\n", mat, n)
		}
	}

	if wm.Type == model.WalkmeshArea {
		fmt.Printf("Perimeters: %d\n", len(wm.Perimeters))
		links := 0
		for _, loop := range wm.Perimeters {
			for _, e := range loop {
				if e.Transition >= 0 {
					links++
				}
			}
		}
		if links > 0 {
			fmt.Printf("Roomlinks:  %d\n", links)
		}
	}
	fmt.Println()
}

func cmdASCII(args []string) {
	ctx, files := setup("ascii", args)
	if len(files) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: walktool ascii <file.wok>...")
		os.Exit(1)
	}

	failed := 0
	for _, path := range files {
		wm, err := ctx.LoadWalkmesh(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed++
			continue
		}
		out := ctx.OutputPath(path, filepath.Base(path)+".ascii")
		if err := ctx.SaveWalkmeshASCII(wm, out); err != nil {
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
		fmt.Fprintln(os.Stderr, "Usage: walktool compile <file.ascii>...")
		os.Exit(1)
	}

	failed := 0
	for _, path := range files {
		wm, err := ctx.LoadWalkmesh(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed++
			continue
		}
		out := ctx.OutputPath(path, strings.TrimSuffix(filepath.Base(path), ".ascii"))
		if err := ctx.SaveWalkmeshBinary(wm, out); err != nil {
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
