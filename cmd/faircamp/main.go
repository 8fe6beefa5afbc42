// Command faircamp builds a static website from a catalog of audio
// releases. See internal/build for the pipeline itself; this file only
// parses flags, wires up the three filesystems a build needs, and maps
// the result to a process exit code.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/faircamp-go/faircamp/internal/build"
	"github.com/faircamp-go/faircamp/internal/cache"
	"github.com/faircamp-go/faircamp/internal/fsx"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("faircamp", flag.ContinueOnError)

	cacheDir := fs.String("cache-dir", ".faircamp_cache", "directory holding the build cache")
	outputDir := fs.String("output-dir", ".faircamp_build", "directory the generated site is written to")
	cacheOptimization := fs.String("cache-optimization", "", "override the catalog's cache optimization policy (manual, immediate, delayed, wipe)")
	optimizeOnly := fs.Bool("optimize-only", false, "run cache optimization and exit, without building")
	noSignature := fs.Bool("no-signature", false, "omit the faircamp attribution line from generated pages")
	theme := fs.String("theme", "", "override the catalog's theme")
	verbose := fs.Bool("verbose", false, "log every build step, not just warnings and errors")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	catalogRoot := "."
	if fs.NArg() > 0 {
		catalogRoot = fs.Arg(0)
	}

	opt := build.Options{
		CatalogRoot:  catalogRoot,
		CacheDir:     *cacheDir,
		OutputDir:    *outputDir,
		OptimizeOnly: *optimizeOnly,
		NoSignature:  *noSignature,
		Theme:        *theme,
		Verbose:      *verbose,
	}

	if *cacheOptimization != "" {
		opt.CacheOptimization = parseOptimizationFlag(*cacheOptimization)
		if opt.CacheOptimization == cache.OptimizationDefault {
			fmt.Fprintf(os.Stderr, "faircamp: unrecognized -cache-optimization value %q\n", *cacheOptimization)
			return 2
		}
	}

	catalogFS, err := fsx.New(catalogRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "faircamp: %v\n", err)
		return 1
	}
	cacheFS, err := fsx.New(opt.CacheDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "faircamp: %v\n", err)
		return 1
	}
	outputFS, err := fsx.New(opt.OutputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "faircamp: %v\n", err)
		return 1
	}

	b, err := build.New(catalogFS, cacheFS, outputFS, opt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "faircamp: %v\n", err)
		return 1
	}

	if err := b.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "faircamp: %v\n", err)
		return 1
	}

	return 0
}

func parseOptimizationFlag(value string) cache.Optimization {
	opt, ok := cache.ParseOptimization(value)
	if !ok {
		return cache.OptimizationDefault
	}
	return opt
}
