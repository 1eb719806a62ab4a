package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"xmlstage/internal/config"
	"xmlstage/internal/metrics"
	"xmlstage/internal/metrics/datadog"
	"xmlstage/internal/stage"

	// register all storage backends with the storage factory.
	// config selects which one is used, but support for all is built in.
	_ "xmlstage/internal/storage/all"
)

// main loads and validates the run configuration, optionally initializes a
// metrics backend, resolves the input directory, and runs the pipeline.
func main() {
	var (
		cfgPath           string
		dirFlag           string
		metricsBackendFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/xmlstage.json", "run config JSON path")
	flag.StringVar(&dirFlag, "dir", "", "directory containing *.xml files (prompted interactively when empty)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (datadog, none)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Decide metrics backend: flag -> env -> default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: "xmlstage",
			Tags:    datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			metrics.SetBackend(b)
			// Close stops the periodic flush loop and does a final Flush.
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	dir := dirFlag
	if dir == "" {
		dir, err = promptDirectory(os.Stdin)
		if err != nil {
			fatalf("%v", err)
		}
	}

	files, err := listXMLFiles(dir)
	if err != nil {
		fatalf("%v", err)
	}
	if len(files) == 0 {
		fatalf("no *.xml files found in %s", dir)
	}

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("run: dir=%s files=%d tables=%d store=%s",
			dir, len(files), len(cfg.Tables), cfg.Database.Kind)
	}

	if err := stage.NewRunner(cfg).Run(ctx, files); err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// promptDirectory reads the input directory interactively from in.
func promptDirectory(in io.Reader) (string, error) {
	fmt.Fprint(os.Stderr, "Directory containing XML files: ")
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		return "", fmt.Errorf("no directory given")
	}
	dir := strings.TrimSpace(sc.Text())
	if dir == "" {
		return "", fmt.Errorf("no directory given")
	}
	return dir, nil
}

// listXMLFiles returns the *.xml files directly inside dir (non-recursive),
// sorted by name.
func listXMLFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
