// coating-host generates a machine G-code program from an editor project
// snapshot.
//
// Usage:
//
//	coating-host -project panel.json [options]
//
// Options:
//
//	-project string  Project snapshot file (required)
//	-config string   Host configuration file (ini)
//	-out string      Output G-code path (default: project name + .gcode, "-" for stdout)
//	-format string   Override output format: plain or annotated
//	-verbose         Enable debug logging
//
// Examples:
//
//	# Generate next to the project file
//	coating-host -project panel.json
//
//	# Generate to stdout with the annotated move log
//	coating-host -project panel.json -format annotated -out -
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"coating-host/pkg/config"
	hosterr "coating-host/pkg/errors"
	"coating-host/pkg/log"
	"coating-host/pkg/pipeline"
	"coating-host/pkg/project"
)

func main() {
	projectFile := flag.String("project", "", "Project snapshot file (required)")
	configFile := flag.String("config", "", "Host configuration file")
	outFile := flag.String("out", "", "Output G-code path (\"-\" for stdout)")
	format := flag.String("format", "", "Override output format: plain or annotated")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *projectFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -project is required\n")
		flag.Usage()
		os.Exit(1)
	}

	logger := log.New("coating-host")
	logger.SetWriter(os.Stderr)
	if *verbose {
		logger.SetLevel(log.DEBUG)
	}

	settings, err := loadSettings(*configFile)
	if err != nil {
		logger.Error("config: %v", err)
		os.Exit(1)
	}
	if *format != "" {
		if *format != "plain" && *format != "annotated" {
			logger.Error("invalid -format %q (want plain or annotated)", *format)
			os.Exit(1)
		}
		settings.Process.OutputFormat = *format
	}

	proj, err := project.Load(*projectFile)
	if err != nil {
		logger.Error("project: %v", err)
		os.Exit(1)
	}
	logger.Info("project %q: %d shapes, work area %.0fx%.0f",
		proj.Name, len(proj.Shapes), proj.WorkArea.Width, proj.WorkArea.Height)

	gen := pipeline.NewGenerator(settings, logger.WithPrefix("pipeline"))

	lastPct := -10.0
	onProgress := func(percent float64, message string) {
		if percent-lastPct >= 10 || percent >= 100 {
			lastPct = percent
			logger.Info("%3.0f%% %s", percent, message)
		}
	}

	result, err := gen.Generate(context.Background(), proj.Shapes, proj.WorkArea, proj.Snippets, onProgress)
	if err != nil {
		if hosterr.IsNothingToCoat(err) {
			logger.Warn("nothing to coat: no eligible shapes in project")
			os.Exit(0)
		}
		logger.Error("generation failed: %v", err)
		os.Exit(1)
	}

	out := *outFile
	if out == "" {
		out = strings.TrimSuffix(*projectFile, ".json") + ".gcode"
	}
	if out == "-" {
		fmt.Print(result.GCode)
	} else {
		if err := os.WriteFile(out, []byte(result.GCode), 0644); err != nil {
			logger.Error("write %s: %v", out, err)
			os.Exit(1)
		}
		logger.Info("wrote %s", out)
	}

	logger.InfoFields("done", log.Fields{
		"shapes":   result.ShapeCount,
		"moves":    result.MoveCount,
		"bytes":    len(result.GCode),
		"duration": result.Duration.String(),
	})
}

func loadSettings(path string) (*config.Settings, error) {
	if path == "" {
		return config.DefaultSettings(), nil
	}
	return config.LoadSettings(path)
}
