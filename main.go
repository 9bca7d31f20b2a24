package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"docflow/internal/config"
	"docflow/internal/errlog"
	"docflow/internal/fontcheck"
)

func main() {
	configPath := flag.String("config", "./data/config.json", "path to the config file")
	timeout := flag.Duration("timeout", 0, "batch wall-clock budget (overrides config)")
	withChunks := flag.Bool("chunks", false, "include indexing segments in the output")
	logDir := flag.String("logdir", "", "error log directory (default platform path)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: docflow [flags] file...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	// .env is optional; environment variables win over config values.
	if err := godotenv.Load(); err == nil {
		log.Printf("[Init] loaded environment from .env")
	}

	if err := errlog.Init(*logDir); err != nil {
		log.Printf("[Init] error log unavailable: %v", err)
	}
	defer errlog.Close()

	if err := os.MkdirAll("./data", 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	cm, err := config.NewManager(*configPath)
	if err != nil {
		log.Fatalf("Failed to create config manager: %v", err)
	}
	if err := cm.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Slide rendering shows rectangles instead of CJK text when the system
	// has no Chinese fonts.
	fontcheck.CheckCJKFonts()

	app := NewApp(cm)

	budget := app.Timeout()
	if *timeout > 0 {
		budget = *timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	start := time.Now()
	results := app.ProcessFiles(ctx, flag.Args())
	log.Printf("[Batch] processed %d files in %v", len(results), time.Since(start).Round(time.Millisecond))

	type outputResult struct {
		FileName string      `json:"file_name"`
		Success  bool        `json:"success"`
		Document interface{} `json:"document,omitempty"`
		Segments interface{} `json:"segments,omitempty"`
		Error    string      `json:"error,omitempty"`
	}

	out := make([]outputResult, len(results))
	failed := 0
	for i, r := range results {
		out[i] = outputResult{
			FileName: r.FileName,
			Success:  r.Success,
			Error:    r.Error,
		}
		if r.Success {
			out[i].Document = r.Document
			if *withChunks {
				out[i].Segments = app.SplitForIndexing(r.Document)
			}
		} else {
			failed++
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("Failed to encode results: %v", err)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
