package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gordonpn/prompthook/internal/evalapi"
	"github.com/gordonpn/prompthook/internal/evalreport"
)

func mustEnv(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		log.Fatalf("missing env var: %s", key)
	}
	return value
}

func main() {
	output := flag.String("o", "eval_comment.md", "output markdown file")
	verbose := flag.Bool("v", false, "verbose output")
	flag.Parse()

	configFiles := flag.Args()
	if len(configFiles) == 0 {
		matches, err := filepath.Glob("evaluation_config__*.json")
		if err != nil {
			log.Fatalf("glob failed: %v", err)
		}
		configFiles = matches
	}
	if len(configFiles) == 0 {
		log.Fatal("no evaluation config files found (expected evaluation_config__*.json)")
	}
	if *verbose {
		log.Printf("found %d config file(s): %s", len(configFiles), strings.Join(configFiles, ", "))
	}

	client := evalapi.NewClient(
		&http.Client{Timeout: 15 * time.Second},
		mustEnv("EVAL_API_URL"),
		os.Getenv("EVAL_API_KEY"),
	)

	ctx := context.Background()
	var results []evalreport.Result
	for _, configPath := range configFiles {
		if _, err := os.Stat(configPath); err != nil {
			log.Printf("config file not found: %s", configPath)
			continue
		}
		results = append(results, evalreport.ProcessConfig(ctx, client, configPath))
	}
	if len(results) == 0 {
		log.Fatal("no valid evaluation results to process")
	}

	file, err := os.Create(*output)
	if err != nil {
		log.Fatalf("create %s: %v", *output, err)
	}
	if err := evalreport.WriteMarkdown(file, results); err != nil {
		log.Fatalf("write report: %v", err)
	}
	if err := file.Close(); err != nil {
		log.Fatalf("close %s: %v", *output, err)
	}

	succeeded := 0
	for _, result := range results {
		if result.Err == nil {
			succeeded++
		}
	}
	log.Printf("report written to %s (%d/%d experiments processed)", *output, succeeded, len(results))
	if succeeded == 0 {
		os.Exit(1)
	}
}
