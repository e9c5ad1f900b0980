package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gordonpn/prompthook/internal/evalapi"
	"github.com/gordonpn/prompthook/internal/evalrun"
)

func mustEnv(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		log.Fatalf("missing env var: %s", key)
	}
	return value
}

// parseCriteria turns "correctness:>=0.75,helpfulness:>=0.5" into a map.
func parseCriteria(raw string) map[string]string {
	criteria := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, expression, found := strings.Cut(strings.TrimSpace(pair), ":")
		if !found || key == "" || expression == "" {
			log.Fatalf("invalid criteria entry %q (want key:expression)", pair)
		}
		criteria[strings.TrimSpace(key)] = strings.TrimSpace(expression)
	}
	return criteria
}

func main() {
	dataset := flag.String("dataset", "", "platform dataset to evaluate against (required)")
	target := flag.String("target", "", "URL of the system under test (required)")
	prefix := flag.String("prefix", "agent-e2e", "experiment name prefix")
	concurrency := flag.Int("concurrency", 5, "max concurrent examples")
	criteria := flag.String("criteria", "correctness:>=0.75", "pass criteria as key:expression pairs")
	flag.Parse()

	if *dataset == "" || *target == "" {
		flag.Usage()
		os.Exit(2)
	}

	client := evalapi.NewClient(
		&http.Client{Timeout: 15 * time.Second},
		mustEnv("EVAL_API_URL"),
		os.Getenv("EVAL_API_KEY"),
	)
	runner := evalrun.New(client, &http.Client{Timeout: 60 * time.Second})

	result, err := runner.Run(context.Background(), evalrun.Options{
		Dataset:     *dataset,
		TargetURL:   *target,
		Prefix:      *prefix,
		Concurrency: *concurrency,
	})
	if err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}

	filename, err := evalrun.WriteConfig(result, parseCriteria(*criteria))
	if err != nil {
		log.Fatalf("write evaluation config: %v", err)
	}

	log.Printf("evaluation completed experiment=%s total=%d failed=%d config=%s",
		result.ExperimentName, result.Total, result.Failed, filename)
	if result.Failed > 0 {
		os.Exit(1)
	}
}
