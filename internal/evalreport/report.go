// Package evalreport turns platform feedback scores into a markdown report
// suitable for a PR comment. Thresholds come from the evaluation_config
// files written by eval-run.
package evalreport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/gordonpn/prompthook/internal/evalapi"
)

// EvalConfig mirrors the evaluation_config__*.json files produced by the
// eval runner: the experiment to inspect and the pass criteria per
// feedback key.
type EvalConfig struct {
	ExperimentName string            `json:"experiment_name"`
	Criteria       map[string]string `json:"criteria"`
}

// Platform is the slice of the eval API the report needs.
type Platform interface {
	ListRuns(ctx context.Context, project string) ([]evalapi.Run, error)
	ListFeedback(ctx context.Context, runIDs []string) ([]evalapi.Feedback, error)
}

// Row is one feedback key in the report table.
type Row struct {
	Key       string
	Score     string
	Criterion string
	Passed    string
}

// Result is the processed outcome for one config file.
type Result struct {
	ExperimentName string
	Rows           []Row
	NumPassed      int
	NumFailed      int
	Err            error
}

// ProcessConfig reads one config file and resolves its scores against the
// platform. Errors are folded into the Result so one broken experiment
// does not kill the whole report.
func ProcessConfig(ctx context.Context, platform Platform, configPath string) Result {
	log.Printf("processing evaluation config %s", configPath)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return Result{ExperimentName: configPath, Err: fmt.Errorf("read config: %w", err)}
	}

	var config EvalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return Result{ExperimentName: configPath, Err: fmt.Errorf("parse config: %w", err)}
	}
	if config.ExperimentName == "" {
		return Result{ExperimentName: configPath, Err: fmt.Errorf("no experiment_name in %s", configPath)}
	}

	return Evaluate(ctx, platform, config)
}

// Evaluate pulls runs and feedback for the experiment, averages scores per
// feedback key, and checks each configured criterion.
func Evaluate(ctx context.Context, platform Platform, config EvalConfig) Result {
	result := Result{ExperimentName: config.ExperimentName}

	runs, err := platform.ListRuns(ctx, config.ExperimentName)
	if err != nil {
		result.Err = err
		return result
	}
	if len(runs) == 0 {
		log.Printf("no runs found for experiment %s", config.ExperimentName)
		return result
	}

	runIDs := make([]string, 0, len(runs))
	for _, run := range runs {
		runIDs = append(runIDs, run.ID)
	}

	feedback, err := platform.ListFeedback(ctx, runIDs)
	if err != nil {
		result.Err = err
		return result
	}

	scoresByKey := make(map[string][]float64)
	for _, item := range feedback {
		if item.Score == nil {
			continue
		}
		scoresByKey[item.Key] = append(scoresByKey[item.Key], *item.Score)
	}

	keys := make([]string, 0, len(scoresByKey))
	for key := range scoresByKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		scores := scoresByKey[key]
		average := 0.0
		for _, score := range scores {
			average += score
		}
		average /= float64(len(scores))

		row := Row{Key: key, Score: fmt.Sprintf("%.2f", average), Criterion: "n/a", Passed: "n/a"}

		if expression, configured := config.Criteria[key]; configured {
			row.Criterion = expression
			threshold, err := ParseThreshold(expression)
			if err != nil {
				log.Printf("invalid threshold %q for key %q: %v", expression, key, err)
				row.Passed = "fail"
				result.NumFailed++
			} else if threshold.Check(average) {
				row.Passed = "pass"
				result.NumPassed++
			} else {
				row.Passed = "fail"
				result.NumFailed++
			}
		}

		result.Rows = append(result.Rows, row)
	}

	return result
}

// WriteMarkdown renders all results as one markdown document.
func WriteMarkdown(writer io.Writer, results []Result) error {
	if _, err := fmt.Fprint(writer, "# Evaluation Results\n\n"); err != nil {
		return err
	}

	for _, result := range results {
		if result.Err != nil {
			fmt.Fprintf(writer, "### %s\n\n**Error:** %v\n\n", result.ExperimentName, result.Err)
			continue
		}

		if len(result.Rows) == 0 {
			fmt.Fprintf(writer, "### %s\n\nNo evaluation results found.\n\n", result.ExperimentName)
			continue
		}

		fmt.Fprintf(writer, "### %s\n\n", result.ExperimentName)
		fmt.Fprint(writer, "| Feedback Key | Avg Score | Criterion | Pass? |\n")
		fmt.Fprint(writer, "|--------------|-----------|-----------|-------|\n")
		for _, row := range result.Rows {
			fmt.Fprintf(writer, "| %s | %s | %s | %s |\n", row.Key, row.Score, row.Criterion, row.Passed)
		}

		if total := result.NumPassed + result.NumFailed; total > 0 {
			fmt.Fprintf(writer, "\n**%d passed, %d failed**\n\n", result.NumPassed, result.NumFailed)
		} else {
			fmt.Fprint(writer, "\nNo thresholds defined.\n\n")
		}
	}

	return nil
}
