// Package evalrun executes an offline evaluation from CI: every example of
// a platform dataset is replayed against the system under test and recorded
// on the platform, which owns the actual scoring.
package evalrun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gordonpn/prompthook/internal/evalapi"
	"github.com/gordonpn/prompthook/internal/evalreport"
)

// Platform is the slice of the eval API the runner needs.
type Platform interface {
	ListExamples(ctx context.Context, dataset string) ([]evalapi.Example, error)
	CreateRun(ctx context.Context, run evalapi.Run) (evalapi.Run, error)
}

type Options struct {
	Dataset     string
	TargetURL   string
	Prefix      string
	Concurrency int
	Criteria    map[string]string
}

type Result struct {
	ExperimentName string
	Total          int
	Failed         int
}

type Runner struct {
	platform   Platform
	httpClient *http.Client
}

func New(platform Platform, httpClient *http.Client) *Runner {
	return &Runner{platform: platform, httpClient: httpClient}
}

// Run replays the dataset with bounded concurrency. An example counts as
// failed when the target call fails; the run is still recorded with its
// error so the experiment stays complete.
func (runner *Runner) Run(ctx context.Context, options Options) (Result, error) {
	if options.Concurrency < 1 {
		options.Concurrency = 1
	}

	examples, err := runner.platform.ListExamples(ctx, options.Dataset)
	if err != nil {
		return Result{}, err
	}
	if len(examples) == 0 {
		return Result{}, fmt.Errorf("dataset %q has no examples", options.Dataset)
	}

	experimentName := fmt.Sprintf("%s-%s", options.Prefix, uuid.NewString()[:8])
	log.Printf("running experiment %s over %d example(s)", experimentName, len(examples))

	jobs := make(chan evalapi.Example)
	var failed int
	var mu sync.Mutex
	var waitGroup sync.WaitGroup

	for range options.Concurrency {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for example := range jobs {
				if err := runner.runExample(ctx, experimentName, example, options.TargetURL); err != nil {
					log.Printf("example %s failed: %v", example.ID, err)
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}()
	}

	for _, example := range examples {
		jobs <- example
	}
	close(jobs)
	waitGroup.Wait()

	return Result{ExperimentName: experimentName, Total: len(examples), Failed: failed}, nil
}

func (runner *Runner) runExample(ctx context.Context, experimentName string, example evalapi.Example, targetURL string) error {
	run := evalapi.Run{
		Project: experimentName,
		Name:    "example-" + example.ID,
		Inputs:  example.Inputs,
	}

	outputs, targetErr := runner.callTarget(ctx, targetURL, example.Inputs)
	if targetErr != nil {
		run.Error = targetErr.Error()
	} else {
		run.Outputs = outputs
	}

	if _, err := runner.platform.CreateRun(ctx, run); err != nil {
		return err
	}
	return targetErr
}

func (runner *Runner) callTarget(ctx context.Context, targetURL string, inputs json.RawMessage) (json.RawMessage, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(inputs))
	if err != nil {
		return nil, fmt.Errorf("build target request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := runner.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("call target: %w", err)
	}
	defer response.Body.Close()

	body, _ := io.ReadAll(response.Body)
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("target status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("target returned invalid JSON")
	}
	return body, nil
}

// WriteConfig writes the evaluation_config file eval-report consumes and
// returns its name.
func WriteConfig(result Result, criteria map[string]string) (string, error) {
	config := evalreport.EvalConfig{
		ExperimentName: result.ExperimentName,
		Criteria:       criteria,
	}

	data, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	safeName := strings.NewReplacer(":", "-", "/", "-").Replace(result.ExperimentName)
	filename := fmt.Sprintf("evaluation_config__%s.json", safeName)
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return filename, nil
}
