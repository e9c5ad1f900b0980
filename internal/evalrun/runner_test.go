package evalrun

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gordonpn/prompthook/internal/evalapi"
)

type fakePlatform struct {
	mu       sync.Mutex
	examples []evalapi.Example
	runs     []evalapi.Run
	listErr  error
}

func (f *fakePlatform) ListExamples(_ context.Context, _ string) ([]evalapi.Example, error) {
	return f.examples, f.listErr
}

func (f *fakePlatform) CreateRun(_ context.Context, run evalapi.Run) (evalapi.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run.ID = "assigned"
	f.runs = append(f.runs, run)
	return run, nil
}

func (f *fakePlatform) recorded() []evalapi.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]evalapi.Run(nil), f.runs...)
}

func exampleSet(n int) []evalapi.Example {
	examples := make([]evalapi.Example, 0, n)
	for i := 0; i < n; i++ {
		examples = append(examples, evalapi.Example{
			ID:     string(rune('a' + i)),
			Inputs: json.RawMessage(`{"question":"q"}`),
		})
	}
	return examples
}

func TestRunRecordsEveryExample(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		_, _ = writer.Write([]byte(`{"answer":"a"}`))
	}))
	defer target.Close()

	platform := &fakePlatform{examples: exampleSet(5)}
	runner := New(platform, &http.Client{Timeout: 5 * time.Second})

	result, err := runner.Run(context.Background(), Options{
		Dataset:     "fixed-dataset",
		TargetURL:   target.URL,
		Prefix:      "agent-e2e",
		Concurrency: 3,
	})
	if err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}

	if result.Total != 5 || result.Failed != 0 {
		t.Errorf("result = %+v, want 5 total, 0 failed", result)
	}
	if !strings.HasPrefix(result.ExperimentName, "agent-e2e-") {
		t.Errorf("ExperimentName = %q", result.ExperimentName)
	}

	runs := platform.recorded()
	if len(runs) != 5 {
		t.Fatalf("recorded runs = %d, want 5", len(runs))
	}
	for _, run := range runs {
		if run.Project != result.ExperimentName {
			t.Errorf("run project = %q, want %q", run.Project, result.ExperimentName)
		}
		if string(run.Outputs) != `{"answer":"a"}` {
			t.Errorf("run outputs = %s", run.Outputs)
		}
		if run.Error != "" {
			t.Errorf("run error = %q, want empty", run.Error)
		}
	}
}

func TestRunCountsTargetFailures(t *testing.T) {
	var calls int
	var mu sync.Mutex
	target := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		mu.Lock()
		calls++
		failing := calls%2 == 0
		mu.Unlock()
		if failing {
			writer.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = writer.Write([]byte(`{"answer":"a"}`))
	}))
	defer target.Close()

	platform := &fakePlatform{examples: exampleSet(4)}
	runner := New(platform, &http.Client{Timeout: 5 * time.Second})

	result, err := runner.Run(context.Background(), Options{Dataset: "d", TargetURL: target.URL, Prefix: "p", Concurrency: 1})
	if err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if result.Failed != 2 {
		t.Errorf("Failed = %d, want 2", result.Failed)
	}

	// Failed examples are still recorded, with the error attached.
	if got := len(platform.recorded()); got != 4 {
		t.Errorf("recorded runs = %d, want 4", got)
	}
	withError := 0
	for _, run := range platform.recorded() {
		if run.Error != "" {
			withError++
		}
	}
	if withError != 2 {
		t.Errorf("runs with error = %d, want 2", withError)
	}
}

func TestRunEmptyDatasetIsAnError(t *testing.T) {
	runner := New(&fakePlatform{}, http.DefaultClient)
	if _, err := runner.Run(context.Background(), Options{Dataset: "empty", TargetURL: "http://x", Prefix: "p"}); err == nil {
		t.Error("Run() = nil, want error for empty dataset")
	}
}

func TestRunPlatformErrorPropagates(t *testing.T) {
	runner := New(&fakePlatform{listErr: errors.New("platform down")}, http.DefaultClient)
	if _, err := runner.Run(context.Background(), Options{Dataset: "d", TargetURL: "http://x", Prefix: "p"}); err == nil {
		t.Error("Run() = nil, want platform error")
	}
}

func TestWriteConfig(t *testing.T) {
	dir := t.TempDir()
	previous, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(previous) })

	filename, err := WriteConfig(Result{ExperimentName: "agent-e2e:1/2"}, map[string]string{"correctness": ">=0.75"})
	if err != nil {
		t.Fatalf("WriteConfig() = %v, want nil", err)
	}
	if filename != "evaluation_config__agent-e2e-1-2.json" {
		t.Errorf("filename = %q", filename)
	}

	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		t.Fatal(err)
	}
	var config struct {
		ExperimentName string            `json:"experiment_name"`
		Criteria       map[string]string `json:"criteria"`
	}
	if err := json.Unmarshal(data, &config); err != nil {
		t.Fatal(err)
	}
	if config.ExperimentName != "agent-e2e:1/2" {
		t.Errorf("experiment_name = %q", config.ExperimentName)
	}
	if config.Criteria["correctness"] != ">=0.75" {
		t.Errorf("criteria = %v", config.Criteria)
	}
}
