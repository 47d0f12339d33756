package output

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/httping/httping/internal/shared"
)

// resultRecord is one NDJSON line per probe. The run id and URL repeat on
// every line so concatenated or rotated files stay attributable.
type resultRecord struct {
	Type  string `json:"type"`
	RunID string `json:"run_id"`
	URL   string `json:"url"`
	shared.Result
}

// summaryRecord is the final NDJSON line of a run.
type summaryRecord struct {
	Type string `json:"type"`
	shared.RunSummary
}

// JSONOutput writes one NDJSON object per probe to a file or stdout,
// followed by a summary object when the run ends.
type JSONOutput struct {
	mu       sync.Mutex
	file     *os.File
	enc      *json.Encoder
	toStdout bool
	runID    string
	url      string
}

func NewJSONOutput(filename, runID, url string) (*JSONOutput, error) {
	if filename == "" {
		// Output to stdout
		return &JSONOutput{
			file:     os.Stdout,
			enc:      json.NewEncoder(os.Stdout),
			toStdout: true,
			runID:    runID,
			url:      url,
		}, nil
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return &JSONOutput{
		file:  f,
		enc:   json.NewEncoder(f),
		runID: runID,
		url:   url,
	}, nil
}

func (j *JSONOutput) Record(result shared.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()

	_ = j.enc.Encode(resultRecord{
		Type:   "result",
		RunID:  j.runID,
		URL:    j.url,
		Result: result,
	})
}

func (j *JSONOutput) Summary(summary shared.RunSummary) {
	j.mu.Lock()
	defer j.mu.Unlock()

	_ = j.enc.Encode(summaryRecord{
		Type:       "summary",
		RunSummary: summary,
	})
}

func (j *JSONOutput) Close() error {
	if j.toStdout {
		return nil
	}
	return j.file.Close()
}
