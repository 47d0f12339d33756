package output

import "github.com/httping/httping/internal/shared"

// Output interface for different output types
type Output interface {
	Record(result shared.Result)
	Summary(summary shared.RunSummary)
	Close() error
}

// OutputManager broadcasts probe events to multiple outputs
type OutputManager struct {
	outputs []Output
}

func (om *OutputManager) Register(o Output) {
	om.outputs = append(om.outputs, o)
}

func (om *OutputManager) Record(result shared.Result) {
	for _, o := range om.outputs {
		o.Record(result)
	}
}

func (om *OutputManager) Summary(summary shared.RunSummary) {
	for _, o := range om.outputs {
		o.Summary(summary)
	}
}

// Close closes every output and returns the first error encountered.
func (om *OutputManager) Close() error {
	var firstErr error
	for _, o := range om.outputs {
		if err := o.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
