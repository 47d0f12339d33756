package output

import (
	"errors"
	"testing"

	"github.com/httping/httping/internal/shared"
)

// mockOutput is a mock implementation of Output for testing
type mockOutput struct {
	recordCalls  []shared.Result
	summaryCalls []shared.RunSummary
	closeCalls   int
	closeErr     error
}

func (m *mockOutput) Record(result shared.Result) {
	m.recordCalls = append(m.recordCalls, result)
}

func (m *mockOutput) Summary(summary shared.RunSummary) {
	m.summaryCalls = append(m.summaryCalls, summary)
}

func (m *mockOutput) Close() error {
	m.closeCalls++
	return m.closeErr
}

func TestOutputManager_Register(t *testing.T) {
	om := &OutputManager{}
	mock1 := &mockOutput{}
	mock2 := &mockOutput{}

	om.Register(mock1)
	if len(om.outputs) != 1 {
		t.Errorf("Register() outputs count = %d, want 1", len(om.outputs))
	}

	om.Register(mock2)
	if len(om.outputs) != 2 {
		t.Errorf("Register() outputs count = %d, want 2", len(om.outputs))
	}
}

func TestOutputManager_Record(t *testing.T) {
	om := &OutputManager{}
	mock1 := &mockOutput{}
	mock2 := &mockOutput{}
	om.Register(mock1)
	om.Register(mock2)

	result := shared.Result{Seq: 7, OK: true, StatusCode: 200, TotalUS: 12345}
	om.Record(result)

	if len(mock1.recordCalls) != 1 {
		t.Errorf("mock1 Record calls = %d, want 1", len(mock1.recordCalls))
	}
	if len(mock2.recordCalls) != 1 {
		t.Errorf("mock2 Record calls = %d, want 1", len(mock2.recordCalls))
	}

	if mock1.recordCalls[0].Seq != 7 {
		t.Errorf("Seq = %d, want 7", mock1.recordCalls[0].Seq)
	}
	if mock1.recordCalls[0].StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", mock1.recordCalls[0].StatusCode)
	}
	if mock1.recordCalls[0].TotalUS != 12345 {
		t.Errorf("TotalUS = %d, want 12345", mock1.recordCalls[0].TotalUS)
	}
}

func TestOutputManager_Summary(t *testing.T) {
	om := &OutputManager{}
	mock := &mockOutput{}
	om.Register(mock)

	om.Summary(shared.RunSummary{Sent: 10, OK: 9, Failed: 1})

	if len(mock.summaryCalls) != 1 {
		t.Fatalf("Summary calls = %d, want 1", len(mock.summaryCalls))
	}
	if mock.summaryCalls[0].Sent != 10 {
		t.Errorf("Sent = %d, want 10", mock.summaryCalls[0].Sent)
	}
	if mock.summaryCalls[0].OK != 9 {
		t.Errorf("OK = %d, want 9", mock.summaryCalls[0].OK)
	}
}

func TestOutputManager_Close(t *testing.T) {
	om := &OutputManager{}
	mock1 := &mockOutput{}
	mock2 := &mockOutput{}
	om.Register(mock1)
	om.Register(mock2)

	if err := om.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}

	if mock1.closeCalls != 1 {
		t.Errorf("mock1 Close calls = %d, want 1", mock1.closeCalls)
	}
	if mock2.closeCalls != 1 {
		t.Errorf("mock2 Close calls = %d, want 1", mock2.closeCalls)
	}
}

func TestOutputManager_CloseFirstError(t *testing.T) {
	om := &OutputManager{}
	err1 := errors.New("first")
	err2 := errors.New("second")
	mock1 := &mockOutput{closeErr: err1}
	mock2 := &mockOutput{closeErr: err2}
	om.Register(mock1)
	om.Register(mock2)

	err := om.Close()
	if err != err1 {
		t.Errorf("Close() error = %v, want %v", err, err1)
	}

	// The later output is still closed after the first failure
	if mock2.closeCalls != 1 {
		t.Errorf("mock2 Close calls = %d, want 1", mock2.closeCalls)
	}
}

func TestOutputManager_MultipleOutputs(t *testing.T) {
	om := &OutputManager{}
	mock1 := &mockOutput{}
	mock2 := &mockOutput{}
	mock3 := &mockOutput{}
	om.Register(mock1)
	om.Register(mock2)
	om.Register(mock3)

	// Test that all outputs receive all calls
	om.Record(shared.Result{Seq: 0})
	om.Record(shared.Result{Seq: 1})
	om.Summary(shared.RunSummary{Sent: 2})
	om.Close()

	for i, mock := range []*mockOutput{mock1, mock2, mock3} {
		if len(mock.recordCalls) != 2 {
			t.Errorf("mock%d Record calls = %d, want 2", i+1, len(mock.recordCalls))
		}
		if len(mock.summaryCalls) != 1 {
			t.Errorf("mock%d Summary calls = %d, want 1", i+1, len(mock.summaryCalls))
		}
		if mock.closeCalls != 1 {
			t.Errorf("mock%d Close calls = %d, want 1", i+1, mock.closeCalls)
		}
	}
}
