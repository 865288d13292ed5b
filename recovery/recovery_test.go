package recovery

import (
	"errors"
	"testing"
)

func TestStrictStrategyFails(t *testing.T) {
	s := NewStrictStrategy()
	if got := s.OnError(nil, errors.New("boom"), Location{Component: "scanner"}); got != ActionFail {
		t.Errorf("OnError = %v, want ActionFail", got)
	}
}

func TestLenientStrategyAccumulates(t *testing.T) {
	s := NewLenientStrategy()
	if got := s.OnError(nil, errors.New("bad dict"), Location{Component: "parser", ByteOffset: 42}); got != ActionWarn {
		t.Errorf("OnError = %v, want ActionWarn", got)
	}
	s.OnError(nil, errors.New("bad stream"), Location{Component: "scanner", ByteOffset: 99})
	if len(s.Errors) != 2 {
		t.Fatalf("accumulated %d errors, want 2", len(s.Errors))
	}
	if s.Errors[0].Error() == "" {
		t.Error("error message empty")
	}
}
