package scripting

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecuteReturnsValue(t *testing.T) {
	e := NewEngine()
	val, err := e.Execute(context.Background(), "1 + 2")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n, ok := val.(int64); !ok || n != 3 {
		t.Errorf("val = %v (%T), want 3", val, val)
	}
}

func TestExecuteSeesBoundValues(t *testing.T) {
	e := NewEngine()
	if err := e.Set("items", []string{"a", "bb", "ccc"}); err != nil {
		t.Fatal(err)
	}
	val, err := e.Execute(context.Background(), "items.filter(function(s){ return s.length > 1 }).length")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n, ok := val.(int64); !ok || n != 2 {
		t.Errorf("val = %v", val)
	}
}

func TestExecuteReportsSyntaxError(t *testing.T) {
	e := NewEngine()
	if _, err := e.Execute(context.Background(), "function ("); err == nil {
		t.Error("syntax error not reported")
	}
}

func TestExecuteInterruptsOnDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	e := NewEngine()
	_, err := e.Execute(ctx, "for(;;){}")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
