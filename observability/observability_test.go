package observability

import "testing"

func TestFieldAccessors(t *testing.T) {
	cases := []struct {
		f    Field
		key  string
		want interface{}
	}{
		{String("stage", "extract"), "stage", "extract"},
		{Int("page", 3), "page", 3},
		{Int64("bytes", 1024), "bytes", int64(1024)},
		{Float64("scale", 1.5), "scale", 1.5},
	}
	for _, tc := range cases {
		if tc.f.Key() != tc.key {
			t.Errorf("Key() = %q, want %q", tc.f.Key(), tc.key)
		}
		if tc.f.Value() != tc.want {
			t.Errorf("Value() = %v, want %v", tc.f.Value(), tc.want)
		}
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := NopLogger{}
	if OrNop(l) == nil {
		t.Fatal("OrNop(l) returned nil")
	}
	// NopLogger must be safe to call with arbitrary fields.
	OrNop(nil).Info("noop", String("k", "v"), Error("err", nil))
	OrNop(nil).With(Int("n", 1)).Debug("noop")
}
