package types

import "testing"

func TestNewInferenceResultCopiesInputs(t *testing.T) {
	meta := map[string]string{MetaRawLabel: "3"}
	timing := 12.5

	result := NewInferenceResult("healthy", 0.9, meta, &timing)

	meta[MetaRawLabel] = "changed"
	timing = 99

	if result.Meta(MetaRawLabel) != "3" {
		t.Errorf("Expected metadata to be copied, got %q", result.Meta(MetaRawLabel))
	}
	got, ok := result.Timing()
	if !ok || got != 12.5 {
		t.Errorf("Expected timing 12.5, got %v (ok=%v)", got, ok)
	}
}

func TestInferenceResultEqual(t *testing.T) {
	ten := 10.0
	eleven := 11.0

	tests := []struct {
		name string
		a, b InferenceResult
		want bool
	}{
		{
			name: "identical",
			a:    NewInferenceResult("a", 0.5, map[string]string{"k": "v"}, &ten),
			b:    NewInferenceResult("a", 0.5, map[string]string{"k": "v"}, &ten),
			want: true,
		},
		{
			name: "nil and empty metadata",
			a:    NewInferenceResult("a", 0.5, nil, nil),
			b:    NewInferenceResult("a", 0.5, map[string]string{}, nil),
			want: true,
		},
		{
			name: "different timing",
			a:    NewInferenceResult("a", 0.5, nil, &ten),
			b:    NewInferenceResult("a", 0.5, nil, &eleven),
			want: false,
		},
		{
			name: "timing missing on one side",
			a:    NewInferenceResult("a", 0.5, nil, &ten),
			b:    NewInferenceResult("a", 0.5, nil, nil),
			want: false,
		},
		{
			name: "different metadata",
			a:    NewInferenceResult("a", 0.5, map[string]string{"k": "v"}, nil),
			b:    NewInferenceResult("a", 0.5, map[string]string{"k": "w"}, nil),
			want: false,
		},
		{
			name: "different summary",
			a:    NewInferenceResult("a", 0.5, nil, nil),
			b:    NewInferenceResult("b", 0.5, nil, nil),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}
