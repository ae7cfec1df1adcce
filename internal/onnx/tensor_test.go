package onnx

import (
	"reflect"
	"strings"
	"testing"
)

func TestNewTensor(t *testing.T) {
	t.Run("float32 ok", func(t *testing.T) {
		tt, err := NewTensor([]float32{1, 2, 3, 4}, []int64{2, 2})
		if err != nil {
			t.Fatalf("NewTensor failed: %v", err)
		}

		if tt.DType() != DTypeFloat32 {
			t.Fatalf("expected dtype float32, got %s", tt.DType())
		}

		if !reflect.DeepEqual(tt.Shape(), []int64{2, 2}) {
			t.Fatalf("unexpected shape: %v", tt.Shape())
		}

		got, err := ExtractFloat32(tt)
		if err != nil {
			t.Fatalf("ExtractFloat32 failed: %v", err)
		}

		if !reflect.DeepEqual(got, []float32{1, 2, 3, 4}) {
			t.Fatalf("unexpected data: %v", got)
		}
	})

	t.Run("int64 ok", func(t *testing.T) {
		tt, err := NewTensor([]int64{5, 6}, []int64{1, 2})
		if err != nil {
			t.Fatalf("NewTensor failed: %v", err)
		}

		if tt.DType() != DTypeInt64 {
			t.Fatalf("expected dtype int64, got %s", tt.DType())
		}

		if !reflect.DeepEqual(tt.Data(), []int64{5, 6}) {
			t.Fatalf("unexpected data: %v", tt.Data())
		}
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := NewTensor([]int64{1, 2, 3}, []int64{2, 2})
		if err == nil {
			t.Fatal("expected shape mismatch error")
		}

		if !strings.Contains(err.Error(), "expects 4 elements, got 3") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("non-positive dim", func(t *testing.T) {
		_, err := NewTensor([]float32{}, []int64{1, 0})
		if err == nil {
			t.Fatal("expected error for zero dimension")
		}
	})
}

func TestNewTensor_CopiesInput(t *testing.T) {
	src := []float32{1, 2}

	tt, err := NewTensor(src, []int64{2})
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}

	src[0] = 99

	got, _ := ExtractFloat32(tt)
	if got[0] != 1 {
		t.Fatalf("tensor aliases caller slice: %v", got)
	}
}

func TestScalar(t *testing.T) {
	s := Scalar(0.7)

	if !reflect.DeepEqual(s.Shape(), []int64{1}) {
		t.Fatalf("unexpected shape: %v", s.Shape())
	}

	got, err := ExtractFloat32(s)
	if err != nil {
		t.Fatalf("ExtractFloat32 failed: %v", err)
	}

	if got[0] != float32(0.7) {
		t.Fatalf("Scalar(0.7) = %v", got[0])
	}
}

func TestExtractFloat32_Errors(t *testing.T) {
	if _, err := ExtractFloat32(nil); err == nil {
		t.Fatal("expected error for nil tensor")
	}

	ids, err := NewTensor([]int64{1}, []int64{1})
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}

	if _, err := ExtractFloat32(ids); err == nil {
		t.Fatal("expected dtype error for int64 tensor")
	}
}

func TestElementCount(t *testing.T) {
	tests := []struct {
		shape   []int64
		want    int
		wantErr bool
	}{
		{nil, 1, false},
		{[]int64{3}, 3, false},
		{[]int64{2, 3, 4}, 24, false},
		{[]int64{2, -1}, 0, true},
	}

	for _, tt := range tests {
		got, err := elementCount(tt.shape)
		if tt.wantErr {
			if err == nil {
				t.Errorf("elementCount(%v) expected error", tt.shape)
			}

			continue
		}

		if err != nil || got != tt.want {
			t.Errorf("elementCount(%v) = %d, %v; want %d", tt.shape, got, err, tt.want)
		}
	}
}
