package primitives

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLengthCounts_Add(t *testing.T) {
	lc := NewLengthCounts(10)

	tests := []struct {
		name         string
		length       int
		wantErr      bool
		wantCount    int
		wantNonEmpty int
	}{
		{"add 3", 3, false, 1, 1},
		{"add 5", 5, false, 1, 2},
		{"add 3 again", 3, false, 2, 2}, // should not increase nonEmpty
		{"add 0", 0, false, 1, 3},
		{"add out of range low", -1, true, 0, 3},
		{"add out of range high", 10, true, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := lc.Add(tt.length)
			if (err != nil) != tt.wantErr {
				t.Errorf("Add() error = %v, wantErr %v", err, tt.wantErr)
			}
			if lc.Count(tt.length) != tt.wantCount {
				t.Errorf("Count(%d) = %d, want %d", tt.length, lc.Count(tt.length), tt.wantCount)
			}
			if lc.NonEmpty() != tt.wantNonEmpty {
				t.Errorf("NonEmpty() = %d, want %d", lc.NonEmpty(), tt.wantNonEmpty)
			}
		})
	}
}

func TestLengthCounts_TakeAndPut(t *testing.T) {
	lc := NewLengthCounts(8)
	lc.Add(4)
	lc.Add(4)
	lc.Add(6)

	if !lc.Take(4) {
		t.Fatal("Take(4) = false, want true")
	}
	if lc.Count(4) != 1 || lc.NonEmpty() != 2 {
		t.Errorf("after first Take(4): count %d nonEmpty %d, want 1 and 2", lc.Count(4), lc.NonEmpty())
	}
	if !lc.Take(4) {
		t.Fatal("second Take(4) = false, want true")
	}
	if lc.NonEmpty() != 1 {
		t.Errorf("NonEmpty() = %d after emptying length 4, want 1", lc.NonEmpty())
	}
	if lc.Take(4) {
		t.Error("Take(4) on an empty length = true, want false")
	}
	if lc.Take(100) || lc.Take(-3) {
		t.Error("Take out of range = true, want false")
	}

	lc.Put(4)
	if lc.Count(4) != 1 || lc.NonEmpty() != 2 {
		t.Errorf("after Put(4): count %d nonEmpty %d, want 1 and 2", lc.Count(4), lc.NonEmpty())
	}
}

func TestLengthCounts_Clone(t *testing.T) {
	lc := NewLengthCounts(6)
	lc.Add(2)
	lc.Add(5)

	clone := lc.Clone()
	clone.Take(2)
	clone.Add(3)

	if diff := cmp.Diff([]int{2, 5}, lc.Available()); diff != "" {
		t.Errorf("original changed after mutating clone (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3, 5}, clone.Available()); diff != "" {
		t.Errorf("clone Available() mismatch (-want +got):\n%s", diff)
	}
	if lc.NonEmpty() != 2 || clone.NonEmpty() != 2 {
		t.Errorf("NonEmpty() = %d, %d, want 2, 2", lc.NonEmpty(), clone.NonEmpty())
	}
}

func TestLengthCounts_Total(t *testing.T) {
	lc := NewLengthCounts(5)
	if !lc.IsEmpty() || lc.Total() != 0 {
		t.Fatalf("new counts: IsEmpty %v Total %d, want true 0", lc.IsEmpty(), lc.Total())
	}
	for _, l := range []int{1, 1, 4, 2} {
		lc.Add(l)
	}
	if lc.Total() != 4 {
		t.Errorf("Total() = %d, want 4", lc.Total())
	}
	if lc.Capacity() != 5 {
		t.Errorf("Capacity() = %d, want 5", lc.Capacity())
	}
	if lc.Count(17) != 0 {
		t.Errorf("Count out of range = %d, want 0", lc.Count(17))
	}
}
