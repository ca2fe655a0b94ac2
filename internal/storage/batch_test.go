package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
)

func rowsN(n int) [][]string {
	out := make([][]string, n)
	for i := range out {
		out[i] = []string{fmt.Sprint(i + 1)}
	}
	return out
}

// TestAccumulator_Batching checks batch sizes, progress lines and counters
// for inputs below, at, and above multiples of the batch size.
func TestAccumulator_Batching(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		rows      int
		batchSize int
		wantSizes []int
		wantOut   string
	}{
		{
			name:      "two_full_one_partial",
			rows:      5,
			batchSize: 2,
			wantSizes: []int{2, 2, 1},
			wantOut:   "Processing batch 2\nProcessing batch 4\nProcessing remaining 1\n",
		},
		{
			name:      "exact_multiple",
			rows:      4,
			batchSize: 2,
			wantSizes: []int{2, 2},
			wantOut:   "Processing batch 2\nProcessing batch 4\n",
		},
		{
			name:      "below_batch_size",
			rows:      3,
			batchSize: 10,
			wantSizes: []int{3},
			wantOut:   "Processing remaining 3\n",
		},
		{
			name:      "batch_size_one",
			rows:      2,
			batchSize: 1,
			wantSizes: []int{1, 1},
			wantOut:   "Processing batch 1\nProcessing batch 2\n",
		},
		{
			name:      "empty",
			rows:      0,
			batchSize: 3,
			wantSizes: nil,
			wantOut:   "",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var (
				out   bytes.Buffer
				sizes []int
				seen  []string
			)
			acc, err := NewAccumulator(tc.batchSize, &out, func(_ context.Context, rows [][]string) error {
				sizes = append(sizes, len(rows))
				for _, r := range rows {
					seen = append(seen, r[0])
				}
				return nil
			})
			if err != nil {
				t.Fatalf("NewAccumulator: %v", err)
			}

			ctx := context.Background()
			for _, r := range rowsN(tc.rows) {
				if err := acc.Append(ctx, r); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}
			if err := acc.Finish(ctx); err != nil {
				t.Fatalf("Finish: %v", err)
			}

			if fmt.Sprint(sizes) != fmt.Sprint(tc.wantSizes) {
				t.Fatalf("batch sizes = %v, want %v", sizes, tc.wantSizes)
			}
			if out.String() != tc.wantOut {
				t.Fatalf("progress = %q, want %q", out.String(), tc.wantOut)
			}
			if acc.Submitted() != int64(tc.rows) {
				t.Fatalf("Submitted = %d, want %d", acc.Submitted(), tc.rows)
			}
			if acc.Batches() != len(tc.wantSizes) || acc.Pending() != 0 {
				t.Fatalf("Batches=%d Pending=%d", acc.Batches(), acc.Pending())
			}
			for i, v := range seen {
				if v != fmt.Sprint(i+1) {
					t.Fatalf("row %d = %s; order not preserved", i, v)
				}
			}
		})
	}
}

// TestAccumulator_FlushErrorClearsBuffer verifies a failed batch is not
// resent with the next one.
func TestAccumulator_FlushErrorClearsBuffer(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var sizes []int
	acc, err := NewAccumulator(2, nil, func(_ context.Context, rows [][]string) error {
		sizes = append(sizes, len(rows))
		if len(sizes) == 1 {
			return boom
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	rows := rowsN(3)
	if err := acc.Append(ctx, rows[0]); err != nil {
		t.Fatal(err)
	}
	if err := acc.Append(ctx, rows[1]); !errors.Is(err, boom) {
		t.Fatalf("Append error = %v, want boom", err)
	}
	if acc.Pending() != 0 {
		t.Fatalf("Pending after failed flush = %d, want 0", acc.Pending())
	}
	if err := acc.Append(ctx, rows[2]); err != nil {
		t.Fatal(err)
	}
	if err := acc.Finish(ctx); err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(sizes) != "[2 1]" {
		t.Fatalf("sizes = %v, want [2 1]", sizes)
	}
}

// TestAccumulator_Canceled checks that a canceled context stops a flush from
// being issued.
func TestAccumulator_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	acc, err := NewAccumulator(1, nil, func(context.Context, [][]string) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := acc.Append(ctx, []string{"x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Append error = %v, want context.Canceled", err)
	}
	if called {
		t.Fatalf("flush ran after cancellation")
	}
}

func TestNewAccumulator_Invalid(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, [][]string) error { return nil }
	if _, err := NewAccumulator(0, nil, noop); err == nil {
		t.Fatalf("expected error for batchSize=0")
	}
	if _, err := NewAccumulator(-5, nil, noop); err == nil {
		t.Fatalf("expected error for negative batchSize")
	}
	if _, err := NewAccumulator(1, nil, nil); err == nil {
		t.Fatalf("expected error for nil flush")
	}
}
