package features

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

// rankTable builds a table whose columns have clearly ordered variance
// and a single label-separating column.
func rankTable(n int) (*domain.FeatureTable, []int) {
	cols := []string{"noise", "sep", "wide"}
	rows := make([][]float64, n)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		// Near-perfect separation with a little within-group spread so
		// the group variances stay non-degenerate.
		sep := float64(i%2) * 0.1
		labels[i] = domain.LabelNormal
		if i < n/4 {
			sep = 10 + float64(i%3)*0.1
			labels[i] = domain.LabelAnomaly
		}
		rows[i] = []float64{float64(i % 5), sep, float64(i) * 20}
	}
	return domain.NewFeatureTable(cols, rows), labels
}

func TestSelectByVariance(t *testing.T) {
	table, _ := rankTable(40)

	t.Run("TopK", func(t *testing.T) {
		out := SelectByVariance(table, 2)
		if out.NumColumns() != 2 {
			t.Fatalf("expected 2 columns, got %d", out.NumColumns())
		}
		// wide dominates, sep beats the bounded noise column; survivors
		// keep their original order.
		if out.Columns[0] != "sep" || out.Columns[1] != "wide" {
			t.Errorf("unexpected columns: %v", out.Columns)
		}
		if out.Len() != table.Len() {
			t.Errorf("expected %d rows, got %d", table.Len(), out.Len())
		}
	})

	t.Run("KOutOfRangeKeepsAll", func(t *testing.T) {
		for _, k := range []int{0, -1, 3, 10} {
			out := SelectByVariance(table, k)
			if out.NumColumns() != table.NumColumns() {
				t.Errorf("k=%d: expected %d columns, got %d", k, table.NumColumns(), out.NumColumns())
			}
		}
	})
}

func TestSelectByFScore(t *testing.T) {
	table, labels := rankTable(40)

	t.Run("KeepsDiscriminativeColumn", func(t *testing.T) {
		out, err := SelectByFScore(table, labels, 1)
		if err != nil {
			t.Fatalf("SelectByFScore failed: %v", err)
		}
		if out.NumColumns() != 1 || out.Columns[0] != "sep" {
			t.Errorf("expected [sep], got %v", out.Columns)
		}
	})

	t.Run("LabelMismatch", func(t *testing.T) {
		_, err := SelectByFScore(table, labels[:10], 1)
		if !errors.Is(err, ErrLabelMismatch) {
			t.Errorf("expected ErrLabelMismatch, got: %v", err)
		}
	})
}

func TestSelectByMutualInfo(t *testing.T) {
	table, labels := rankTable(40)

	t.Run("KeepsDiscriminativeColumn", func(t *testing.T) {
		out, err := SelectByMutualInfo(table, labels, 1)
		if err != nil {
			t.Fatalf("SelectByMutualInfo failed: %v", err)
		}
		if out.NumColumns() != 1 || out.Columns[0] != "sep" {
			t.Errorf("expected [sep], got %v", out.Columns)
		}
	})

	t.Run("LabelMismatch", func(t *testing.T) {
		_, err := SelectByMutualInfo(table, labels[:5], 1)
		if !errors.Is(err, ErrLabelMismatch) {
			t.Errorf("expected ErrLabelMismatch, got: %v", err)
		}
	})
}

// randomTable builds a dense table of seeded gaussian noise.
func randomTable(n, p int, seed int64) *domain.FeatureTable {
	rng := rand.New(rand.NewSource(seed))
	cols := make([]string, p)
	for j := range cols {
		cols[j] = string(rune('a' + j))
	}
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, p)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		rows[i] = row
	}
	return domain.NewFeatureTable(cols, rows)
}

func TestReducePCA(t *testing.T) {
	table := randomTable(30, 4, 7)

	t.Run("Projection", func(t *testing.T) {
		out, err := ReducePCA(table, 2)
		if err != nil {
			t.Fatalf("ReducePCA failed: %v", err)
		}
		if out.NumColumns() != 2 {
			t.Fatalf("expected 2 columns, got %d", out.NumColumns())
		}
		if out.Columns[0] != "pc_1" || out.Columns[1] != "pc_2" {
			t.Errorf("unexpected column names: %v", out.Columns)
		}
		if out.Len() != 30 {
			t.Errorf("expected 30 rows, got %d", out.Len())
		}
	})

	t.Run("BadComponents", func(t *testing.T) {
		if _, err := ReducePCA(table, 0); !errors.Is(err, ErrBadComponents) {
			t.Errorf("expected ErrBadComponents for k=0, got: %v", err)
		}
		if _, err := ReducePCA(table, 5); !errors.Is(err, ErrBadComponents) {
			t.Errorf("expected ErrBadComponents for k>columns, got: %v", err)
		}
	})
}

func TestReduceICA(t *testing.T) {
	table := randomTable(50, 3, 11)

	t.Run("Deterministic", func(t *testing.T) {
		first, err := ReduceICA(table, 2, 42)
		if err != nil {
			t.Fatalf("ReduceICA failed: %v", err)
		}
		second, err := ReduceICA(table, 2, 42)
		if err != nil {
			t.Fatalf("ReduceICA failed: %v", err)
		}

		if first.Columns[0] != "ic_1" || first.Columns[1] != "ic_2" {
			t.Errorf("unexpected column names: %v", first.Columns)
		}
		for i := range first.Rows {
			for j := range first.Rows[i] {
				if first.Rows[i][j] != second.Rows[i][j] {
					t.Fatalf("cell (%d,%d) differs between runs with the same seed", i, j)
				}
			}
		}
	})

	t.Run("BadComponents", func(t *testing.T) {
		if _, err := ReduceICA(table, 4, 42); !errors.Is(err, ErrBadComponents) {
			t.Errorf("expected ErrBadComponents, got: %v", err)
		}
	})
}

func TestReduceClusterDistance(t *testing.T) {
	table := randomTable(40, 3, 13)

	t.Run("Distances", func(t *testing.T) {
		out, err := ReduceClusterDistance(table, 3, 42)
		if err != nil {
			t.Fatalf("ReduceClusterDistance failed: %v", err)
		}
		if out.NumColumns() != 3 {
			t.Fatalf("expected 3 columns, got %d", out.NumColumns())
		}
		if out.Columns[0] != "cluster_dist_1" || out.Columns[2] != "cluster_dist_3" {
			t.Errorf("unexpected column names: %v", out.Columns)
		}
		for i, row := range out.Rows {
			for j, v := range row {
				if v < 0 {
					t.Fatalf("distance (%d,%d) is negative: %v", i, j, v)
				}
			}
		}
	})

	t.Run("BadComponents", func(t *testing.T) {
		if _, err := ReduceClusterDistance(table, 0, 42); !errors.Is(err, ErrBadComponents) {
			t.Errorf("expected ErrBadComponents for k=0, got: %v", err)
		}
		if _, err := ReduceClusterDistance(table, 41, 42); !errors.Is(err, ErrBadComponents) {
			t.Errorf("expected ErrBadComponents for k>rows, got: %v", err)
		}
	})
}
