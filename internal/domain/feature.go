package domain

// FeatureTable is the engineered numeric representation of a batch of
// transactions: one row per record, index-aligned with the input batch.
// Tables are produced fresh per engineering run and never mutated in
// place; a re-run yields a new table.
type FeatureTable struct {
	// Columns is the ordered set of feature names. The column set is
	// stable within one run and free of constant or near-duplicate
	// columns after post-processing.
	Columns []string `json:"columns"`

	// Rows holds one dense feature vector per transaction, each of
	// length len(Columns). After post-processing rows contain no NaN
	// or infinite values.
	Rows [][]float64 `json:"rows"`

	// RecordIDs carries the source transaction ID per row so detection
	// results can be tied back to records. May be empty for synthetic
	// tables (drift references, tests).
	RecordIDs []string `json:"recordIds,omitempty"`

	// Diagnostics holds the pre-pruning feature values per row for
	// explanation purposes. Post-processing may drop a column the
	// diagnostic rules reference; the raw values survive here.
	Diagnostics []map[string]float64 `json:"-"`

	index map[string]int
}

// NewFeatureTable builds a table from ordered columns and dense rows.
func NewFeatureTable(columns []string, rows [][]float64) *FeatureTable {
	t := &FeatureTable{Columns: columns, Rows: rows}
	t.reindex()
	return t
}

func (t *FeatureTable) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.index[c] = i
	}
}

// Len returns the number of rows.
func (t *FeatureTable) Len() int { return len(t.Rows) }

// NumColumns returns the number of feature columns.
func (t *FeatureTable) NumColumns() int { return len(t.Columns) }

// HasColumn reports whether the named feature exists.
func (t *FeatureTable) HasColumn(name string) bool {
	if t.index == nil {
		t.reindex()
	}
	_, ok := t.index[name]
	return ok
}

// ColumnIndex returns the position of the named feature, or -1.
func (t *FeatureTable) ColumnIndex(name string) int {
	if t.index == nil {
		t.reindex()
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Column returns a copy of the named feature column, or nil if absent.
func (t *FeatureTable) Column(name string) []float64 {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil
	}
	col := make([]float64, len(t.Rows))
	for r, row := range t.Rows {
		col[r] = row[i]
	}
	return col
}

// Value returns the cell at (row, named column). Missing columns read
// as zero, matching the impute-with-zero post-processing contract.
func (t *FeatureTable) Value(row int, name string) float64 {
	i := t.ColumnIndex(name)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return 0
	}
	return t.Rows[row][i]
}
