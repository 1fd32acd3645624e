package features

import (
	"sort"

	"github.com/opensource-finance/harrier/internal/domain"
)

// categoricalFeatures one-hot encodes transaction type and entity.
// Category columns are emitted in sorted order so the column set is
// deterministic for a given batch.
func (e *Engineer) categoricalFeatures(b *builder, records []domain.Transaction) {
	e.oneHot(b, "type_", records, func(t *domain.Transaction) string { return t.Type })
	e.oneHot(b, "entity_", records, func(t *domain.Transaction) string { return t.Entity })
}

func (e *Engineer) oneHot(b *builder, prefix string, records []domain.Transaction, keyOf func(*domain.Transaction) string) {
	seen := make(map[string]struct{})
	for i := range records {
		if k := keyOf(&records[i]); k != "" {
			seen[k] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return
	}

	cats := make([]string, 0, len(seen))
	for k := range seen {
		cats = append(cats, k)
	}
	sort.Strings(cats)

	for _, cat := range cats {
		col := make([]float64, len(records))
		for i := range records {
			if keyOf(&records[i]) == cat {
				col[i] = 1
			}
		}
		b.add(prefix+cat, col)
	}
}
