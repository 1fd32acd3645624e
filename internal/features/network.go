package features

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// networkFeatures measures counterparty graph structure within the
// batch: how many distinct entities an account touches (and vice
// versa), and how often the record's exact (account, entity) pair
// occurs.
func (e *Engineer) networkFeatures(b *builder, records []domain.Transaction) {
	accountEntities := make(map[string]map[string]struct{})
	entityAccounts := make(map[string]map[string]struct{})
	pairCount := make(map[[2]string]int)

	for i := range records {
		acct, ent := records[i].AccountCode, records[i].Entity
		if accountEntities[acct] == nil {
			accountEntities[acct] = make(map[string]struct{})
		}
		accountEntities[acct][ent] = struct{}{}
		if entityAccounts[ent] == nil {
			entityAccounts[ent] = make(map[string]struct{})
		}
		entityAccounts[ent][acct] = struct{}{}
		pairCount[[2]string{acct, ent}]++
	}

	n := len(records)
	acctDegree := make([]float64, n)
	entDegree := make([]float64, n)
	pairStrength := make([]float64, n)
	for i := range records {
		acct, ent := records[i].AccountCode, records[i].Entity
		acctDegree[i] = float64(len(accountEntities[acct]))
		entDegree[i] = float64(len(entityAccounts[ent]))
		pairStrength[i] = float64(pairCount[[2]string{acct, ent}])
	}

	b.add("account_degree", acctDegree)
	b.add("entity_degree", entDegree)
	b.add("pair_strength", pairStrength)
}
