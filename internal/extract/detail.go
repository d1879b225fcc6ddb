package extract

import (
	"strings"

	"github.com/retailops/storesync/internal/types"
)

// listSeparator splits the portal's pipe-delimited parallel lists.
const listSeparator = "|"

// ExpandParallelLists turns the portal's parallel-list encoding of line items
// (item names, rates, quantities, weights, service types as separate
// delimited strings) into positional LineItems. Lists may differ in length;
// expansion runs to the longest list and missing positions become nil rather
// than dropping the row.
func ExpandParallelLists(names, rates, quantities, weights, services string) []types.LineItem {
	nameList := splitList(names)
	rateList := splitList(rates)
	qtyList := splitList(quantities)
	weightList := splitList(weights)
	serviceList := splitList(services)

	n := len(nameList)
	for _, l := range [][]string{rateList, qtyList, weightList, serviceList} {
		if len(l) > n {
			n = len(l)
		}
	}
	if n == 0 {
		return nil
	}

	items := make([]types.LineItem, n)
	for i := 0; i < n; i++ {
		items[i] = types.LineItem{
			Name:     listAt(nameList, i),
			Rate:     listAt(rateList, i),
			Quantity: listAt(qtyList, i),
			Weight:   listAt(weightList, i),
			Service:  listAt(serviceList, i),
		}
	}
	return items
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, listSeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func listAt(list []string, i int) *string {
	if i >= len(list) {
		return nil
	}
	v := list[i]
	return &v
}
