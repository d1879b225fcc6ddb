// Package publish promotes staged orders to the canonical cross-store tables
// and links detail and payment rows onto them.
package publish

import "strings"

// KeyVariants returns the order-number forms a child row may be keyed under,
// most specific first. Portals are inconsistent about prefixing the store
// code onto order numbers, so the raw value is tried before the
// prefix-stripped one.
func KeyVariants(orderNo, storeCode string) []string {
	raw := strings.TrimSpace(orderNo)
	if raw == "" {
		return nil
	}
	variants := []string{raw}
	if storeCode == "" {
		return variants
	}
	upper := strings.ToUpper(raw)
	prefix := strings.ToUpper(strings.TrimSpace(storeCode))
	if prefix == "" || !strings.HasPrefix(upper, prefix) {
		return variants
	}
	rest := strings.TrimLeft(raw[len(prefix):], "-/_ ")
	if rest != "" && rest != raw {
		variants = append(variants, rest)
	}
	return variants
}
