package provisioning

import "strings"

// DefaultEntitlement is granted when a product code has no mapping. A paying
// customer must always end up with some access; an incomplete catalog entry
// is a worse reason to withhold it than granting the flagship course.
const DefaultEntitlement = "codigo-reconquista"

// productEntitlements maps normalized product codes to the entitlements a
// purchase of that product unlocks. Bundles expand to several entitlements.
var productEntitlements = map[string][]string{
	"codigo-reconquista":    {"codigo-reconquista"},
	"reconquista-express":   {"reconquista-express"},
	"mentoria-reconquista":  {"mentoria-reconquista"},
	"reconquista-completa":  {"codigo-reconquista", "reconquista-express", "mentoria-reconquista"},
	"combo-codigo-mentoria": {"codigo-reconquista", "mentoria-reconquista"},
}

// EntitlementsForProduct resolves a raw provider product identifier to the
// entitlement codes to grant. The second return value reports whether the
// product was found in the catalog; unknown products fall back to
// DefaultEntitlement.
func EntitlementsForProduct(productCode string) ([]string, bool) {
	code := NormalizeProductCode(productCode)
	if ents, ok := productEntitlements[code]; ok {
		out := make([]string, len(ents))
		copy(out, ents)
		return out, true
	}
	return []string{DefaultEntitlement}, false
}

// NormalizeProductCode canonicalizes provider product spellings: lowercase,
// trimmed, underscores and spaces folded to hyphens.
func NormalizeProductCode(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	c = strings.ReplaceAll(c, "_", "-")
	c = strings.ReplaceAll(c, " ", "-")
	return c
}
