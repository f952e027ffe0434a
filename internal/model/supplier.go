package model

// SupplierMatch is the result of fuzzy-matching raw supplier text against
// the configured alias table.
type SupplierMatch struct {
	Canonical    string
	MatchedAlias string
	Score        float64
	IsConfident  bool
}

// Unresolved reports whether no alias matched with confidence.
func (m SupplierMatch) Unresolved() bool {
	return !m.IsConfident || m.Canonical == ""
}
