package filtering

// Aggregate merges parsed sources into the global black and white sets in two
// explicit phases.
//
// Phase one folds black-role results: their rules go to the black set and
// their exceptions to the white set. Phase two folds white-role results:
// exceptions go to the white set and plain rules are dropped, since a white
// source may not add block entries. The result does not depend on the order
// of either slice.
func Aggregate(black, white []SourceResult) (*DomainSet, *DomainSet) {
	blackSet := NewDomainSet()
	whiteSet := NewDomainSet()

	for _, res := range black {
		blackSet.Merge(res.Black)
		whiteSet.Merge(res.White)
	}
	for _, res := range white {
		whiteSet.Merge(res.White)
	}

	return blackSet, whiteSet
}

// SplitByRole partitions results by the role of their source.
func SplitByRole(results []SourceResult) (black, white []SourceResult) {
	for _, res := range results {
		if res.Source.Role == RoleWhite {
			white = append(white, res)
			continue
		}
		black = append(black, res)
	}
	return black, white
}
