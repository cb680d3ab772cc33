package domain

// Allocate picks the batch that should fulfil line, allocates the line to
// it and returns its reference. In-stock batches win over shipments and
// earlier shipments win over later ones. If no batch can take the whole
// line an *OutOfStockError is returned and nothing is modified.
//
// The caller's slice is not reordered.
func Allocate(line OrderLine, batches []*Batch) (string, error) {
	sorted := make([]*Batch, len(batches))
	copy(sorted, batches)
	SortByETA(sorted)

	for _, b := range sorted {
		if b.CanAllocate(line) {
			b.Allocate(line)
			return b.Reference, nil
		}
	}

	return "", &OutOfStockError{SKU: line.SKU}
}
