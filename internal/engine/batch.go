package engine

// BatchSize returns the batch size for a run of total tasks.
// Larger runs get smaller batches to bound peak concurrency and keep progress granular.
func BatchSize(total int) int {
	switch {
	case total > 100:
		return 4
	case total > 50:
		return 6
	case total > 20:
		return 8
	default:
		return 10
	}
}

// Partition splits items into consecutive batches sized by BatchSize(len(items)).
func Partition[T any](items []T) [][]T {
	if len(items) == 0 {
		return nil
	}
	size := BatchSize(len(items))
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}
