package protocol

// SplitPayload divides blob into ceil(len(blob)/maxPayload) chunks of at
// most maxPayload bytes each, in index order. Concatenating the returned
// chunks in order reproduces blob bit-exactly (spec §8 property 1).
//
// blob must be non-empty and maxPayload must be positive; SplitPayload
// panics otherwise, since both are invariants the caller (compress_frame)
// is expected to have already established.
func SplitPayload(blob []byte, maxPayload int) [][]byte {
	if len(blob) == 0 {
		panic("protocol: SplitPayload requires a non-empty blob")
	}
	if maxPayload <= 0 {
		panic("protocol: SplitPayload requires a positive maxPayload")
	}

	count := (len(blob) + maxPayload - 1) / maxPayload
	chunks := make([][]byte, count)
	for i := 0; i < count; i++ {
		start := i * maxPayload
		end := start + maxPayload
		if end > len(blob) {
			end = len(blob)
		}
		chunks[i] = blob[start:end]
	}
	return chunks
}
