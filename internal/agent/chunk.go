package agent

// Chunks splits s into pieces of at most size runes. Concatenating the pieces
// gives back s. An empty s has no chunks.
func Chunks(s string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks []string
	runes := 0
	start := 0
	for i := range s {
		if runes == size {
			chunks = append(chunks, s[start:i])
			start = i
			runes = 0
		}
		runes++
	}
	if start < len(s) {
		chunks = append(chunks, s[start:])
	}
	return chunks
}
