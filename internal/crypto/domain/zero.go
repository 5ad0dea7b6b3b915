package domain

// Zero overwrites each buffer with zeros so transient key material does not linger
// on the heap after it has been written or parsed.
func Zero(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
	}
}
