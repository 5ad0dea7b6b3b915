package domain

// Key material sizes for the process-wide AES-256-CBC key.
const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// IVSize is the AES block size, used as the fixed CBC initialization vector length.
	IVSize = 16

	// KeyFileSize is the length of the raw key file: key bytes followed by IV bytes,
	// without header or version.
	KeyFileSize = KeySize + IVSize
)
