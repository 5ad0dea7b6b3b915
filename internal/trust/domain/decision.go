package domain

// Decision is the answer of the human approval prompt.
type Decision struct {
	Approved bool
	// Remember persists an approval for future sessions.
	Remember bool
}

// Source identifies where a trust verdict came from.
type Source string

const (
	// SourceSession means the verdict was cached earlier in this session.
	SourceSession Source = "session"
	// SourceStore means the persistent approval store had the thumbprint.
	SourceStore Source = "store"
	// SourcePrompt means a human answered the approval prompt.
	SourcePrompt Source = "prompt"
	// SourceError means an internal failure forced a rejection.
	SourceError Source = "error"
)

// Verdict is the result of one trust check.
type Verdict struct {
	Accepted bool
	Source   Source
}

// Entry is a decrypted approval record, used for listing the store.
type Entry struct {
	// Scope is the connection name, or "" for a global approval.
	Scope      string
	Thumbprint string
	Subject    string
}

// GlobalScope is the scope key applying to every connection.
const GlobalScope = ""
