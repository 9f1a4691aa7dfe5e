package schema

// MemoryStore manages long-term memory and the grep-searchable history log.
// The consolidation flow that fills it lives in the agent package.
type MemoryStore interface {
	ReadLongTerm() string
	WriteLongTerm(content string) error
	AppendHistory(entry string) error
	GetMemoryContext() string
}
