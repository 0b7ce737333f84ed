package models

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultTopK         = 5
	DefaultChatModel    = "gpt-4.1-mini"
)

var (
	GroundedSystemPrompt = `You are a helpful assistant answering questions about the user's documents.
Use only the provided context to answer the query. Cite the bracketed source numbers you relied on.
If the context does not contain the answer, say that you could not find it in the selected files.`

	// ContextPromptTemplate takes the numbered context blocks and the query.
	ContextPromptTemplate = `Context:
%s
Query: %s`

	UngroundedSystemPrompt = "You are a helpful assistant."
)
