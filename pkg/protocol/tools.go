package protocol

// Tool names exposed over MCP.
const (
	ToolCreateMemory        = "create_memory"
	ToolReadMemories        = "read_memories"
	ToolUpdateMemory        = "update_memory"
	ToolDeleteMemory        = "delete_memory"
	ToolSemanticSearch      = "semantic_search"
	ToolGenerateEmbeddings  = "generate_embeddings_for_existing"
	ToolCalculateSimilarity = "calculate_similarity"
	ToolGetVectorStats      = "get_vector_stats"
	ToolGetMemoryStats      = "get_memory_stats"
)

// ServerName is the MCP implementation name.
const ServerName = "gomemory"
