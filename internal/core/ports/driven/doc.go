// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Corpus: Discovers and reads documents under a directory
//   - Normaliser: Parses raw documents into text (the document parser)
//   - NormaliserRegistry: Selects the appropriate normaliser
//   - PostProcessorPipeline: Splits documents into chunks
//   - EmbeddingService: Generates vector embeddings (the embedding function)
//   - VectorStore: Persists collections and runs similarity search
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Generation backend. Without it, answers are retrieval-only.
//   - PromptStore: User-editable prompt templates. Without it, embedded defaults are used.
//   - MetricsRecorder: Build and query observations.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
