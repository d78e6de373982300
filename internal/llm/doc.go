// Package llm provides the model gateway used to query language model backends.
// It supports OpenAI-compatible providers (OpenAI, Groq, OpenRouter), Anthropic
// and Gemini behind a single Client interface, with per-call timeouts, rate
// limiting, optional retries and response caching layered on top by Gateway.
package llm
