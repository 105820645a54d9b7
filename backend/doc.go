// Package backend provides a uniform OpenAI-style chat-completion
// client over the heterogeneous self-hosted LLM servers the miner can
// be pointed at (vLLM, Ollama, llama.cpp), plus a registry that
// resolves a configured backend kind to a concrete Adapter.
package backend
