package embedder

import (
	"strings"
)

// chatModelPrefixes are model families that generate text rather than
// embeddings. Pointing the embedder at one of these is a common
// misconfiguration that surfaces as confusing backend errors, so it is
// caught at startup instead.
var chatModelPrefixes = []string{
	"llama",
	"mistral",
	"mixtral",
	"gemma",
	"qwen",
	"phi",
	"deepseek",
	"gpt-3.5",
	"gpt-4",
	"gpt-5",
	"o1",
	"o3",
	"claude",
	"command",
}

// LooksLikeChatModel reports whether the given model name appears to be a
// chat model rather than an embedding model. Used for a startup warning
// only; unknown names pass.
func LooksLikeChatModel(model string) bool {
	name := strings.ToLower(strings.TrimSpace(model))
	// Strip an Ollama-style tag suffix like ":8b".
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[:i]
	}
	for _, prefix := range chatModelPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
