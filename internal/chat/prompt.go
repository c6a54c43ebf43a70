package chat

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/askdoc/askdoc-go/internal/budget"
	"github.com/askdoc/askdoc-go/internal/rag"
	"github.com/askdoc/askdoc-go/internal/session"
)

// systemPrompt grounds the model in the retrieved document fragments. The
// fragments are appended below it, ranked most relevant first.
const systemPrompt = `You are a helpful reading assistant who answers questions
based on snippets of text provided in context. Answer only using the context
provided, being as concise as possible. If you're unsure, just say that you
don't know.
Context:
`

// buildContext formats the ranked fragments into the system message body.
// Each fragment is attributed to its source file so the model can cite it.
func buildContext(fragments []rag.Fragment) string {
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	for _, f := range fragments {
		fmt.Fprintf(&sb, "\n[from %s]\n%s\n", f.Collection, f.Text)
	}
	return sb.String()
}

// buildMessages assembles the full model input: grounded system message,
// prior session turns trimmed to the token budget, and the new question.
func buildMessages(fragments []rag.Fragment, history []session.Turn, question string, maxTokens int) []*schema.Message {
	system := schema.SystemMessage(buildContext(fragments))
	user := schema.UserMessage(question)

	var historyMsgs []*schema.Message
	for _, t := range history {
		switch t.Role {
		case session.RoleUser:
			historyMsgs = append(historyMsgs, schema.UserMessage(t.Content))
		case session.RoleAssistant:
			historyMsgs = append(historyMsgs, schema.AssistantMessage(t.Content, nil))
		}
	}

	// Trim history oldest-first so system + history + question fits the
	// estimated token budget.
	fixed := []*schema.Message{system, user}
	historyMsgs = budget.TrimHistory(fixed, historyMsgs, maxTokens)

	result := make([]*schema.Message, 0, 2+len(historyMsgs))
	result = append(result, system)
	result = append(result, historyMsgs...)
	result = append(result, user)
	return result
}
