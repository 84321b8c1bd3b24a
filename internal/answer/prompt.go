package answer

import (
	"fmt"
	"strings"

	"github.com/entropy1208/halsaveda-copilot/internal/index"
)

// systemPrompt sets the assistant persona. The grounding rules live here
// rather than in the per-question prompt so they survive any question
// phrasing.
const systemPrompt = `You are HälsaVeda Copilot, an AI assistant helping people navigate Swedish healthcare.

Your role:
- Answer questions about Swedish healthcare clearly and concisely
- Use only the provided context from 1177.se (the Swedish healthcare website)
- Translate Swedish content to English when needed
- Provide practical, actionable advice
- Always cite your sources with [Source X] references
- If the context does not answer the question, say what is missing instead of guessing

Be empathetic and helpful, especially for immigrants and expats who may find the Swedish system confusing.`

// buildPrompt assembles the grounded user prompt: each chunk labeled with
// the index its citation marker refers to, then the question restated.
func buildPrompt(question string, matches []index.Match) string {
	var b strings.Builder

	b.WriteString("Context from 1177.se:\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "\n[Source %d]: %s\n", i+1, m.Title)
		b.WriteString(m.Content)
		b.WriteString("\n")
		if m.URL != "" {
			fmt.Fprintf(&b, "URL: %s\n", m.URL)
		}
	}

	b.WriteString("\nInstructions:\n")
	b.WriteString("1. Answer the question using only the context above\n")
	b.WriteString("2. If the context is in Swedish, translate the key points to English\n")
	b.WriteString("3. Provide practical steps when relevant\n")
	b.WriteString("4. Cite sources using [Source 1], [Source 2], etc.\n")
	b.WriteString("5. If the context does not fully answer the question, say what you can answer and what is missing\n")

	fmt.Fprintf(&b, "\nQuestion: %s\n\nAnswer:", question)

	return b.String()
}
