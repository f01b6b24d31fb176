package usecase

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
)

// generationSystemPrompt frames the model as a grounded assistant; the
// grounding rules live in the user prompt built below.
const generationSystemPrompt = "You are an AI assistant that answers questions based on provided context. Be concise and factual."

// BuildPrompt renders the grounded generation prompt. It is a pure function
// of its inputs: the same query, context, language and history always yield
// the same prompt string. The citation instruction is load-bearing; the
// evaluator checks answers for the exact "(Source: ...)" form it mandates.
func BuildPrompt(query string, rc domain.RetrievedContext, language string, conversation []domain.ConversationTurn) string {
	if language == "" {
		language = "English"
	}
	var b strings.Builder
	b.WriteString("You are an AI assistant specialized in providing accurate information about ")
	b.WriteString("immigration and diaspora services. Answer the user question ONLY using the ")
	b.WriteString("context provided below. Do NOT make up information.\n\n")
	b.WriteString("If the context does not contain enough information for a complete answer, ask ")
	b.WriteString("2-3 specific follow-up questions that would help you provide a better one, such ")
	b.WriteString("as the user's nationality, visa type, current immigration status, job offer or ")
	b.WriteString("intended length of stay.\n\n")

	b.WriteString("CONTEXT:\n")
	b.WriteString(rc.Text)
	b.WriteString("\n")

	if len(conversation) > 0 {
		b.WriteString("\nCONVERSATION HISTORY:\n")
		for i, turn := range conversation {
			fmt.Fprintf(&b, "%d. User: %s\n   Assistant: %s\n", i+1, turn.Question, turn.Answer)
		}
	}

	b.WriteString("\nCURRENT USER QUESTION:\n")
	b.WriteString(query)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	fmt.Fprintf(&b, "- Respond in clear, natural %s\n", language)
	b.WriteString("- Consider the conversation history when answering\n")
	b.WriteString("- If you can answer with the available context, cite source files explicitly, e.g., (Source: uk_visa_faq.txt)\n")
	b.WriteString("- If context is insufficient, ask 2-3 relevant follow-up questions to gather more details\n")
	b.WriteString("- Keep responses concise, factual, and helpful\n")
	b.WriteString("- Avoid hallucinations or assumptions\n")
	return b.String()
}
