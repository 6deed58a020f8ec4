package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// routeSystemPrompt instructs the classifier to pick a route for each
// user message.
const routeSystemPrompt = `You are a classifier for a RAG chatbot.
Return ONLY valid JSON with this exact schema: {"route":"casual"} or {"route":"rag"}.
Never use any emoji.
Use "casual" for small talk, greetings, thanks, jokes, assistant meta chat, and conversation-memory questions.
Conversation-memory questions include requests about prior chat turns or personal details shared in chat (for example: "what is my name", "what did I ask before", "summarize our chat").
Use "rag" for questions that likely need external knowledge lookup or document grounding.
If uncertain, choose "rag".`

// casualSystemPrompt steers non-grounded chat turns.
const casualSystemPrompt = `You are a helpful assistant.
For casual conversation, reply naturally and concisely.
Never use any emoji.
If asked about user-specific details (name, preferences, previous statements), use only conversation history.
If that detail is not present in conversation history, say you do not know yet.
Do not mention retrieval or citations unless the user asks.`

// groundedSystemPrompt keeps answers inside the retrieved context.
const groundedSystemPrompt = `You are a retrieval-grounded assistant.
Answer only from the provided context.
Never use any emoji.
If the context is insufficient, say you do not have enough information.
Do NOT mention sources, or phrases like 'according to S3' in the answer text.
The API will attach sources separately.
Do not invent facts.`

// noContextAnswer is the canned reply when hybrid search finds nothing.
const noContextAnswer = "I could not find relevant context for this question."

// routeUserPrompt formats the classification request.
func routeUserPrompt(question, recentHistory string) string {
	return fmt.Sprintf(
		"Recent conversation history (most recent last):\n%s\n\nCurrent user message:\n%s\n\nReturn only the required JSON and never use any emoji.",
		recentHistory, question,
	)
}

// groundedUserPrompt formats the question together with its context block.
func groundedUserPrompt(question, contextBlock string) string {
	return fmt.Sprintf(
		"Question:\n%s\n\nContext chunks:\n%s\n\nReturn a concise answer without inline source-id citations. Never use any emoji.",
		question, contextBlock,
	)
}

// buildContext numbers retrieved passages S1..Sn in result order and
// returns the formatted context block together with the mirroring source
// attribution list.
func buildContext(results []domain.RetrievedChunk) (string, []domain.Source) {
	blocks := make([]string, 0, len(results))
	sources := make([]domain.Source, 0, len(results))

	for i, r := range results {
		sourceID := fmt.Sprintf("S%d", i+1)

		blocks = append(blocks, fmt.Sprintf(
			"[%s] filename=%s chunk_index=%d\n%s",
			sourceID, r.Filename, r.ChunkIndex, strings.TrimSpace(r.Text),
		))

		sources = append(sources, domain.Source{
			SourceID:     sourceID,
			ChunkID:      r.ChunkID,
			DocumentID:   r.DocumentID,
			Filename:     r.Filename,
			ChunkIndex:   r.ChunkIndex,
			HybridScore:  r.HybridScore,
			LexicalScore: r.LexicalScore,
			VectorSim:    r.VectorSim,
		})
	}

	return strings.Join(blocks, "\n\n"), sources
}
