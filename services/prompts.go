package services

import "fmt"

const directAnswerPrompt = `Answer the question in 4-5 sentences using only the context below.
If the context does not contain the information needed, say that it is not in the provided documents instead of inventing an answer.

Context:
%s

Question:
%s

Answer:`

const extractiveSummaryPrompt = `Write a summary in 1-2 sentences that only copies exact sentences or phrases from the context below. Do not add any information, paraphrasing, or synthesis.

Context:
%s

Question:
%s

Strict Extractive Summary:`

const reasoningPrompt = `Summarize the following retrieved context into a concise, readable explanation that clearly answers the user's question.

Question:
%s

Retrieved context:
%s`

// DirectAnswerPrompt grounds a 4-5 sentence answer in fullContext.
func DirectAnswerPrompt(fullContext, question string) string {
	return fmt.Sprintf(directAnswerPrompt, fullContext, question)
}

// ExtractiveSummaryPrompt asks for a 1-2 sentence summary of verbatim context phrases.
func ExtractiveSummaryPrompt(fullContext, question string) string {
	return fmt.Sprintf(extractiveSummaryPrompt, fullContext, question)
}

// ReasoningPrompt asks for a short explanation of why the retrieved context answers question.
func ReasoningPrompt(question, displayContext string) string {
	return fmt.Sprintf(reasoningPrompt, question, displayContext)
}
