package review

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const reviewSystemPrompt = `You are an expert code reviewer. Review the single source file you are given and respond with structured feedback in JSON format.

Rules:
1. Look for bugs, performance problems, security issues, style problems, deviations from best practice, and maintainability concerns.
2. Be concise and actionable. Include a concrete suggestion whenever one exists.
3. Reference 1-based line numbers from the file. Use 0 when the feedback applies to the whole file.
4. Rate severity as one of: Critical, High, Medium, Low, Info.
5. Categorize each item as one of: Bug, Performance, Style, Best Practice, Security, Maintainability.

You MUST respond with ONLY a JSON object. No markdown, no explanation, no preamble.

The object must have this exact structure:
{
  "overallSummary": "Two or three sentences about the file as a whole",
  "feedback": [
    {
      "category": "Bug|Performance|Style|Best Practice|Security|Maintainability",
      "severity": "Critical|High|Medium|Low|Info",
      "line": 0,
      "description": "What is wrong and why it matters",
      "suggestion": "How to fix it, with code if helpful"
    }
  ]
}

If there are no issues, respond with an empty feedback array.`

// ReviewSystemPrompt returns the system prompt for single-file review.
func ReviewSystemPrompt() string {
	return reviewSystemPrompt
}

// BuildReviewPrompt constructs the user prompt for reviewing one file.
func BuildReviewPrompt(code, language string, g *Guidelines) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Review the following %s code.\n", LanguageLabel(language))

	if section := g.PromptSection(); section != "" {
		b.WriteString(section)
	}

	fmt.Fprintf(&b, "\n```%s\n", language)
	b.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n")

	return b.String()
}

// BuildRepairPrompt asks the model to correct a response that failed to parse.
func BuildRepairPrompt(parseErr error, previous string) string {
	return fmt.Sprintf(
		"Your previous response was not valid. The error was: %s\n\nPlease fix it and respond with ONLY the JSON object described in your instructions.\n\nYour previous response was:\n%s",
		parseErr.Error(), previous,
	)
}

const batchSummarySystemPrompt = `You are an expert code reviewer summarizing the results of reviewing several files together.
Write a short overall summary (one or two paragraphs of plain prose) covering the most important themes, risks, and recommended next steps across all files. Do not list every finding and do not respond with JSON.`

// BatchSummarySystemPrompt returns the system prompt for batch summaries.
func BatchSummarySystemPrompt() string {
	return batchSummarySystemPrompt
}

// BuildBatchSummaryPrompt renders the per-file reviews, ordered by file name,
// into a prompt requesting one overall summary.
func BuildBatchSummaryPrompt(reviews map[string]CodeReview) string {
	names := make([]string, 0, len(reviews))
	for name := range reviews {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the reviews of these %d files.\n", len(reviews))
	for _, name := range names {
		data, _ := json.MarshalIndent(reviews[name], "", "  ")
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", name, data)
	}
	return b.String()
}

// BuildLanguagePrompt asks the model to name the language of a snippet.
func BuildLanguagePrompt(code string) string {
	values := make([]string, 0, len(SupportedLanguages))
	for _, l := range SupportedLanguages {
		values = append(values, l.Value)
	}
	return fmt.Sprintf(
		"Identify the programming language of the following code. Respond with exactly one word from this list and nothing else: %s.\n\n%s",
		strings.Join(values, ", "), code,
	)
}

// ParseLanguage extracts a supported language value from a model reply.
func ParseLanguage(reply string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(StripCodeFence(reply)))
	v = strings.Trim(v, "`\"'. \n")
	if IsSupportedLanguage(v) {
		return v, true
	}
	for _, l := range SupportedLanguages {
		if strings.EqualFold(v, l.Label) {
			return l.Value, true
		}
	}
	return "", false
}

const chatSystemPrompt = `You are an expert code reviewer answering follow-up questions about a review you already performed.
Ground every answer in the files and the review below. Quote line numbers when you refer to code. Answer in Markdown.`

// BuildChatContext renders the full file contents and all per-file feedback
// into the system context used to seed a chat session.
func BuildChatContext(files []CodeFile, batch BatchCodeReview) string {
	var b strings.Builder
	b.WriteString(chatSystemPrompt)
	b.WriteString("\n\n## Files\n")
	for _, f := range files {
		fmt.Fprintf(&b, "\n### %s (%s)\n```%s\n%s\n```\n", f.Name, LanguageLabel(f.Language), f.Language, f.Content)
	}

	b.WriteString("\n## Review\n\n")
	fmt.Fprintf(&b, "Overall summary: %s\n", batch.OverallSummary)
	for _, name := range SortedFileNames(files, batch) {
		r := batch.FileReviews[name]
		fmt.Fprintf(&b, "\n### %s\n%s\n", name, r.OverallSummary)
		for _, fb := range r.Feedback {
			fmt.Fprintf(&b, "- [%s/%s] line %d: %s", fb.Severity, fb.Category, fb.Line, fb.Description)
			if fb.Suggestion != "" {
				fmt.Fprintf(&b, " Suggestion: %s", fb.Suggestion)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
