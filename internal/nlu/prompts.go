package nlu

import (
	"strings"
	"time"
)

// buildClassifyPrompt constructs the system instructions for intent
// classification. The contract enumerates every output field with explicit
// types; the amount invariant is spelled out because downstream validation
// rejects zero-amount records.
func buildClassifyPrompt(contextWindow string, now time.Time) string {
	var b strings.Builder

	b.WriteString("You are the parser for a personal accounting chat bot.\n")
	b.WriteString("Classify the user's message and extract structured financial data.\n\n")

	b.WriteString("Current date: " + now.Format("2006-01-02") + "\n\n")

	b.WriteString("Recent records for this user (newest first, for resolving references\n")
	b.WriteString("like \"the last one\" or \"the lunch entry\"):\n")
	b.WriteString(contextWindow + "\n\n")

	b.WriteString("Output STRICT JSON only (no comments, no extra text, no Markdown fences).\n")
	b.WriteString("Output a single JSON object with these fields:\n")
	b.WriteString("- \"intent\": string, one of \"RECORD\" | \"QUERY\" | \"MODIFY\" | \"DELETE\" | \"CHAT\"\n")
	b.WriteString("- \"amount\": number. MUST be 0 for every intent except RECORD,\n")
	b.WriteString("  and for MODIFY when the user is not changing the amount.\n")
	b.WriteString("- \"category\": string (e.g. \"food\", \"transport\", \"shopping\", \"salary\", \"other\")\n")
	b.WriteString("- \"description\": string, the item description or empty\n")
	b.WriteString("- \"date\": string, ISO format \"YYYY-MM-DD\", the transaction's effective date\n")
	b.WriteString("- \"type\": string, \"EXPENSE\" or \"INCOME\"\n")
	b.WriteString("- \"query_start_date\": string \"YYYY-MM-DD\", REQUIRED for QUERY, else empty\n")
	b.WriteString("- \"query_end_date\": string \"YYYY-MM-DD\", REQUIRED for QUERY, else empty\n")
	b.WriteString("- \"query_type\": string, \"EXPENSE\" | \"INCOME\" | \"ALL\", for QUERY\n")
	b.WriteString("- \"target_id\": integer, the ID of the record a MODIFY/DELETE refers to,\n")
	b.WriteString("  taken from the recent records list above; 0 if the user did not\n")
	b.WriteString("  identify a specific record\n")
	b.WriteString("- \"reply\": string, a short, warm, natural-language reply to the user\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("1. A message that states spending or income with an amount is RECORD.\n")
	b.WriteString("   Amount must be positive. Infer type from context; plain purchases\n")
	b.WriteString("   are EXPENSE.\n")
	b.WriteString("2. A question about history, totals or balance is QUERY.\n")
	b.WriteString("   Resolve relative dates (\"today\", \"yesterday\", \"this month\")\n")
	b.WriteString("   against the current date above.\n")
	b.WriteString("3. A request to change or remove a record is MODIFY or DELETE.\n")
	b.WriteString("   Match it to a record in the list above when possible.\n")
	b.WriteString("4. Anything else is CHAT.\n")
	b.WriteString("5. Return ONLY the JSON object.\n")

	return b.String()
}

// buildSummarizePrompt constructs the instructions for the Tier-1
// conversational query summary.
func buildSummarizePrompt(req SummaryRequest) string {
	var b strings.Builder

	b.WriteString("You are the voice of a personal accounting chat bot.\n")
	b.WriteString("Write a short, friendly reply (2-4 sentences, plain text) summarizing\n")
	b.WriteString("the user's query result below. Mention the total and anything notable.\n\n")

	b.WriteString("Query type: " + string(req.QueryType) + "\n")
	if !req.Start.IsZero() {
		b.WriteString("From: " + req.Start.Format("2006-01-02") + "\n")
	}
	if !req.End.IsZero() {
		b.WriteString("To: " + req.End.Format("2006-01-02") + "\n")
	}

	b.WriteString("\nResult:\n")
	for _, line := range req.Lines {
		b.WriteString(line + "\n")
	}

	return b.String()
}
