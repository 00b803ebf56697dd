// -----------------------------------------------------------------------
// Prompt Builder - deterministic instructions for matching and resolution
// -----------------------------------------------------------------------

package prompts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/recon/internal/models"
)

// ErrMissingTable is returned when a table required by a prompt is nil.
var ErrMissingTable = errors.New("required table is missing")

// DefaultMatchProcedure is embedded when no procedure text is supplied for matching.
const DefaultMatchProcedure = `No procedure provided. Use standard reconciliation rules:
1. Match transactions based on Account Number, Transaction Code, and Date
2. Compare amounts ensuring Debit matches sum of absolute EDW amounts
3. Flag partial matches when amounts don't fully reconcile`

// DefaultResolutionProcedure is embedded when no procedure text is supplied for resolution.
const DefaultResolutionProcedure = `No procedure provided. Use general resolution guidelines:
1. Check for date mismatches within a 3-day window.
2. Look for amount splits or combined entries.
3. Verify similar transaction codes.
4. Investigate currency conversion differences.
5. Check for reversed or correction entries.`

// matchPromptTemplate arguments: procedure, header, column count, EDW csv, Journal csv.
const matchPromptTemplate = `You are a finance assistant reconciling bank transactions. Use the following procedure when analyzing:

### Procedure:
%s

Now, match Journal and EDW transactions using:
- Account Number, Tran Code, and Date match
- Debit = Sum of absolute EDW amounts

**Instructions:**
- Output ONLY a CSV table with EXACTLY these columns, in this order, and NO extra columns or text:
%s
- For the Status column, use ONLY these values:
  - MATCHED for reconciled transactions
  - UNMATCHED for transactions that don't match
  - PARTIAL for partially matched transactions
- If a field contains a comma, wrap it in double quotes.
- Do NOT add any explanations, markdown, code blocks, summary lines, or extra headers.
- Every row must have exactly %d columns, matching the header above.

### EDW:
%s
### Journal:
%s
Remember: Output ONLY the CSV data with the exact columns specified, no additional text or explanations.
`

// resolutionPromptTemplate arguments: header, column count, procedure, unmatched csv.
const resolutionPromptTemplate = `You are a bank reconciliation expert. Your job is to analyze unmatched transactions and suggest resolutions.

**Instructions:**
- Output ONLY a CSV table with EXACTLY these columns, in this order, and NO extra columns or text:
%s
- If a field contains a comma, wrap it in double quotes.
- Do NOT add any explanations, markdown, code blocks, summary lines, or extra headers.
- Every row must have exactly %d columns, matching the header above.

### Procedure:
%s

### Unmatched Transactions:
%s
Remember: Output ONLY the CSV data, with the exact columns and order specified above. No extra text, explanations, or formatting.
`

// BuildMatchPrompt renders the matching instructions for the EDW and Journal tables.
func BuildMatchPrompt(procedure string, edw, journal *models.Table) (string, error) {
	if edw == nil {
		return "", fmt.Errorf("%w: EDW", ErrMissingTable)
	}
	if journal == nil {
		return "", fmt.Errorf("%w: Journal", ErrMissingTable)
	}

	edwCSV, err := edw.CSV()
	if err != nil {
		return "", fmt.Errorf("failed to serialize EDW: %w", err)
	}
	journalCSV, err := journal.CSV()
	if err != nil {
		return "", fmt.Errorf("failed to serialize Journal: %w", err)
	}

	return fmt.Sprintf(matchPromptTemplate,
		procedureOrDefault(procedure, DefaultMatchProcedure),
		models.ReconciliationSchema.Header(),
		models.ReconciliationSchema.Width(),
		edwCSV,
		journalCSV,
	), nil
}

// BuildResolutionPrompt renders the resolution instructions for the unmatched rows.
func BuildResolutionPrompt(procedure string, unmatched *models.Table) (string, error) {
	if unmatched == nil {
		return "", fmt.Errorf("%w: unmatched transactions", ErrMissingTable)
	}

	unmatchedCSV, err := unmatched.CSV()
	if err != nil {
		return "", fmt.Errorf("failed to serialize unmatched transactions: %w", err)
	}

	return fmt.Sprintf(resolutionPromptTemplate,
		models.SuggestionSchema.Header(),
		models.SuggestionSchema.Width(),
		procedureOrDefault(procedure, DefaultResolutionProcedure),
		unmatchedCSV,
	), nil
}

// ProcedureStats reports whether a usable procedure was supplied and its word count.
func ProcedureStats(procedure string) (words int, provided bool) {
	if strings.TrimSpace(procedure) == "" {
		return 0, false
	}
	return len(strings.Fields(procedure)), true
}

// procedureOrDefault treats whitespace-only text as absent.
func procedureOrDefault(procedure, fallback string) string {
	if strings.TrimSpace(procedure) == "" {
		return fallback
	}
	return procedure
}
