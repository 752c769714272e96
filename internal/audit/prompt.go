package audit

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docaudit/internal/chunker"
)

const AuditPrompt = `You are a regulatory affairs auditor reviewing a pharmaceutical product registration dossier.
You receive one part of the dossier's extracted text at a time. Page boundaries are marked with
"[PAGE n]" markers; use them to report page numbers.

For the part you receive, identify:
1. Every regulatory stage/section present (e.g. Certificate of Good Manufacturing Practice,
   Certificate of Analysis, stability studies, labeling, manufacturing formula, specifications).
2. Problems in those sections: expired or missing signatures, inconsistent lot numbers, dates or
   product names, missing data, illegible or incomplete documents.
3. Checklist stages that are clearly absent from this part.

Return a JSON object with exactly these fields:

- "stages_found": array of objects with
    "stage_code" (string, the checklist code when one matches, otherwise a short code of your own),
    "stage_name" (string),
    "pages" (array of integers, the [PAGE n] numbers where the stage appears),
    "page_range" (string, "N" or "N-M"),
    "status" (one of "complete", "incomplete", "missing_info"),
    "details" (string, short justification)
- "stages_missing": array of objects with "stage_code", "stage_name", "module", "is_required" (boolean)
- "problems_found": array of objects with
    "type" (one of "critical", "warning", "info"),
    "description" (string),
    "page" (integer),
    "stage_code" (string, optional),
    "recommendation" (string)
- "chunk_summary": one or two sentences summarizing this part

Rules:
- Only report what the text supports; do not guess pages.
- Use the checklist codes below whenever a stage matches one of them.
- Report a stage as "missing_info" when it is present but lacks required data.
- Use empty arrays when there is nothing to report.

Respond with ONLY the JSON object, no other text.`

// BuildSystemPrompt returns the audit instructions, listing the checklist
// stages when the lab supplied a template.
func BuildSystemPrompt(checklist []ChecklistStage) string {
	if len(checklist) == 0 {
		return AuditPrompt
	}

	var sb strings.Builder
	sb.WriteString(AuditPrompt)
	sb.WriteString("\n\nChecklist stages:\n")
	for _, st := range checklist {
		required := "optional"
		if st.IsRequired {
			required = "required"
		}
		fmt.Fprintf(&sb, "- %s | %s | module %s | %s\n", st.StageCode, st.StageName, st.Module, required)
	}
	return sb.String()
}

// BuildChunkPrompt creates the user message for one chunk, including the
// product context and the chunk's position in the document.
func BuildChunkPrompt(req Request, chunk chunker.Chunk) string {
	var sb strings.Builder
	sb.WriteString("---\n")
	if req.ProductName != "" {
		fmt.Fprintf(&sb, "Product: %q\n", req.ProductName)
	}
	if req.Manufacturer != "" {
		fmt.Fprintf(&sb, "Manufacturer: %q\n", req.Manufacturer)
	}
	if req.Filename != "" {
		fmt.Fprintf(&sb, "Document: %q\n", req.Filename)
	}
	fmt.Fprintf(&sb, "Part %d of %d\n", chunk.Part(), chunk.Total)
	sb.WriteString("---\n")
	sb.WriteString(chunk.Text)
	return sb.String()
}
