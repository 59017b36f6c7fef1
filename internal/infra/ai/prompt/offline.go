package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// OfflineExaminer composes the examination JSON locally from the
// indicator set. Dipakai waktu OpenAI tidak dikonfigurasi; output
// mengikuti schema yang sama dengan jawaban model.
type OfflineExaminer struct{}

type offlineInput struct {
	Risk       string  `json:"risk"`
	Confidence float64 `json:"confidence"`
	Indicators []struct {
		Kind       string  `json:"kind"`
		Confidence float64 `json:"confidence"`
		Evidence   string  `json:"evidence"`
		Error      bool    `json:"error,omitempty"`
	} `json:"indicators"`
}

type keyIndicator struct {
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
	Note       string  `json:"note"`
}

type examinationOut struct {
	Verdict       string         `json:"verdict"`
	Confidence    float64        `json:"confidence"`
	KeyIndicators []keyIndicator `json:"key_indicators"`
	Narrative     string         `json:"narrative"`
	NextSteps     []string       `json:"next_steps"`
}

func (OfflineExaminer) Examine(ctx context.Context, findings string) (string, error) {
	var in offlineInput
	if err := json.Unmarshal([]byte(findings), &in); err != nil {
		return "", fmt.Errorf("parse findings: %w", err)
	}

	out := examinationOut{Confidence: in.Confidence}
	switch in.Risk {
	case "CRITICAL":
		out.Verdict = "tampered-confirmed"
	case "HIGH":
		out.Verdict = "tampered-likely"
	case "MEDIUM":
		out.Verdict = "inconclusive"
	default:
		out.Verdict = "authentic-likely"
	}

	// Indicator paling kuat dulu, error-flagged dilewati
	kept := make([]keyIndicator, 0, len(in.Indicators))
	for _, ind := range in.Indicators {
		if ind.Error {
			continue
		}
		note := ind.Evidence
		if len(note) > 120 {
			note = note[:120] + "..."
		}
		kept = append(kept, keyIndicator{Kind: ind.Kind, Confidence: ind.Confidence, Note: note})
	}
	sort.SliceStable(kept, func(a, b int) bool { return kept[a].Confidence > kept[b].Confidence })
	if len(kept) > 5 {
		kept = kept[:5]
	}
	out.KeyIndicators = kept

	switch {
	case len(kept) == 0:
		out.Narrative = "No usable tampering indicators were produced for this document. The automated checks either found nothing or could not run, so the document is treated as unremarkable pending manual review."
		out.NextSteps = []string{"Review the job error journal for failed detectors", "Re-run the analysis if the source file was truncated"}
	case out.Verdict == "authentic-likely":
		out.Narrative = fmt.Sprintf("The automated checks surfaced %d minor signal(s), none strong enough to suggest deliberate manipulation. The document is consistent with normal editing history.", len(kept))
		out.NextSteps = []string{"Archive the result with the custody export", "No escalation required"}
	default:
		kinds := make([]string, 0, len(kept))
		for _, k := range kept {
			kinds = append(kinds, k.Kind)
		}
		out.Narrative = fmt.Sprintf("The document shows %d tampering signal(s), led by %s. Combined they put the aggregate confidence at %.2f, which is why the case is flagged %s.",
			len(kept), strings.Join(kinds, ", "), in.Confidence, strings.ToLower(in.Risk))
		out.NextSteps = []string{
			"Request the original source document for side-by-side comparison",
			"Export the custody chain before sharing the file further",
			"Escalate to a human examiner for the flagged regions",
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
