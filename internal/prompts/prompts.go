// Package prompts renders the provider prompts. Nothing here performs I/O.
package prompts

import (
	"fmt"
	"strings"

	"github.com/kisaansahayak/sahayak/pkg/models"
)

// Params carries what every template needs besides its own text inputs.
type Params struct {
	Language   models.Language
	Location   string
	Complexity models.Complexity
	// Detail is set when the caller or the message asked for more detail.
	Detail bool
}

const persona = "You are Kisaan Sahayak, an agricultural advisor for Indian farmers."

// LanguageDirective returns the reply-language instruction line.
func LanguageDirective(lang models.Language) string {
	switch lang {
	case models.LanguageHindi:
		return "Reply in Hindi."
	case models.LanguageMarathi:
		return "Reply in Marathi."
	case models.LanguageTamil:
		return "Reply in Tamil."
	case models.LanguageTelugu:
		return "Reply in Telugu."
	case models.LanguagePunjabi:
		return "Reply in Punjabi."
	case models.LanguageEnglish:
		return "Reply in English."
	default:
		return "Reply in the same language as the user question."
	}
}

// LocationLine returns the location instruction line.
func LocationLine(location string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		return "Location not available."
	}
	return fmt.Sprintf("Location: %s.", location)
}

// detailLines holds the length target for one template, by tier.
type detailLines struct {
	detail, high, medium, low string
}

func (d detailLines) pick(p Params) string {
	switch {
	case p.Detail:
		return d.detail
	case p.Complexity == models.ComplexityHigh:
		return d.high
	case p.Complexity == models.ComplexityMedium:
		return d.medium
	default:
		return d.low
	}
}

var (
	specialistDetail = detailLines{
		detail: "Provide detailed guidance in 5-7 bullet points. Each bullet should be 2-3 sentences.",
		high:   "Provide detailed guidance in 5-7 bullet points. Each bullet should be 2-3 sentences (140-220 words total).",
		medium: "Provide helpful detail in 4-6 bullet points. Each bullet should be 2-3 sentences (100-160 words total).",
		low:    "Provide clear guidance in 3-5 bullet points. Each bullet should be 2-3 sentences (80-120 words total).",
	}
	refineDetail = detailLines{
		detail: "Expand the draft. Use 5-7 short bullet points with 2-3 sentences each.",
		high:   "Provide detailed guidance (140-220 words). Use 5-7 short bullet points with 2-3 sentences each.",
		medium: "Provide helpful detail (100-160 words). Use 4-6 short bullet points with 2-3 sentences each.",
		low:    "Provide clear guidance (80-120 words). Use 3-5 short bullet points with 2-3 sentences each.",
	}
	synthesisDetail = detailLines{
		detail: "Provide detailed guidance using 5-7 bullet points with 2-3 sentences each.",
		high:   "Provide detailed guidance (140-220 words) using 5-7 bullet points with 2-3 sentences each.",
		medium: "Provide helpful detail (100-160 words) using 4-6 bullet points with 2-3 sentences each.",
		low:    "Provide clear guidance (80-120 words) using 3-5 bullet points with 2-3 sentences each.",
	}
)

// GenericDraft stands in for a specialist answer when none is available
// in the rewrite pipeline.
const GenericDraft = "No specialist draft is available. Answer using established best agronomy practice for the question and region, and recommend confirming with the local agriculture officer."

// Specialist renders the question sent to the domain specialist.
func Specialist(question string, p Params) string {
	var b strings.Builder
	b.WriteString(persona + "\n\n")
	b.WriteString("Write in a friendly, practical tone.\n")
	b.WriteString("Use 3-7 short bullet points depending on question complexity. Each bullet is a short paragraph (2-3 sentences).\n")
	b.WriteString("Use plain text bullets like \"- \".\n")
	b.WriteString("Avoid unsafe fixed pesticide dosage claims; advise label-based use and local agri officer confirmation.\n")
	b.WriteString(LanguageDirective(p.Language) + "\n")
	b.WriteString(LocationLine(p.Location) + "\n")
	b.WriteString(specialistDetail.pick(p) + "\n\n")
	b.WriteString("Question: " + question)
	return b.String()
}

// Refine asks the general model to improve a draft answer.
func Refine(question, draft string, p Params) string {
	var b strings.Builder
	b.WriteString("Please refine the draft answer for clarity and usefulness.\n\n")
	b.WriteString(refineDetail.pick(p) + "\n")
	b.WriteString("Use plain text bullets like \"- \". Each bullet should be 2-3 sentences.\n")
	b.WriteString("Do not add an intro sentence before the bullets.\n")
	b.WriteString("Keep agricultural accuracy. Avoid uncertain pesticide dosage claims; defer to label instructions and local expert confirmation.\n")
	b.WriteString(LanguageDirective(p.Language) + "\n")
	b.WriteString(LocationLine(p.Location) + "\n\n")
	b.WriteString("Question:\n" + question + "\n\n")
	b.WriteString("Draft:\n" + draft)
	return b.String()
}

// Triage asks the general model whether the specialist is needed. The
// reply must be a two-key JSON object.
func Triage(question string, p Params) string {
	var b strings.Builder
	b.WriteString("You are deciding whether to consult an agriculture specialist model (Dhenu).\n\n")
	b.WriteString("Return ONLY strict JSON with these keys:\n")
	b.WriteString("- \"dhenu_needed\": boolean\n")
	b.WriteString("- \"dhenu_question\": string (empty string if not needed)\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Dhenu is only for agriculture domain knowledge.\n")
	b.WriteString("- If the question is mixed, extract only the agriculture part for Dhenu.\n")
	b.WriteString("- If not needed, set \"dhenu_question\" to \"\".\n")
	b.WriteString("- Write \"dhenu_question\" in the same language as the user.\n")
	b.WriteString("- Do not add any extra keys or commentary.\n")
	b.WriteString("- Never suggest fixed pesticide dosages; those defer to label instructions and local expert confirmation.\n\n")
	b.WriteString(LanguageDirective(p.Language) + "\n")
	b.WriteString(LocationLine(p.Location) + "\n\n")
	b.WriteString("User question:\n" + question)
	return b.String()
}

// Synthesis asks the general model for the final answer, grounded on the
// specialist answer when one is available.
func Synthesis(question, specialistAnswer string, p Params) string {
	var b strings.Builder
	b.WriteString(persona + "\n\n")
	b.WriteString(synthesisDetail.pick(p) + "\n")
	b.WriteString("Use plain text bullets like \"- \".\n")
	b.WriteString("Do not add an intro sentence before the bullets.\n")
	b.WriteString("Keep agricultural accuracy. Avoid uncertain pesticide dosage claims; defer to label instructions and local expert confirmation.\n")
	b.WriteString(LanguageDirective(p.Language) + "\n")
	b.WriteString(LocationLine(p.Location) + "\n\n")
	b.WriteString("Question:\n" + question + "\n\n")
	if strings.TrimSpace(specialistAnswer) != "" {
		b.WriteString("Dhenu (agriculture specialist) answer:\n" + specialistAnswer + "\n\n")
		b.WriteString("Use Dhenu as the authoritative source for agricultural facts.")
	} else {
		b.WriteString("No Dhenu answer available. Use general best practices and avoid unsafe pesticide dosage claims.")
	}
	return b.String()
}

// Rewrite asks the general model to fix the grammar of a question without
// changing its meaning or language.
func Rewrite(question string, p Params) string {
	var b strings.Builder
	b.WriteString("Rewrite the farmer's question below so it is grammatical and unambiguous.\n")
	b.WriteString("Keep the original meaning, crop names, quantities and language. Do not answer it.\n")
	b.WriteString("Do not introduce pesticide dosages; those defer to label instructions and local expert confirmation.\n")
	b.WriteString("Return only the rewritten question with no commentary.\n")
	b.WriteString(LanguageDirective(p.Language) + "\n")
	b.WriteString(LocationLine(p.Location) + "\n\n")
	b.WriteString("Question:\n" + question)
	return b.String()
}

// Elaboration expands a specific earlier answer into longer bullets.
func Elaboration(question, previousAnswer string, p Params) string {
	var b strings.Builder
	b.WriteString("You are expanding a previous answer into more detail.\n\n")
	b.WriteString("Write ONLY bullets (no intro sentence).\n")
	b.WriteString("Use 3-5 bullets. Each bullet must be 3-4 sentences.\n")
	b.WriteString("Use plain text bullets like \"- \".\n")
	b.WriteString("Keep agricultural accuracy. Avoid uncertain pesticide dosage claims; defer to label instructions and local expert confirmation.\n")
	b.WriteString(LanguageDirective(p.Language) + "\n")
	b.WriteString(LocationLine(p.Location) + "\n\n")
	b.WriteString("Question:\n" + question + "\n\n")
	b.WriteString("Previous answer:\n" + previousAnswer)
	return b.String()
}
