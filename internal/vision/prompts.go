package vision

import (
	"fmt"
	"strings"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
)

const systemPrompt = "You are a forensic media reviewer for a brand-risk team. " +
	"Answer with a single JSON object and nothing else."

const ipInstructions = `Inspect the image for intellectual property that the publisher may not own.
Look for recognizable characters, logos, trademarks, copyrighted artwork and celebrity likenesses.

Respond with JSON in exactly this shape:
{"detections":[{"category":"character|logo|trademark|artwork|celebrity|other","name":"...","severity":"low|medium|high|critical","confidence":0-100,"description":"..."}],"summary":"..."}

Use an empty "detections" array when nothing is found. Confidence is how sure you are that the item is present and protected.`

const safetyInstructions = `Inspect the image for brand-safety problems.
Look for violence, adult content, hate symbols, drugs, weapons, self-harm and anything that breaks the brand rules below.

Respond with JSON in exactly this shape:
{"violations":[{"type":"violence|adult|hate|drugs|weapons|self_harm|brand_guideline|other","severity":"low|medium|high|critical","confidence":0-100,"description":"..."}],"summary":"..."}

Use an empty "violations" array when the image is safe.`

func ipPrompt(g *model.BrandGuideline) string {
	if g == nil || g.Context == "" {
		return ipInstructions
	}
	// the brand's own marks are not exposure
	return ipInstructions + fmt.Sprintf("\n\nThe asset belongs to %q (%s). Do not report that brand's own marks.", g.Name, g.Context)
}

func safetyPrompt(g *model.BrandGuideline) string {
	if g == nil {
		return safetyInstructions
	}

	var b strings.Builder
	b.WriteString(safetyInstructions)
	fmt.Fprintf(&b, "\n\nBrand rules for %q:", g.Name)
	if g.Context != "" {
		fmt.Fprintf(&b, "\n- Context: %s", g.Context)
	}
	if len(g.ProhibitedKeywords) > 0 {
		fmt.Fprintf(&b, "\n- Must not depict or reference: %s", strings.Join(g.ProhibitedKeywords, ", "))
	}
	if len(g.RequiredElements) > 0 {
		fmt.Fprintf(&b, "\n- Report a brand_guideline violation if any of these is missing: %s", strings.Join(g.RequiredElements, ", "))
	}
	return b.String()
}
