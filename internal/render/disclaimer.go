// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"golang.org/x/text/language"
)

// =============================================================================
// FINANCIAL DISCLAIMER
// =============================================================================

// supportedTags lists the languages the disclaimer is localized for. The
// matcher falls back to English for everything else.
var supportedTags = []language.Tag{
	language.English, // first tag is the fallback
	language.Spanish,
	language.Thai,
	language.SimplifiedChinese,
}

var disclaimerMatcher = language.NewMatcher(supportedTags)

// disclaimers keyed by the index of the matched tag in supportedTags.
var disclaimers = []string{
	"This analysis is for informational purposes only and is not financial advice.",
	"Este análisis es solo informativo y no constituye asesoramiento financiero.",
	"บทวิเคราะห์นี้มีไว้เพื่อให้ข้อมูลเท่านั้น ไม่ใช่คำแนะนำทางการเงิน",
	"本分析仅供参考，不构成投资建议。",
}

// adviceTerms are content markers that make a message read like actionable
// investment advice, grouped roughly by language. Matching is case-folded
// substring search; precision is not critical since the disclaimer is
// harmless when over-applied but required when advice slips through.
var adviceTerms = []string{
	// English
	"you should buy", "you should sell", "recommend buying", "recommend selling",
	"strong buy", "strong sell", "price target",
	// Spanish
	"deberías comprar", "deberías vender", "recomiendo comprar", "recomiendo vender",
	// Thai
	"ควรซื้อ", "ควรขาย",
	// Chinese
	"建议买入", "建议卖出",
}

// NeedsDisclaimer reports whether the content reads like actionable advice.
func NeedsDisclaimer(content string) bool {
	lowered := strings.ToLower(content)
	for _, term := range adviceTerms {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}

// Disclaimer returns the localized disclaimer for a BCP 47 language tag.
// Unknown or malformed tags fall back to English.
func Disclaimer(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return disclaimers[0]
	}
	_, index, _ := disclaimerMatcher.Match(tag)
	return disclaimers[index]
}
