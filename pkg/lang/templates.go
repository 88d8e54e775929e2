package lang

import (
	"fmt"

	"github.com/noshhq/nosh/pkg/models"
)

// TemplateKey identifies an assistant-facing message template.
type TemplateKey string

// Template keys. Failure-reason driven messages reuse the FailureReason
// string; the remaining keys cover the non-failure assistant messages.
const (
	KeyGateFail   TemplateKey = "GATE_FAIL"
	KeyClarify    TemplateKey = "CLARIFY_LOW_CONFIDENCE"
	KeyNeedAnchor TemplateKey = "CLARIFY_MISSING_ANCHOR"
	KeyNarration  TemplateKey = "GENERIC_QUERY_NARRATION"
	KeySummary    TemplateKey = "SUMMARY"
)

// templates maps key → language → fixed template. Assistant messages are
// never phrased by an LLM: timeouts, clarifications and gate failures all
// come from this table. Missing languages fall back to English.
var templates = map[TemplateKey]map[string]string{
	KeyGateFail: {
		"en": "I can only help with finding restaurants and food. Try asking about a place to eat.",
		"he": "אני יכול לעזור רק בחיפוש מסעדות ואוכל. נסו לשאול על מקום לאכול בו.",
	},
	KeyClarify: {
		"en": "I'm not sure what you're looking for. Could you tell me what kind of food or restaurant you want?",
		"he": "לא בטוח שהבנתי מה אתם מחפשים. תוכלו לפרט איזה אוכל או מסעדה תרצו?",
	},
	KeyNeedAnchor: {
		"en": "Where should I search? Add a city, a street or a landmark to your query.",
		"he": "איפה לחפש? הוסיפו עיר, רחוב או נקודת ציון לשאילתה.",
	},
	TemplateKey(models.FailureLocationRequired): {
		"en": "I need a location to search near you. Please enable location sharing or name a place.",
		"he": "אני צריך מיקום כדי לחפש לידך. אפשרו שיתוף מיקום או ציינו מקום.",
	},
	TemplateKey(models.FailureNoResults): {
		"en": "I couldn't find matching restaurants. Try loosening the filters or a different area.",
		"he": "לא מצאתי מסעדות מתאימות. נסו לרכך את הסינון או אזור אחר.",
	},
	TemplateKey(models.FailureTimeout): {
		"en": "The search took too long. Please try again in a moment.",
		"he": "החיפוש נמשך יותר מדי זמן. נסו שוב בעוד רגע.",
	},
	TemplateKey(models.FailureGoogleAPIError): {
		"en": "The places service is unavailable right now. Please try again shortly.",
		"he": "שירות המקומות אינו זמין כרגע. נסו שוב בקרוב.",
	},
	TemplateKey(models.FailureGeocodingFailed): {
		"en": "I couldn't locate that landmark. Try a more specific name.",
		"he": "לא הצלחתי לאתר את נקודת הציון. נסו שם מדויק יותר.",
	},
	KeyNarration: {
		"en": "Searching for restaurants that match your request…",
		"he": "מחפש מסעדות שמתאימות לבקשה שלך…",
	},
	KeySummary: {
		"en": "Found %d restaurants for you. Opening hours may change — check before you go.",
		"he": "מצאתי עבורך %d מסעדות. שעות הפתיחה עשויות להשתנות — כדאי לוודא לפני שמגיעים.",
	},
}

// Message returns the fixed template for (key, language), falling back to
// English when the language has no entry.
func Message(key TemplateKey, language string) string {
	byLang, ok := templates[key]
	if !ok {
		return ""
	}
	if msg, ok := byLang[language]; ok {
		return msg
	}
	return byLang["en"]
}

// Summary formats the result-count summary in the given language.
func Summary(language string, count int) string {
	return fmt.Sprintf(Message(KeySummary, language), count)
}
