package router

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Intent is the coarse topic of a user message.
type Intent string

const (
	IntentDocuments Intent = "documents"
	IntentKPI       Intent = "kpi"
	IntentReport    Intent = "report"
	IntentAccount   Intent = "account"
	IntentSupport   Intent = "support"
	IntentGeneral   Intent = "general"
)

var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentDocuments, []string{"document", "fichier", "upload", "televers", "piece jointe", "justificatif"}},
	{IntentKPI, []string{"kpi", "indicateur", "objectif", "mesure", "metrique"}},
	{IntentReport, []string{"rapport", "export", "pdf", "excel", "bilan"}},
	{IntentAccount, []string{"mot de passe", "connexion", "compte", "identifiant", "email"}},
	{IntentSupport, []string{"bug", "erreur", "probleme", "bloque", "ne marche pas", "ne fonctionne pas"}},
}

// Classify assigns the first intent whose keywords appear in the message.
func Classify(message string) Intent {
	normalized := Normalize(message)
	for _, candidate := range intentKeywords {
		for _, kw := range candidate.keywords {
			if strings.Contains(normalized, kw) {
				return candidate.intent
			}
		}
	}
	return IntentGeneral
}

// Normalize lowercases, strips accents and punctuation and collapses whitespace.
func Normalize(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
