package analysis

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Placeholders written by the cleaner in place of missing values.
const (
	NotProvided      = "Non renseigné"
	PlaceholderEmail = "non.renseigne@example.com"
)

// Canonical column names produced by the cleaner.
const (
	ColNom        = "Nom"
	ColPrenom     = "Prénom"
	ColPhone      = "phone"
	ColEmail      = "email"
	ColAdresse    = "ADRESSE"
	ColVille      = "VILLE"
	ColSpecialite = "SPECIALITE"
	ColSectAct    = "SECT ACT"
	ColSemaine    = "Semaine"
	ColStructure  = "STRUCTURE"
	ColNomCompte  = "Nom du compte"
	ColPotentiel  = "POTENTIEL"
)

// ColumnSynonyms maps a folded column name (see FoldKey) to its canonical
// name. Every canonical name also maps to itself so a cleaned file keeps
// its columns on a second pass.
var ColumnSynonyms = map[string]string{
	"nom":           ColNom,
	"prenom":        ColPrenom,
	"telephone":     ColPhone,
	"tel":           ColPhone,
	"phone":         ColPhone,
	"mail":          ColEmail,
	"email":         ColEmail,
	"e-mail":        ColEmail,
	"adresse":       ColAdresse,
	"ville":         ColVille,
	"specialite":    ColSpecialite,
	"sect act":      ColSectAct,
	"semaine":       ColSemaine,
	"structure":     ColStructure,
	"nom du compte": ColNomCompte,
	"potentiel":     ColPotentiel,
}

// DefaultValues gives the fill value for a missing cell by column type.
// Date columns are filled with the cleaning date instead.
var DefaultValues = map[ColumnType]string{
	TypeNumber: "0",
	TypeEmail:  PlaceholderEmail,
	TypePhone:  NotProvided,
	TypeText:   NotProvided,
	TypeEmpty:  NotProvided,
}

// DefaultValue returns the fill value for a missing cell of type t.
func DefaultValue(t ColumnType, now time.Time) string {
	if t == TypeDate {
		return now.Format(time.DateOnly)
	}
	if v, ok := DefaultValues[t]; ok {
		return v
	}
	return NotProvided
}

// IsPlaceholder reports whether v is one of the cleaner's fill markers.
func IsPlaceholder(v string) bool {
	return v == NotProvided || v == PlaceholderEmail
}

// CanonicalColumn looks a column name up in ColumnSynonyms, ignoring case,
// accents, underscores and repeated spaces.
func CanonicalColumn(name string) (string, bool) {
	canonical, ok := ColumnSynonyms[FoldKey(name)]
	return canonical, ok
}

// FoldKey lowercases s, strips diacritics and collapses underscores and
// whitespace runs to single spaces.
func FoldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.ReplaceAll(folded, "_", " "))
	return strings.Join(strings.Fields(folded), " ")
}
