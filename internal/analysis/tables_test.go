package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalColumn(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"nom", ColNom, true},
		{"NOM", ColNom, true},
		{"Prénom", ColPrenom, true},
		{"PRENOM", ColPrenom, true},
		{"téléphone", ColPhone, true},
		{"Tel", ColPhone, true},
		{"E-mail", ColEmail, true},
		{"Mail", ColEmail, true},
		{"Spécialité", ColSpecialite, true},
		{"sect_act", ColSectAct, true},
		{"Nom  du   compte", ColNomCompte, true},
		{"potentiel", ColPotentiel, true},
		{"code postal", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CanonicalColumn(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColumnSynonyms_CanonicalNamesMapToThemselves(t *testing.T) {
	for _, canonical := range ColumnSynonyms {
		got, ok := CanonicalColumn(canonical)
		assert.True(t, ok, canonical)
		assert.Equal(t, canonical, got)
	}
}

func TestDefaultValue(t *testing.T) {
	now := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	assert.Equal(t, "0", DefaultValue(TypeNumber, now))
	assert.Equal(t, PlaceholderEmail, DefaultValue(TypeEmail, now))
	assert.Equal(t, NotProvided, DefaultValue(TypePhone, now))
	assert.Equal(t, NotProvided, DefaultValue(TypeText, now))
	assert.Equal(t, "2024-01-02", DefaultValue(TypeDate, now))
	assert.Equal(t, NotProvided, DefaultValue(ColumnType("unknown"), now))
}

func TestFoldKey(t *testing.T) {
	assert.Equal(t, "specialite", FoldKey("  SPÉCIALITÉ "))
	assert.Equal(t, "nom du compte", FoldKey("Nom_du_Compte"))
}
