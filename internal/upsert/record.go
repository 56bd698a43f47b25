package upsert

import (
	"strings"
	"time"
)

// Field pairs a canonical field name with its snake_case column in the
// medecin table.
type Field struct {
	Name   string
	Column string
}

// Fields lists every writable medecin field in table order.
var Fields = []Field{
	{Name: "Nom", Column: "nom"},
	{Name: "Prénom", Column: "prenom"},
	{Name: "SECT ACT", Column: "sect_act"},
	{Name: "Semaine", Column: "semaine"},
	{Name: "STRUCTURE", Column: "structure"},
	{Name: "Nom du compte", Column: "nom_compte"},
	{Name: "SPECIALITE", Column: "specialite"},
	{Name: "POTENTIEL", Column: "potentiel"},
	{Name: "VILLE", Column: "ville"},
	{Name: "ADRESSE", Column: "adresse"},
}

// ColumnFor resolves a canonical field name or a column name to the column
// name. Matching is case-insensitive.
func ColumnFor(field string) (string, bool) {
	for _, f := range Fields {
		if strings.EqualFold(f.Name, field) || strings.EqualFold(f.Column, field) {
			return f.Column, true
		}
	}
	return "", false
}

// Medecin is an incoming physician record keyed by the canonical fields.
type Medecin struct {
	Nom        string `json:"nom"`
	Prenom     string `json:"prenom"`
	SectAct    string `json:"sect_act"`
	Semaine    string `json:"semaine"`
	Structure  string `json:"structure"`
	NomCompte  string `json:"nom_compte"`
	Specialite string `json:"specialite"`
	Potentiel  string `json:"potentiel"`
	Ville      string `json:"ville"`
	Adresse    string `json:"adresse"`
}

func (m *Medecin) ref(column string) *string {
	switch column {
	case "nom":
		return &m.Nom
	case "prenom":
		return &m.Prenom
	case "sect_act":
		return &m.SectAct
	case "semaine":
		return &m.Semaine
	case "structure":
		return &m.Structure
	case "nom_compte":
		return &m.NomCompte
	case "specialite":
		return &m.Specialite
	case "potentiel":
		return &m.Potentiel
	case "ville":
		return &m.Ville
	case "adresse":
		return &m.Adresse
	}
	return nil
}

// Get returns the value of a field addressed by canonical or column name.
func (m Medecin) Get(field string) (string, bool) {
	col, ok := ColumnFor(field)
	if !ok {
		return "", false
	}
	return *m.ref(col), true
}

// Set assigns a field addressed by canonical or column name. It returns
// false for unknown fields.
func (m *Medecin) Set(field, value string) bool {
	col, ok := ColumnFor(field)
	if !ok {
		return false
	}
	*m.ref(col) = value
	return true
}

// Values returns the record as column -> value for every field.
func (m Medecin) Values() map[string]string {
	out := make(map[string]string, len(Fields))
	for _, f := range Fields {
		out[f.Column] = *m.ref(f.Column)
	}
	return out
}

// Completeness counts non-blank fields.
func (m Medecin) Completeness() int {
	n := 0
	for _, f := range Fields {
		if strings.TrimSpace(*m.ref(f.Column)) != "" {
			n++
		}
	}
	return n
}

// StoredMedecin is a medecin row as read back from a store.
type StoredMedecin struct {
	Medecin
	ID        int64     `json:"id"`
	FileID    string    `json:"file_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
