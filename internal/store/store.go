// Package store holds the persistence collaborators of the import
// pipeline: medecin row stores (Postgres and SQLite) and the filesystem
// blob store for uploaded files.
package store

import (
	"strings"

	"github.com/JonMunkholm/clientimport/internal/upsert"
)

// Stats summarizes the medecin table.
type Stats struct {
	TotalRecords int `json:"totalRecords"`
	UniqueNames  int `json:"uniqueNames"`
	Cities       int `json:"citiesCount"`
	Specialties  int `json:"specialtiesCount"`
}

// DuplicateGroup is a set of stored records sharing lower(nom|prenom|ville).
type DuplicateGroup struct {
	Group   string                 `json:"group"`
	Count   int                    `json:"count"`
	Records []upsert.StoredMedecin `json:"records"`
}

// selectColumns is the column list scanned by scanMedecin, in order.
const selectColumns = `id, file_id, nom, prenom, sect_act, semaine, structure, nom_compte, specialite, potentiel, ville, adresse, created_at, updated_at`

// writableColumns returns the snake_case column names in table order.
func writableColumns() []string {
	cols := make([]string, len(upsert.Fields))
	for i, f := range upsert.Fields {
		cols[i] = f.Column
	}
	return cols
}

// orderedKeys returns the keys of a column->value map in table order,
// dropping unknown columns.
func orderedKeys(values map[string]string) []string {
	var out []string
	for _, f := range upsert.Fields {
		if _, ok := values[f.Column]; ok {
			out = append(out, f.Column)
		}
	}
	return out
}

// duplicateKey is the grouping key used by FindPotentialDuplicates.
func duplicateKey(m upsert.Medecin) string {
	return strings.ToLower(m.Nom) + "|" + strings.ToLower(m.Prenom) + "|" + strings.ToLower(m.Ville)
}

// groupDuplicates groups records by duplicateKey, keeping first-seen order
// and only groups with more than one record.
func groupDuplicates(records []upsert.StoredMedecin) []DuplicateGroup {
	index := make(map[string]int)
	var groups []DuplicateGroup
	for _, r := range records {
		key := duplicateKey(r.Medecin)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DuplicateGroup{Group: key})
		}
		groups[i].Records = append(groups[i].Records, r)
		groups[i].Count++
	}

	out := groups[:0]
	for _, g := range groups {
		if g.Count > 1 {
			out = append(out, g)
		}
	}
	return out
}

// nullable maps a blank value to nil so optional columns store NULL.
func nullable(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
