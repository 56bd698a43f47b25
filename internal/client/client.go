// Package client maps cleaned rows to contact records and typed medecin
// records.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/clientimport/internal/analysis"
	"github.com/JonMunkholm/clientimport/internal/upsert"
)

// DefaultGeocodeTimeout bounds a single address lookup.
const DefaultGeocodeTimeout = 5 * time.Second

// ContextCheckInterval is how often (in rows) extraction checks for
// cancellation.
var ContextCheckInterval = 100

// Coordinates is a resolved latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ClientRecord is a canonical contact extracted from a cleaned row.
type ClientRecord struct {
	Name        string       `json:"name"`
	Phone       string       `json:"phone,omitempty"`
	Email       string       `json:"email,omitempty"`
	Address     string       `json:"address,omitempty"`
	City        string       `json:"city,omitempty"`
	Specialty   string       `json:"specialty,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Geocoder resolves a postal address. It returns nil, nil when the address
// has no match.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (*Coordinates, error)
}

// ExtractionPreconditionError is returned when the input is not cleaned.
type ExtractionPreconditionError struct {
	FileName string
}

func (e *ExtractionPreconditionError) Error() string {
	return fmt.Sprintf("extract %s: file must be cleaned before extracting clients", e.FileName)
}

// GeocodeError wraps a failed lookup. Extract logs it and never returns it.
type GeocodeError struct {
	Address string
	Err     error
}

func (e *GeocodeError) Error() string {
	return fmt.Sprintf("geocode %q: %v", e.Address, e.Err)
}

func (e *GeocodeError) Unwrap() error { return e.Err }

// Field aliases, canonical name first.
var (
	nameAliases      = []string{analysis.ColNom, "name", "nom"}
	firstNameAliases = []string{"firstName", analysis.ColPrenom, "prénom", "prenom"}
	lastNameAliases  = []string{"lastName"}
	phoneAliases     = []string{analysis.ColPhone, "téléphone", "telephone", "tel"}
	emailAliases     = []string{analysis.ColEmail, "mail"}
	addressAliases   = []string{analysis.ColAdresse, "address", "adresse"}
	cityAliases      = []string{analysis.ColVille, "city", "ville"}
	specialtyAliases = []string{analysis.ColSpecialite, "specialty", "spécialité", "specialite"}
)

// Extractor builds ClientRecords, optionally enriching them with
// coordinates.
type Extractor struct {
	Geocoder Geocoder
	Timeout  time.Duration
	Logger   *slog.Logger
}

// NewExtractor returns an extractor using geocoder, which may be nil.
func NewExtractor(geocoder Geocoder, timeout time.Duration, logger *slog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = DefaultGeocodeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{Geocoder: geocoder, Timeout: timeout, Logger: logger}
}

// Extract returns one record per cleaned row with a usable name.
// Geocoding failures leave Coordinates nil.
func (x *Extractor) Extract(ctx context.Context, r *analysis.FileAnalysisResult) ([]ClientRecord, error) {
	if r == nil || !r.IsCleaned {
		return nil, preconditionErr(r)
	}

	var clients []ClientRecord
	for i, row := range r.Data {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("extract cancelled at row %d: %w", i+1, err)
			}
		}

		rec := ClientRecord{
			Name:      resolveName(row),
			Phone:     lookup(row, phoneAliases),
			Email:     lookup(row, emailAliases),
			Address:   lookup(row, addressAliases),
			City:      lookup(row, cityAliases),
			Specialty: lookup(row, specialtyAliases),
		}
		if rec.Name == "" {
			continue
		}

		if rec.Address != "" && x.Geocoder != nil {
			rec.Coordinates = x.geocode(ctx, rec.Address)
		}
		clients = append(clients, rec)
	}

	return clients, nil
}

// geocode looks an address up under the per-record timeout. Errors are
// logged and swallowed.
func (x *Extractor) geocode(ctx context.Context, address string) *Coordinates {
	timeout := x.Timeout
	if timeout <= 0 {
		timeout = DefaultGeocodeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	coords, err := x.Geocoder.Resolve(ctx, address)
	if err != nil {
		gerr := &GeocodeError{Address: address, Err: err}
		logger := x.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("geocoding failed",
			"error", gerr,
			"timeout", errors.Is(err, context.DeadlineExceeded),
		)
		return nil
	}
	return coords
}

func resolveName(row analysis.Row) string {
	if name := lookup(row, nameAliases); name != "" {
		return name
	}
	first := lookup(row, firstNameAliases)
	last := lookup(row, lastNameAliases)
	return strings.TrimSpace(first + " " + last)
}

// lookup returns the first alias value that is neither blank nor a cleaner
// placeholder.
func lookup(row analysis.Row, aliases []string) string {
	for _, key := range aliases {
		v := strings.TrimSpace(row[key])
		if v != "" && !analysis.IsPlaceholder(v) {
			return v
		}
	}
	return ""
}

// ToMedecins maps cleaned rows to medecin records. Rows without a Nom are
// dropped and placeholders become empty strings.
func ToMedecins(r *analysis.FileAnalysisResult) ([]upsert.Medecin, error) {
	if r == nil || !r.IsCleaned {
		return nil, preconditionErr(r)
	}

	out := make([]upsert.Medecin, 0, len(r.Data))
	for _, row := range r.Data {
		var m upsert.Medecin
		for _, f := range upsert.Fields {
			v := strings.TrimSpace(row[f.Name])
			if analysis.IsPlaceholder(v) {
				v = ""
			}
			m.Set(f.Column, v)
		}
		if m.Nom == "" {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func preconditionErr(r *analysis.FileAnalysisResult) error {
	name := ""
	if r != nil {
		name = r.FileName
	}
	return &ExtractionPreconditionError{FileName: name}
}
