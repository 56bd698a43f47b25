package pipeline

// Error codes shown to users, grouped by category:
//
//	FILE001-FILE005  upload and parsing problems
//	VAL001-VAL002    pipeline preconditions and import settings
//	UPS001-UPS002    upsert conflicts and store failures
//	DB001-DB003      database connectivity
//	UPL001-UPL003    capacity, cancellation and timeouts
//	ERR000           anything else; the technical error is in the logs
//
// Typed errors are matched first with errors.As. Untyped errors fall back
// to case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/clientimport/internal/analysis"
	"github.com/JonMunkholm/clientimport/internal/client"
	"github.com/JonMunkholm/clientimport/internal/upsert"
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageReceive Stage = "receive"
	StageStore   Stage = "store"
	StageParse   Stage = "parse"
	StageAnalyze Stage = "analyze"
	StageClean   Stage = "clean"
	StageExtract Stage = "extract"
	StageReport  Stage = "report"
	StageUpsert  Stage = "upsert"
)

// StageError records which step of a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

var (
	ErrNoFile       = errors.New("no file provided")
	ErrEmptyFile    = errors.New("empty file")
	ErrFileTooLarge = errors.New("file too large")
	ErrNoStore      = errors.New("no row store configured")
)

// UserMessage is the user-facing description of a failure.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgTooLarge    = UserMessage{"Le fichier dépasse la taille maximale autorisée", "Découpez le fichier en plusieurs parties", "FILE001"}
	msgParse       = UserMessage{"Le fichier n'a pas pu être lu", "Vérifiez qu'il contient un en-tête et au moins une ligne de données", "FILE002"}
	msgUnsupported = UserMessage{"Format de fichier non pris en charge", "Utilisez un fichier CSV, Excel ou JSON", "FILE003"}
	msgNoFile      = UserMessage{"Aucun fichier sélectionné", "Sélectionnez un fichier à importer", "FILE004"}
	msgEmpty       = UserMessage{"Le fichier est vide", "Importez un fichier contenant des données", "FILE005"}
	msgOrder       = UserMessage{"Étape de traitement appelée dans le mauvais ordre", "Relancez l'analyse du fichier", "VAL001"}
	msgSettings    = UserMessage{"Paramètres d'import invalides", "Vérifiez les clés uniques et la stratégie de conflit", "VAL002"}
	msgDuplicate   = UserMessage{"Doublon détecté, import interrompu", "Choisissez la stratégie « update » ou « skip », ou corrigez le fichier", "UPS001"}
	msgStoreIO     = UserMessage{"L'enregistrement en base a échoué", "Réessayez dans quelques instants", "UPS002"}
	msgNoStore     = UserMessage{"Aucune base de données configurée", "Configurez DATABASE_URL avant d'importer", "UPS003"}
	msgBusy        = UserMessage{"Trop d'imports en cours", "Patientez un instant puis réessayez", "UPL001"}
	msgCancelled   = UserMessage{"La requête a été annulée", "Réessayez", "UPL002"}
	msgTimeout     = UserMessage{"Délai de traitement dépassé", "Essayez avec un fichier plus petit", "UPL003"}

	defaultMessage = UserMessage{"Une erreur inattendue est survenue", "Réessayez ou contactez le support", "ERR000"}
)

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"connection refused", UserMessage{"Impossible de joindre la base de données", "Réessayez dans quelques instants", "DB001"}},
	{"connection reset", UserMessage{"La connexion à la base a été interrompue", "Réessayez", "DB002"}},
	{"deadlock", UserMessage{"La base de données est occupée", "Réessayez", "DB003"}},
	{"too many uploads", msgBusy},
	{"context canceled", msgCancelled},
	{"deadline exceeded", msgTimeout},
}

// MapError converts err to a user message. A nil error maps to the zero
// UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		parseErr   *analysis.ParseError
		formatErr  *analysis.UnsupportedFormatError
		cleanErr   *analysis.CleaningPreconditionError
		extractErr *client.ExtractionPreconditionError
		dupErr     *upsert.DuplicateConflictError
		cfgErr     *upsert.ConfigError
		storeErr   *upsert.StoreIOError
	)

	switch {
	case errors.Is(err, ErrFileTooLarge):
		return msgTooLarge
	case errors.Is(err, ErrNoFile):
		return msgNoFile
	case errors.Is(err, ErrEmptyFile):
		return msgEmpty
	case errors.Is(err, ErrNoStore):
		return msgNoStore
	case errors.Is(err, ErrBusy):
		return msgBusy
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	case errors.As(err, &formatErr):
		return msgUnsupported
	case errors.As(err, &parseErr):
		return msgParse
	case errors.As(err, &cleanErr), errors.As(err, &extractErr):
		return msgOrder
	case errors.As(err, &cfgErr):
		return msgSettings
	case errors.As(err, &dupErr):
		return msgDuplicate
	case errors.As(err, &storeErr):
		if m, ok := matchPattern(storeErr.Err); ok {
			return m
		}
		return msgStoreIO
	}

	if m, ok := matchPattern(err); ok {
		return m
	}
	return defaultMessage
}

func matchPattern(err error) (UserMessage, bool) {
	if err == nil {
		return UserMessage{}, false
	}
	s := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(s, p.pattern) {
			return p.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	m := MapError(err)
	if m.Code == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", m.Message, m.Code, m.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
