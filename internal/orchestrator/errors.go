package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/krishi/pkg/models"
)

// FailureKind is the top level of the failure taxonomy.
type FailureKind string

const (
	// KindWorker covers worker timeouts, crashes, bad output and low
	// confidence. Always absorbed into a partial response.
	KindWorker FailureKind = "WorkerFailure"
	// KindTranslation covers detection failure, low confidence and
	// unsupported languages.
	KindTranslation FailureKind = "TranslationFailure"
	// KindQueryProcessing covers ambiguous intent, missing context and
	// entity extraction failure. Always absorbed into a clarification.
	KindQueryProcessing FailureKind = "QueryProcessingFailure"
	// KindSystem covers store outages, network timeouts and resource
	// exhaustion.
	KindSystem FailureKind = "SystemFailure"
)

// Subkinds.
const (
	SubTimeout           = "timeout"
	SubCrash             = "crash"
	SubInvalidFormat     = "invalid_format"
	SubLowConfidence     = "low_confidence"
	SubDetection         = "detection_failure"
	SubUnsupported       = "unsupported_language"
	SubAmbiguousIntent   = "ambiguous_intent"
	SubMissingContext    = "missing_context"
	SubEntityExtraction  = "entity_extraction"
	SubStoreUnavailable  = "store_unavailable"
	SubNetworkTimeout    = "network_timeout"
	SubResourceExhausted = "resource_exhaustion"
	SubConfiguration     = "configuration"
)

// ErrQueueFull is the cause of a resource exhaustion failure.
var ErrQueueFull = errors.New("admission queue full")

// Failure is a classified, user-presentable failure.
type Failure struct {
	Kind    FailureKind
	Subkind string
	// Message is shown to the farmer.
	Message        string
	NextActions    []string
	PartialContent string
	Retryable      bool
	// Err is the underlying cause, kept for logs.
	Err error
}

// Error implements error.
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s/%s: %v", f.Kind, f.Subkind, f.Err)
	}
	return fmt.Sprintf("%s/%s: %s", f.Kind, f.Subkind, f.Message)
}

// Unwrap returns the cause.
func (f *Failure) Unwrap() error { return f.Err }

// Payload renders the failure for the Response. The cause is never
// included.
func (f *Failure) Payload() *models.ErrorPayload {
	return &models.ErrorPayload{
		Kind:           string(f.Kind),
		Subkind:        f.Subkind,
		Message:        f.Message,
		NextActions:    append([]string(nil), f.NextActions...),
		PartialContent: f.PartialContent,
		Retryable:      f.Retryable,
	}
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func storeFailure(err error) *Failure {
	return &Failure{
		Kind:        KindSystem,
		Subkind:     SubStoreUnavailable,
		Message:     "We could not load your farm details right now.",
		NextActions: []string{"Try again in a few minutes.", "Ask a general question that does not need your farm details."},
		Retryable:   true,
		Err:         err,
	}
}

func queueFullFailure(wait string) *Failure {
	return &Failure{
		Kind:        KindSystem,
		Subkind:     SubResourceExhausted,
		Message:     fmt.Sprintf("Many farmers are asking questions right now. Please try again in about %s.", wait),
		NextActions: []string{"Try again later."},
		Retryable:   true,
		Err:         ErrQueueFull,
	}
}

func configFailure(err error) *Failure {
	return &Failure{
		Kind:      KindSystem,
		Subkind:   SubConfiguration,
		Message:   "The advisory service is misconfigured. Our team has been notified.",
		Retryable: false,
		Err:       err,
	}
}

func unsupportedLanguageFailure(lang string, err error) *Failure {
	return &Failure{
		Kind:        KindTranslation,
		Subkind:     SubUnsupported,
		Message:     fmt.Sprintf("Messages in %q are not supported yet.", lang),
		NextActions: []string{"Please write your question in Hindi or English."},
		Retryable:   false,
		Err:         err,
	}
}

func detectionNote(lang string) *Failure {
	return &Failure{
		Kind:        KindTranslation,
		Subkind:     SubDetection,
		Message:     fmt.Sprintf("We could not tell which language you wrote in, so we answered in %q.", lang),
		NextActions: []string{"Reply with the name of your language if this is wrong."},
		Retryable:   true,
	}
}

func clarificationFailure(reason string) *Failure {
	return &Failure{
		Kind:        KindQueryProcessing,
		Subkind:     SubAmbiguousIntent,
		Message:     "We need a little more detail to answer.",
		NextActions: []string{"Name your crop.", "Name the scheme you are asking about.", "Say if your question is about water or soil."},
		Retryable:   true,
		Err:         errors.New(reason),
	}
}

func partialFailure(subkind string, missing []string, partial string) *Failure {
	return &Failure{
		Kind:           KindWorker,
		Subkind:        subkind,
		Message:        fmt.Sprintf("Some %s information is unavailable right now.", strings.Join(missing, " and ")),
		NextActions:    []string{"Ask again later for the missing part."},
		PartialContent: partial,
		Retryable:      true,
	}
}

func deliveryFailure(err error) *Failure {
	return &Failure{
		Kind:        KindSystem,
		Subkind:     SubNetworkTimeout,
		Message:     "We could not send your answer.",
		NextActions: []string{"Check your connection and ask again."},
		Retryable:   true,
		Err:         err,
	}
}
