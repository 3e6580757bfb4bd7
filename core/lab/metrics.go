package lab

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
)

// outcome labels
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"

	otherLanguage = "other"
)

var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vpl",
		Subsystem: "lab",
		Name:      "submissions_total",
		Help:      "Submit calls by language and outcome.",
	}, []string{"language", "outcome"})

	gradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vpl",
		Subsystem: "lab",
		Name:      "grades_total",
		Help:      "Grade calls by outcome.",
	}, []string{"outcome"})

	statsCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vpl",
		Subsystem: "lab",
		Name:      "stats_cache_lookups_total",
		Help:      "Course stats cache lookups by result.",
	}, []string{"result"})
)

// outcome maps the error of a write to its metric label.
func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case isCallerError(err):
		return outcomeRejected
	default:
		return outcomeFailed
	}
}

// languageLabel keeps the language label set closed.
func languageLabel(lang string) string {
	if course.IsLanguage(lang) {
		return lang
	}
	return otherLanguage
}
