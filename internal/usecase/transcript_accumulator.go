package usecase

import (
	"strings"

	"github.com/samber/lo"

	"oceanmic/internal/domain"
)

// transcriptAccumulator is owned by one live session and guarded by its lock.
type transcriptAccumulator struct {
	finalized strings.Builder
	interim   string
}

// Apply folds one result event into the accumulator and returns the transcript.
func (a *transcriptAccumulator) Apply(results []domain.RecognitionResult) string {
	finals := lo.Filter(results, func(r domain.RecognitionResult, _ int) bool { return r.Final })
	interims := lo.Filter(results, func(r domain.RecognitionResult, _ int) bool { return !r.Final })

	for _, piece := range lo.Map(finals, bestTranscript) {
		a.finalized.WriteString(piece)
	}
	a.interim = strings.Join(lo.Map(interims, bestTranscript), "")
	return a.Text()
}

func (a *transcriptAccumulator) Text() string {
	return a.finalized.String() + a.interim
}

func (a *transcriptAccumulator) Finalized() string {
	return a.finalized.String()
}

func (a *transcriptAccumulator) Reset() {
	a.finalized.Reset()
	a.interim = ""
}

func bestTranscript(r domain.RecognitionResult, _ int) string {
	return r.Best()
}
