package verify

import (
	"context"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/UniAttendHQ/uniattend/internal"
)

// Runner sequences independent verification sessions over one shared sample
// source. The source is a single physical capture device, so sessions run
// strictly one at a time; outcomes come out in input order and each index is
// settled exactly once.
type Runner struct {
	Issuer     ChallengeIssuer
	Authority  Authority
	Source     Source
	Classifier Classifier
	Deadline   time.Duration
}

// Run returns a lazy, forward-only sequence of one Outcome per subject ID in
// input order. A session only starts when the consumer pulls its slot, and a
// terminal failure for one subject never aborts the rest. The sequence is
// not restartable; retrying means a fresh Run.
func (r *Runner) Run(ctx context.Context, subjectIDs []string) iter.Seq[Outcome] {
	runID := internal.FastHash(strings.Join(subjectIDs, "\n") + time.Now().Format(time.RFC3339Nano))
	lg := slog.With("batch", runID, "subjects", len(subjectIDs))

	batchRuns.Inc()
	lg.Info("batch run starting")

	return func(yield func(Outcome) bool) {
		for _, subjectID := range subjectIDs {
			if ctx.Err() != nil {
				lg.Info("batch run abandoned", "err", ctx.Err())
				return
			}

			sess := &Session{
				SubjectID:  subjectID,
				Issuer:     r.Issuer,
				Authority:  r.Authority,
				Source:     r.Source,
				Classifier: r.Classifier,
				Deadline:   r.Deadline,
			}

			out := sess.Run(ctx)
			lg.Info("batch subject settled", "subject", subjectID, "result", out.Result)

			if !yield(out) {
				return
			}
		}

		lg.Info("batch run complete")
	}
}
