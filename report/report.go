// Package report assembles sweep results into serializable summaries and
// renders block trees for inspection.
package report

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/forkwatchlabs/forkwatch/confirmation"
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/forkwatchlabs/forkwatch/io/file"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// TimingStats summarizes a confirmation time distribution, in seconds.
type TimingStats struct {
	Count uint64  `json:"count"`
	Min   uint64  `json:"min"`
	Max   uint64  `json:"max"`
	Mean  float64 `json:"mean"`
	P50   uint64  `json:"p50"`
	P90   uint64  `json:"p90"`
}

// ThresholdResult is the outcome of one analyzer's replay.
type ThresholdResult struct {
	Thresholds         confirmation.Thresholds           `json:"thresholds"`
	ProcessedSlots     uint64                            `json:"processed_slots"`
	Evaluated          int                               `json:"evaluated"`
	Confirmed          int                               `json:"confirmed"`
	ConfirmedHead      types.Root                        `json:"confirmed_head"`
	ConfirmedHeadSlot  types.Slot                        `json:"confirmed_head_slot"`
	Timings            TimingStats                       `json:"confirmation_times"`
	Anomalies          []*confirmation.Anomaly           `json:"anomalies"`
	EmptyOrForkedSlots []types.Slot                      `json:"empty_or_forked_slots"`
	SkippedSnapshots   uint64                            `json:"skipped_snapshots"`
	Verdicts           []*confirmation.Verdict           `json:"verdicts,omitempty"`
	RawTimings         []confirmation.ConfirmationTiming `json:"raw_timings,omitempty"`
}

// Report is the full output of a sweep over one snapshot archive.
type Report struct {
	ConfigName  string            `json:"config_name"`
	GeneratedAt time.Time         `json:"generated_at"`
	Results     []ThresholdResult `json:"results"`
}

// Options control how much detail a report carries.
type Options struct {
	// IncludeVerdicts embeds every individual verdict rather than only the
	// aggregate counts. Reports over long archives get large with this set.
	IncludeVerdicts bool
}

// Build summarizes the analyzers of one finished sweep.
func Build(configName string, analyzers []*confirmation.Analyzer, opts Options) *Report {
	r := &Report{
		ConfigName:  configName,
		GeneratedAt: time.Now().UTC(),
	}
	for _, a := range analyzers {
		confirmed := 0
		for _, v := range a.Verdicts() {
			if v.Confirmed {
				confirmed++
			}
		}
		head, headSlot := a.ConfirmedHead()
		res := ThresholdResult{
			Thresholds:         a.Thresholds(),
			ProcessedSlots:     a.ProcessedSlots(),
			Evaluated:          len(a.Verdicts()),
			Confirmed:          confirmed,
			ConfirmedHead:      head,
			ConfirmedHeadSlot:  headSlot,
			Timings:            summarizeTimings(a.ConfirmationTimes()),
			Anomalies:          a.Anomalies(),
			EmptyOrForkedSlots: a.EmptyOrForkedSlots(),
			SkippedSnapshots:   a.SkippedSnapshots(),
		}
		if opts.IncludeVerdicts {
			res.Verdicts = a.Verdicts()
			res.RawTimings = a.ConfirmationTimes()
		}
		r.Results = append(r.Results, res)
	}
	return r
}

func summarizeTimings(timings []confirmation.ConfirmationTiming) TimingStats {
	if len(timings) == 0 {
		return TimingStats{}
	}
	secs := make([]uint64, len(timings))
	var sum uint64
	for i, tm := range timings {
		secs[i] = tm.Seconds
		sum += tm.Seconds
	}
	sort.Slice(secs, func(i, j int) bool { return secs[i] < secs[j] })
	return TimingStats{
		Count: uint64(len(secs)),
		Min:   secs[0],
		Max:   secs[len(secs)-1],
		Mean:  float64(sum) / float64(len(secs)),
		P50:   percentile(secs, 50),
		P90:   percentile(secs, 90),
	}
}

// percentile uses the nearest-rank method over a sorted sample.
func percentile(sorted []uint64, p int) uint64 {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// Marshal encodes the report as indented JSON.
func (r *Report) Marshal() ([]byte, error) {
	enc, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal report")
	}
	return enc, nil
}

// WriteFile serializes the report as indented JSON at the given path.
func (r *Report) WriteFile(ctx context.Context, path string) error {
	_, span := trace.StartSpan(ctx, "report.WriteFile")
	defer span.End()
	enc, err := r.Marshal()
	if err != nil {
		return err
	}
	return file.WriteFile(path, enc)
}
