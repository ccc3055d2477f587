package telemetry

import (
	"fmt"
	"strings"
	"sync"
)

// Report is a single call made against a Recorder.
type Report struct {
	Level  string
	Id     string
	Params []any
}

// Recorder is an API that keeps every report in memory, it is meant to be
// used in tests to assert that a component reported (or did not report) something.
type Recorder struct {
	mutex   sync.Mutex
	reports []Report
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) push(level, id string, params []any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, Report{Level: level, Id: id, Params: params})
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.push("broken", id, params)
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.push("warning", id, params)
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.push("debug", msg, params)
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.push("count", id, []any{count})
}

// Reports returns a copy of the reports made at the given level.
func (r *Recorder) Reports(level string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, rep := range r.reports {
		if rep.Level == level {
			out = append(out, rep)
		}
	}
	return out
}

// Broken returns the ids of all broken reports, handy for error messages in tests.
func (r *Recorder) Broken() []string {
	reports := r.Reports("broken")
	ids := make([]string, len(reports))
	for i, rep := range reports {
		ids[i] = fmt.Sprintf("%s %v", rep.Id, rep.Params)
	}
	return ids
}

func (r *Recorder) String() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out strings.Builder
	for _, rep := range r.reports {
		fmt.Fprintf(&out, "[%s] %s %v\n", rep.Level, rep.Id, rep.Params)
	}
	return out.String()
}
