package plugin

import (
	"fmt"
	"strings"
)

// Status is the outcome of loading one plugin.
type Status int

const (
	StatusLoaded Status = iota
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Source identifies where a plugin came from.
type Source string

const (
	SourceLua     Source = "lua"
	SourceBuiltin Source = "builtin"
)

// PluginRecord is the result of loading a single plugin.
type PluginRecord struct {
	Name     string
	Source   Source
	Path     string
	Status   Status
	Err      error
	Commands []string
}

// LoadReport summarizes one loader pass.
//
// Failed lists the names of failing plugins in load order; it is never nil
// so an empty pass reports an empty list.
type LoadReport struct {
	Total     int
	Succeeded int
	Failed    []string
	Records   []PluginRecord
}

func newReport() LoadReport {
	return LoadReport{Failed: []string{}}
}

func (r *LoadReport) add(rec PluginRecord) {
	r.Total++
	if rec.Status == StatusLoaded {
		r.Succeeded++
	} else {
		r.Failed = append(r.Failed, rec.Name)
	}
	r.Records = append(r.Records, rec)
}

// Merge appends the records of other to r.
func (r *LoadReport) Merge(other LoadReport) {
	if r.Failed == nil {
		r.Failed = []string{}
	}
	for _, rec := range other.Records {
		r.add(rec)
	}
}

// Summary renders the "Total | Success | Failed" line logged after a pass.
func (r LoadReport) Summary() string {
	line := fmt.Sprintf("Total: %d | Success: %d | Failed: %d", r.Total, r.Succeeded, len(r.Failed))
	if len(r.Failed) > 0 {
		line += " (" + strings.Join(r.Failed, ", ") + ")"
	}
	return line
}
