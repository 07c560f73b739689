// Package output fans monitor events out to the configured sinks and turns
// results into reports for the CLI.
package output

import (
	"context"
	"errors"
	"fmt"

	"memguard/internal/engine"
	"memguard/internal/monitor"
)

// Sink is a named monitor.Recorder.
type Sink struct {
	Name     string
	Recorder monitor.Recorder
}

var _ monitor.Recorder = (*Pipeline)(nil)

// Pipeline forwards every event to each sink in order. One failing sink never
// keeps the others from receiving the event; failures are joined.
type Pipeline struct {
	sinks []Sink
}

func NewPipeline(sinks ...Sink) *Pipeline {
	p := &Pipeline{}
	for _, s := range sinks {
		p.Add(s.Name, s.Recorder)
	}
	return p
}

// Add appends a sink. Nil recorders are ignored.
func (p *Pipeline) Add(name string, r monitor.Recorder) {
	if r == nil {
		return
	}
	p.sinks = append(p.sinks, Sink{Name: name, Recorder: r})
}

func (p *Pipeline) Len() int {
	return len(p.sinks)
}

func (p *Pipeline) RecordSnapshot(ctx context.Context, snap engine.Snapshot) error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Recorder.RecordSnapshot(ctx, snap); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) RecordRecovery(ctx context.Context, session monitor.Session) error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Recorder.RecordRecovery(ctx, session); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
