package sink

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ayusman/signalwatch/internal/pipeline"
	"github.com/ayusman/signalwatch/internal/plugin"
)

// Plugins runs the subscribed hook plugins whenever the advisory changes.
type Plugins struct {
	manager  *plugin.Manager
	executor *plugin.Executor
	changes  changes
}

// NewPlugins creates a Plugins sink over the discovered plugins of manager.
func NewPlugins(manager *plugin.Manager, executor *plugin.Executor) *Plugins {
	return &Plugins{manager: manager, executor: executor}
}

// Publish implements Sink.
func (p *Plugins) Publish(ctx context.Context, res pipeline.FrameResult) error {
	advisory := res.Decision.Advisory
	prev, changed := p.changes.observe(advisory)
	if !changed {
		return nil
	}

	req := &plugin.Request{
		Event:    plugin.EventAdvisoryChanged,
		Advisory: advisory,
		Previous: prev,
		Decision: res.Decision,
	}

	var errs []error
	for _, pl := range p.manager.ForAdvisory(advisory) {
		resp, err := p.executor.Execute(ctx, pl, req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !resp.Success {
			errs = append(errs, fmt.Errorf("plugin %s: %s", pl.Manifest.Name, resp.Error))
			continue
		}
		log.Printf("Plugin %s handled %s", pl.Manifest.Name, advisory)
	}
	return errors.Join(errs...)
}
