package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/taskq/pkg/queue"
)

// periodicFile is the YAML document accepted by serve -periodic:
//
//	tasks:
//	  - module: reports
//	    func: nightly
//	    schedule: daily 02:30
//	    priority: 60
//	    max_retries: 2
//	    params: {format: csv}
type periodicFile struct {
	Tasks []periodicEntry `yaml:"tasks"`
}

type periodicEntry struct {
	Module     string         `yaml:"module"`
	Func       string         `yaml:"func"`
	Schedule   string         `yaml:"schedule"`
	Priority   *int           `yaml:"priority"`
	MaxRetries *int           `yaml:"max_retries"`
	Params     map[string]any `yaml:"params"`
}

func loadPeriodicFile(path string) ([]periodicEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodePeriodic(f)
}

func decodePeriodic(r io.Reader) ([]periodicEntry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc periodicFile
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode periodic tasks: %w", err)
	}
	return doc.Tasks, nil
}

// registerPeriodic adds every entry to p.
func registerPeriodic(p *queue.PeriodicEnqueuer, entries []periodicEntry) error {
	for i, e := range entries {
		schedule, err := queue.ParseSchedule(e.Schedule)
		if err != nil {
			return fmt.Errorf("periodic task %d (%s): %w", i, queue.TaskName(e.Module, e.Func), err)
		}

		var opts []queue.PeriodicTaskOption
		if e.Priority != nil {
			opts = append(opts, queue.WithTaskPriority(queue.Priority(*e.Priority)))
		}
		if e.MaxRetries != nil {
			opts = append(opts, queue.WithTaskMaxRetries(*e.MaxRetries))
		}
		if e.Params != nil {
			opts = append(opts, queue.WithTaskParams(e.Params))
		}

		if err := p.AddTask(e.Module, e.Func, schedule, opts...); err != nil {
			return fmt.Errorf("periodic task %d (%s): %w", i, queue.TaskName(e.Module, e.Func), err)
		}
	}
	return nil
}
