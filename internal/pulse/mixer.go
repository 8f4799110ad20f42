package pulse

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Sink is one line of `pactl list short sinks`.
type Sink struct {
	Index  int
	Name   string
	Driver string
	Format string
	State  string
}

type Mixer struct {
	pactl string
	run   Runner
}

func NewMixer(pactl string, run Runner) *Mixer {
	if pactl == "" {
		pactl = "pactl"
	}
	if run == nil {
		run = ExecRunner
	}
	return &Mixer{pactl: pactl, run: run}
}

// ListSinks returns sinks in the order the sound server enumerates them.
func (m *Mixer) ListSinks(ctx context.Context) ([]Sink, error) {
	out, err := m.run(ctx, m.pactl, "list", "short", "sinks")
	if err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}
	return parseShortSinks(string(out)), nil
}

func (m *Mixer) SinkNames(ctx context.Context) ([]string, error) {
	sinks, err := m.ListSinks(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name)
	}
	return names, nil
}

func (m *Mixer) SetDefaultSink(ctx context.Context, name string) error {
	if _, err := m.run(ctx, m.pactl, "set-default-sink", name); err != nil {
		return fmt.Errorf("set default sink %q: %w", name, err)
	}
	return nil
}

// parseShortSinks reads the tab separated short listing:
//
//	0	alsa_output.platform-bcm2835_audio.analog-stereo	module-alsa-card.c	s16le 2ch 44100Hz	SUSPENDED
func parseShortSinks(text string) []Sink {
	var res []Sink

	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		s := Sink{Name: fields[1]}
		if idx, err := strconv.Atoi(fields[0]); err == nil {
			s.Index = idx
		}
		if len(fields) > 2 {
			s.Driver = fields[2]
		}
		if len(fields) > 3 {
			s.State = fields[len(fields)-1]
		}
		if len(fields) > 4 {
			s.Format = strings.Join(fields[3:len(fields)-1], " ")
		}

		res = append(res, s)
	}

	return res
}
