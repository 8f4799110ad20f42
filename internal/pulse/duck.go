package pulse

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

const maxVolume = 150

type sinkInput struct {
	ID      int
	Volume  int
	AppName string
}

type fade struct {
	id   int
	from int
	to   int
}

// Ducker lowers every playing stream except ours while the assistant talks,
// then restores them.
type Ducker struct {
	pactl     string
	run       Runner
	sleep     func(time.Duration)
	selfNames []string
	factor    float64
	minVolume int
	duration  time.Duration

	original map[int]int // sink-input id -> volume before ducking
}

type DuckOptions struct {
	SelfNames []string
	Factor    float64
	MinVolume int
	Fade      time.Duration
}

func NewDucker(pactl string, run Runner, opt DuckOptions) *Ducker {
	if pactl == "" {
		pactl = "pactl"
	}
	if run == nil {
		run = ExecRunner
	}

	return &Ducker{
		pactl:     pactl,
		run:       run,
		sleep:     time.Sleep,
		selfNames: append([]string(nil), opt.SelfNames...),
		factor:    opt.Factor,
		minVolume: clampVolume(opt.MinVolume),
		duration:  opt.Fade,
	}
}

// Duck fades foreign streams to factor of their volume, never below minVolume.
// Calling Duck twice without Restore is a no-op.
func (d *Ducker) Duck(ctx context.Context) error {
	if d.original != nil {
		return nil
	}

	inputs, err := d.listInputs(ctx)
	if err != nil {
		return err
	}

	original := make(map[int]int)
	var fades []fade

	for _, in := range inputs {
		if d.isSelf(in) {
			continue
		}

		target := math.Max(float64(in.Volume)*d.factor, float64(d.minVolume))
		original[in.ID] = in.Volume
		fades = append(fades, fade{id: in.ID, from: in.Volume, to: clampVolume(int(math.Round(target)))})
	}

	d.original = original
	return d.apply(ctx, fades)
}

// Restore brings ducked streams back. Streams that appeared after Duck are
// left alone.
func (d *Ducker) Restore(ctx context.Context) error {
	if d.original == nil {
		return nil
	}
	original := d.original
	d.original = nil

	inputs, err := d.listInputs(ctx)
	if err != nil {
		return err
	}

	var fades []fade
	for _, in := range inputs {
		orig, ok := original[in.ID]
		if !ok || d.isSelf(in) {
			continue
		}
		fades = append(fades, fade{id: in.ID, from: in.Volume, to: orig})
	}

	return d.apply(ctx, fades)
}

func (d *Ducker) isSelf(in sinkInput) bool {
	for _, name := range d.selfNames {
		if in.AppName == name {
			return true
		}
	}
	return false
}

func (d *Ducker) apply(ctx context.Context, fades []fade) error {
	if len(fades) == 0 {
		return nil
	}

	if d.duration <= 0 {
		for _, f := range fades {
			if err := d.setVolume(ctx, f.id, f.to); err != nil {
				return err
			}
		}
		return nil
	}

	const minStep = 10 * time.Millisecond

	steps := int(d.duration / minStep)
	if steps < 1 {
		steps = 1
	}
	stepDuration := d.duration / time.Duration(steps)

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := float64(i) / float64(steps)
		for _, f := range fades {
			v := int(math.Round(float64(f.from) + float64(f.to-f.from)*frac))
			if err := d.setVolume(ctx, f.id, v); err != nil {
				return err
			}
		}

		if i < steps {
			d.sleep(stepDuration)
		}
	}

	return nil
}

func (d *Ducker) listInputs(ctx context.Context) ([]sinkInput, error) {
	out, err := d.run(ctx, d.pactl, "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (d *Ducker) setVolume(ctx context.Context, id, percent int) error {
	arg := fmt.Sprintf("%d%%", clampVolume(percent))
	if _, err := d.run(ctx, d.pactl, "set-sink-input-volume", strconv.Itoa(id), arg); err != nil {
		return fmt.Errorf("set volume id=%d: %w", id, err)
	}
	return nil
}

// parseSinkInputs reads the long `pactl list sink-inputs` format, keeping the
// first volume percentage and application.name of every block.
func parseSinkInputs(text string) []sinkInput {
	blocks := strings.Split(text, "Sink Input #")
	if len(blocks) <= 1 {
		return nil
	}

	var res []sinkInput

	for _, block := range blocks[1:] {
		newline := strings.IndexByte(block, '\n')
		if newline <= 0 {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(block[:newline]))
		if err != nil {
			continue
		}

		in := sinkInput{ID: id}

		for _, line := range strings.Split(block[newline+1:], "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && in.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					if v, err := strconv.Atoi(m[1]); err == nil {
						in.Volume = v
					}
				}
			}

			if strings.HasPrefix(line, "application.name =") && in.AppName == "" {
				if _, rest, ok := strings.Cut(line, "\""); ok {
					in.AppName, _, _ = strings.Cut(rest, "\"")
				}
			}
		}

		if in.Volume == 0 && in.AppName == "" {
			continue
		}

		res = append(res, in)
	}

	return res
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxVolume {
		return maxVolume
	}
	return v
}
