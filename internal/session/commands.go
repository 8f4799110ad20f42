package session

import (
	"context"
	"strings"
)

// Result is what a command hands back to the loop: the next state, the text
// to speak with that state, and whether the session ends.
type Result struct {
	State State
	Reply string
	Exit  bool
}

type Handler func(ctx context.Context, st State, utterance string) (Result, error)

// Command pairs a predicate over the lower-cased utterance with its handler.
type Command struct {
	Name   string
	Match  func(lower string) bool
	Handle Handler
}

const (
	CmdBluetooth = "bluetooth"
	CmdSpeakers  = "speakers"
	CmdStatus    = "status"
	CmdExit      = "exit"
	CmdQuery     = "query"
)

// Commands returns the classification table in priority order. The last entry
// matches everything.
func (l *Loop) Commands() []Command {
	return []Command{
		{Name: CmdBluetooth, Match: containsAny(l.opts.BluetoothKeywords), Handle: l.routeBluetooth},
		{Name: CmdSpeakers, Match: containsAny(l.opts.SpeakerKeywords), Handle: l.resetSpeakers},
		{Name: CmdStatus, Match: containsAny(l.opts.StatusKeywords), Handle: l.reportOutput},
		{Name: CmdExit, Match: equalsAny(l.opts.ExitPhrases), Handle: l.farewell},
		{Name: CmdQuery, Match: func(string) bool { return true }, Handle: l.query},
	}
}

// Classify picks the first command of the table whose predicate holds.
func Classify(table []Command, utterance string) Command {
	lower := strings.ToLower(utterance)
	for _, c := range table {
		if c.Match(lower) {
			return c
		}
	}
	return Command{}
}

func containsAny(keywords []string) func(string) bool {
	lowered := lowerAll(keywords)
	return func(s string) bool {
		for _, k := range lowered {
			if k != "" && strings.Contains(s, k) {
				return true
			}
		}
		return false
	}
}

func equalsAny(phrases []string) func(string) bool {
	lowered := lowerAll(phrases)
	return func(s string) bool {
		s = normalizeExact(s)
		for _, p := range lowered {
			if s == normalizeExact(p) {
				return true
			}
		}
		return false
	}
}

// normalizeExact strips surrounding blanks and the sentence punctuation
// whisper appends to short utterances ("Stop." -> "stop").
func normalizeExact(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ".!?,;"))
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}

func (l *Loop) routeBluetooth(ctx context.Context, st State, _ string) (Result, error) {
	sinks, err := l.mixer.SinkNames(ctx)
	if err != nil {
		return Result{State: st}, stageErr(StageRoute, err)
	}

	for _, name := range sinks {
		if !IsBluetooth(name, l.opts.BluetoothPatterns) {
			continue
		}
		st.Device = name
		l.applySink(ctx, name)
		return Result{State: st, Reply: l.opts.Phrases.BluetoothOn}, nil
	}

	l.log.Info("No bluetooth sink available", "sinks", len(sinks))
	return Result{State: st, Reply: l.opts.Phrases.BluetoothMissing}, nil
}

func (l *Loop) resetSpeakers(ctx context.Context, st State, _ string) (Result, error) {
	st.Device = l.opts.DefaultDevice
	l.applySink(ctx, st.Device)
	return Result{State: st, Reply: l.opts.Phrases.Speakers}, nil
}

func (l *Loop) reportOutput(_ context.Context, st State, _ string) (Result, error) {
	if IsBluetooth(st.Device, l.opts.BluetoothPatterns) {
		return Result{State: st, Reply: l.opts.Phrases.StatusBluetooth}, nil
	}
	return Result{State: st, Reply: l.opts.Phrases.StatusSpeakers}, nil
}

func (l *Loop) farewell(_ context.Context, st State, _ string) (Result, error) {
	return Result{State: st, Reply: l.opts.Phrases.Farewell, Exit: true}, nil
}

func (l *Loop) query(ctx context.Context, st State, utterance string) (Result, error) {
	reply, err := l.gen.Generate(ctx, l.opts.PromptPrefix+utterance, l.opts.MaxTokens)
	if err != nil {
		return Result{State: st}, stageErr(StageGenerate, err)
	}
	return Result{State: st, Reply: reply}, nil
}

// applySink switches the OS default sink. Failures leave the session state
// as requested and are only logged.
func (l *Loop) applySink(ctx context.Context, name string) {
	if err := l.mixer.SetDefaultSink(ctx, name); err != nil {
		l.log.Warn("Failed to set default sink", "sink", name, "err", err)
		return
	}
	l.log.Info("Output device switched", "sink", name)
}
