package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/lmittmann/tint"
	log "log/slog"

	"aeris/internal/audio"
	"aeris/internal/config"
	"aeris/internal/hub"
	"aeris/internal/ipc"
	"aeris/internal/journal"
	"aeris/internal/llm"
	"aeris/internal/notify"
	"aeris/internal/pulse"
	"aeris/internal/session"
	"aeris/internal/stt"
	"aeris/internal/tts"
	"aeris/internal/wakeword"
	"aeris/internal/wakeword/porcupine"
	"aeris/pkg/whisper"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	cfgPath := cli.StringP("config", "c", "aeris.yaml", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "", "Log level (overrides log.level)")
	cli.Parse()

	godotenv.Load(*envFile)

	cfg, err := config.Load(*cfgPath, cli.CommandLine.Changed("config"))
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevelMap[cfg.Log.Level],
		TimeFormat: time.Kitchen,
	})))
	if err != nil {
		log.Error("Failed to load config", "path", *cfgPath, "err", err)
		os.Exit(1)
	}

	log.Info("Booting up")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Aeris stopped", "err", err)
		os.Exit(1)
	}
	log.Info("Bye")
}

func run(ctx context.Context, cfg config.Config) error {
	trigger := wakeword.NewTrigger()

	var detector wakeword.Detector = trigger
	if cfg.Wake.Mode == "porcupine" {
		pv, err := porcupine.New(cfg.Wake)
		if err != nil {
			return err
		}
		defer pv.Close()
		detector = wakeword.First(pv, trigger)
	}
	if cfg.Notify.Earcon != "" {
		detector = wakeword.WithCue(detector, notify.NewEarcon(cfg.Notify.Earcon))
	}
	log.Debug("Loaded wake-word", "mode", cfg.Wake.Mode)

	var recorder session.Recorder
	switch cfg.Capture.Mode {
	case "file":
		recorder = audio.NewFileRecorder(cfg.Capture.File, cfg.Capture.SampleRate)
	default:
		mic := audio.NewRecorder(cfg.Capture.SampleRate)
		if err := mic.Init(); err != nil {
			return fmt.Errorf("init audio: %w", err)
		}
		defer mic.Close()
		recorder = mic
	}
	log.Debug("Loaded recorder", "mode", cfg.Capture.Mode)

	var transcriber session.Transcriber
	switch cfg.STT.Mode {
	case "bindings":
		w, err := whisper.NewTranscriber(cfg.STT.ModelPath, whisper.Options{
			Language:      cfg.STT.Language,
			Threads:       cfg.STT.Threads,
			InitialPrompt: cfg.STT.InitialPrompt,
			BeamSize:      cfg.STT.BeamSize,
			MaxTokens:     uint(cfg.STT.MaxTokens),
		})
		if err != nil {
			return fmt.Errorf("init whisper: %w", err)
		}
		defer w.Close()
		transcriber = w
	default:
		t, err := stt.NewExecTranscriber(cfg.STT, cfg.Capture.SampleRate, nil)
		if err != nil {
			return err
		}
		transcriber = t
	}
	log.Debug("Loaded transcriber", "mode", cfg.STT.Mode)

	generator, err := llm.New(cfg.LLM)
	if err != nil {
		return err
	}
	log.Debug("Loaded generator", "mode", cfg.LLM.Mode, "model", cfg.LLM.Model)

	synth, err := tts.NewExecSynthesizer(cfg.TTS, nil)
	if err != nil {
		return err
	}

	var ducker *pulse.Ducker
	if cfg.Duck.Enabled {
		ducker = pulse.NewDucker(cfg.Audio.Pactl, nil, pulse.DuckOptions{
			SelfNames: cfg.Duck.SelfNames,
			Factor:    cfg.Duck.Factor,
			MinVolume: cfg.Duck.MinVolume,
			Fade:      time.Duration(cfg.Duck.FadeMS) * time.Millisecond,
		})
	}
	player := pulse.NewPlayer(cfg.Audio.Aplay, cfg.Audio.Paplay, nil, ducker)
	mixer := pulse.NewMixer(cfg.Audio.Pactl, nil)

	var observers []session.Observer
	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(ctx, cfg.Journal.Path, cfg.Journal.RetentionDays)
		if err != nil {
			return err
		}
		defer store.Close()
		observers = append(observers, store)
	}

	var notifier *hub.Notifier
	if cfg.Hub.URL != "" {
		notifier = hub.New(hub.Config{
			URL:    cfg.Hub.URL,
			Shard:  cfg.Hub.Shard,
			Reconn: time.Duration(cfg.Hub.ReconnectSec) * time.Second,
			OnMessage: func(m *hub.Message) {
				if m.Verb == "CMD" && m.Noun == "TRIGGER" {
					trigger.Fire()
				}
			},
		})
		observers = append(observers, notifier)
	}

	srv, err := ipc.Listen(cfg.IPC.SocketPath, control(trigger, store))
	if err != nil {
		return fmt.Errorf("control socket: %w", err)
	}
	defer srv.Close()
	log.Debug("Listening for control commands", "socket", srv.Path())

	loop := session.New(session.OptionsFromConfig(cfg), session.Deps{
		WakeWord:    detector,
		Recorder:    recorder,
		Transcriber: transcriber,
		Generator:   generator,
		Synthesizer: synth,
		Player:      player,
		Mixer:       mixer,
		Observers:   observers,
		Logger:      log.Default(),
	})

	log.Info("Boot up - successful")

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.Go(func() error { return srv.Serve(ctx) })
	if notifier != nil {
		g.Go(func() error {
			notifier.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		return loop.Run(ctx)
	})
	return g.Wait()
}

func control(trigger *wakeword.Trigger, store *journal.Store) ipc.Handler {
	return func(ctx context.Context, req ipc.Request) (any, error) {
		switch req.Cmd {
		case ipc.CmdTrigger:
			if !trigger.Fire() {
				log.Debug("Trigger already pending")
			}
			return nil, nil
		case ipc.CmdHistory:
			if store == nil {
				return nil, errors.New("journal disabled")
			}
			return store.Recent(ctx, req.Limit)
		default:
			log.Warn("Unknown command", "cmd", req.Cmd)
			return nil, fmt.Errorf("unknown command %q", req.Cmd)
		}
	}
}
