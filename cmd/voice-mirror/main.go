// Voice Mirror — reads typed text back aloud.
//
// Usage:
//
//	voice-mirror [-verbose] [-quiet] [-adapter piper|openai|elevenlabs|mock]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/contextmirror/voice-mirror/internal/audio"
	"github.com/contextmirror/voice-mirror/internal/config"
	"github.com/contextmirror/voice-mirror/internal/display"
	"github.com/contextmirror/voice-mirror/internal/logger"
	"github.com/contextmirror/voice-mirror/internal/text"
	"github.com/contextmirror/voice-mirror/internal/tts"
)

func main() {
	_ = godotenv.Load()

	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", "", "file to write logs to (use \"stderr\" to log to console)")
	configPath := flag.String("config", "", "path to the YAML settings file")
	adapterName := flag.String("adapter", "", "TTS adapter to use (overrides config)")
	voiceName := flag.String("voice", "", "voice to synthesize with (overrides config)")
	noCache := flag.Bool("no-cache", false, "disable the synthesized-audio cache")
	cacheDir := flag.String("cache-dir", "", "directory for the persistent audio cache (overrides config)")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Flags win over config file and env.
	if *adapterName != "" {
		settings.TTS.Adapter = *adapterName
	}
	if *voiceName != "" {
		settings.TTS.Voice = *voiceName
	}
	if *cacheDir != "" {
		settings.TTS.CacheDir = *cacheDir
	}
	if *logFile != "" {
		settings.Log.File = *logFile
	}

	// Configure logger.
	logLevel := logger.LevelNormal
	switch settings.Log.Level {
	case "off":
		logLevel = logger.LevelOff
	case "verbose":
		logLevel = logger.LevelVerbose
	}
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Direct logs to a file by default so the REPL stays clean.
	var logOut io.Writer = os.Stderr
	if settings.Log.File != "" && settings.Log.File != "stderr" {
		dir := filepath.Dir(settings.Log.File)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(settings.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", settings.Log.File, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Redirect Go's default log package (used by third-party libs) to
	// the same output so it doesn't spam the terminal.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resolve and build the TTS adapter.
	registry := tts.DefaultRegistry()

	name := strings.ToLower(strings.TrimSpace(settings.TTS.Adapter))
	if name == "" {
		name, err = registry.DefaultName()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	adapter, err := registry.Create(name, tts.Options{
		Voice:     settings.TTS.Voice,
		APIKey:    settings.TTS.APIKey,
		Endpoint:  settings.TTS.Endpoint,
		ModelPath: settings.TTS.ModelPath,
	}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if !adapter.Load() {
		fmt.Fprintf(os.Stderr, "error: adapter %q failed to load (missing binary, model, or API key?)\n", name)
		fmt.Fprintf(os.Stderr, "available adapters: %s\n", strings.Join(registry.Names(), ", "))
		os.Exit(1)
	}
	log.Info("adapter %s loaded", adapter.DisplayName())

	// Effective voice: the configured one, or the adapter's default.
	voice := settings.TTS.Voice
	if voice == "" {
		if vs := adapter.Voices(); len(vs) > 0 {
			voice = vs[0]
		}
	}

	// Wrap with the audio cache unless disabled. Keyed by the
	// effective voice so a voice switch never serves stale audio.
	if !*noCache {
		cache := tts.NewAudioCache(voice, settings.TTS.CacheDir, settings.TTS.DiskCache, log)
		adapter = tts.NewCachingAdapter(adapter, cache, log)
	}

	player, err := audio.NewPlayer(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: audio device init failed: %v\n", err)
		os.Exit(1)
	}

	pipeline := tts.NewPipeline(adapter, player, log,
		tts.WithMaxChars(settings.TTS.MaxChars),
		tts.WithSettleDelay(time.Duration(settings.TTS.SettleMS)*time.Millisecond),
		tts.WithSynthTimeout(time.Duration(settings.TTS.SynthTimeoutMS)*time.Millisecond),
	)

	// Warm the cache for the fixed lines the app always speaks.
	pipeline.Prefetch(ctx, lineReady, lineBye)

	ui := display.NewUI(func() display.Status {
		return display.Status{
			Adapter:  adapter.DisplayName(),
			Voice:    voice,
			Speaking: pipeline.IsSpeaking(),
		}
	})

	app := &cliApp{
		pipeline: pipeline,
		adapter:  adapter,
		registry: registry,
		log:      log,
		ui:       ui,
	}

	fmt.Println(display.RenderBanner())
	fmt.Println(display.BannerStyle.Render("  Type anything and hear it spoken. 'help' for commands, 'quit' to exit."))
	fmt.Println()

	// Run app logic in a background goroutine.
	go func() {
		ui.WaitReady()
		app.run(ctx)
		ui.Quit()
	}()

	// Bubble Tea owns the terminal — blocks until quit.
	if err := ui.Run(); err != nil {
		log.Error("display: %v", err)
	}
	cancel()
	pipeline.Interrupt()
}

const (
	lineReady = "Ready when you are."
	lineBye   = "Goodbye!"
)

type cliApp struct {
	pipeline *tts.Pipeline
	adapter  tts.Adapter
	registry *tts.Registry
	log      *logger.Logger
	ui       *display.UI
}

func (a *cliApp) run(ctx context.Context) {
	a.speak(ctx, lineReady)

	inputCh := a.ui.InputChan()
	interruptCh := a.ui.InterruptChan()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.ui.QuitChan():
			return
		case <-interruptCh:
			a.pipeline.Interrupt()
		case input, ok := <-inputCh:
			if !ok {
				return
			}
			if a.handle(ctx, input) {
				return
			}
		}
	}
}

// handle dispatches one input line. Returns true when the app should exit.
func (a *cliApp) handle(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}

	switch strings.ToLower(input) {
	case "help":
		a.showHelp()
	case "stop", "shh":
		a.pipeline.Interrupt()
	case "voices":
		a.ui.PrintInfo("Voices for " + a.adapter.DisplayName() + ":")
		for _, v := range a.adapter.Voices() {
			a.ui.PrintHint("  " + v)
		}
	case "adapters":
		a.ui.PrintInfo("Registered adapters:")
		for _, n := range a.registry.Names() {
			a.ui.PrintHint("  " + n)
		}
	case "quit", "exit":
		a.speak(ctx, lineBye)
		// Brief pause so the goodbye line can start playing.
		time.Sleep(300 * time.Millisecond)
		return true
	default:
		a.speak(ctx, input)
	}
	return false
}

// speak mirrors the text back through the synthesis pipeline. A new
// line interrupts whatever is currently playing.
func (a *cliApp) speak(ctx context.Context, raw string) {
	spoken := text.StripMarkdown(raw)
	if spoken == "" {
		return
	}

	a.pipeline.Interrupt()
	go func() {
		// Wait for the interrupted run to finish its cleanup before
		// starting the new one.
		deadline := time.Now().Add(3 * time.Second)
		for a.pipeline.IsSpeaking() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}

		a.pipeline.Speak(ctx, spoken, tts.Callbacks{
			OnStart: func() { a.log.Debug("speaking %d chars", len(spoken)) },
			OnEnd:   func() { a.log.Debug("utterance complete") },
		})
	}()
}

func (a *cliApp) showHelp() {
	a.ui.PrintInfo("Commands:")
	a.ui.PrintHint("  <any text>   Speak the text aloud (markdown is stripped)")
	a.ui.PrintHint("  stop / Esc   Stop the current utterance")
	a.ui.PrintHint("  voices       List voices for the active adapter")
	a.ui.PrintHint("  adapters     List registered TTS adapters")
	a.ui.PrintHint("  help         Show this message")
	a.ui.PrintHint("  quit / exit  Exit")
}
