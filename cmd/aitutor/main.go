// AITutor — a lesson playback engine with voice interruptions.
//
// Usage:
//
//	aitutor [-serve] [-verbose] [-quiet]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/purelyricky/aitutor/internal/audio"
	"github.com/purelyricky/aitutor/internal/config"
	"github.com/purelyricky/aitutor/internal/display"
	"github.com/purelyricky/aitutor/internal/domain"
	"github.com/purelyricky/aitutor/internal/lesson"
	"github.com/purelyricky/aitutor/internal/logger"
	"github.com/purelyricky/aitutor/internal/playback"
	"github.com/purelyricky/aitutor/internal/schedule"
	"github.com/purelyricky/aitutor/internal/server"
	"github.com/purelyricky/aitutor/internal/storage"
	"github.com/purelyricky/aitutor/internal/stt"
	"github.com/purelyricky/aitutor/internal/vad"
)

func main() {
	_ = godotenv.Load()

	serve := flag.Bool("serve", false, "run the HTTP/websocket server instead of the terminal playground")
	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", ".aitutor-logs/aitutor.log", "file to write logs to (use \"stderr\" to log to console)")
	noAudio := flag.Bool("no-audio", false, "disable local audio output")
	mic := flag.Bool("mic", false, "enable the microphone energy feed (playground only)")
	voice := flag.Bool("voice", false, "transcribe interruptions via local Whisper STT (implies -mic)")
	flag.Parse()

	cfg := config.Load()

	// Configure logger.
	logLevel := logger.LevelNormal
	if *verbose || cfg.Server.LogLevel == "debug" {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Direct logs to a file by default so the terminal stays clean.
	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		dir := filepath.Dir(*logFile)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Redirect Go's default log package (used by third-party libs like
	// the whisper transcriber) to the same output so it doesn't spam
	// the terminal.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *serve {
		runServer(ctx, cfg, log)
		return
	}
	runPlayground(ctx, cancel, cfg, log, *noAudio, *mic || *voice, *voice)
}

// coordinatorOptions maps the loaded config onto coordinator options.
func coordinatorOptions(cfg config.Config) []playback.Option {
	return []playback.Option{
		playback.WithCooldown(cfg.VAD.Cooldown),
		playback.WithSchedulerOptions(
			schedule.WithIdleTick(cfg.Scheduler.IdleTick),
			schedule.WithBusyTick(cfg.Scheduler.BusyTick),
			schedule.WithMinSpacing(cfg.Scheduler.MinSpacing),
		),
		playback.WithArbiterOptions(
			vad.WithEnergyThreshold(cfg.VAD.EnergyThreshold),
			vad.WithMinSpeakingFrames(cfg.VAD.MinSpeakingFrames),
			vad.WithMaxSilenceFrames(cfg.VAD.MaxSilenceFrames),
			vad.WithEndDebounce(cfg.VAD.EndDebounce),
		),
	}
}

// ── Server mode ──────────────────────────────────────────────────

func runServer(ctx context.Context, cfg config.Config, log *logger.Logger) {
	store := storage.NewMemoryStore(log)
	lessons := lesson.NewMemorySource(log)
	reg := server.NewRegistry()

	manager := server.NewManager(store, lessons, reg, log, coordinatorOptions(cfg)...)
	defer manager.StopAll()

	janitor := storage.NewJanitor(store, log,
		storage.WithSweepInterval(cfg.Janitor.SweepInterval),
		storage.WithIdleTimeout(cfg.Janitor.IdleTimeout),
		storage.WithRetention(cfg.Janitor.Retention),
	)
	go janitor.Run(ctx)

	api := server.NewAPI(manager, lessons, log)
	socket := server.NewSocket(manager, reg, log)
	router := server.SetupRouter(api, socket)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("listening on :%s", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server: %v", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// ── Playground mode ──────────────────────────────────────────────

func runPlayground(ctx context.Context, cancel context.CancelFunc, cfg config.Config, log *logger.Logger, noAudio, mic, voice bool) {
	store := storage.NewMemoryStore(log)
	lessons := lesson.NewMemorySource(log)

	// Local audio sink for lesson speech. The playground has no TTS
	// upstream, so unless someone enqueues PCM this mostly matters for
	// the barge-in stop path.
	var sink domain.AudioSink
	if noAudio || !cfg.Audio.Enabled {
		sink = audio.NewNoOpSink(log)
	} else {
		player, err := audio.NewPlayer(log, audio.WithQueueCapacity(cfg.Audio.QueueCapacity))
		if err != nil {
			log.Error("audio player init failed, audio disabled: %v", err)
			sink = audio.NewNoOpSink(log)
		} else {
			go player.Start(ctx)
			sink = player
		}
	}

	sess := &domain.Session{
		ID:        uuid.NewString(),
		Topic:     "playground",
		Status:    domain.SessionIdle,
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	app := &cliApp{
		lessons: lessons,
		log:     log,
	}

	coord := playback.New(sess, app, sink, store, log, coordinatorOptions(cfg)...)
	app.coord = coord
	if p, ok := sink.(*audio.Player); ok {
		p.OnChunkEnd = coord.AudioChunkEnded
		p.OnQueueEmpty = coord.AudioQueueEmpty
	}

	ui := display.NewUI(func() []display.PlaybackStatus {
		s := coord.Session()
		prog := coord.Progress()
		return []display.PlaybackStatus{{
			Topic:     s.Topic,
			Status:    s.Status.String(),
			Elapsed:   prog.Elapsed,
			Completed: prog.Completed,
			Total:     prog.Total,
			Speaking:  coord.UserSpeaking(),
		}}
	})
	app.ui = ui

	coord.OnComplete = func() {
		ui.PrintInfo("Lesson complete.")
	}
	coord.OnInterrupt = func() {
		ui.PrintHint("(you interrupted; lesson audio stopped)")
	}
	coord.OnEndOfSpeech = func() {
		ui.PrintHint("(done talking)")
	}

	// Microphone energy feed.
	if mic {
		capture := audio.NewCapture(log, audio.WithDeviceRate(cfg.Audio.CaptureRate))
		capture.OnEnergy = coord.FeedEnergy
		go func() {
			if err := capture.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("capture: %v", err)
			}
		}()
	}

	// Whisper transcription of interruptions.
	if voice {
		if _, err := os.Stat(cfg.Whisper.Model); err != nil {
			fmt.Fprintf(os.Stderr, "error: whisper model not found at %s\n", cfg.Whisper.Model)
			os.Exit(1)
		}
		os.MkdirAll(cfg.Whisper.TempDir, 0o755)
		transcriber := stt.New(cfg.Whisper.Bin, cfg.Whisper.Model, log,
			stt.WithTempDir(cfg.Whisper.TempDir),
		)
		transcriber.OnTranscript = func(text string) {
			ui.PrintVoice(text)
		}
		coord.OnInterrupt = func() {
			ui.PrintHint("(you interrupted; listening...)")
			transcriber.BeginUtterance()
		}
		coord.OnEndOfSpeech = func() {
			transcriber.EndUtterance()
		}
		log.Info("voice transcription enabled (bin=%s, model=%s)", cfg.Whisper.Bin, cfg.Whisper.Model)
	}

	fmt.Println(display.RenderBanner())
	if mic {
		fmt.Println(display.BannerStyle.Render("  Mic ON — talk over a playing lesson to interrupt it."))
	}
	fmt.Println(display.BannerStyle.Render("  Type 'help' for commands, 'quit' to exit."))
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
	coord.Stop()
}

// cliApp drives a single local session from typed commands. It is also
// the session's executor: whiteboard commands print into the scrollback
// and are acked after a short animation delay.
type cliApp struct {
	coord   *playback.Coordinator
	lessons domain.ScriptSource
	log     *logger.Logger
	ui      *display.UI
}

// Execute implements domain.Executor.
func (a *cliApp) Execute(command string) {
	if command == "" {
		return
	}
	a.ui.PrintAction(command)
	// Stand-in for the whiteboard animation.
	time.AfterFunc(400*time.Millisecond, a.coord.NotifyActionComplete)
}

func (a *cliApp) run(ctx context.Context) {
	a.showLessons(ctx)

	// Caption watcher: echo narration lines as playback reaches them.
	go a.watchCaptions(ctx)

	uiCh := a.ui.InputChan()
	for {
		var input string
		var ok bool

		select {
		case <-ctx.Done():
			return
		case input, ok = <-uiCh:
			if !ok {
				return
			}
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		cmd, arg := splitCommand(input)
		switch cmd {
		case "help":
			a.showHelp()
		case "lessons", "list":
			a.showLessons(ctx)
		case "play", "start":
			a.play(ctx, arg)
		case "stop":
			a.coord.Stop()
			a.ui.PrintInfo("Stopped.")
		case "status":
			a.status()
		case "quit", "exit":
			a.coord.Stop()
			return
		default:
			a.ui.PrintHint(fmt.Sprintf("Unknown command %q. Type 'help'.", input))
		}
	}
}

func (a *cliApp) watchCaptions(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			caption, ok := a.coord.Caption()
			if ok && caption != last {
				a.ui.PrintCaption(caption)
				last = caption
			}
		}
	}
}

func (a *cliApp) showLessons(ctx context.Context) {
	lessons, err := a.lessons.List(ctx)
	if err != nil {
		a.ui.PrintUrgent(fmt.Sprintf("Error loading lessons: %v", err))
		return
	}

	a.ui.PrintInfo("Available lessons:")
	a.ui.Println("")
	for _, l := range lessons {
		a.ui.PrintInfo(fmt.Sprintf("  %s — %s", l.ID, l.Topic))
		a.ui.PrintHint("    " + l.Description)
	}
	a.ui.Println("")
	a.ui.PrintHint("Type 'play <lesson-id>' to start one.")
}

func (a *cliApp) play(ctx context.Context, id string) {
	if id == "" {
		a.ui.PrintHint("Usage: play <lesson-id>")
		return
	}
	l, err := a.lessons.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.ui.PrintUrgent(fmt.Sprintf("No lesson named %q. Type 'lessons' to list them.", id))
		} else {
			a.ui.PrintUrgent(fmt.Sprintf("Error: %v", err))
		}
		return
	}

	a.coord.Stop()
	a.coord.LoadResponse(l.Script)
	a.coord.Start()
	a.ui.PrintInfo(fmt.Sprintf("Playing: %s", l.Topic))
}

func (a *cliApp) status() {
	sess := a.coord.Session()
	prog := a.coord.Progress()

	a.ui.PrintInfo(fmt.Sprintf("Status:    %s", sess.Status))
	a.ui.PrintInfo(fmt.Sprintf("Elapsed:   %s", prog.Elapsed.Round(time.Second)))
	a.ui.PrintInfo(fmt.Sprintf("Actions:   %d/%d done, %d remaining", prog.Completed, prog.Total, prog.Remaining))
	if caption, ok := a.coord.Caption(); ok {
		a.ui.PrintHint("Saying:    " + caption)
	}
	if a.coord.UserSpeaking() {
		a.ui.PrintHint("Mic:       you are talking")
	}
}

func (a *cliApp) showHelp() {
	a.ui.PrintInfo("Commands:")
	a.ui.PrintInfo("  lessons / list   Show the built-in lesson catalogue")
	a.ui.PrintInfo("  play <id>        Load and play a lesson")
	a.ui.PrintInfo("  stop             Stop playback")
	a.ui.PrintInfo("  status           Show playback progress")
	a.ui.PrintInfo("  help             Show this message")
	a.ui.PrintInfo("  quit / exit      Stop and exit")
}

func splitCommand(input string) (cmd, arg string) {
	parts := strings.SplitN(input, " ", 2)
	cmd = strings.ToLower(parts[0])
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return cmd, arg
}
