package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"innervoice/internal/analyze"
	"innervoice/internal/capture"
	"innervoice/internal/config"
	"innervoice/internal/connectivity"
	"innervoice/internal/database"
	"innervoice/internal/export"
	"innervoice/internal/generate"
	"innervoice/internal/journal"
	"innervoice/internal/latency"
	"innervoice/internal/llm"
	"innervoice/internal/session"
	"innervoice/internal/transcribe"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "innervoice",
	Short:   "Voice journaling with AI follow-up interviews",
	Long:    "innervoice turns voice journal entries into short guided interviews, then derives tags, feelings, and a summary from the conversation.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// .env carries API keys; absence is fine.
		godotenv.Load()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(followupCmd)
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statusCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("innervoice", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/innervoice/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the capture command and transcription/generation providers.")
		return nil
	},
}

// --- record command ---

var (
	keepAudio     bool
	recordFeeling string
)

var recordCmd = &cobra.Command{
	Use:   "record <audio-file>",
	Short: "Create a journal entry from a recorded audio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		audio, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading audio file: %w", err)
		}

		transcriber := newTranscriber()
		if transcriber == nil {
			return fmt.Errorf("no transcription provider available")
		}

		fmt.Println("Transcribing...")
		transcript, err := transcriber.Transcribe(context.Background(), audio)
		if err != nil {
			return fmt.Errorf("transcribing: %w", err)
		}

		var audioPath *string
		if keepAudio {
			audioPath = &args[0]
		}

		svc := journal.NewService(db)
		entry, err := svc.CreateEntry(transcript, audioPath)
		if err != nil {
			return err
		}

		if recordFeeling != "" {
			cat, ok := canonicalCategory(recordFeeling)
			if !ok {
				return fmt.Errorf("unknown feeling category %q (expected one of %s)",
					recordFeeling, strings.Join(generate.CategoryOrder, ", "))
			}
			if err := db.UpdateEntryFeeling(entry.ID, cat); err != nil {
				return err
			}
		}

		fmt.Printf("\nEntry created: %s\n", entry.ID)
		fmt.Printf("Transcript: %s\n", transcript)
		fmt.Printf("Streak: %d day(s), best %d. Next milestone: %d.\n",
			entry.CurrentStreak, entry.HighestStreak, svc.NextMilestone(entry.CurrentStreak))
		fmt.Printf("\nRun 'innervoice followup %s' to explore this entry.\n", entry.ID)
		return nil
	},
}

func init() {
	recordCmd.Flags().BoolVar(&keepAudio, "keep-audio", false, "Store the audio file path on the entry")
	recordCmd.Flags().StringVar(&recordFeeling, "feeling", "", "Overall feeling category (Great, Good, Fine, Bad, Terrible)")
}

func canonicalCategory(s string) (string, bool) {
	for _, c := range generate.CategoryOrder {
		if strings.EqualFold(c, s) {
			return c, true
		}
	}
	return "", false
}

// --- followup command ---

var textMode bool

var followupCmd = &cobra.Command{
	Use:   "followup <entry-id>",
	Short: "Run an AI-guided follow-up interview for an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		entry, err := db.GetEntry(args[0])
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("entry %s not found", args[0])
		}

		provider := llm.CreateProvider(
			cfg.Generation.Provider,
			cfg.Generation.Model,
			cfg.Generation.OllamaURL,
			cfg.Generation.OpenAIModel,
			cfg.Generation.APIKeyEnv,
		)
		if provider == nil {
			return fmt.Errorf("no text-generation provider available")
		}
		gen := generate.NewService(provider, cfg.Generation.MaxTokens)

		var transcriber transcribe.Transcriber
		var recorder capture.Recorder
		typed := &typedAnswers{}
		if textMode {
			transcriber = typed
			recorder = typed
		} else {
			transcriber = newTranscriber()
			if transcriber == nil {
				return fmt.Errorf("no transcription provider available")
			}
			recorder = capture.NewCommandRecorder(cfg.Capture.Command)
		}

		engine := session.NewEngine(session.Deps{
			Store:       db,
			Generator:   gen,
			Transcriber: transcriber,
			Recorder:    recorder,
			Network:     connectivity.NewChecker(cfg.Session.ConnectivityURL),
			Latency:     latency.NewTracker(cfg.Session.LatencyWindow, cfg.LatencyThresholdDuration()),
			Analyzer:    analyze.New(db, gen, cfg.Session.MaxTags),
		})

		return runInterview(engine, entry, typed)
	},
}

func init() {
	followupCmd.Flags().BoolVar(&textMode, "text", false, "Type answers instead of recording them")
}

// runInterview drives the session loop on the terminal.
func runInterview(engine *session.Engine, entry *database.Entry, typed *typedAnswers) error {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Starting follow-up interview. Press Enter to record an answer, type it directly in --text mode, or enter 'q' to finish early.")
	if err := engine.Start(ctx, entry); err != nil {
		return err
	}

	for {
		state, errMsg := engine.State()
		switch state {
		case session.StateFinished:
			fmt.Println("\nInterview complete. Tags, feelings, and a summary have been derived.")
			return nil
		case session.StateErrored:
			return fmt.Errorf("session failed: %s", errMsg)
		case session.StateShowingQuestion:
			fmt.Printf("\n> %s\n", engine.CurrentQuestion())
			if engine.Degraded() {
				fmt.Println("(network seems slow, responses may take a while)")
			}
		default:
			return fmt.Errorf("unexpected session state %s", state)
		}

		fmt.Print("answer: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			engine.EndExternally(ctx)
			continue
		}
		line = strings.TrimSpace(line)

		if line == "q" {
			engine.EndExternally(ctx)
			continue
		}

		if err := engine.BeginAnswerCapture(); err != nil {
			return err
		}

		if textMode {
			if line == "" {
				fmt.Println("(empty answer, ending interview)")
				engine.EndExternally(ctx)
				continue
			}
			typed.next = line
			if err := engine.BeginRecording(); err != nil {
				continue
			}
			engine.EndRecordingAndProcess(ctx)
			continue
		}

		if err := engine.BeginRecording(); err != nil {
			continue
		}
		fmt.Print("Recording... press Enter to stop.")
		reader.ReadString('\n')
		engine.EndRecordingAndProcess(ctx)
	}
}

// typedAnswers adapts typed text to the capture and transcription
// interfaces so --text mode can reuse the full session flow.
type typedAnswers struct {
	next string
}

func (t *typedAnswers) Start() (*capture.Recording, error)        { return &capture.Recording{}, nil }
func (t *typedAnswers) Stop(_ *capture.Recording) ([]byte, error) { return []byte(t.next), nil }
func (t *typedAnswers) Cancel(_ *capture.Recording) error         { return nil }
func (t *typedAnswers) IsConfigured() bool                        { return true }
func (t *typedAnswers) Transcribe(_ context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty answer")
	}
	return string(audio), nil
}

// --- entries / show commands ---

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.ListEntries()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No entries yet. Run 'innervoice record' to create one.")
			return nil
		}

		for _, e := range entries {
			title := e.Transcript
			if len(title) > 50 {
				title = title[:50] + "..."
			}
			if e.Headline != nil {
				title = *e.Headline
			}
			fmt.Printf("%s  %s  %s\n", e.ID, e.CreatedAt.Format("2006-01-02 15:04"), title)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <entry-id>",
	Short: "Show an entry with its conversation and analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		e, err := db.GetEntry(args[0])
		if err != nil {
			return err
		}
		if e == nil {
			return fmt.Errorf("entry %s not found", args[0])
		}

		fmt.Printf("Entry %s (%s)\n\n", e.ID, e.CreatedAt.Format("Jan 02, 2006 15:04"))
		if e.Headline != nil {
			fmt.Printf("Headline: %s\n", *e.Headline)
		}
		fmt.Printf("Transcript: %s\n", e.Transcript)
		if len(e.Tags) > 0 {
			fmt.Printf("Tags: %s\n", strings.Join(e.Tags, ", "))
		}
		if e.Feeling != nil {
			fmt.Printf("Feeling: %s\n", *e.Feeling)
		}
		fmt.Printf("Streak: %d (best %d)\n", e.CurrentStreak, e.HighestStreak)

		feelings, err := db.GetFeelingsForEntry(e.ID)
		if err != nil {
			return err
		}
		if len(feelings) > 0 {
			var parts []string
			for _, f := range feelings {
				parts = append(parts, fmt.Sprintf("%s (%s)", f.Name, f.Category))
			}
			fmt.Printf("Identified feelings: %s\n", strings.Join(parts, ", "))
		}

		msgs, err := db.GetMessagesForEntry(e.ID)
		if err != nil {
			return err
		}
		if len(msgs) > 0 {
			fmt.Println("\nConversation:")
			for _, m := range msgs {
				fmt.Printf("  [%s] %s\n", m.Role, m.Text)
			}
		}

		if e.Summary != nil {
			fmt.Printf("\nSummary: %s\n", *e.Summary)
		}
		return nil
	},
}

// --- export command ---

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all entries as an HTML digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		html, err := export.Digest(db)
		if err != nil {
			return err
		}

		if err := os.WriteFile(exportOut, html, 0o644); err != nil {
			return fmt.Errorf("writing digest: %w", err)
		}
		fmt.Printf("Digest written to %s\n", exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "journal.html", "Output HTML file")
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Entries:")
		fmt.Printf("  Total: %d\n", stats.TotalEntries)
		fmt.Printf("  Tagged: %d\n", stats.EntriesWithTags)
		fmt.Printf("  Summarized: %d\n", stats.Summarized)
		fmt.Println("\nConversations:")
		fmt.Printf("  Turns: %d (%d answered)\n", stats.TotalTurns, stats.AnsweredTurns)
		fmt.Printf("  Messages: %d\n", stats.TotalMessages)
		fmt.Printf("  Feelings identified: %d\n", stats.TotalFeelings)
		fmt.Println("\nStreaks:")
		fmt.Printf("  Best ever: %d day(s)\n", stats.HighestStreak)
		return nil
	},
}

// --- helpers ---

func openDB() (*database.DB, error) {
	dbPath := filepath.Join(cfg.GetDataDir(), "innervoice.db")
	return database.Open(dbPath)
}

func newTranscriber() transcribe.Transcriber {
	return transcribe.CreateTranscriber(
		cfg.Transcription.Provider,
		cfg.Transcription.WhisperURL,
		cfg.Transcription.OpenAIModel,
		cfg.Transcription.APIKeyEnv,
	)
}
