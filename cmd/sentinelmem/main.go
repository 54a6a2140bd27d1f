package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sammyboi1801/SentinelAI/internal/archiver"
	"github.com/sammyboi1801/SentinelAI/internal/config"
	"github.com/sammyboi1801/SentinelAI/internal/embeddings"
	"github.com/sammyboi1801/SentinelAI/internal/llm"
	"github.com/sammyboi1801/SentinelAI/internal/logging"
	"github.com/sammyboi1801/SentinelAI/internal/memory"
)

var (
	dataDirFlag string

	contextFlag   string
	predicateFlag string
	objectFlag    string
	limitFlag     int
	yesFlag       bool
)

var rootCmd = &cobra.Command{
	Use:   "sentinelmem",
	Short: "SentinelAI long-term memory",
	Long:  `sentinelmem manages the SentinelAI agent's long-term memory: facts, relevance recall and the daily activity log.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data directory (default ~/.sentinelai)")

	rememberCmd.Flags().StringVar(&contextFlag, "context", "", "context tag for the fact")
	forgetCmd.Flags().StringVar(&predicateFlag, "predicate", "", "substring the fact's predicate must contain")
	forgetCmd.Flags().StringVar(&objectFlag, "object", "", "substring the fact's object must contain")
	recallCmd.Flags().IntVar(&limitFlag, "limit", 5, "maximum memories to return")
	wipeCmd.Flags().BoolVar(&yesFlag, "yes", false, "skip the confirmation prompt")

	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(reflectCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(wipeCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

// app bundles the wired components behind each command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	tools  *memory.Tools
}

func buildApp() (*app, error) {
	cfg, err := config.Load(dataDirFlag)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	embedder := embeddings.ForConfig(cfg)
	store := memory.NewStore(cfg, logger, embedder)

	var gen llm.Generator
	if cfg.LLMAPIKey != "" || cfg.LLMBaseURL != "" {
		gen = llm.NewClient(cfg)
	}
	arch := archiver.New(gen, store, cfg.ArchiveMinLength, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		tools:  memory.NewTools(store, arch),
	}, nil
}

func runWithApp(run func(a *app, cmd *cobra.Command, args []string)) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		a, err := buildApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.logger.Sync()
		run(a, cmd, args)
	}
}

var rememberCmd = &cobra.Command{
	Use:   "remember <subject> <predicate> <object...>",
	Short: "Store a fact in long-term memory",
	Args:  cobra.MinimumNArgs(3),
	Run: runWithApp(func(a *app, cmd *cobra.Command, args []string) {
		object := strings.Join(args[2:], " ")
		fmt.Println(a.tools.StoreFact(cmd.Context(), args[0], args[1], object, contextFlag))
	}),
}

var forgetCmd = &cobra.Command{
	Use:   "forget <subject>",
	Short: "Delete facts about a subject",
	Args:  cobra.ExactArgs(1),
	Run: runWithApp(func(a *app, cmd *cobra.Command, args []string) {
		fmt.Println(a.tools.DeleteFact(cmd.Context(), args[0], predicateFlag, objectFlag))
	}),
}

var recallCmd = &cobra.Command{
	Use:   "recall <query...>",
	Short: "Retrieve memories relevant to a query",
	Args:  cobra.MinimumNArgs(1),
	Run: runWithApp(func(a *app, cmd *cobra.Command, args []string) {
		query := strings.Join(args, " ")
		result := a.tools.RetrieveRelevantContext(cmd.Context(), query, limitFlag)
		if result == "" {
			result = "No long-term memories found."
		}
		fmt.Println(result)
	}),
}

var logCmd = &cobra.Command{
	Use:   "log <action> <details...>",
	Short: "Append an entry to the activity log",
	Args:  cobra.MinimumNArgs(2),
	Run: runWithApp(func(a *app, cmd *cobra.Command, args []string) {
		a.tools.LogActivity(args[0], strings.Join(args[1:], " "))
		fmt.Println("Logged.")
	}),
}

var reflectCmd = &cobra.Command{
	Use:   "reflect [date]",
	Short: "Show the activity log for a day (default today)",
	Args:  cobra.MaximumNArgs(1),
	Run: runWithApp(func(a *app, cmd *cobra.Command, args []string) {
		date := ""
		if len(args) == 1 {
			date = args[0]
		}
		fmt.Println(a.tools.ReflectOnDay(date))
	}),
}

var archiveCmd = &cobra.Command{
	Use:   "archive <user-text> <ai-text>",
	Short: "Distill a conversation exchange into facts",
	Args:  cobra.ExactArgs(2),
	Run: runWithApp(func(a *app, cmd *cobra.Command, args []string) {
		a.tools.ArchiveInteraction(args[0], args[1])
		fmt.Println("Archive requested.")
	}),
}

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Erase all long-term memory",
	Run: runWithApp(func(a *app, cmd *cobra.Command, args []string) {
		if !yesFlag && !confirm("This permanently erases all long-term memory. Type 'yes' to continue: ") {
			fmt.Println("Aborted.")
			return
		}

		a.tools.Teardown()
		removeDataFiles(a.cfg)
		fmt.Println("Memory wiped. It will be rebuilt on next use.")
	}),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sentinelmem v0.1.0")
	},
}

var completionCmd = &cobra.Command{
	Use:       "completion [bash|zsh|fish|powershell]",
	Short:     "Generate the autocompletion script for the specified shell",
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		switch args[0] {
		case "bash":
			err = cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			err = cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			err = cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			err = cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating completion script: %v\n", err)
			os.Exit(1)
		}
	},
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}

// removeDataFiles deletes the on-disk stores after teardown. The SQLite WAL
// sidecar files go with the database.
func removeDataFiles(cfg *config.Config) {
	os.RemoveAll(cfg.VectorDir)
	os.Remove(cfg.DBPath)
	os.Remove(cfg.DBPath + "-wal")
	os.Remove(cfg.DBPath + "-shm")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
