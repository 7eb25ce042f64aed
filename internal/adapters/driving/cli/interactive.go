package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui"
	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/views/ask"
	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/logger"
)

var (
	interactivePlain       bool
	interactiveShowSources bool
	interactiveTopK        int
)

// isTerminal reports whether the session can run the full-screen UI.
var isTerminal = func(cmd *cobra.Command) bool {
	in, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return false
	}
	out, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(in.Fd())) && term.IsTerminal(int(out.Fd()))
}

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"chat"},
	Short:   "Ask questions in an interactive session",
	Long: `Start a session that answers questions until you leave it.

Commands:
  exit, quit  Leave the session
  rebuild     Re-index the corpus
  help        Show the commands

Anything else is asked as a question. If no index exists one is built
first. The corpus is watched while the session runs, and a notice is shown
when files change.

A full-screen interface is used on a terminal. Use --plain, or pipe input,
for a line-based session.`,
	Args: cobra.NoArgs,
	RunE: runInteractive,
}

func init() {
	interactiveCmd.Flags().BoolVar(&interactivePlain, "plain", false, "use the line-based session even on a terminal")
	interactiveCmd.Flags().BoolVarP(&interactiveShowSources, "show-sources", "s", false, "print the passages each answer is based on")
	interactiveCmd.Flags().IntVarP(&interactiveTopK, "top-k", "k", 0, "number of passages to retrieve (default retrieval.top_k)")
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	if answerService == nil {
		return errNotConfigured("answer")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := ensureIndex(ctx, cmd); err != nil {
		return err
	}

	if !interactivePlain && isTerminal(cmd) {
		return runTUI(ctx)
	}
	return runLineSession(ctx, cmd)
}

// ensureIndex builds the index when none exists yet.
func ensureIndex(ctx context.Context, cmd *cobra.Command) error {
	if indexingService == nil {
		return nil
	}
	info, err := indexingService.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}
	if info.State() != domain.CollectionMissing {
		return nil
	}

	cmd.Println("No existing index found. Building new index...")
	result, err := indexingService.Build(ctx, domain.BuildRequest{})
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	printBuildResult(cmd, result)
	return nil
}

func runTUI(ctx context.Context) error {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	app, err := tui.NewApp(tui.NewPorts(answerService, indexingService), ask.Options{
		TopK:        interactiveTopK,
		ShowSources: interactiveShowSources,
	})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(ctx)

	if err := app.WatchCorpus(); err != nil {
		logger.Warn("Corpus watch disabled: %v", err)
	}

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// lockedWriter serialises writes from the session and the corpus watcher.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func runLineSession(ctx context.Context, cmd *cobra.Command) error {
	out := &lockedWriter{w: cmd.OutOrStdout()}

	fmt.Fprintln(out, strings.Repeat("=", 80))
	fmt.Fprintln(out, "Interactive query mode")
	fmt.Fprintln(out, "Type 'exit' or 'quit' to exit, 'rebuild' to rebuild the index")
	fmt.Fprintln(out, strings.Repeat("=", 80))

	notice := watchCorpus(ctx, out)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		notice.rearm()
		fmt.Fprint(out, "\nYour question: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "Exiting...")
			return nil
		case "help":
			fmt.Fprintln(out, "Commands: exit, quit, rebuild, help. Anything else is asked as a question.")
			continue
		case "rebuild":
			rebuildInSession(ctx, out)
			continue
		}

		answer, err := answerService.Answer(ctx, line, domain.AnswerOptions{TopK: interactiveTopK})
		if err != nil {
			// A failed question never ends the session
			fmt.Fprintf(out, "Error processing query: %v\n", err)
			continue
		}
		fmt.Fprintln(out, strings.Repeat("=", 80))
		writeAnswerText(out, answer, interactiveShowSources)
		fmt.Fprintln(out, strings.Repeat("=", 80))
	}
}

func rebuildInSession(ctx context.Context, out io.Writer) {
	if indexingService == nil {
		fmt.Fprintln(out, "Rebuild is not available in this session.")
		return
	}
	fmt.Fprintln(out, "Rebuilding index...")
	result, err := indexingService.Build(ctx, domain.BuildRequest{Rebuild: true})
	if err != nil {
		fmt.Fprintf(out, "Rebuild failed: %v\n", err)
		return
	}
	fmt.Fprintln(out, ask.BuildSummary(result))
	for _, o := range result.SkippedOutcomes() {
		fmt.Fprintf(out, "  skipped %s: %v\n", o.Path, o.Err)
	}
}

// changeNotice prints the corpus-changed notice at most once per prompt.
// Saving a file usually produces a burst of events.
type changeNotice struct {
	mu    sync.Mutex
	out   io.Writer
	shown bool
}

func (n *changeNotice) changed() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.shown {
		return
	}
	n.shown = true
	fmt.Fprintf(n.out, "\n[%s]\n", ask.CorpusChangedNotice)
}

// rearm lets the next change print again. A nil notice does nothing.
func (n *changeNotice) rearm() {
	if n == nil {
		return
	}
	n.mu.Lock()
	n.shown = false
	n.mu.Unlock()
}

// watchCorpus reports corpus changes on out until ctx ends. It returns nil
// when the corpus cannot be watched.
func watchCorpus(ctx context.Context, out io.Writer) *changeNotice {
	if indexingService == nil {
		return nil
	}
	changes, err := indexingService.Watch(ctx)
	if err != nil {
		logger.Warn("Corpus watch disabled: %v", err)
		return nil
	}
	notice := &changeNotice{out: out}
	go relayChanges(changes, notice)
	return notice
}

// relayChanges drains changes into notice until the channel closes.
func relayChanges(changes <-chan domain.CorpusChange, notice *changeNotice) {
	for change := range changes {
		logger.Debug("Corpus %s: %s", change.Type, change.Path)
		notice.changed()
	}
}
