package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/hypergrep/pkg/matcher"
	"github.com/praetorian-inc/hypergrep/pkg/types"
)

var (
	verbose bool

	grepExtended      bool
	grepBasic         bool
	grepPerl          bool
	grepExpressions   []string
	grepPatternFiles  []string
	grepIgnoreCase    bool
	grepCount         bool
	grepTotal         bool
	grepMaxCount      uint64
	grepOnlyMatching  bool
	grepQuiet         bool
	grepNoMessages    bool
	grepWithFilename  bool
	grepNoFilename    bool
	grepLineNumber    bool
	grepText          bool
	grepNoGNU         bool
	grepNoOrder       bool
	grepNoSort        bool
	grepRecursive     bool
	grepIncludeHidden bool
	grepNoIgnore      bool
	grepColor         string
	grepFormat        string
	grepEngine        string
	grepWorkers       int
	grepBatchSize     int
	grepLineBuffer    int
	grepMaxFileSize   int64
	grepDatabase      string
	grepIncludeNames  string
	grepExcludeNames  string
	grepHelp          bool
)

var rootCmd = &cobra.Command{
	Use:   "hypergrep [flags] PATTERN [FILE...]",
	Short: "Multi-pattern grep for large and compressed log files",
	Long: `hypergrep searches files for lines matching one or more regular expressions.

Files are scanned in parallel and gzip or zstd inputs are decompressed
transparently. Matching uses Hyperscan when it is compiled in and a portable
backtracking engine otherwise.

When no FILE is given, the list of files is read from standard input, one
path per line.`,
	Args:          cobra.ArbitraryArgs,
	RunE:          runGrep,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	flags := rootCmd.Flags()

	// -h is grep's --no-filename, so help only gets the long form.
	flags.BoolVar(&grepHelp, "help", false, "Show help")

	flags.BoolVarP(&grepExtended, "extended-regexp", "E", false, "Patterns are extended regular expressions")
	flags.BoolVarP(&grepBasic, "basic-regexp", "G", false, "Patterns are basic regular expressions (default)")
	flags.BoolVarP(&grepPerl, "perl-regexp", "P", false, "Patterns are Perl-compatible regular expressions")
	flags.StringArrayVarP(&grepExpressions, "regexp", "e", nil, "Use `PATTERN` for matching (repeatable)")
	flags.StringArrayVarP(&grepPatternFiles, "file", "f", nil, "Read patterns from `FILE`, one per line, or a YAML pattern set")
	flags.BoolVarP(&grepIgnoreCase, "ignore-case", "i", false, "Ignore case distinctions")
	flags.BoolVar(&grepNoGNU, "no-gnu", false, "Do not rewrite GNU word boundaries \\< and \\>")
	flags.StringVar(&grepIncludeNames, "include-patterns", "", "Only use patterns whose name matches these comma-separated regexes")
	flags.StringVar(&grepExcludeNames, "exclude-patterns", "", "Skip patterns whose name matches these comma-separated regexes")

	flags.BoolVarP(&grepCount, "count", "c", false, "Print only a count of matching lines per file")
	flags.BoolVarP(&grepTotal, "total", "t", false, "Print only the total count of matching lines")
	flags.Uint64VarP(&grepMaxCount, "max-count", "m", 0, "Stop reading a file after `NUM` matching lines")
	flags.BoolVarP(&grepOnlyMatching, "only-matching", "o", false, "Print only the matched parts of a line")
	flags.BoolVarP(&grepQuiet, "quiet", "q", false, "Suppress all normal output")
	flags.BoolVarP(&grepNoMessages, "no-messages", "s", false, "Suppress error messages about unreadable files")
	flags.BoolVarP(&grepWithFilename, "with-filename", "H", false, "Print the file name for each match")
	flags.BoolVarP(&grepNoFilename, "no-filename", "h", false, "Suppress the file name prefix on output")
	flags.BoolVarP(&grepLineNumber, "line-number", "n", false, "Print the line number with output lines")
	flags.BoolVarP(&grepText, "text", "a", false, "Accepted for grep compatibility; binary files are always searched")
	flags.BoolVar(&grepNoOrder, "no-order", false, "Print matches as soon as they are found instead of in file order")
	flags.StringVar(&grepColor, "color", "auto", "Color output: auto, always, never")
	flags.StringVar(&grepFormat, "format", "text", "Output format: text, json")
	flags.StringVar(&grepDatabase, "db", "", "Also record the run in this SQLite file or postgres:// DSN")

	flags.BoolVarP(&grepRecursive, "recursive", "r", false, "Read all files under each directory")
	flags.BoolVar(&grepIncludeHidden, "include-hidden", false, "Descend into hidden files and directories")
	flags.BoolVar(&grepNoIgnore, "no-ignore", false, "Do not honor .gitignore when recursing")
	flags.BoolVar(&grepNoSort, "no-sort", false, "Scan files in the order given instead of sorted")
	flags.Int64Var(&grepMaxFileSize, "max-file-size", 0, "Skip files larger than `BYTES` when recursing (0 = no limit)")

	flags.StringVar(&grepEngine, "engine", matcher.EngineAuto, "Matching engine: auto, hyperscan, portable")
	flags.IntVarP(&grepWorkers, "workers", "j", 0, "Number of files scanned concurrently (0 = one per CPU)")
	flags.IntVar(&grepBatchSize, "batch-size", types.DefaultBatchCapacity, "Matches buffered per delivery")
	flags.IntVar(&grepLineBuffer, "line-buffer", types.DefaultLineBufferSize, "Maximum line length in bytes plus one")

	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging to stderr")

	// Add subcommands
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
