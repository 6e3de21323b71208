// Package cli implements the agesplit command line.
package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/eunmann/agesplit/internal/config"
	"github.com/eunmann/agesplit/internal/logctx"
	"github.com/eunmann/agesplit/pkg/logging"
	"github.com/eunmann/agesplit/pkg/partition"
)

// Run executes the CLI with the given arguments.
func Run(args []string) error {
	root := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "agesplit",
		Short: "Split a contact export into age buckets and chunked CSV files",
		Long: `agesplit reads a delimited or parquet contact export, classifies every row
by the age of its date column and packages fixed-size chunks per bucket
into a single zip archive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.String(config.ConfigFlag, "", "config file (default ./agesplit.yaml)")
	pf.Bool("debug", false, "enable debug logging")
	pf.Bool("human", false, "human-readable console logs")

	root.AddCommand(newSplitCmd(), newServeCmd())
	return root
}

// addRunFlags registers the flags shared by split and serve. Defaults
// mirror config.Default so --help shows the effective values.
func addRunFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("date-column", d.DateColumn, "name of the date column")
	fs.Int("chunk-size", d.ChunkSize, "maximum rows per chunk")
	fs.String("delimiter", d.Delimiter, `input delimiter: auto, comma, semicolon, tab, pipe or a single character`)
	fs.StringSlice("candidates", nil, "delimiters tried by auto-detection (default: comma, semicolon, tab, pipe)")
	fs.String("output-delimiter", "", "delimiter for archived CSV files (default: input delimiter)")
	fs.String("prefix", "", "prefix for chunk and archive names")
	fs.Bool("keep-age", false, "append the computed age column to every row")
	fs.String("age-column", partition.DefaultAgeColumn, "name of the appended age column")
	fs.String("reference", "", "reference date YYYY-MM-DD (default: today)")
	fs.String("timezone", d.Timezone, "time zone for the reference date and naive timestamps")
	fs.String("plan", "", "YAML file with per-chunk sub-split sizes")
	fs.String("max-input", "", "maximum decoded input size, e.g. 512MiB (default: 25% of RAM)")
	fs.Int("compression-level", 0, "deflate level 1-9 (default: library default)")
}

// setup loads configuration and installs the configured logger into the
// command context.
func setup(cmd *cobra.Command) (context.Context, *config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logging.Init(cfg.Log.Debug, cfg.Log.Human)
	log := *logging.L()
	logctx.SetDefaultLogger(log)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logctx.WithLogger(ctx, log), cfg, nil
}

// ExitCode maps an error returned by Run to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
