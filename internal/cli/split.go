package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eunmann/agesplit/internal/logctx"
	"github.com/eunmann/agesplit/pkg/logging"
	"github.com/eunmann/agesplit/pkg/pipeline"
	"github.com/eunmann/agesplit/pkg/publish"
	"github.com/eunmann/agesplit/pkg/report"
	"github.com/eunmann/agesplit/pkg/source"
)

func newSplitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split [flags] <input>",
		Short: "Split one input into an age-bucketed zip archive",
		Long: `Split reads <input> (a local path, "-" for stdin or s3://bucket/key),
writes <prefix>_<YYYYMMDD>.zip to --out and prints the summary.

--out accepts a local directory or a bucket URL (s3://, gs://, file://).`,
		Args: cobra.ExactArgs(1),
		RunE: runSplit,
	}
	fs := cmd.Flags()
	addRunFlags(fs)
	fs.StringP("out", "o", ".", "output directory or bucket URL")
	fs.StringArray("sub", nil, "sub-split a chunk, chunk=size (repeatable, overrides --plan)")
	fs.Bool("write-report", false, "also write <archive>.summary.txt and <archive>.files.json")
	return cmd
}

func runSplit(cmd *cobra.Command, args []string) error {
	ctx, cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	log := logctx.FromContext(ctx)
	subs, _ := cmd.Flags().GetStringArray("sub")
	out, _ := cmd.Flags().GetString("out")
	writeReport, _ := cmd.Flags().GetBool("write-report")

	pc, err := cfg.Pipeline(time.Now(), subs)
	if err != nil {
		return err
	}
	budget, err := cfg.Budget()
	if err != nil {
		return err
	}
	log.Debug().Str("budget", budget.String()).Msg("input budget resolved")

	opener := &source.Opener{Budget: budget, Stdin: cmd.InOrStdin()}
	in, err := opener.Open(ctx, args[0])
	if err != nil {
		return err
	}

	res, err := pipeline.Run(ctx, in, pc)
	if err != nil {
		return err
	}

	pub, err := publish.Open(ctx, out)
	if err != nil {
		return err
	}
	defer pub.Close()

	start := time.Now()
	location, err := pub.Put(ctx, res.ArchiveName, res.Archive, "application/zip")
	if err != nil {
		return fmt.Errorf("publish archive: %w", err)
	}
	logging.FileWritten(log, "publish", time.Since(start)).
		Str("location", location).
		Bytes("archive_bytes", int64(len(res.Archive))).
		Log("archive written")

	if writeReport {
		if err := publishReport(ctx, pub, res); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	fmt.Fprint(w, res.Summary.Text())
	fmt.Fprintln(w)
	if err := res.Summary.WriteListing(w); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nArchive: %s\n", location)
	return nil
}

func publishReport(ctx context.Context, pub *publish.Publisher, res *pipeline.Result) error {
	text, err := reportText(res.Summary)
	if err != nil {
		return err
	}
	if _, err := pub.Put(ctx, res.ArchiveName+".summary.txt", text, "text/plain; charset=utf-8"); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}

	listing, err := json.MarshalIndent(res.Summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if _, err := pub.Put(ctx, res.ArchiveName+".files.json", append(listing, '\n'), "application/json"); err != nil {
		return fmt.Errorf("publish listing: %w", err)
	}
	return nil
}

func reportText(s *report.Summary) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(s.Text())
	buf.WriteByte('\n')
	if err := s.WriteListing(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
