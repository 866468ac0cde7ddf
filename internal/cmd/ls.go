package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusview/internal/config"
	"github.com/3leaps/nimbusview/internal/observability"
	"github.com/3leaps/nimbusview/pkg/listing"
	"github.com/3leaps/nimbusview/pkg/match"
	"github.com/3leaps/nimbusview/pkg/navigator"
	"github.com/3leaps/nimbusview/pkg/navpath"
	"github.com/3leaps/nimbusview/pkg/output"
)

var lsCmd = &cobra.Command{
	Use:   "ls [uri]",
	Short: "List one prefix level",
	Long: `List the folders and files directly under a prefix.

Folders are listed before files. Pages hold up to --page-size entries; use
--page to step through continuation cursors.

Examples:
  nimbusview ls s3://bucket/site/
  nimbusview ls az://myaccount/\$web/docs/ --sort lastModified:desc
  nimbusview ls https://myaccount.blob.core.windows.net/\$web/ --output jsonl
  nimbusview ls file:///srv/www --prefix assets/ --match '*.css'
  nimbusview ls s3://bucket/logs/ --page 3 --page-size 1000`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

var (
	lsPage     int
	lsSort     string
	lsOutput   string
	lsMatches  []string
	lsExcludes []string
	lsHidden   bool
	lsMinSize  string
	lsMaxSize  string
	lsAfter    string
	lsBefore   string
)

func init() {
	rootCmd.AddCommand(lsCmd)
	addSourceFlags(lsCmd)

	lsCmd.Flags().IntVar(&lsPage, "page", 1, "Page number to show (1-based)")
	lsCmd.Flags().StringVar(&lsSort, "sort", "", "Sort keys, e.g. name or contentLength:desc,name")
	lsCmd.Flags().StringVar(&lsOutput, "output", "table", "Output format (table|jsonl)")
	lsCmd.Flags().StringArrayVar(&lsMatches, "match", nil, "Include glob pattern for names (repeatable)")
	lsCmd.Flags().StringArrayVar(&lsExcludes, "exclude", nil, "Exclude glob pattern for names (repeatable)")
	lsCmd.Flags().BoolVar(&lsHidden, "hidden", false, "Include dot-prefixed entries")
	lsCmd.Flags().StringVar(&lsMinSize, "min-size", "", "Minimum file size (e.g. 1KB, 5MiB)")
	lsCmd.Flags().StringVar(&lsMaxSize, "max-size", "", "Maximum file size")
	lsCmd.Flags().StringVar(&lsAfter, "after", "", "Only files modified at or after this date (YYYY-MM-DD or RFC3339)")
	lsCmd.Flags().StringVar(&lsBefore, "before", "", "Only files modified before this date")
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig()

	if lsOutput != "table" && lsOutput != "jsonl" {
		return exitError(foundry.ExitInvalidArgument, "Invalid --output value", fmt.Errorf("expected table or jsonl"))
	}
	if lsPage < 1 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --page value", fmt.Errorf("page must be >= 1"))
	}

	uri, err := resolveSource(args, cfg)
	if err != nil {
		return err
	}
	prefix := startPrefix(cmd, uri)

	navCfg, err := cfg.Navigator(observability.CLILogger, nil)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if lsSort != "" {
		spec, err := listing.ParseSortSpec(lsSort)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --sort value", err)
		}
		navCfg.Sort = spec
	}
	// One-shot listings gain nothing from warming other prefixes.
	navCfg.PrefetchAncestors = false
	navCfg.PrefetchChildren = false

	filter, err := buildLsFilter(prefix)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid filter", err)
	}

	p, err := openSource(ctx, uri, cfg.Source, cfg.Browse.PageSize)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	nav := navigator.New(newCache(p), navigator.NewMemoryHistory(navpath.LocationFor(prefix)), navCfg)
	defer nav.Close()

	start := time.Now()
	view, err := loadPage(ctx, nav, prefix, lsPage-1)
	if err != nil {
		return lsFailure(ctx, uri, prefix, lsPage-1, err)
	}

	data := match.Entries(view.Data, filter)
	st := nav.Snapshot()
	sum := summarize(st, data, time.Since(start))

	if lsOutput == "jsonl" {
		w := output.NewJSONLWriter(os.Stdout, "", string(uri.Provider))
		defer func() { _ = w.Close() }()
		return writeListingJSONL(ctx, w, prefix, data, sum)
	}
	return writeListingTable(os.Stdout, view, data, sum)
}

// loadPage navigates to prefix and walks the cursors forward to pageIndex.
func loadPage(ctx context.Context, nav *navigator.Navigator, prefix string, pageIndex int) (navigator.View, error) {
	view, err := nav.Navigate(ctx, prefix, "")
	for i := 1; err == nil && i <= pageIndex; i++ {
		view, err = nav.FetchPage(ctx, i)
	}
	return view, err
}

func lsFailure(ctx context.Context, uri *ContainerURI, prefix string, page int, err error) error {
	observability.CLILogger.Error("Listing failed",
		zap.String("uri", uri.String()),
		zap.String("prefix", prefix),
		zap.Int("page", page),
		zap.Error(err),
	)
	if lsOutput == "jsonl" {
		w := output.NewJSONLWriter(os.Stdout, "", string(uri.Provider))
		_ = w.WriteError(ctx, &output.ErrorRecord{
			Code:    output.ErrorCode(err),
			Message: err.Error(),
			Prefix:  prefix,
			Page:    page,
		})
		_ = w.Close()
	}

	switch {
	case errors.Is(err, navigator.ErrPageOutOfRange):
		return exitError(foundry.ExitInvalidArgument, "Page out of range", err)
	case errors.Is(err, context.Canceled):
		return exitError(foundry.ExitSignalInt, "Listing cancelled", err)
	default:
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to list prefix", err)
	}
}

func buildLsFilter(prefix string) (match.Filter, error) {
	m, err := match.New(match.Config{
		Includes:      lsMatches,
		Excludes:      lsExcludes,
		IncludeHidden: lsHidden,
	})
	if err != nil {
		return nil, err
	}
	filters := match.All{&match.GlobFilter{Matcher: m, Prefix: prefix}}

	if lsMinSize != "" || lsMaxSize != "" {
		sf := &match.SizeFilter{}
		if lsMinSize != "" {
			if sf.Min, err = match.ParseSize(lsMinSize); err != nil {
				return nil, fmt.Errorf("--min-size: %w", err)
			}
		}
		if lsMaxSize != "" {
			if sf.Max, err = match.ParseSize(lsMaxSize); err != nil {
				return nil, fmt.Errorf("--max-size: %w", err)
			}
		}
		filters = append(filters, sf)
	}

	if lsAfter != "" || lsBefore != "" {
		df := &match.DateFilter{}
		if lsAfter != "" {
			if df.After, err = match.ParseDate(lsAfter); err != nil {
				return nil, fmt.Errorf("--after: %w", err)
			}
		}
		if lsBefore != "" {
			if df.Before, err = match.ParseDate(lsBefore); err != nil {
				return nil, fmt.Errorf("--before: %w", err)
			}
		}
		filters = append(filters, df)
	}
	return filters, nil
}

func summarize(st navigator.State, data []listing.Entry, elapsed time.Duration) *output.SummaryRecord {
	sum := &output.SummaryRecord{
		Prefix:        st.CurrentPrefix,
		Page:          st.PageIndex,
		TotalPages:    st.TotalPages(),
		HasNext:       st.PageIndex+1 < st.TotalPages(),
		Sort:          st.Sort.String(),
		Duration:      elapsed,
		DurationHuman: elapsed.Round(time.Millisecond).String(),
	}
	for _, e := range data {
		if e.IsFolder() {
			sum.Folders++
			continue
		}
		sum.Files++
		if e.ContentLength != nil {
			sum.BytesTotal += *e.ContentLength
		}
	}
	return sum
}

func writeListingJSONL(ctx context.Context, w output.Writer, prefix string, data []listing.Entry, sum *output.SummaryRecord) error {
	for _, e := range data {
		link := navpath.ResolveLink(e.Name, prefix)
		if err := w.WriteEntry(ctx, output.NewEntryRecord(e, link.Label, link.Location)); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
		}
	}
	if err := w.WriteSummary(ctx, sum); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}
	return nil
}

func writeListingTable(out io.Writer, view navigator.View, data []listing.Entry, sum *output.SummaryRecord) error {
	if _, err := fmt.Fprintf(out, "%s\n\n", navpath.FormatBreadcrumbs(view.Breadcrumbs)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "NAME\tSIZE\tLAST MODIFIED"); err != nil {
		return err
	}
	for _, row := range navigator.BuildRows(view.Prefix, data) {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Label, sizeColumn(row), row.LastModifiedDisplay); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	footer := fmt.Sprintf("\n%d folders, %d files, %s", sum.Folders, sum.Files, humanize.IBytes(uint64(sum.BytesTotal)))
	if view.ShowPagination {
		more := ""
		if sum.HasNext {
			more = "+"
		}
		footer += fmt.Sprintf(" (page %d of %d%s)", view.PageIndex+1, view.TotalPages, more)
	}
	if view.Warning != "" {
		footer += "\nwarning: " + view.Warning
	}
	_, err := fmt.Fprintln(out, footer)
	return err
}

func sizeColumn(row navigator.Row) string {
	switch {
	case row.IsPrefix:
		return "-"
	case row.ContentLength == nil:
		return ""
	default:
		return humanize.IBytes(uint64(*row.ContentLength))
	}
}
