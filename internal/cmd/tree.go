package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
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
	"github.com/3leaps/nimbusview/pkg/output"
)

var treeCmd = &cobra.Command{
	Use:   "tree [uri]",
	Short: "Summarize the folder hierarchy under a prefix",
	Long: `Walk folders breadth-first from a prefix and report, for each folder, how
many folders and files it holds directly and their total size.

The walk is bounded by --depth, --max-prefixes and --max-pages, so it stays
cheap on very wide or deep containers.

Examples:
  nimbusview tree s3://bucket/site/ --depth 2
  nimbusview tree az://myaccount/\$web/ --exclude 'view' --output jsonl
  nimbusview tree file:///srv/www --depth 3 --parallel 8`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTree,
}

var (
	treeDepth       int
	treeMaxPrefixes int
	treeMaxPages    int
	treeParallel    int
	treeTimeout     time.Duration
	treeIncludes    []string
	treeExcludes    []string
	treeOutput      string
)

func init() {
	rootCmd.AddCommand(treeCmd)
	addSourceFlags(treeCmd)

	treeCmd.Flags().IntVar(&treeDepth, "depth", 1, "Folder levels to descend (0=the prefix only)")
	treeCmd.Flags().IntVar(&treeMaxPrefixes, "max-prefixes", 10_000, "Max folders to visit before stopping")
	treeCmd.Flags().IntVar(&treeMaxPages, "max-pages", 20, "Max listing pages per folder")
	treeCmd.Flags().IntVar(&treeParallel, "parallel", 4, "Max concurrent folder listings")
	treeCmd.Flags().DurationVar(&treeTimeout, "timeout", 10*time.Minute, "Walk timeout")
	treeCmd.Flags().StringArrayVar(&treeIncludes, "include", nil, "Include glob pattern for folders to descend into (repeatable)")
	treeCmd.Flags().StringArrayVar(&treeExcludes, "exclude", nil, "Exclude glob pattern for folders to descend into (repeatable)")
	treeCmd.Flags().StringVar(&treeOutput, "output", "table", "Output format (table|jsonl)")
}

// treeLimits bounds a walk.
type treeLimits struct {
	depth       int
	maxPrefixes int
	maxPages    int
	pageSize    int
	parallel    int
}

func runTree(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig()

	if treeOutput != "table" && treeOutput != "jsonl" {
		return exitError(foundry.ExitInvalidArgument, "Invalid --output value", fmt.Errorf("expected table or jsonl"))
	}
	if treeParallel < 1 || treeMaxPrefixes < 1 || treeMaxPages < 1 || treeDepth < 0 {
		return exitError(foundry.ExitInvalidArgument, "Invalid limits", fmt.Errorf("parallel, max-prefixes and max-pages must be >= 1; depth >= 0"))
	}

	uri, err := resolveSource(args, cfg)
	if err != nil {
		return err
	}
	root := startPrefix(cmd, uri)

	descend, err := buildTreeScopeFilter(root, treeIncludes, treeExcludes)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid include/exclude patterns", err)
	}

	if treeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, treeTimeout)
		defer cancel()
	}

	p, err := openSource(ctx, uri, cfg.Source, cfg.Browse.PageSize)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	limits := treeLimits{
		depth:       treeDepth,
		maxPrefixes: treeMaxPrefixes,
		maxPages:    treeMaxPages,
		pageSize:    cfg.Browse.PageSize,
		parallel:    treeParallel,
	}

	start := time.Now()
	recs, partial, err := walkTree(ctx, newCache(p), root, limits, descend)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return exitError(foundry.ExitSignalInt, "Tree walk cancelled", err)
		}
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to list prefix", err)
	}
	observability.CLILogger.Debug("Tree walk done",
		zap.Int("prefixes", len(recs)),
		zap.Bool("partial", partial),
		zap.Duration("duration", time.Since(start)),
	)

	if treeOutput == "jsonl" {
		w := output.NewJSONLWriter(os.Stdout, "", string(uri.Provider))
		defer func() { _ = w.Close() }()
		for _, rec := range recs {
			if err := w.WritePrefix(ctx, rec); err != nil {
				return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
			}
		}
		if partial {
			_ = w.WriteError(ctx, &output.ErrorRecord{
				Code:    output.ErrCodeInternal,
				Message: "tree walk stopped at --max-prefixes; results are partial",
				Prefix:  root,
			})
		}
		return nil
	}

	if err := writeTreeTable(os.Stdout, root, recs); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}
	if partial {
		fmt.Fprintln(os.Stderr, "tree: stopped at --max-prefixes; results are partial")
	}
	return nil
}

// buildTreeScopeFilter decides which child folders the walk descends into.
// Patterns match folder names relative to root.
func buildTreeScopeFilter(root string, includes, excludes []string) (func(prefix string) bool, error) {
	if len(includes) == 0 && len(excludes) == 0 {
		return func(string) bool { return true }, nil
	}
	m, err := match.New(match.Config{
		Includes:      includes,
		Excludes:      excludes,
		IncludeHidden: true,
		MatchFolders:  true,
	})
	if err != nil {
		return nil, err
	}
	return func(prefix string) bool {
		return m.Match(match.RelativeName(prefix, root), true)
	}, nil
}

// walkTree visits folders level by level from root. Records come back
// sorted by prefix; partial reports whether maxPrefixes cut the walk short.
func walkTree(
	ctx context.Context,
	cache *listing.Cache,
	root string,
	limits treeLimits,
	descend func(prefix string) bool,
) ([]*output.PrefixRecord, bool, error) {
	var (
		recs    []*output.PrefixRecord
		partial bool
	)
	seen := map[string]struct{}{root: {}}
	current := []string{root}

	for depth := 0; depth <= limits.depth && len(current) > 0; depth++ {
		var (
			mu       sync.Mutex
			wg       sync.WaitGroup
			next     []string
			firstErr error
		)
		sem := make(chan struct{}, limits.parallel)

		for _, prefix := range current {
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				rec, children, err := summarizePrefix(ctx, cache, prefix, limits)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					return
				}
				rec.Depth = depth
				recs = append(recs, rec)

				if depth >= limits.depth {
					return
				}
				for _, child := range children {
					if _, ok := seen[child]; ok || !descend(child) {
						continue
					}
					if len(seen) >= limits.maxPrefixes {
						partial = true
						continue
					}
					seen[child] = struct{}{}
					next = append(next, child)
				}
			}()
		}
		wg.Wait()

		if firstErr != nil {
			return nil, partial, firstErr
		}
		if err := ctx.Err(); err != nil {
			return nil, partial, err
		}
		sort.Strings(next)
		current = next
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].Prefix < recs[j].Prefix })
	return recs, partial, nil
}

// summarizePrefix counts the direct contents of prefix through the cache,
// following cursors up to maxPages.
func summarizePrefix(ctx context.Context, cache *listing.Cache, prefix string, limits treeLimits) (*output.PrefixRecord, []string, error) {
	rec := &output.PrefixRecord{Prefix: prefix}
	var children []string

	cursor := ""
	for {
		page, err := cache.FetchOrGet(ctx, listing.Key{Prefix: prefix, Cursor: cursor, PageSize: limits.pageSize})
		if err != nil {
			return nil, nil, err
		}
		rec.Pages++

		for _, e := range page.Folders() {
			if e.IsReserved() {
				continue
			}
			rec.Folders++
			children = append(children, e.Name)
		}
		for _, e := range page.Files() {
			rec.Files++
			if e.ContentLength != nil {
				rec.Bytes += *e.ContentLength
			}
		}

		if !page.HasNext() {
			return rec, children, nil
		}
		if rec.Pages >= limits.maxPages {
			rec.Truncated = true
			return rec, children, nil
		}
		cursor = page.NextCursor
	}
}

func writeTreeTable(out io.Writer, root string, recs []*output.PrefixRecord) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "FOLDER\tFOLDERS\tFILES\tSIZE\tPAGES"); err != nil {
		return err
	}
	for _, rec := range recs {
		name := "/" + root
		if rec.Depth > 0 {
			name = strings.Repeat("  ", rec.Depth) + match.RelativeName(rec.Prefix, root)
		}
		pages := fmt.Sprintf("%d", rec.Pages)
		if rec.Truncated {
			pages += "+"
		}
		if _, err := fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			name, rec.Folders, rec.Files, humanize.IBytes(uint64(rec.Bytes)), pages); err != nil {
			return err
		}
	}
	return tw.Flush()
}
