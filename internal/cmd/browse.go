package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/3leaps/nimbusview/internal/config"
	"github.com/3leaps/nimbusview/internal/observability"
	"github.com/3leaps/nimbusview/pkg/listing"
	"github.com/3leaps/nimbusview/pkg/navigator"
	"github.com/3leaps/nimbusview/pkg/navpath"
	"github.com/3leaps/nimbusview/pkg/output"
)

var browseCmd = &cobra.Command{
	Use:   "browse [uri]",
	Short: "Browse a container interactively",
	Long: `Open an interactive prompt over a container.

Move with cd (by name or row number), back and forward through history, and
page with next/prev. Parents of the current prefix and its child folders are
fetched in the background, so most moves are served from cache.

Type "help" at the prompt for the command list.

Examples:
  nimbusview browse s3://bucket/
  nimbusview browse az://myaccount/\$web/
  nimbusview browse file:///srv/www --page-size 200`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

var browseSort string

func init() {
	rootCmd.AddCommand(browseCmd)
	addSourceFlags(browseCmd)
	browseCmd.Flags().StringVar(&browseSort, "sort", "", "Initial sort keys, e.g. lastModified:desc")
	browseCmd.Flags().Bool("no-prefetch", false, "Disable background prefetching")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig()

	uri, err := resolveSource(args, cfg)
	if err != nil {
		return err
	}
	prefix := startPrefix(cmd, uri)

	navCfg, err := cfg.Navigator(observability.CLILogger, nil)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if browseSort != "" {
		spec, err := listing.ParseSortSpec(browseSort)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --sort value", err)
		}
		navCfg.Sort = spec
	}

	p, err := openSource(ctx, uri, cfg.Source, cfg.Browse.PageSize)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	nav := navigator.New(newCache(p), navigator.NewMemoryHistory(navpath.LocationFor(prefix)), navCfg)
	defer nav.Close()

	r := &repl{
		nav:         nav,
		out:         cmd.OutOrStdout(),
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
		title:       uri.String(),
	}
	if err := r.run(ctx, cmd.InOrStdin()); err != nil && !errors.Is(err, context.Canceled) {
		return exitError(foundry.ExitFileReadError, "Failed to read input", err)
	}
	return nil
}

// repl drives a navigator from line-oriented commands.
type repl struct {
	nav         *navigator.Navigator
	out         io.Writer
	interactive bool
	title       string
}

const replHelp = `Commands:
  ls                 show the current page
  cd <name|n|..|/>   enter a folder by name or row number
  back, forward      move through history
  next, prev         move between pages
  page <n>           jump to page n (1-based, seen pages only)
  sort <spec>        sort by keys, e.g. "sort size:desc,name"
  crumbs             show the breadcrumb trail
  pwd                show the current prefix
  help               show this help
  quit               leave`

func (r *repl) run(ctx context.Context, in io.Reader) error {
	if r.interactive {
		r.printf("%s\n", r.title)
	}
	r.render(r.nav.Start(ctx))

	scanner := bufio.NewScanner(in)
	for {
		if r.interactive {
			r.printf("%s> ", displayPrefix(r.nav.Snapshot().CurrentPrefix))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if quit := r.exec(ctx, scanner.Text()); quit {
			return nil
		}
	}
}

// exec runs one command line and reports whether the session should end.
func (r *repl) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		r.printf("%s\n", replHelp)
	case "ls", "l":
		r.render(r.nav.View(), nil)
	case "pwd":
		r.printf("%s\n", displayPrefix(r.nav.Snapshot().CurrentPrefix))
	case "crumbs":
		r.printf("%s\n", navpath.FormatBreadcrumbs(r.nav.Breadcrumbs()))
	case "cd":
		r.cd(ctx, strings.Join(args, " "))
	case "back", "b":
		r.render(r.nav.Back(ctx))
	case "forward", "f":
		r.render(r.nav.Forward(ctx))
	case "next", "n":
		r.render(r.nav.FetchPage(ctx, r.nav.Snapshot().PageIndex+1))
	case "prev", "p":
		r.render(r.nav.FetchPage(ctx, r.nav.Snapshot().PageIndex-1))
	case "page":
		if len(args) != 1 {
			r.printf("usage: page <n>\n")
			return false
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			r.printf("invalid page %q\n", args[0])
			return false
		}
		r.render(r.nav.FetchPage(ctx, n-1))
	case "sort":
		spec, err := listing.ParseSortSpec(strings.Join(args, ""))
		if err != nil {
			r.printf("%v\n", err)
			return false
		}
		r.render(r.nav.SetSort(spec), nil)
	default:
		r.printf("unknown command %q (try help)\n", verb)
	}
	return false
}

// cd resolves arg against the current prefix. Numbers select a row of the
// current page; "/" is root; a leading "/" is absolute.
func (r *repl) cd(ctx context.Context, arg string) {
	st := r.nav.Snapshot()
	target, ok := r.resolveTarget(st, arg)
	if !ok {
		r.printf("not a folder: %s\n", arg)
		return
	}
	push := ""
	if target != st.CurrentPrefix {
		push = navpath.LocationFor(target)
	}
	r.render(r.nav.Navigate(ctx, target, push))
}

func (r *repl) resolveTarget(st navigator.State, arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	switch {
	case arg == "" || arg == "/":
		return "", true
	case arg == "..":
		return navpath.Parent(st.CurrentPrefix), true
	case strings.HasPrefix(arg, "/"):
		return navpath.Normalize(arg), true
	}

	if n, err := strconv.Atoi(arg); err == nil {
		rows := navigator.BuildRows(st.CurrentPrefix, st.Data)
		if n < 1 || n > len(rows) || !rows[n-1].IsPrefix {
			return "", false
		}
		return rows[n-1].Target, true
	}

	// Names need not be on the current page; the folder may be on another.
	return navpath.Normalize(st.CurrentPrefix + arg), true
}

func (r *repl) render(view navigator.View, err error) {
	switch {
	case errors.Is(err, navigator.ErrNoHistory):
		r.printf("no history in that direction\n")
		return
	case errors.Is(err, navigator.ErrPageOutOfRange):
		r.printf("no such page\n")
		return
	case err != nil:
		observability.CLILogger.Debug("Browse command failed", zap.String("prefix", view.Prefix), zap.Error(err))
		r.printf("error [%s]: %v\n", output.ErrorCode(err), err)
		return
	}

	r.printf("%s\n", navpath.FormatBreadcrumbs(view.Breadcrumbs))
	for i, row := range view.Rows {
		size := sizeColumn(row)
		r.printf("%4d  %-40s %10s  %s\n", i+1, row.Label, size, row.LastModifiedDisplay)
	}
	if view.ShowPagination {
		r.printf("page %d of %d\n", view.PageIndex+1, view.TotalPages)
	}
	if view.Warning != "" {
		r.printf("warning: %s\n", view.Warning)
	}
}

func (r *repl) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

func displayPrefix(prefix string) string {
	return "/" + prefix
}
