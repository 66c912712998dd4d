package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cattools/cattools/internal/categories"
	"github.com/cattools/cattools/internal/cli/ui"
	"github.com/cattools/cattools/internal/finder"
)

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewPagesCommand creates the pages command
func NewPagesCommand(opts *globalOptions) *cobra.Command {
	var (
		namespace int
		prefix    string
		recent    bool
		limit     int
		offset    int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "pages <category>",
		Short: "List the members of a category",
		Long: `List the members of a category, ordered by sort key.

Listing every namespace, or asking for more than the default page size,
counts as an expensive call.`,
		Example: `  cattools pages "Living people" --ns 0 --limit 10
  cattools pages Physics --prefix Q --recent --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var pageOpts categories.PagesOptions
			if cmd.Flags().Changed("prefix") {
				pageOpts.SortkeyPrefix = categories.String(prefix)
			}
			if cmd.Flags().Changed("recent") {
				pageOpts.OrderByRecency = categories.Bool(recent)
			}
			if cmd.Flags().Changed("limit") {
				pageOpts.Limit = categories.Int(limit)
			}
			if cmd.Flags().Changed("offset") {
				pageOpts.Offset = categories.Int(offset)
			}
			var ns *int
			if cmd.Flags().Changed("ns") {
				ns = categories.Int(namespace)
			}

			pages, err := a.render().CategoryPages(ctx, args[0], ns, pageOpts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, pages)
			}
			if len(pages) == 0 {
				fmt.Fprintln(out, "No pages found")
				return nil
			}
			ui.PagesTable(out, pages, opts.plain())
			return nil
		},
	}

	cmd.Flags().IntVar(&namespace, "ns", 0, "only list members in this namespace")
	cmd.Flags().StringVar(&prefix, "prefix", "", "only list members whose sort key prefix matches")
	cmd.Flags().BoolVar(&recent, "recent", false, "order by time added, newest first")
	cmd.Flags().IntVar(&limit, "limit", categories.DefaultLimit, "maximum number of members")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of members to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")

	return cmd
}

// NewHasCommand creates the has command
func NewHasCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "has <category> <namespace> <title>",
		Short:   "Check whether a page is in a category",
		Example: `  cattools has "Living people" 0 "Ada Lovelace"`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("namespace must be an integer, got %q", args[1])
			}

			ctx := commandContext(cmd)
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			member, err := a.render().CategoryHasPage(ctx, args[0], ns, args[2])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.plain() {
				fmt.Fprintln(out, member)
			} else if member {
				color.New(color.FgGreen).Fprintln(out, member)
			} else {
				color.New(color.FgYellow).Fprintln(out, member)
			}
			return nil
		},
	}
}

// NewCheckCommand creates the check command
func NewCheckCommand(opts *globalOptions) *cobra.Command {
	var (
		cats   []string
		mode   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "check <page-id>...",
		Short: "Check many pages against many categories",
		Long: `Check which of the given page ids belong to the categories.

With --mode ALL a page must be in every category, with ANY in at least one.
This is always an expensive call.`,
		Example: `  cattools check 12 34 56 -C Physics -C Chemistry --mode any`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, len(args))
			for i, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("page id must be an integer, got %q", arg)
				}
				ids[i] = id
			}

			m, err := finder.ParseMode(mode)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.render().ArePagesInCategories(ctx, ids, cats, m)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, results)
			}

			sorted := make([]int64, 0, len(results))
			for id := range results {
				sorted = append(sorted, id)
			}
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

			table := ui.NewTable(out, opts.plain(), "ID", m.String())
			for _, id := range sorted {
				table.AddRow(strconv.FormatInt(id, 10), strconv.FormatBool(results[id]))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&cats, "category", "C", nil, "category to check (repeatable)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "ALL", "ALL or ANY")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")

	return cmd
}
