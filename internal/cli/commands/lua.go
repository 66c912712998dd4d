package commands

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cattools/cattools/internal/luatable"
	"github.com/cattools/cattools/internal/scribunto"
)

// NewLuaCommand creates the lua command
func NewLuaCommand(opts *globalOptions) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "lua [file]",
		Short: "Run a Lua chunk with mw.ext.cattools loaded",
		Long: `Run a Lua chunk in the module sandbox and print what it returns as JSON.

The chunk runs as a single render: its expensive calls share one budget.`,
		Example: `  cattools lua module.lua
  cattools lua -e 'return #mw.ext.cattools.categoryPages("Physics")'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (source == "") == (len(args) == 0) {
				return errors.New("provide either a file or -e source")
			}

			ctx := commandContext(cmd)
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			counters, closeCounters, err := a.counters(ctx)
			if err != nil {
				return err
			}
			defer closeCounters()

			render := a.engine(counters).NewRender(ctx, uuid.NewString())
			defer render.Close()

			var values []luatable.Value
			if source != "" {
				values, err = render.Run(source, "=(command line)")
			} else {
				values, err = render.RunFile(args[0])
			}
			if err != nil {
				if scribunto.IsScriptError(err) {
					return fmt.Errorf("lua: %w", err)
				}
				return err
			}

			results := make([]luatable.Value, len(values))
			for i, v := range values {
				results[i] = luatable.Normalize(v)
			}
			return writeJSON(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().StringVarP(&source, "execute", "e", "", "Lua source to run")

	return cmd
}
