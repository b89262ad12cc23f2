package main

import (
	"fmt"

	"github.com/lukeod/yangbind"
	"github.com/spf13/cobra"
)

func newTreeCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree SCHEMA...",
		Short: "Print the tree diagram of modules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printModules(cmd, g, args, yangbind.OutTree)
		},
	}
}

func newPrintCmd(g *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "print SCHEMA...",
		Short: "Print compiled modules as YANG, YIN or a tree diagram",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yangbind.ParseSchemaOutFormat(format)
			if err != nil {
				return err
			}
			return printModules(cmd, g, args, out)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yang", "output format: yang, yin or tree")
	return cmd
}

func printModules(cmd *cobra.Command, g *globalOptions, schemas []string, format yangbind.SchemaOutFormat) error {
	ctx, mods, err := g.open(cmd, schemas)
	if err != nil {
		return err
	}
	defer ctx.Close()

	w := cmd.OutOrStdout()
	for _, m := range mods {
		out, err := m.Print(format)
		if err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
		if _, err := w.Write(out); err != nil {
			return err
		}
	}
	return nil
}

func newFindCmd(g *globalOptions) *cobra.Command {
	var (
		schemas []string
		output  bool
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "find -m SCHEMA PATH...",
		Short: "Evaluate schema paths and list the matching nodes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, err := g.open(cmd, schemas)
			if err != nil {
				return err
			}
			defer ctx.Close()

			var opts []yangbind.FindOption
			if output {
				opts = append(opts, yangbind.WithOutput())
			}
			w := cmd.OutOrStdout()
			for _, path := range args {
				found, err := ctx.FindPath(path, opts...)
				if err != nil {
					return err
				}
				if len(found) == 0 {
					fmt.Fprintf(w, "%s: no match\n", path)
					continue
				}
				for _, n := range found {
					fmt.Fprintf(w, "%-13s %s\n", n.Kind(), n.Path())
					if verbose {
						out, err := n.Print()
						if err != nil {
							return err
						}
						fmt.Fprintf(w, "%s\n", out)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&schemas, "module", "m", nil, "schema to load (repeatable)")
	cmd.Flags().BoolVar(&output, "output", false, "look up rpc and action output nodes")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the compiled node as well")
	return cmd
}

func newSchemaDiffCmd(g *globalOptions) *cobra.Command {
	var (
		oldSchemas []string
		newSchemas []string
		failOnDiff bool
	)
	cmd := &cobra.Command{
		Use:   "schema-diff --old SCHEMA... --new SCHEMA...",
		Short: "Compare two sets of modules node by node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(oldSchemas) == 0 || len(newSchemas) == 0 {
				return fmt.Errorf("both --old and --new are required")
			}
			oldCtx, _, err := g.open(cmd, oldSchemas)
			if err != nil {
				return err
			}
			defer oldCtx.Close()
			newCtx, _, err := g.open(cmd, newSchemas)
			if err != nil {
				return err
			}
			defer newCtx.Close()

			changes, err := yangbind.SchemaDiff(oldCtx, newCtx, nil)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, c := range changes {
				fmt.Fprintln(w, c)
			}
			if failOnDiff && len(changes) > 0 {
				return fmt.Errorf("%d schema changes", len(changes))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&oldSchemas, "old", nil, "schemas of the old side (repeatable)")
	cmd.Flags().StringSliceVar(&newSchemas, "new", nil, "schemas of the new side (repeatable)")
	cmd.Flags().BoolVar(&failOnDiff, "fail", false, "exit with an error when anything changed")
	return cmd
}
