package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lukeod/yangbind"
	"github.com/spf13/cobra"
)

// dataOptions are the flags of the commands that read data files.
type dataOptions struct {
	schemas   []string
	format    string
	strict    bool
	noState   bool
	multi     bool
	operation string
	datastore string
}

func (d *dataOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVarP(&d.schemas, "module", "m", nil, "schema to load (repeatable)")
	f.StringVar(&d.format, "format", "", "input format: json, xml or lyb (default from the file)")
	f.BoolVar(&d.strict, "strict", false, "fail on data of unknown modules")
	f.BoolVar(&d.noState, "no-state", false, "fail on state data")
	f.BoolVar(&d.multi, "multi-error", false, "report every validation error")
	f.StringVar(&d.operation, "op", "", "parse an operation instead: rpc, reply or notification")
	f.StringVar(&d.datastore, "datastore", "", "data file that operation references are resolved against")
}

func (d *dataOptions) parseOptions() yangbind.ParseOptions {
	var o yangbind.ParseOptions
	if d.strict {
		o |= yangbind.ParseStrict
	}
	if d.noState {
		o |= yangbind.ParseNoState
	}
	return o
}

func (d *dataOptions) validateOptions() yangbind.ValidateOptions {
	var o yangbind.ValidateOptions
	if d.noState {
		o |= yangbind.ValidateNoState
	}
	if d.multi {
		o |= yangbind.ValidateMultiError
	}
	return o
}

func opType(name string) (yangbind.OpType, error) {
	for _, op := range []yangbind.OpType{yangbind.OpRPC, yangbind.OpReply, yangbind.OpNotification} {
		if op.String() == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operation type %q", name)
}

// parseFile parses one data file without validating it.
func (d *dataOptions) parseFile(cmd *cobra.Command, ctx *yangbind.Context, file string) (yangbind.DataNode, error) {
	data, err := readData(cmd, file)
	if err != nil {
		return nil, err
	}
	format, err := dataFormat(d.format, file, data)
	if err != nil {
		return nil, err
	}
	tree, err := ctx.ParseData(data, format, d.parseOptions()|yangbind.ParseOnly, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return tree, nil
}

// loadTree parses every file into one tree and validates it. The result
// is nil for empty input.
func (d *dataOptions) loadTree(cmd *cobra.Command, ctx *yangbind.Context, files []string) (yangbind.DataNode, error) {
	var tree yangbind.DataNode
	for _, file := range files {
		next, err := d.parseFile(cmd, ctx, file)
		if err != nil {
			if tree != nil {
				tree.FreeAll()
			}
			return nil, err
		}
		switch {
		case next == nil:
		case tree == nil:
			tree = next
		default:
			if tree, err = tree.Merge(next, yangbind.MergeDestruct|yangbind.MergeWithSiblings); err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
		}
	}
	valid, err := ctx.Validate(tree, d.validateOptions())
	if err != nil {
		if tree != nil {
			tree.FreeAll()
		}
		return nil, err
	}
	return valid, nil
}

// loadOp parses and validates one operation file.
func (d *dataOptions) loadOp(cmd *cobra.Command, ctx *yangbind.Context, file string) (yangbind.DataNode, error) {
	op, err := opType(d.operation)
	if err != nil {
		return nil, err
	}
	data, err := readData(cmd, file)
	if err != nil {
		return nil, err
	}
	format, err := dataFormat(d.format, file, data)
	if err != nil {
		return nil, err
	}
	tree, opNode, err := ctx.ParseOp(data, format, op, d.parseOptions())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	var store yangbind.DataNode
	if d.datastore != "" {
		if store, err = d.loadTree(cmd, ctx, []string{d.datastore}); err != nil {
			tree.FreeAll()
			return nil, err
		}
		if store != nil {
			defer store.FreeAll()
		}
	}
	if err := ctx.ValidateOp(opNode, store, op == yangbind.OpReply); err != nil {
		tree.FreeAll()
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return tree, nil
}

// reportErrors writes every error record of err, one per line.
func reportErrors(w io.Writer, err error) {
	var e *yangbind.Error
	if !errors.As(err, &e) || len(e.Items) < 2 {
		return
	}
	for _, it := range e.Items {
		if it.Level == yangbind.LevelError {
			fmt.Fprintf(w, "  %s\n", it)
		}
	}
}

func newValidateCmd(g *globalOptions) *cobra.Command {
	d := &dataOptions{}
	var quiet bool
	cmd := &cobra.Command{
		Use:   "validate -m SCHEMA DATA...",
		Short: "Validate data files; several files form one data tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, err := g.open(cmd, d.schemas)
			if err != nil {
				return err
			}
			defer ctx.Close()

			if d.operation != "" {
				for _, file := range args {
					tree, err := d.loadOp(cmd, ctx, file)
					if err != nil {
						reportErrors(cmd.ErrOrStderr(), err)
						return err
					}
					tree.FreeAll()
				}
			} else {
				tree, err := d.loadTree(cmd, ctx, args)
				if err != nil {
					reportErrors(cmd.ErrOrStderr(), err)
					return err
				}
				if tree != nil {
					tree.FreeAll()
				}
			}
			if !quiet {
				fmt.Fprintln(cmd.OutOrStdout(), "OK")
			}
			return nil
		},
	}
	d.register(cmd)
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print nothing on success")
	return cmd
}

// outputOptions are the flags of the commands that print data.
type outputOptions struct {
	to           string
	withDefaults string
	unqualified  bool
	compact      bool
	output       string
}

func (o *outputOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.to, "to", "t", "json", "output format: json, xml or lyb")
	f.StringVar(&o.withDefaults, "with-defaults", "explicit", "explicit, trim, all, all-tagged or implicit-tagged")
	f.BoolVar(&o.unqualified, "unqualified", false, "JSON member names without module names")
	f.BoolVar(&o.compact, "compact", false, "no indentation")
	f.StringVarP(&o.output, "output", "o", "", "write to a file instead of standard output")
}

func (o *outputOptions) print(cmd *cobra.Command, tree yangbind.DataNode) error {
	format, err := yangbind.ParseDataFormat(o.to)
	if err != nil {
		return err
	}
	if format == yangbind.FormatUnknown {
		return fmt.Errorf("output format is required")
	}
	opts, err := yangbind.ParseWithDefaults(o.withDefaults)
	if err != nil {
		return err
	}
	opts |= yangbind.PrintWithSiblings
	if o.unqualified {
		opts |= yangbind.PrintUnqualified
	}
	if o.compact {
		opts |= yangbind.PrintShrink
	}

	var out []byte
	if tree != nil {
		if out, err = tree.Print(format, opts); err != nil {
			return err
		}
	}
	if o.output != "" {
		return os.WriteFile(o.output, out, 0o644)
	}
	w := cmd.OutOrStdout()
	if _, err := w.Write(out); err != nil {
		return err
	}
	if format != yangbind.FormatLYB && len(out) > 0 && out[len(out)-1] != '\n' {
		_, err = io.WriteString(w, "\n")
	}
	return err
}

func newConvertCmd(g *globalOptions) *cobra.Command {
	d := &dataOptions{}
	o := &outputOptions{}
	cmd := &cobra.Command{
		Use:   "convert -m SCHEMA -t FORMAT DATA...",
		Short: "Validate data and print it in another format",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, err := g.open(cmd, d.schemas)
			if err != nil {
				return err
			}
			defer ctx.Close()

			var tree yangbind.DataNode
			if d.operation != "" {
				if len(args) != 1 {
					return fmt.Errorf("--op takes exactly one data file")
				}
				tree, err = d.loadOp(cmd, ctx, args[0])
			} else {
				tree, err = d.loadTree(cmd, ctx, args)
			}
			if err != nil {
				reportErrors(cmd.ErrOrStderr(), err)
				return err
			}
			if tree != nil {
				defer tree.FreeAll()
			}
			return o.print(cmd, tree)
		},
	}
	d.register(cmd)
	o.register(cmd)
	return cmd
}

func newDiffCmd(g *globalOptions) *cobra.Command {
	d := &dataOptions{}
	o := &outputOptions{}
	cmd := &cobra.Command{
		Use:   "diff -m SCHEMA OLD NEW",
		Short: "Print the changes between two data trees with yang:operation metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, err := g.open(cmd, d.schemas)
			if err != nil {
				return err
			}
			defer ctx.Close()

			var trees [2]yangbind.DataNode
			for i, file := range args {
				if trees[i], err = d.loadTree(cmd, ctx, []string{file}); err != nil {
					return err
				}
				if trees[i] != nil {
					defer trees[i].FreeAll()
				}
			}
			diff, err := yangbind.Diff(trees[0], trees[1])
			if err != nil {
				return err
			}
			if diff == nil {
				return nil
			}
			defer diff.FreeAll()
			return o.print(cmd, diff)
		},
	}
	d.register(cmd)
	o.register(cmd)
	return cmd
}
