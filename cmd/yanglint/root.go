package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lukeod/yangbind"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configFile string
	searchDirs []string
	features   []string
	logLevel   string
	noCwd      bool
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "yanglint",
		Short: "Validate and convert YANG data",
		Long: `yanglint compiles YANG modules and works with data modeled by them.

Schema:
  yanglint tree ietf-interfaces          # tree diagram of a module
  yanglint print -f yin model.yang       # print a module
  yanglint find -m model.yang /m:conf/*  # evaluate a schema path
  yanglint schema-diff --old a.yang --new b.yang

Data:
  yanglint validate -m model.yang data.json
  yanglint convert -m model.yang -t xml data.json
  yanglint diff -m model.yang old.json new.json`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configFile, "config", "c", "", "YAML config file with search dirs and modules")
	pf.StringSliceVarP(&g.searchDirs, "path", "p", nil, "module search directory (repeatable)")
	pf.StringSliceVarP(&g.features, "features", "F", nil, `enabled features as module:feature, or module:* for all`)
	pf.StringVarP(&g.logLevel, "log-level", "l", "warning", "native log level: error, warning, verbose or debug")
	pf.BoolVar(&g.noCwd, "no-cwd", false, "do not search the working directory for modules")

	root.AddCommand(
		newTreeCmd(g),
		newPrintCmd(g),
		newFindCmd(g),
		newSchemaDiffCmd(g),
		newValidateCmd(g),
		newConvertCmd(g),
		newDiffCmd(g),
	)
	return root
}

// logger writes human readable records to w at the configured level.
func (g *globalOptions) logger(w io.Writer) (zerolog.Logger, yangbind.Level, error) {
	level, err := yangbind.ParseLevel(g.logLevel)
	if err != nil {
		return zerolog.Nop(), 0, err
	}
	zl := zerolog.WarnLevel
	switch level {
	case yangbind.LevelError:
		zl = zerolog.ErrorLevel
	case yangbind.LevelVerbose:
		zl = zerolog.InfoLevel
	case yangbind.LevelDebug:
		zl = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, NoColor: true, PartsExclude: []string{zerolog.TimestampFieldName}}
	return zerolog.New(out).Level(zl), level, nil
}

// featureMap groups the --features values by module.
func (g *globalOptions) featureMap() (map[string][]string, error) {
	out := make(map[string][]string)
	for _, f := range g.features {
		mod, feat, ok := strings.Cut(f, ":")
		if !ok || mod == "" || feat == "" {
			return nil, fmt.Errorf("invalid feature %q, want module:feature", f)
		}
		out[mod] = append(out[mod], feat)
	}
	return out, nil
}

// open creates a context from the config file and flags and loads schemas.
// A schema is a .yang or .yin file, or a module name with an optional
// @revision looked up in the search dirs.
func (g *globalOptions) open(cmd *cobra.Command, schemas []string) (*yangbind.Context, []*yangbind.Module, error) {
	logger, level, err := g.logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	features, err := g.featureMap()
	if err != nil {
		return nil, nil, err
	}

	var ctx *yangbind.Context
	if g.configFile != "" {
		cfg, err := yangbind.LoadConfig(g.configFile)
		if err != nil {
			return nil, nil, err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = level.String()
		}
		cfg.DisableSearchDirCwd = cfg.DisableSearchDirCwd || g.noCwd
		cfg.SearchDirs = append(cfg.SearchDirs, g.searchDirs...)
		ctx, err = yangbind.OpenConfig(cfg, logger, nil)
		if err != nil {
			return nil, nil, err
		}
	} else {
		ctx, err = yangbind.Open(yangbind.Options{
			SearchDirs:          g.searchDirs,
			DisableSearchDirCwd: g.noCwd,
			Logger:              logger,
			LogLevel:            level,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	mods := make([]*yangbind.Module, 0, len(schemas))
	for _, s := range schemas {
		m, err := loadSchema(ctx, s, features)
		if err != nil {
			ctx.Close()
			return nil, nil, fmt.Errorf("%s: %w", s, err)
		}
		mods = append(mods, m)
	}
	return ctx, mods, nil
}

func loadSchema(ctx *yangbind.Context, schema string, features map[string][]string) (*yangbind.Module, error) {
	format := yangbind.SchemaUnknown
	switch strings.ToLower(filepath.Ext(schema)) {
	case ".yang":
		format = yangbind.SchemaYANG
	case ".yin":
		format = yangbind.SchemaYIN
	}
	if format == yangbind.SchemaUnknown {
		name, rev, _ := strings.Cut(schema, "@")
		return ctx.LoadModule(name, rev, features[name]...)
	}

	src, err := os.ReadFile(schema)
	if err != nil {
		return nil, err
	}
	name, _, _ := strings.Cut(strings.TrimSuffix(filepath.Base(schema), filepath.Ext(schema)), "@")
	return ctx.ParseModule(src, format, features[name]...)
}

// readData reads a data file; "-" is standard input.
func readData(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(file)
}

// dataFormat picks the format from the flag, the file extension or the
// content, in that order.
func dataFormat(flag, file string, data []byte) (yangbind.DataFormat, error) {
	if flag != "" {
		return yangbind.ParseDataFormat(flag)
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return yangbind.FormatJSON, nil
	case ".xml":
		return yangbind.FormatXML, nil
	case ".lyb":
		return yangbind.FormatLYB, nil
	}
	if f := yangbind.DetectFormat(data); f != yangbind.FormatUnknown {
		return f, nil
	}
	return yangbind.FormatUnknown, fmt.Errorf("%s: cannot tell the data format, use --format", file)
}
