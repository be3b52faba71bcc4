package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/script-heap/rtti"
	"github.com/wippyai/script-heap/savegame"
)

type dumpOptions struct {
	files      []string
	jsonFormat bool
	jobs       int
}

func newDumpCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "dump [options] FILE [...]",
		Short:                 "print the types and objects of save files",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MinimumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(dumpOptions)
	c.Flags().BoolVar(&opts.jsonFormat, "json", false, "print as JSON")
	c.Flags().IntVarP(&opts.jobs, "jobs", "j", 4, "decode up to `n` files at once")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts.files = args
		return runDump(cmd.Context(), g, opts, cmd.OutOrStdout())
	}
	return c
}

// saveReport is the decoded content of one save file.
type saveReport struct {
	File    string           `json:"file"`
	Version int32            `json:"version"`
	Types   []rtti.Signature `json:"types"`
	Objects []objectInfo     `json:"objects"`
}

func inspectFile(path string) (*saveReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := savegame.Inspect(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r := &saveReport{File: path, Version: s.Version, Types: s.Types}
	for _, o := range s.Objects {
		r.Objects = append(r.Objects, describe(s, o))
	}
	return r, nil
}

func runDump(ctx context.Context, g *globalConfig, opts *dumpOptions, out io.Writer) error {
	reports := make([]*saveReport, len(opts.files))
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(max(opts.jobs, 1))
	for i, path := range opts.files {
		grp.Go(func() error {
			if err := grpCtx.Err(); err != nil {
				return err
			}
			r, err := inspectFile(path)
			if err != nil {
				return err
			}
			g.log.Debug("decoded save", zap.String("file", path), zap.Int("objects", len(r.Objects)))
			reports[i] = r
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	if opts.jsonFormat {
		return jsonv2.MarshalWrite(out, reports, jsontext.WithIndent("  "))
	}
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if err := printReport(out, r); err != nil {
			return err
		}
	}
	return nil
}

func printReport(out io.Writer, r *saveReport) error {
	fmt.Fprintf(out, "%s: save version %d, %d types, %d objects\n", r.File, r.Version, len(r.Types), len(r.Objects))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSIZE\tFIELDS")
	for _, t := range r.Types {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", t.ID, t.Name, t.Size, len(t.Fields))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "HANDLE\tKIND\tTYPE\tREFS\tSUMMARY")
	for _, o := range r.Objects {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", o.Handle, o.Kind, o.Type, o.RefCount, o.Summary)
	}
	return tw.Flush()
}
