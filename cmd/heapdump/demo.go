package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/script-heap/dynobj"
	"github.com/wippyai/script-heap/rtti"
	"github.com/wippyai/script-heap/runtime"
)

type demoOptions struct {
	output  string
	witJSON string
	strings int
}

func newDemoCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "demo [options] OUTPUT",
		Short:                 "write a save file with sample objects",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(demoOptions)
	c.Flags().StringVar(&opts.witJSON, "wit", "", "register the records of a WIT JSON `file` as script types")
	c.Flags().IntVar(&opts.strings, "strings", 8, "number of sample strings")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts.output = args[0]
		return runDemo(cmd.Context(), g, opts)
	}
	return c
}

// demoTypes builds the sample registry, adding the records of a WIT JSON
// document when path is set.
func demoTypes(path string) (*rtti.Registry, error) {
	b := rtti.NewBuilder()
	str := b.StringType()
	b.Struct("Inventory").Int32("gold").Handle("owner", str).Handles("items", str, 4).AsManaged().Add()
	if path != "" {
		res, err := wit.LoadJSON(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		var records []*wit.TypeDef
		for _, def := range res.TypeDefs {
			if _, ok := def.Kind.(*wit.Record); ok && def.Name != nil {
				records = append(records, def)
			}
		}
		b.FromWIT(records...)
	}
	return b.Build()
}

func runDemo(ctx context.Context, g *globalConfig, opts *demoOptions) error {
	ropts, err := g.runtimeOptions()
	if err != nil {
		return err
	}
	if ropts.Characters == 0 {
		ropts.Characters = 2
	}
	rt, err := runtime.New(ctx, ropts)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	reg, err := demoTypes(opts.witJSON)
	if err != nil {
		return err
	}
	if err := rt.SetTypes(reg); err != nil {
		return err
	}

	names := make([]string, opts.strings)
	for i := range names {
		names[i] = fmt.Sprintf("item %d", i)
	}
	list, err := rt.CreateStringArray(names)
	if err != nil {
		return err
	}
	rt.AddRef(list)

	invID, _ := reg.Lookup("Inventory")
	invType, _ := reg.Type(invID)
	inv, err := rt.CreateUserStruct(invID, invType.Size)
	if err != nil {
		return err
	}
	rt.AddRef(inv)
	owner, err := rt.Strings().Format("%s #%d", dynobj.StringArg("hero"), dynobj.IntArg(1))
	if err != nil {
		return err
	}
	if err := rt.WriteHandle(inv, 4, owner); err != nil {
		return err
	}
	if err := rt.WriteInt32(inv, 0, 250); err != nil {
		return err
	}

	// an unreachable pair for the collector
	a, _ := rt.CreateManagedArray(1)
	b, _ := rt.CreateManagedArray(1)
	_ = rt.WriteHandle(a, 0, b)
	_ = rt.WriteHandle(b, 0, a)
	collected := rt.RunGC()

	if chars := rt.Characters(); chars != nil {
		_ = chars.SetName(0, "Hero")
		_ = chars.SetTransparency(0, 30)
	}

	f, err := os.Create(opts.output)
	if err != nil {
		return err
	}
	if err := rt.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	st := rt.Stats()
	g.log.Info("demo save written",
		zap.String("file", opts.output),
		zap.Int("objects", st.Objects),
		zap.Int("collected", collected),
		zap.Uint32("heapInUse", st.Heap.InUse))
	fmt.Printf("wrote %s: %d objects (%d collected)\n", opts.output, st.Objects, collected)
	return nil
}
