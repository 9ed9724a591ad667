package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/v3dqpu/asm"
	"github.com/sarchlab/v3dqpu/device/sim"
	"github.com/sarchlab/v3dqpu/driver"
	"github.com/sarchlab/v3dqpu/insts"
	"github.com/sarchlab/v3dqpu/kernels"
	"github.com/sarchlab/v3dqpu/loader"
)

func lookupKernel(name string) (kernels.Entry, error) {
	entry, ok := kernels.Lookup(name)
	if !ok {
		return entry, fmt.Errorf("unknown kernel %q (have: %s)",
			name, strings.Join(kernels.Names(), ", "))
	}
	return entry, nil
}

func newKernelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kernels",
		Short: "List the bundled kernels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range kernels.Names() {
				entry, _ := kernels.Lookup(name)
				fmt.Fprintf(a.stdout, "%-8s args=%d  %s\n", name, entry.Args, entry.Doc)
			}
			return nil
		},
	}
}

func newDumpCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "dump <kernel>",
		Short: "Assemble a kernel and print or save its words",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := lookupKernel(args[0])
			if err != nil {
				return err
			}
			prog, err := asm.Assemble(entry.Kernel)
			if err != nil {
				return err
			}
			words, err := prog.Words()
			if err != nil {
				return err
			}
			img := &loader.Image{Words: words}

			if output == "" {
				return img.WriteText(a.stdout)
			}
			if err := loader.Save(a.fs, output, img); err != nil {
				return err
			}
			a.logger.WithField("path", output).Infof("Wrote %d instructions", img.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the image to a file (.bin for binary)")
	return cmd
}

func newDisasmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <image>",
		Short: "Decode a program image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := loader.Load(a.fs, args[0])
			if err != nil {
				return err
			}
			dec := insts.NewDecoder()
			for i, word := range img.Words {
				fmt.Fprintf(a.stdout, "%4d: 0x%016x  %s\n", i, word, dec.Decode(word))
			}
			return nil
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	var (
		useSim bool
		kargs  []uint
	)

	cmd := &cobra.Command{
		Use:   "run <kernel>",
		Short: "Run a kernel and print its output buffer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := lookupKernel(args[0])
			if err != nil {
				return err
			}
			if len(kargs) != entry.Args {
				return fmt.Errorf("kernel %s takes %d argument(s), got %d", entry.Name, entry.Args, len(kargs))
			}

			cfg, err := a.config()
			if err != nil {
				return err
			}

			var drv *driver.Driver
			if useSim {
				drv, err = driver.New(sim.New(), cfg, driver.WithLogger(a.logger))
			} else {
				drv, err = driver.Open(cfg, driver.WithLogger(a.logger))
			}
			if err != nil {
				return err
			}
			defer drv.Close()

			return runKernel(cmd.Context(), a, drv, entry, kargs)
		},
	}
	cmd.Flags().BoolVar(&useSim, "sim", false, "Run on the simulated device")
	cmd.Flags().UintSliceVar(&kargs, "arg", nil, "Kernel argument (repeatable)")
	return cmd
}

func runKernel(ctx context.Context, a *app, drv *driver.Driver, entry kernels.Entry, kargs []uint) error {
	if ctx == nil {
		ctx = context.Background()
	}

	code, err := drv.Program(entry.Kernel)
	if err != nil {
		return err
	}

	unifs := make([]uint32, 0, len(kargs)+1)
	for _, v := range kargs {
		unifs = append(unifs, uint32(v))
	}

	var out *driver.Buffer
	if entry.Output {
		if out, err = drv.Alloc(kernels.Lanes); err != nil {
			return err
		}
		unifs = append(unifs, out.Addr)
	}

	var unifBuf *driver.Buffer
	if len(unifs) > 0 {
		if unifBuf, err = drv.Alloc(len(unifs)); err != nil {
			return err
		}
		if err := unifBuf.Write(unifs...); err != nil {
			return err
		}
	}

	if err := drv.Execute(ctx, code, unifBuf, 0); err != nil {
		return fmt.Errorf("kernel %s: %w", entry.Name, err)
	}

	if out == nil {
		fmt.Fprintf(a.stdout, "%s: done\n", entry.Name)
		return nil
	}
	vals, err := out.Read()
	if err != nil {
		return err
	}
	for i, v := range vals {
		fmt.Fprintf(a.stdout, "lane %2d: 0x%08x (%d)\n", i, v, v)
	}
	return nil
}
