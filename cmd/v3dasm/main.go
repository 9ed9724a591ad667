// Package main provides v3dasm, a command-line front end for the QPU
// assembler. It lists the bundled kernels, dumps and disassembles program
// images, and runs kernels on a V3D GPU or the simulated device.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sarchlab/v3dqpu/driver"
)

type globalFlags struct {
	verbose    bool
	configPath string
}

func (g *globalFlags) register(flags *pflag.FlagSet) {
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "Verbose output")
	flags.StringVar(&g.configPath, "config", "", "Path to driver configuration JSON file")
}

// app carries what every subcommand needs.
type app struct {
	fs     afero.Fs
	stdout io.Writer
	logger *logrus.Logger
	flags  globalFlags
	lookup func(key string) (string, bool)
}

// config merges the defaults, the config file and the environment.
func (a *app) config() (*driver.Config, error) {
	cfg := driver.DefaultConfig()
	if a.flags.configPath != "" {
		loaded, err := driver.LoadConfig(a.fs, a.flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	env, err := driver.FromEnv(a.lookup)
	if err != nil {
		return nil, err
	}
	merged := cfg.Apply(env)

	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("invalid driver config: %w", err)
	}
	return &merged, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "v3dasm",
		Short: "Assemble and run VideoCore VI QPU programs",
		Long: `v3dasm assembles the bundled QPU kernels into 64-bit instruction words,
writes and disassembles program images, and runs kernels through the V3D
DRM driver or a simulated device.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.flags.verbose {
				a.logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(a.stdout)
	a.flags.register(root.PersistentFlags())

	root.AddCommand(
		newKernelsCmd(a),
		newDumpCmd(a),
		newDisasmCmd(a),
		newRunCmd(a),
	)
	return root
}

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	a := &app{
		fs:     afero.NewOsFs(),
		stdout: os.Stdout,
		logger: logger,
		lookup: os.LookupEnv,
	}

	if err := newRootCmd(a).Execute(); err != nil {
		os.Exit(1)
	}
}
