// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"featidx/internal/audio"
	"featidx/internal/buffer"
	"featidx/internal/config"
	"featidx/internal/decode"
	"featidx/internal/feature"
	applog "featidx/internal/log"
	"featidx/internal/tui"
	"featidx/pkg/build"

	"github.com/spf13/cobra"
)

// options are the values shared by every subcommand.
type options struct {
	configPath string
	verbose    bool
	cfg        *config.Config
}

// NewRootCommand builds the featidx command tree.
func NewRootCommand() *cobra.Command {
	buildInfo := build.Current()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Feature-index audio engine: load, inspect, edit and resynthesise samples",
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to the YAML configuration file (default ./config.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.AddCommand(
		newInfoCommand(opts),
		newRenderCommand(opts),
		newPlayCommand(opts),
		newDevicesCommand(opts),
		newFormatsCommand(),
		newServeCommand(opts),
	)
	return rootCmd
}

// Execute runs the command tree with args.
func Execute(ctx context.Context, args []string) error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func (o *options) setup() error {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	if o.verbose {
		cfg.Debug = true
	}
	applog.SetLevel(cfg.Level())
	feature.DebugChecks = cfg.Debug
	o.cfg = cfg
	return nil
}

// loadEngine decodes path into a new engine and computes the configured
// dimensions plus extra.
func (o *options) loadEngine(ctx context.Context, path string, extra feature.Dimension) (*audio.Engine, error) {
	buf, rate, err := decode.Load(path)
	if err != nil {
		return nil, err
	}
	engine := audio.NewEngine(o.cfg)
	if err := engine.Load(buf, float64(rate)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dims, err := o.cfg.ComputeDimensions()
	if err != nil {
		return nil, err
	}
	if dims|extra != 0 {
		if err := engine.Compute(ctx, dims|extra); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

// parseDimensions folds comma separated dimension names.
func parseDimensions(names []string) (feature.Dimension, error) {
	var dims feature.Dimension
	for _, name := range names {
		d, err := feature.ParseDimension(name)
		if err != nil {
			return 0, err
		}
		dims |= d
	}
	return dims, nil
}

func newInfoCommand(opts *options) *cobra.Command {
	var (
		compute  []string
		spectral bool
		useTUI   bool
	)
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Show feature statistics of an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extra, err := parseDimensions(compute)
			if err != nil {
				return err
			}
			engine, err := opts.loadEngine(cmd.Context(), args[0], extra)
			if err != nil {
				return err
			}

			frames := 0
			if spectral {
				if frames, err = engine.Analyze(); err != nil {
					return err
				}
			}
			report, err := buildReport(engine, filepath.Base(args[0]), frames)
			if err != nil {
				return err
			}
			if useTUI {
				return tui.StartReportUI(report)
			}
			fmt.Fprint(cmd.OutOrStdout(), report.Render())
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&compute, "compute", nil,
		"Dimensions to compute before reporting (frequency, phase, volume, pan, all)")
	cmd.Flags().BoolVar(&spectral, "spectral", false, "Run spectral analysis and report its features")
	cmd.Flags().BoolVarP(&useTUI, "tui", "t", false, "Show the report in an interactive viewer")
	return cmd
}

func buildReport(engine *audio.Engine, source string, frames int) (tui.Report, error) {
	d, err := engine.Features()
	if err != nil {
		return tui.Report{}, err
	}
	buf, err := engine.Buffer()
	if err != nil {
		return tui.Report{}, err
	}
	return tui.NewReport(source, engine.SampleRate(), buf.NumChannels(), d, frames), nil
}

// editFlags describe a feature edit applied to a sample range.
type editFlags struct {
	from, to  int
	gain      float64
	pan       float64
	frequency float64
}

func (f *editFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.from, "from", 0, "First sample to edit")
	cmd.Flags().IntVar(&f.to, "to", -1, "Last sample to edit (-1 for the end)")
	cmd.Flags().Float64Var(&f.gain, "gain", feature.DefaultVolume, "Volume to set in the range [0, 2]")
	cmd.Flags().Float64Var(&f.pan, "pan", feature.DefaultPan, "Pan to set in the range [0 left, 1 right]")
	cmd.Flags().Float64Var(&f.frequency, "frequency", feature.DefaultFrequency, "Frequency to set in Hz")
}

// changed reports whether any feature value flag was set.
func (f *editFlags) changed(cmd *cobra.Command) bool {
	return cmd.Flags().Changed("gain") || cmd.Flags().Changed("pan") || cmd.Flags().Changed("frequency")
}

// apply edits the engine's features for every flag the user set. It
// returns the number of samples edited.
func (f *editFlags) apply(cmd *cobra.Command, engine *audio.Engine) (int, error) {
	changed := cmd.Flags().Changed
	if !f.changed(cmd) {
		return 0, nil
	}

	edited := 0
	err := engine.Edit(func(d *feature.Data) {
		to := f.to
		if to < 0 || to >= d.Len() {
			to = d.Len() - 1
		}
		for i := max(f.from, 0); i <= to; i++ {
			if changed("gain") {
				d.SetVolumeAt(i, f.gain)
			}
			if changed("pan") {
				d.SetPanAt(i, f.pan)
			}
			if changed("frequency") {
				d.SetFrequencyAt(i, f.frequency)
			}
			edited++
		}
	})
	return edited, err
}

func newRenderCommand(opts *options) *cobra.Command {
	var (
		modeName string
		edit     editFlags
	)
	cmd := &cobra.Command{
		Use:   "render <input> <output.wav>",
		Short: "Edit features of an audio file and write the resynthesised result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := audio.ParseMode(modeName)
			if err != nil {
				return err
			}
			engine, err := opts.loadEngine(cmd.Context(), args[0], 0)
			if err != nil {
				return err
			}
			out, edited, err := render(cmd, engine, mode, &edit)
			if err != nil {
				return err
			}
			if err := engine.Export(args[1], out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s render of %d samples (%d edited) written to %s\n",
				mode, out.NumSamples(), edited, args[1])
			return nil
		},
	}
	cmd.Flags().StringVarP(&modeName, "mode", "m", audio.ModeLocalized.String(),
		"Render mode: localized, global or spectral")
	edit.register(cmd)
	return cmd
}

func newPlayCommand(opts *options) *cobra.Command {
	var (
		modeName string
		edit     editFlags
	)
	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Preview an audio file, optionally edited and resynthesised",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.loadEngine(cmd.Context(), args[0], 0)
			if err != nil {
				return err
			}
			if edit.changed(cmd) || cmd.Flags().Changed("mode") {
				mode, err := audio.ParseMode(modeName)
				if err != nil {
					return err
				}
				if _, _, err := render(cmd, engine, mode, &edit); err != nil {
					return err
				}
			}
			return engine.Preview(cmd.Context(), nil)
		},
	}
	cmd.Flags().StringVarP(&modeName, "mode", "m", audio.ModeLocalized.String(),
		"Render mode: localized, global or spectral")
	edit.register(cmd)
	return cmd
}

// render applies the edit flags and renders with mode. Spectral renders
// analyse the audio before editing.
func render(cmd *cobra.Command, engine *audio.Engine, mode audio.Mode, edit *editFlags) (*buffer.Buffer, int, error) {
	if mode == audio.ModeSpectral {
		frames, err := engine.Analyze()
		if err != nil {
			return nil, 0, err
		}
		applog.Debugf("cli: analysed %d frames", frames)
	}
	edited, err := edit.apply(cmd, engine)
	if err != nil {
		return nil, 0, err
	}
	out, err := engine.Render(mode)
	if err != nil {
		return nil, 0, err
	}
	return out, edited, nil
}

func newDevicesCommand(opts *options) *cobra.Command {
	var useTUI bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List available output devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !useTUI {
				return audio.ListDevices(cmd.OutOrStdout())
			}
			id, frames, ok, err := tui.StartDeviceListUI(opts.cfg.Audio.FramesPerBuffer)
			if err != nil || !ok {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "audio:\n  output_device: %d\n  frames_per_buffer: %d\n", id, frames)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&useTUI, "tui", "t", false, "Pick a device interactively and print its configuration")
	return cmd
}

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the supported input formats",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(decode.Default.Formats(), "\n"))
		},
	}
}
