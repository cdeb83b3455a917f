package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func main() {
	initDisplay()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

// We use pterm for moderately fancy output.
func initDisplay() {
	pterm.Info.Prefix = pterm.Prefix{
		Text:  "  >>",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "  Error",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

func newRootCommand() *cobra.Command {
	conf := newConfig()
	root := &cobra.Command{
		Use:           "rulegen",
		Short:         "Compile tree-rewrite rules into Go rewrite passes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			conf.InitDefaults()
			if err := conf.load(cmd.Flags()); err != nil {
				return err
			}
			initTracing(conf)
			return nil
		},
	}
	root.PersistentFlags().String(keyConfig, "", "configuration file")
	root.PersistentFlags().String(keyTrace, "Error", "trace level [Debug|Info|Error]")
	root.AddCommand(newGenerateCommand(conf), newCheckCommand(conf))
	return root
}

func newGenerateCommand(conf *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate RULES... SCHEMA",
		Short: "Generate Go rewrite passes from rule files",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			j := newJob(args[:len(args)-1], args[len(args)-1])
			j.out = conf.GetString(keyOut)
			j.pkg = conf.GetString(keyPackage)
			ctx := cmd.Context()
			if !conf.GetBool(keyWatch) {
				return j.generate(ctx)
			}
			if err := j.generate(ctx); err != nil {
				pterm.Error.Println(err.Error())
			}
			return watch(ctx, j.inputs(), func() error {
				return j.generate(ctx)
			})
		},
	}
	cmd.Flags().StringP(keyOut, "o", ".", "output directory")
	cmd.Flags().StringP(keyPackage, "p", "", "package of generated code (default: name of the rule file)")
	cmd.Flags().BoolP(keyWatch, "w", false, "regenerate whenever an input changes")
	return cmd
}

func newCheckCommand(conf *config) *cobra.Command {
	return &cobra.Command{
		Use:   "check RULES... SCHEMA",
		Short: "Compile rule files without generating code",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			j := newJob(args[:len(args)-1], args[len(args)-1])
			return j.check(cmd.Context())
		},
	}
}
