package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/recon/internal/common"
)

// defaultConfigFile is picked up from the working directory when no --config is given
const defaultConfigFile = "recon.toml"

type rootOptions struct {
	configFiles []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "recon",
		Short: "Reconcile EDW and Journal transactions with a text-generation service",
		Long: `Recon reads the EDW and Journal sheets of a workbook, asks a text-generation
service to match them, requests resolution suggestions for anything left unmatched
and writes a multi-sheet Excel report.`,
		Version:       common.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringSliceVarP(&opts.configFiles, "config", "c", nil,
		"Configuration file path (can be specified multiple times, later files override earlier ones)")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}

// resolveConfigFiles returns the configured files, or recon.toml when it exists
func (o *rootOptions) resolveConfigFiles() []string {
	if len(o.configFiles) > 0 {
		return o.configFiles
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return []string{defaultConfigFile}
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
