package registry

import (
	"fmt"
	"os"

	"github.com/mapsign/mapsign/configuration"
	"github.com/mapsign/mapsign/version"
	"github.com/spf13/cobra"
)

var showVersion bool

func init() {
	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(TemplateCmd)
	RootCmd.AddCommand(SignatureCmd)
	RootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show the version and exit")
}

// RootCmd is the main command for the 'mapsign' binary.
var RootCmd = &cobra.Command{
	Use:   "mapsign",
	Short: "`mapsign`",
	Long:  "`mapsign` stores map templates and answers access checks on their instances.",
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			version.FprintVersion(cmd.OutOrStdout())
			return
		}
		// nolint:errcheck
		cmd.Usage()
	},
}

// resolveConfiguration parses the configuration file named by the first
// argument, or by MAPSIGN_CONFIGURATION_PATH when there are no arguments.
func resolveConfiguration(args []string) (*configuration.Configuration, error) {
	var configurationPath string

	if len(args) > 0 && args[0] != "" {
		configurationPath = args[0]
	} else if os.Getenv("MAPSIGN_CONFIGURATION_PATH") != "" {
		configurationPath = os.Getenv("MAPSIGN_CONFIGURATION_PATH")
	}

	if configurationPath == "" {
		return nil, fmt.Errorf("configuration path unspecified")
	}

	fp, err := os.Open(configurationPath)
	if err != nil {
		return nil, err
	}

	defer fp.Close()

	config, err := configuration.Parse(fp)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %v", configurationPath, err)
	}

	return config, nil
}
