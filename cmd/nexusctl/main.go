// Command nexusctl runs the nexus determination and liability engine
// against a client's rule table and transaction export from the command
// line.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/saltworks/nexusengine/internal/reportcli"
)

var log = logrus.New()

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		log.WithError(err).Error("nexusctl failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "nexusctl",
		Short:         "Determine sales-tax nexus and estimate liability across jurisdictions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(cmd.Flag("log-level").Value.String())
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		log.SetLevel(level)
		return nil
	}

	root.AddCommand(reportcli.NewComputeCommand(log))
	root.AddCommand(reportcli.NewValidateRulesCommand(log))
	return root
}
