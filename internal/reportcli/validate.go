package reportcli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/saltworks/nexusengine/internal/config"
)

// NewValidateRulesCommand builds the "validate-rules" subcommand: load a
// rule YAML file and report whether it satisfies every JurisdictionRule
// invariant, without running any transactions through it.
func NewValidateRulesCommand(log *logrus.Logger) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "validate-rules",
		Short: "Validate a jurisdiction rule YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			path := v.GetString("rules")
			if path == "" {
				return fmt.Errorf("--rules is required")
			}

			registry, err := config.LoadRegistryFile(path)
			if err != nil {
				return err
			}

			log.WithField("count", len(registry)).Info("rule table is valid")
			fmt.Fprintf(cmd.OutOrStdout(), "%d jurisdiction(s) loaded successfully\n", len(registry))
			return nil
		},
	}

	cmd.Flags().String("rules", "", "path to the jurisdiction rule YAML file (required)")
	return cmd
}
