package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cindralabs/riskcore/api/schemas"
	"github.com/cindralabs/riskcore/internal/scoring"
)

// newScoreCmd creates the `score` command, which computes a composite risk
// score for one entity from a file of raw factor measurements.
func newScoreCmd() *cobra.Command {
	scoreCmd := &cobra.Command{
		Use:   "score [values-file]",
		Short: "Computes a composite risk score from a YAML file of factor measurements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			class, _ := cmd.Flags().GetString("class")
			multipliers, _ := cmd.Flags().GetFloat64Slice("multiplier")

			profiles, err := scoring.LoadProfiles(appConfig.Scoring().ProfilesFile)
			if err != nil {
				return err
			}
			profile, ok := profiles[schemas.EntityClass(class)]
			if !ok {
				return fmt.Errorf("no scoring profile for entity class %q", class)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read values file: %w", err)
			}
			var rawValues map[string]float64
			if err := yaml.Unmarshal(data, &rawValues); err != nil {
				return fmt.Errorf("failed to parse values file: %w", err)
			}

			result, err := profile.Score(rawValues, multipliers)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Score: %d\n", result.Score)
			fmt.Fprintf(out, "Multiplier: %.2f\n", result.Multiplier)
			names := make([]string, 0, len(result.Breakdown))
			for name := range result.Breakdown {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  %-24s %.2f\n", name, result.Breakdown[name])
			}
			return nil
		},
	}

	scoreCmd.Flags().String("class", string(schemas.ClassVulnerability), "Entity class whose scoring profile to use.")
	scoreCmd.Flags().Float64Slice("multiplier", nil, "Context multiplier, repeatable (e.g. internet exposure, data sensitivity).")

	return scoreCmd
}
