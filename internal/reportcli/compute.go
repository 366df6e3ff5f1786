// Package reportcli wires the CLI's flag/env parsing and file loading to
// the pure nexus engine and the report renderer. It is the only package
// that imports both cobra/viper and nexus.
package reportcli

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/saltworks/nexusengine/internal/config"
	"github.com/saltworks/nexusengine/internal/ingest"
	"github.com/saltworks/nexusengine/internal/nexus"
	"github.com/saltworks/nexusengine/internal/report"
)

const dateLayout = "2006-01-02"

// NewComputeCommand builds the "compute" subcommand: load rules and
// transactions, run the engine, render the result.
func NewComputeCommand(log *logrus.Logger) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute nexus determination and liability for a transaction export",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompute(cmd, v, log)
		},
	}

	flags := cmd.Flags()
	flags.String("rules", "", "path to the jurisdiction rule YAML file (required)")
	flags.String("transactions", "", "path to the transaction CSV export (required)")
	flags.String("physical-nexus", "", "path to the physical-nexus declaration YAML file (optional)")
	flags.String("as-of", "", "valuation date, YYYY-MM-DD (defaults to today)")
	flags.String("format", "table", "output format: table or json")
	flags.Bool("include-none", false, "include jurisdiction-years with no nexus in the table output")
	flags.Bool("parallel", false, "fan jurisdiction computation out across a worker pool at the caller layer")

	return cmd
}

func runCompute(cmd *cobra.Command, v *viper.Viper, log *logrus.Logger) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	v.SetEnvPrefix("NEXUSCTL")
	v.AutomaticEnv()

	rulesPath := v.GetString("rules")
	transactionsPath := v.GetString("transactions")
	if rulesPath == "" || transactionsPath == "" {
		return fmt.Errorf("--rules and --transactions are required")
	}

	asOf := time.Now().UTC()
	if raw := v.GetString("as-of"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return fmt.Errorf("invalid --as-of: %w", err)
		}
		asOf = parsed
	}
	asOf = time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)

	runID := uuid.New().String()
	log.WithFields(logrus.Fields{"run_id": runID, "rules": rulesPath, "transactions": transactionsPath, "as_of": asOf.Format(dateLayout)}).Info("loading inputs")

	registry, err := config.LoadRegistryFile(rulesPath)
	if err != nil {
		return err
	}

	var physical map[nexus.Jurisdiction]nexus.PhysicalNexusDeclaration
	if path := v.GetString("physical-nexus"); path != "" {
		physical, err = config.LoadPhysicalNexusFile(path)
		if err != nil {
			return err
		}
	}

	file, err := os.Open(transactionsPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", transactionsPath, err)
	}
	defer file.Close()

	rawRows, err := ingest.ReadCSV(file)
	if err != nil {
		return err
	}

	whitelist := nexus.NewJurisdictionSet()
	normalized := nexus.Normalize(rawRows, whitelist, asOf)
	for _, issue := range normalized.Report {
		if issue.Severity == nexus.SeverityError {
			log.WithFields(logrus.Fields{"row": issue.RowIndex, "field": issue.Field}).Warn(issue.Message)
		}
	}
	log.WithField("count", len(normalized.Transactions)).Info("normalized transactions")

	sharedContext := nexus.Context{
		Transactions: normalized.Transactions,
		Registry:     registry,
		Physical:     physical,
		AsOf:         asOf,
	}
	years := nexus.ResolveYearRange(sharedContext)

	var result nexus.Result
	if v.GetBool("parallel") {
		result, err = computeParallel(registry, normalized.Transactions, physical, asOf, years)
	} else {
		sharedContext.YearRange = years
		result, err = nexus.Compute(sharedContext)
	}
	if err != nil {
		return err
	}
	result.Validation = append(normalized.Report, result.Validation...)
	log.WithFields(logrus.Fields{"run_id": runID, "year_results": len(result.Years)}).Info("computation complete")

	summary := nexus.Summarize(result, years)
	summary.GeneratedAt = time.Now().UTC()

	switch v.GetString("format") {
	case "json":
		return report.RenderJSON(cmd.OutOrStdout(), result, summary)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "run %s\n", runID)
		return report.RenderTable(cmd.OutOrStdout(), result, summary, v.GetBool("include-none"))
	}
}

// computeParallel fans the per-jurisdiction computation out across a
// bounded worker pool, one Compute call per jurisdiction, then merges the
// results. internal/nexus itself stays single-threaded; this is the
// caller-side parallelism the engine's concurrency model permits. years is
// resolved once by the caller from the full transaction/physical span so
// every jurisdiction is analyzed over the same window the serial path would
// use — deriving it per jurisdiction here would narrow it whenever a single
// jurisdiction's own data doesn't span the full range.
func computeParallel(registry nexus.RuleRegistry, txns []nexus.Transaction, physical map[nexus.Jurisdiction]nexus.PhysicalNexusDeclaration, asOf time.Time, years []int) (nexus.Result, error) {
	jurisdictions := registry.Jurisdictions()
	sort.Slice(jurisdictions, func(i, j int) bool { return jurisdictions[i] < jurisdictions[j] })

	byJurisdiction := make(map[nexus.Jurisdiction][]nexus.Transaction)
	for _, t := range txns {
		byJurisdiction[t.Jurisdiction] = append(byJurisdiction[t.Jurisdiction], t)
	}

	results := make([]nexus.Result, len(jurisdictions))
	var g errgroup.Group
	g.SetLimit(8)

	for i, j := range jurisdictions {
		i, j := i, j
		g.Go(func() error {
			singleRegistry := nexus.RuleRegistry{j: registry[j]}
			singlePhysical := map[nexus.Jurisdiction]nexus.PhysicalNexusDeclaration{}
			if p, ok := physical[j]; ok {
				singlePhysical[j] = p
			}
			r, err := nexus.Compute(nexus.Context{
				Transactions: byJurisdiction[j],
				Registry:     singleRegistry,
				Physical:     singlePhysical,
				AsOf:         asOf,
				YearRange:    years,
			})
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nexus.Result{}, err
	}

	merged := nexus.Result{Years: make([]nexus.YearResult, 0), Validation: make([]nexus.ValidationIssue, 0)}
	for _, r := range results {
		merged.Years = append(merged.Years, r.Years...)
		merged.Validation = append(merged.Validation, r.Validation...)
	}
	return merged, nil
}
