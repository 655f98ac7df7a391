package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"erpsync/internal/directory"
	"erpsync/internal/mapping"
)

// tableKinds pairs each code table with the directory kind its ids belong to.
var tableKinds = map[string]directory.Kind{
	mapping.TableUOM:          "uom.uom",
	mapping.TableCountry:      "res.country",
	mapping.TableState:        "res.country.state",
	mapping.TableIDType:       "l10n_latam.identification.type",
	mapping.TableCurrency:     "res.currency",
	mapping.TableLocation:     directory.StockLocation,
	mapping.TableTaxCondition: "l10n_ar.afip.responsibility.type",
}

func (a *app) mappingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Inspect the code tables",
	}

	var targets bool
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check that the code tables every job needs are present",
		Long: "Check that the code tables every job needs are present and not empty.\n" +
			"With --targets, also check that every mapped id exists in the directory.",
		Args:    cobra.NoArgs,
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			codes, err := a.loadMappings()
			if err != nil {
				return err
			}

			var required []string
			for _, def := range jobDefs {
				required = append(required, def.tables...)
			}
			if err := codes.Validate(required...); err != nil {
				return err
			}

			for _, def := range jobDefs {
				if rule := codes.SkipRule(def.name); rule != "" {
					if _, err := jobOptions(def.name, codes, &runFlags{}); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "skip rule %s: %s\n", def.name, rule)
				}
			}

			if targets {
				svc, err := a.openDirectory(cmd.Context(), true)
				if err != nil {
					return err
				}
				kinds := make(map[string]directory.Kind)
				for _, table := range codes.Tables() {
					if kind, ok := tableKinds[table]; ok {
						kinds[table] = kind
					}
				}
				if err := codes.ValidateTargets(cmd.Context(), svc, kinds); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d code tables ok: %v\n", len(codes.Tables()), codes.Tables())
			return nil
		},
	}
	validate.Flags().BoolVar(&targets, "targets", false, "check mapped ids against the directory")

	cmd.AddCommand(validate)
	return cmd
}
