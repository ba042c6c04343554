package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"stylestudioapi/models"
	"stylestudioapi/outfits"

	"github.com/spf13/cobra"
)

var combosJSON bool

// combosCmd previews the looks a selection expands to
var combosCmd = &cobra.Command{
	Use:   "combos [selection.json]",
	Short: "Print the looks generated for a selection",
	Long: `Reads a selection file mapping categories to item names, for example

  {"tops": ["Silk Blouse", "Casual Tee"], "bottoms": ["Denim Jeans"], "footwear": ["Sneakers"]}

and prints every look in generation order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()
		selection, err := readSelection(file)
		if err != nil {
			return err
		}
		return printCombos(cmd.OutOrStdout(), selection, combosJSON)
	},
}

func init() {
	combosCmd.Flags().BoolVar(&combosJSON, "json", false, "Print the planned looks as JSON")
}

// readSelection builds a selection from item names; each name doubles as the item ID.
func readSelection(r io.Reader) (outfits.Selection, error) {
	var raw map[string][]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid selection file: %w", err)
	}
	selection := outfits.NewSelection()
	for key, names := range raw {
		category, err := models.ParseCategory(key)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if selection.IsSelected(category, name) {
				continue
			}
			selection[category] = append(selection[category], models.CatalogueItem{ID: name, Name: name})
		}
	}
	return selection, nil
}

func printCombos(w io.Writer, selection outfits.Selection, asJSON bool) error {
	attempts := outfits.GenerateOutfitCombinations(selection)
	if asJSON {
		plans := make([]models.PlannedAttempt, 0, len(attempts))
		for _, attempt := range attempts {
			plans = append(plans, attempt.Plan())
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(plans)
	}

	if selection.Conflicting() {
		fmt.Fprintln(w, "note: outfits are selected, tops and bottoms are ignored")
	}
	fmt.Fprintf(w, "%d look(s)\n", len(attempts))
	for i, attempt := range attempts {
		fmt.Fprintf(w, "%3d. %s\n", i+1, attempt.Names())
	}
	return nil
}
