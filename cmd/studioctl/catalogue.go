package main

import (
	"context"
	"fmt"
	"io"

	"stylestudioapi/models"

	"github.com/spf13/cobra"
)

var (
	catalogueUser   uint
	catalogueGender string
)

var catalogueCmd = &cobra.Command{
	Use:   "catalogue",
	Short: "Inspect or reset a user's catalogues",
}

var catalogueShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a user's catalogue, falling back to the seed",
	RunE: func(cmd *cobra.Command, args []string) error {
		gender, err := parseGender(catalogueGender)
		if err != nil {
			return err
		}
		_, _, store, err := openStore()
		if err != nil {
			return err
		}
		ctx := context.Background()
		_, stored, err := store.Load(ctx, catalogueUser, gender)
		if err != nil {
			appLog.Warn("stored catalogue unreadable", "user_account_id", catalogueUser, "error", err)
		}
		catalogue, err := store.LoadOrSeed(ctx, catalogueUser, gender)
		if err != nil {
			return err
		}
		printCatalogue(cmd.OutOrStdout(), catalogue, stored)
		return nil
	},
}

var catalogueResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete a user's stored catalogues so the seed is served again",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Clear(context.Background(), catalogueUser); err != nil {
			return err
		}
		appLog.Info("catalogues cleared", "user_account_id", catalogueUser)
		fmt.Fprintf(cmd.OutOrStdout(), "catalogues of user %d cleared\n", catalogueUser)
		return nil
	},
}

func init() {
	catalogueCmd.PersistentFlags().UintVarP(&catalogueUser, "user", "u", 0, "User account ID")
	catalogueCmd.MarkPersistentFlagRequired("user")
	catalogueShowCmd.Flags().StringVarP(&catalogueGender, "gender", "g", string(models.GenderFemale), "female or male")
}

func parseGender(value string) (models.Gender, error) {
	if !models.ValidateGenderRaw(value) {
		return "", fmt.Errorf("unknown gender %q, expected female or male", value)
	}
	return models.Gender(value), nil
}

func printCatalogue(w io.Writer, catalogue models.Catalogue, stored bool) {
	source := "seed"
	if stored {
		source = "stored"
	}
	fmt.Fprintf(w, "%d item(s), %s\n", catalogue.Count(), source)
	for _, category := range models.Categories {
		items := catalogue[category]
		fmt.Fprintf(w, "%s (%d)\n", category.Title(), len(items))
		for _, item := range items {
			marker := ""
			if item.Image.IsPlaceholder() {
				marker = " [placeholder]"
			}
			fmt.Fprintf(w, "  %s  %s%s\n", item.ID, item.Name, marker)
		}
	}
}
