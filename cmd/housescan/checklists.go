package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/InonELGABSI/houseScanner/internal/checklist"
)

// checklistsCmd validates the checklist data directory
var checklistsCmd = &cobra.Command{
	Use:   "checklists",
	Short: "Validate and summarize the checklist data directory",
	Long: `Loads the three base checklist files and the optional custom user
checklist from the data directory, reporting their type and item counts.
Fails when a base file is missing or malformed.`,
	RunE: runChecklists,
}

func runChecklists(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store := checklist.NewStore(cfg.Data.Dir, nil, logger)

	house, err := store.House(ctx)
	if err != nil {
		return err
	}
	rooms, err := store.Rooms(ctx)
	if err != nil {
		return err
	}
	products, err := store.Products(ctx)
	if err != nil {
		return err
	}
	custom := store.CustomUser(ctx)

	fmt.Printf("Checklist data: %s\n", cfg.Data.Dir)
	fmt.Printf("  house:    %d default items, types: %s\n",
		len(house.BaseItems()), joinOrNone(house.AllowedHouseTypes()))
	fmt.Printf("  rooms:    %d default items, types: %s\n",
		len(rooms.BaseItems()), joinOrNone(rooms.AllowedRoomTypes()))
	fmt.Printf("  products: %d items\n", len(products.BaseItems()))
	fmt.Printf("  custom:   %d global, %d house, %d product, %d room entries\n",
		len(custom.Global), len(custom.HouseLevel), len(custom.ProductLevel), len(custom.RoomLevel))
	return nil
}

func joinOrNone(types []string) string {
	if len(types) == 0 {
		return "(none)"
	}
	return strings.Join(types, ", ")
}
