package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/mfg-ledger/importer"
	"github.com/warp/mfg-ledger/inventory"
)

type importStockOptions struct {
	file        string
	warehouseID string
	customerID  string
	poID        string
	batch       string
	notes       string
	user        string
}

func newImportStockCmd() *cobra.Command {
	var opts importStockOptions
	cmd := &cobra.Command{
		Use:   "import-stock",
		Short: "Receive every row of an xlsx stock-in sheet as one batch",
		Long: "Reads the first sheet of an xlsx file with the columns " +
			"Material Code, Quantity and optional Unit Price, Notes, and books " +
			"all rows as RECEIVED receipts in a single transaction.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.closeStore()
			return importStock(cmd, a, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "xlsx file to import")
	cmd.Flags().StringVar(&opts.warehouseID, "warehouse", "", "Receiving warehouse id")
	cmd.Flags().StringVar(&opts.customerID, "customer", "", "Owning customer id")
	cmd.Flags().StringVar(&opts.poID, "po", "", "Purchase order id to link the receipts to")
	cmd.Flags().StringVar(&opts.batch, "batch", "", "Batch number (generated when empty)")
	cmd.Flags().StringVar(&opts.notes, "notes", "", "Notes for rows without their own")
	cmd.Flags().StringVar(&opts.user, "user", "cli", "Recorded as the creator of the receipts")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("warehouse")
	cmd.MarkFlagRequired("customer")
	return cmd
}

func importStock(cmd *cobra.Command, a *app, opts importStockOptions) error {
	f, err := os.Open(opts.file)
	if err != nil {
		return fmt.Errorf("failed to open sheet: %w", err)
	}
	defer f.Close()

	rows, err := importer.ReadStockIn(f)
	if err != nil {
		return err
	}

	result, err := a.inventory.ProcessStockIn(cmd.Context(), inventory.StockInCommand{
		BatchNumber: opts.batch,
		WarehouseID: opts.warehouseID,
		CustomerID:  opts.customerID,
		POID:        opts.poID,
		Notes:       opts.notes,
		CreatedBy:   opts.user,
		Lines:       importer.ToLines(rows, opts.customerID),
	})
	if err != nil {
		return err
	}

	a.log.WithFields(logrus.Fields{
		"file":  opts.file,
		"batch": result.BatchNumber,
		"lines": len(result.Receipts),
	}).Info("stock-in sheet imported")
	for _, r := range result.Receipts {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", r.ReceiptNumber, r.MaterialID, r.Quantity)
	}
	return nil
}
