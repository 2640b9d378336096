package inventory

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/warp/mfg-ledger/domain"
)

// ProcessStockIn books every line of a batch as a RECEIVED receipt in one
// transaction. If any line fails, no line is applied.
func (s *Service) ProcessStockIn(ctx context.Context, cmd StockInCommand) (*StockInResult, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, s.reject("stock_in", err)
	}
	now := s.now()
	if cmd.ReceivedAt.IsZero() {
		cmd.ReceivedAt = now
	}
	if cmd.BatchNumber == "" {
		cmd.BatchNumber = s.generateNumber(PrefixStockIn, now)
	}

	result := &StockInResult{BatchNumber: cmd.BatchNumber}
	err := s.store.WithTx(ctx, func(tx domain.Store) error {
		if err := s.checkParties(ctx, tx, cmd.WarehouseID, cmd.CustomerID); err != nil {
			return err
		}
		po, err := s.linkedPO(ctx, tx, cmd.POID)
		if err != nil {
			return err
		}

		// Materials touched more than once in a batch must see each other's stock.
		materials := make(map[string]*domain.Material)
		for i, line := range cmd.Lines {
			number := lineNumber(cmd.BatchNumber, i, len(cmd.Lines))
			if err := checkReceiptNumber(ctx, tx, number); err != nil {
				return err
			}
			material, err := line.Material.resolve(ctx, s, tx)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			if seen, ok := materials[material.ID]; ok {
				material = seen
			} else {
				materials[material.ID] = material
			}

			notes := line.Notes
			if notes == "" {
				notes = cmd.Notes
			}
			r := domain.MaterialReceipt{
				ID:            s.newID(),
				ReceiptNumber: number,
				MaterialID:    material.ID,
				WarehouseID:   cmd.WarehouseID,
				CustomerID:    cmd.CustomerID,
				POID:          po,
				Quantity:      line.Quantity,
				UnitPrice:     line.UnitPrice,
				Status:        domain.ReceiptReceived,
				ReceivedAt:    cmd.ReceivedAt,
				Notes:         notes,
				CreatedBy:     cmd.CreatedBy,
				CreatedAt:     now,
			}
			h, err := s.bookReceipt(ctx, tx, material, r)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			result.Receipts = append(result.Receipts, r)
			result.History = append(result.History, h)
		}
		return nil
	})
	if err != nil {
		return nil, s.reject("stock_in", err)
	}

	s.metrics.RecordStockIn(len(result.Receipts))
	for _, h := range result.History {
		s.metrics.RecordMovement(string(h.TransactionType), h.QuantityChange)
	}
	s.log.WithFields(logrus.Fields{
		"op":    "stock_in",
		"batch": result.BatchNumber,
		"lines": len(result.Receipts),
		"po_id": cmd.POID,
	}).Info("stock-in batch committed")
	return result, nil
}

// lineNumber returns base for a single-line batch and base-NNN otherwise.
func lineNumber(base string, i, total int) string {
	if total == 1 {
		return base
	}
	return fmt.Sprintf("%s-%03d", base, i+1)
}
