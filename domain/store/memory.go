// Package store provides an in-memory domain.TxStore.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/mfg-ledger/domain"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// TxMemory keeps every table in maps guarded by one mutex.
// WithTx holds the mutex for the whole callback and restores a snapshot on error,
// so transactions are serialisable.
type TxMemory struct {
	mu   sync.RWMutex
	data *tables
}

type tables struct {
	customers      map[string]domain.Customer
	warehouses     map[string]domain.Warehouse
	materials      map[string]domain.Material
	receipts       map[string]domain.MaterialReceipt
	issues         map[string]domain.MaterialIssue
	adjustments    map[string]domain.MaterialAdjustment
	history        []domain.MaterialTransactionHistory
	receiptHistory []domain.MaterialReceiptHistory
	pos            map[string]domain.PurchaseOrder
	operations     map[string]domain.POOperation
	products       []domain.POProduct
	baselines      []domain.POMaterialBaseline
	seq            int64
}

func NewTxMemory() *TxMemory {
	return &TxMemory{data: newTables()}
}

func newTables() *tables {
	return &tables{
		customers:   make(map[string]domain.Customer),
		warehouses:  make(map[string]domain.Warehouse),
		materials:   make(map[string]domain.Material),
		receipts:    make(map[string]domain.MaterialReceipt),
		issues:      make(map[string]domain.MaterialIssue),
		adjustments: make(map[string]domain.MaterialAdjustment),
		pos:         make(map[string]domain.PurchaseOrder),
		operations:  make(map[string]domain.POOperation),
	}
}

// snapshot copies every table. Rows are values, so a shallow copy per map is enough.
func (t *tables) snapshot() *tables {
	c := newTables()
	for k, v := range t.customers {
		c.customers[k] = v
	}
	for k, v := range t.warehouses {
		c.warehouses[k] = v
	}
	for k, v := range t.materials {
		c.materials[k] = v
	}
	for k, v := range t.receipts {
		c.receipts[k] = v
	}
	for k, v := range t.issues {
		c.issues[k] = v
	}
	for k, v := range t.adjustments {
		c.adjustments[k] = v
	}
	for k, v := range t.pos {
		c.pos[k] = v
	}
	for k, v := range t.operations {
		c.operations[k] = v
	}
	c.history = append([]domain.MaterialTransactionHistory{}, t.history...)
	c.receiptHistory = append([]domain.MaterialReceiptHistory{}, t.receiptHistory...)
	c.products = append([]domain.POProduct{}, t.products...)
	c.baselines = append([]domain.POMaterialBaseline{}, t.baselines...)
	c.seq = t.seq
	return c
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *TxMemory) WithTx(ctx context.Context, fn func(domain.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.snapshot()
	if err := fn(m.data); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

// =============================================================================
// LOCKED ENTRY POINTS
// =============================================================================

func (m *TxMemory) read(fn func(t *tables)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.data)
}

func (m *TxMemory) write(fn func(t *tables) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.data)
}

func (m *TxMemory) InsertCustomer(ctx context.Context, c domain.Customer) error {
	return m.write(func(t *tables) error { return t.InsertCustomer(ctx, c) })
}

func (m *TxMemory) GetCustomer(ctx context.Context, id string) (c *domain.Customer, err error) {
	m.read(func(t *tables) { c, err = t.GetCustomer(ctx, id) })
	return
}

func (m *TxMemory) ListCustomers(ctx context.Context) (cs []domain.Customer, err error) {
	m.read(func(t *tables) { cs, err = t.ListCustomers(ctx) })
	return
}

func (m *TxMemory) InsertWarehouse(ctx context.Context, w domain.Warehouse) error {
	return m.write(func(t *tables) error { return t.InsertWarehouse(ctx, w) })
}

func (m *TxMemory) GetWarehouse(ctx context.Context, id string) (w *domain.Warehouse, err error) {
	m.read(func(t *tables) { w, err = t.GetWarehouse(ctx, id) })
	return
}

func (m *TxMemory) ListWarehouses(ctx context.Context) (ws []domain.Warehouse, err error) {
	m.read(func(t *tables) { ws, err = t.ListWarehouses(ctx) })
	return
}

func (m *TxMemory) InsertMaterial(ctx context.Context, mat domain.Material) error {
	return m.write(func(t *tables) error { return t.InsertMaterial(ctx, mat) })
}

func (m *TxMemory) GetMaterial(ctx context.Context, id string) (mat *domain.Material, err error) {
	m.read(func(t *tables) { mat, err = t.GetMaterial(ctx, id) })
	return
}

func (m *TxMemory) FindMaterialByCode(ctx context.Context, scope, code string) (mat *domain.Material, err error) {
	m.read(func(t *tables) { mat, err = t.FindMaterialByCode(ctx, scope, code) })
	return
}

func (m *TxMemory) ListMaterials(ctx context.Context) (ms []domain.Material, err error) {
	m.read(func(t *tables) { ms, err = t.ListMaterials(ctx) })
	return
}

func (m *TxMemory) UpdateMaterialStock(ctx context.Context, id string, expectedVersion int64, stock decimal.Decimal) error {
	return m.write(func(t *tables) error { return t.UpdateMaterialStock(ctx, id, expectedVersion, stock) })
}

func (m *TxMemory) ReceiptNumberExists(ctx context.Context, number string) (ok bool, err error) {
	m.read(func(t *tables) { ok, err = t.ReceiptNumberExists(ctx, number) })
	return
}

func (m *TxMemory) InsertReceipt(ctx context.Context, r domain.MaterialReceipt) error {
	return m.write(func(t *tables) error { return t.InsertReceipt(ctx, r) })
}

func (m *TxMemory) GetReceipt(ctx context.Context, id string) (r *domain.MaterialReceipt, err error) {
	m.read(func(t *tables) { r, err = t.GetReceipt(ctx, id) })
	return
}

func (m *TxMemory) ConfirmReceipt(ctx context.Context, id string, at time.Time, by string) error {
	return m.write(func(t *tables) error { return t.ConfirmReceipt(ctx, id, at, by) })
}

func (m *TxMemory) IssueNumberExists(ctx context.Context, number string) (ok bool, err error) {
	m.read(func(t *tables) { ok, err = t.IssueNumberExists(ctx, number) })
	return
}

func (m *TxMemory) InsertIssue(ctx context.Context, i domain.MaterialIssue) error {
	return m.write(func(t *tables) error { return t.InsertIssue(ctx, i) })
}

func (m *TxMemory) GetIssue(ctx context.Context, id string) (i *domain.MaterialIssue, err error) {
	m.read(func(t *tables) { i, err = t.GetIssue(ctx, id) })
	return
}

func (m *TxMemory) AdjustmentNumberExists(ctx context.Context, number string) (ok bool, err error) {
	m.read(func(t *tables) { ok, err = t.AdjustmentNumberExists(ctx, number) })
	return
}

func (m *TxMemory) InsertAdjustment(ctx context.Context, a domain.MaterialAdjustment) error {
	return m.write(func(t *tables) error { return t.InsertAdjustment(ctx, a) })
}

func (m *TxMemory) GetAdjustment(ctx context.Context, id string) (a *domain.MaterialAdjustment, err error) {
	m.read(func(t *tables) { a, err = t.GetAdjustment(ctx, id) })
	return
}

func (m *TxMemory) AppendHistory(ctx context.Context, h domain.MaterialTransactionHistory) error {
	return m.write(func(t *tables) error { return t.AppendHistory(ctx, h) })
}

func (m *TxMemory) ListHistory(ctx context.Context, materialID string) (hs []domain.MaterialTransactionHistory, err error) {
	m.read(func(t *tables) { hs, err = t.ListHistory(ctx, materialID) })
	return
}

func (m *TxMemory) LatestHistory(ctx context.Context, materialID string) (h *domain.MaterialTransactionHistory, err error) {
	m.read(func(t *tables) { h, err = t.LatestHistory(ctx, materialID) })
	return
}

func (m *TxMemory) AppendReceiptHistory(ctx context.Context, h domain.MaterialReceiptHistory) error {
	return m.write(func(t *tables) error { return t.AppendReceiptHistory(ctx, h) })
}

func (m *TxMemory) ListReceiptHistory(ctx context.Context, poID string) (hs []domain.MaterialReceiptHistory, err error) {
	m.read(func(t *tables) { hs, err = t.ListReceiptHistory(ctx, poID) })
	return
}

func (m *TxMemory) InsertPO(ctx context.Context, po domain.PurchaseOrder) error {
	return m.write(func(t *tables) error { return t.InsertPO(ctx, po) })
}

func (m *TxMemory) GetPO(ctx context.Context, id string) (po *domain.PurchaseOrder, err error) {
	m.read(func(t *tables) { po, err = t.GetPO(ctx, id) })
	return
}

func (m *TxMemory) FindPOByNumber(ctx context.Context, number string) (po *domain.PurchaseOrder, err error) {
	m.read(func(t *tables) { po, err = t.FindPOByNumber(ctx, number) })
	return
}

func (m *TxMemory) ListPOs(ctx context.Context) (pos []domain.PurchaseOrder, err error) {
	m.read(func(t *tables) { pos, err = t.ListPOs(ctx) })
	return
}

func (m *TxMemory) ListChain(ctx context.Context, rootID string) (pos []domain.PurchaseOrder, err error) {
	m.read(func(t *tables) { pos, err = t.ListChain(ctx, rootID) })
	return
}

func (m *TxMemory) UpdatePOStatus(ctx context.Context, id string, expectedVersion int64, status domain.POStatus) error {
	return m.write(func(t *tables) error { return t.UpdatePOStatus(ctx, id, expectedVersion, status) })
}

func (m *TxMemory) UpdatePOTotal(ctx context.Context, id string, expectedVersion int64, total decimal.Decimal) error {
	return m.write(func(t *tables) error { return t.UpdatePOTotal(ctx, id, expectedVersion, total) })
}

func (m *TxMemory) DeleteChain(ctx context.Context, rootID string) error {
	return m.write(func(t *tables) error { return t.DeleteChain(ctx, rootID) })
}

func (m *TxMemory) InsertOperation(ctx context.Context, op domain.POOperation) error {
	return m.write(func(t *tables) error { return t.InsertOperation(ctx, op) })
}

func (m *TxMemory) GetOperation(ctx context.Context, id string) (op *domain.POOperation, err error) {
	m.read(func(t *tables) { op, err = t.GetOperation(ctx, id) })
	return
}

func (m *TxMemory) UpdateOperation(ctx context.Context, op domain.POOperation) error {
	return m.write(func(t *tables) error { return t.UpdateOperation(ctx, op) })
}

func (m *TxMemory) DeleteOperation(ctx context.Context, id string) error {
	return m.write(func(t *tables) error { return t.DeleteOperation(ctx, id) })
}

func (m *TxMemory) ListOperations(ctx context.Context, poID string) (ops []domain.POOperation, err error) {
	m.read(func(t *tables) { ops, err = t.ListOperations(ctx, poID) })
	return
}

func (m *TxMemory) InsertProduct(ctx context.Context, p domain.POProduct) error {
	return m.write(func(t *tables) error { return t.InsertProduct(ctx, p) })
}

func (m *TxMemory) ListProducts(ctx context.Context, poID string) (ps []domain.POProduct, err error) {
	m.read(func(t *tables) { ps, err = t.ListProducts(ctx, poID) })
	return
}

func (m *TxMemory) InsertBaseline(ctx context.Context, b domain.POMaterialBaseline) error {
	return m.write(func(t *tables) error { return t.InsertBaseline(ctx, b) })
}

func (m *TxMemory) ListBaselines(ctx context.Context, poID string) (bs []domain.POMaterialBaseline, err error) {
	m.read(func(t *tables) { bs, err = t.ListBaselines(ctx, poID) })
	return
}

// =============================================================================
// UNLOCKED TABLE OPERATIONS (the transactional view)
// =============================================================================

func (t *tables) InsertCustomer(_ context.Context, c domain.Customer) error {
	for _, existing := range t.customers {
		if existing.Code == c.Code {
			return &domain.ConflictError{Entity: "customer", Field: "code", Value: c.Code}
		}
	}
	t.customers[c.ID] = c
	return nil
}

func (t *tables) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	c, ok := t.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (t *tables) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	out := make([]domain.Customer, 0, len(t.customers))
	for _, c := range t.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *tables) InsertWarehouse(_ context.Context, w domain.Warehouse) error {
	for _, existing := range t.warehouses {
		if existing.Code == w.Code {
			return &domain.ConflictError{Entity: "warehouse", Field: "code", Value: w.Code}
		}
	}
	t.warehouses[w.ID] = w
	return nil
}

func (t *tables) GetWarehouse(_ context.Context, id string) (*domain.Warehouse, error) {
	w, ok := t.warehouses[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (t *tables) ListWarehouses(_ context.Context) ([]domain.Warehouse, error) {
	out := make([]domain.Warehouse, 0, len(t.warehouses))
	for _, w := range t.warehouses {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *tables) InsertMaterial(ctx context.Context, m domain.Material) error {
	if existing, _ := t.FindMaterialByCode(ctx, m.CustomerScope(), m.Code); existing != nil {
		return &domain.ConflictError{Entity: "material", Field: "code", Value: m.Code}
	}
	t.materials[m.ID] = m
	return nil
}

func (t *tables) GetMaterial(_ context.Context, id string) (*domain.Material, error) {
	m, ok := t.materials[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (t *tables) FindMaterialByCode(_ context.Context, scope, code string) (*domain.Material, error) {
	for _, m := range t.materials {
		if m.Code == code && m.CustomerScope() == scope {
			found := m
			return &found, nil
		}
	}
	return nil, nil
}

func (t *tables) ListMaterials(_ context.Context) ([]domain.Material, error) {
	out := make([]domain.Material, 0, len(t.materials))
	for _, m := range t.materials {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].CustomerScope() < out[j].CustomerScope()
	})
	return out, nil
}

func (t *tables) UpdateMaterialStock(_ context.Context, id string, expectedVersion int64, stock decimal.Decimal) error {
	m, ok := t.materials[id]
	if !ok || m.RowVersion != expectedVersion {
		return domain.ErrConcurrentModification
	}
	m.CurrentStock = stock
	m.RowVersion++
	m.UpdatedAt = time.Now().UTC()
	t.materials[id] = m
	return nil
}

func (t *tables) ReceiptNumberExists(_ context.Context, number string) (bool, error) {
	for _, r := range t.receipts {
		if r.ReceiptNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (t *tables) InsertReceipt(ctx context.Context, r domain.MaterialReceipt) error {
	if exists, _ := t.ReceiptNumberExists(ctx, r.ReceiptNumber); exists {
		return &domain.ConflictError{Entity: "material receipt", Field: "receipt number", Value: r.ReceiptNumber}
	}
	t.receipts[r.ID] = r
	return nil
}

func (t *tables) GetReceipt(_ context.Context, id string) (*domain.MaterialReceipt, error) {
	r, ok := t.receipts[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (t *tables) ConfirmReceipt(_ context.Context, id string, at time.Time, by string) error {
	r, ok := t.receipts[id]
	if !ok || r.Status != domain.ReceiptPending {
		return domain.ErrConcurrentModification
	}
	r.Status = domain.ReceiptReceived
	r.ConfirmedAt = &at
	r.ConfirmedBy = by
	t.receipts[id] = r
	return nil
}

func (t *tables) IssueNumberExists(_ context.Context, number string) (bool, error) {
	for _, i := range t.issues {
		if i.IssueNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (t *tables) InsertIssue(ctx context.Context, i domain.MaterialIssue) error {
	if exists, _ := t.IssueNumberExists(ctx, i.IssueNumber); exists {
		return &domain.ConflictError{Entity: "material issue", Field: "issue number", Value: i.IssueNumber}
	}
	t.issues[i.ID] = i
	return nil
}

func (t *tables) GetIssue(_ context.Context, id string) (*domain.MaterialIssue, error) {
	i, ok := t.issues[id]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (t *tables) AdjustmentNumberExists(_ context.Context, number string) (bool, error) {
	for _, a := range t.adjustments {
		if a.AdjustmentNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (t *tables) InsertAdjustment(ctx context.Context, a domain.MaterialAdjustment) error {
	if exists, _ := t.AdjustmentNumberExists(ctx, a.AdjustmentNumber); exists {
		return &domain.ConflictError{Entity: "material adjustment", Field: "adjustment number", Value: a.AdjustmentNumber}
	}
	t.adjustments[a.ID] = a
	return nil
}

func (t *tables) GetAdjustment(_ context.Context, id string) (*domain.MaterialAdjustment, error) {
	a, ok := t.adjustments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (t *tables) AppendHistory(_ context.Context, h domain.MaterialTransactionHistory) error {
	t.seq++
	h.Seq = t.seq
	t.history = append(t.history, h)
	return nil
}

func (t *tables) ListHistory(_ context.Context, materialID string) ([]domain.MaterialTransactionHistory, error) {
	var out []domain.MaterialTransactionHistory
	for _, h := range t.history {
		if h.MaterialID == materialID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (t *tables) LatestHistory(_ context.Context, materialID string) (*domain.MaterialTransactionHistory, error) {
	for i := len(t.history) - 1; i >= 0; i-- {
		if t.history[i].MaterialID == materialID {
			h := t.history[i]
			return &h, nil
		}
	}
	return nil, nil
}

func (t *tables) AppendReceiptHistory(_ context.Context, h domain.MaterialReceiptHistory) error {
	t.receiptHistory = append(t.receiptHistory, h)
	return nil
}

func (t *tables) ListReceiptHistory(_ context.Context, poID string) ([]domain.MaterialReceiptHistory, error) {
	var out []domain.MaterialReceiptHistory
	for _, h := range t.receiptHistory {
		if h.POID == poID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (t *tables) InsertPO(ctx context.Context, po domain.PurchaseOrder) error {
	if po.IsRoot() {
		if existing, _ := t.FindPOByNumber(ctx, po.PONumber); existing != nil {
			return &domain.ConflictError{Entity: "purchase order", Field: "PO number", Value: po.PONumber}
		}
	} else {
		// Mirrors the unique index on (root_id, version_number).
		for _, other := range t.pos {
			if other.RootID() == po.RootID() && other.VersionNumber == po.VersionNumber {
				return domain.ErrConcurrentModification
			}
		}
	}
	t.pos[po.ID] = po
	return nil
}

func (t *tables) GetPO(_ context.Context, id string) (*domain.PurchaseOrder, error) {
	po, ok := t.pos[id]
	if !ok {
		return nil, nil
	}
	return &po, nil
}

func (t *tables) FindPOByNumber(_ context.Context, number string) (*domain.PurchaseOrder, error) {
	for _, po := range t.pos {
		if po.IsRoot() && po.PONumber == number {
			found := po
			return &found, nil
		}
	}
	return nil, nil
}

func (t *tables) ListPOs(_ context.Context) ([]domain.PurchaseOrder, error) {
	out := make([]domain.PurchaseOrder, 0, len(t.pos))
	for _, po := range t.pos {
		out = append(out, po)
	}
	sortPOs(out)
	return out, nil
}

func (t *tables) ListChain(_ context.Context, rootID string) ([]domain.PurchaseOrder, error) {
	var out []domain.PurchaseOrder
	for _, po := range t.pos {
		if po.RootID() == rootID {
			out = append(out, po)
		}
	}
	sortPOs(out)
	return out, nil
}

func sortPOs(pos []domain.PurchaseOrder) {
	sort.Slice(pos, func(i, j int) bool {
		if pos[i].PONumber != pos[j].PONumber {
			return pos[i].PONumber < pos[j].PONumber
		}
		return pos[i].VersionNumber < pos[j].VersionNumber
	})
}

func (t *tables) UpdatePOStatus(_ context.Context, id string, expectedVersion int64, status domain.POStatus) error {
	po, ok := t.pos[id]
	if !ok || po.RowVersion != expectedVersion {
		return domain.ErrConcurrentModification
	}
	if status == domain.POStatusApprovedForPMC {
		// Mirrors the partial unique index on (root_id) for approved rows.
		for _, other := range t.pos {
			if other.ID != id && other.RootID() == po.RootID() && other.Status == domain.POStatusApprovedForPMC {
				return domain.ErrConcurrentModification
			}
		}
	}
	po.Status = status
	po.RowVersion++
	po.UpdatedAt = time.Now().UTC()
	t.pos[id] = po
	return nil
}

func (t *tables) UpdatePOTotal(_ context.Context, id string, expectedVersion int64, total decimal.Decimal) error {
	po, ok := t.pos[id]
	if !ok || po.RowVersion != expectedVersion {
		return domain.ErrConcurrentModification
	}
	po.TotalAmount = total
	po.RowVersion++
	po.UpdatedAt = time.Now().UTC()
	t.pos[id] = po
	return nil
}

func (t *tables) DeleteChain(_ context.Context, rootID string) error {
	members := make(map[string]bool)
	for id, po := range t.pos {
		if po.RootID() == rootID {
			members[id] = true
			delete(t.pos, id)
		}
	}
	for id, op := range t.operations {
		if members[op.POID] {
			delete(t.operations, id)
		}
	}
	products := t.products[:0]
	for _, p := range t.products {
		if !members[p.POID] {
			products = append(products, p)
		}
	}
	t.products = products
	baselines := t.baselines[:0]
	for _, b := range t.baselines {
		if !members[b.POID] {
			baselines = append(baselines, b)
		}
	}
	t.baselines = baselines
	return nil
}

func (t *tables) InsertOperation(_ context.Context, op domain.POOperation) error {
	t.operations[op.ID] = op
	return nil
}

func (t *tables) GetOperation(_ context.Context, id string) (*domain.POOperation, error) {
	op, ok := t.operations[id]
	if !ok {
		return nil, nil
	}
	return &op, nil
}

func (t *tables) UpdateOperation(_ context.Context, op domain.POOperation) error {
	if _, ok := t.operations[op.ID]; !ok {
		return &domain.NotFoundError{Entity: "operation", ID: op.ID}
	}
	t.operations[op.ID] = op
	return nil
}

func (t *tables) DeleteOperation(_ context.Context, id string) error {
	delete(t.operations, id)
	return nil
}

func (t *tables) ListOperations(_ context.Context, poID string) ([]domain.POOperation, error) {
	var out []domain.POOperation
	for _, op := range t.operations {
		if op.POID == poID {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tables) InsertProduct(_ context.Context, p domain.POProduct) error {
	t.products = append(t.products, p)
	return nil
}

func (t *tables) ListProducts(_ context.Context, poID string) ([]domain.POProduct, error) {
	var out []domain.POProduct
	for _, p := range t.products {
		if p.POID == poID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *tables) InsertBaseline(_ context.Context, b domain.POMaterialBaseline) error {
	t.baselines = append(t.baselines, b)
	return nil
}

func (t *tables) ListBaselines(_ context.Context, poID string) ([]domain.POMaterialBaseline, error) {
	var out []domain.POMaterialBaseline
	for _, b := range t.baselines {
		if b.POID == poID {
			out = append(out, b)
		}
	}
	return out, nil
}

var (
	_ domain.TxStore = (*TxMemory)(nil)
	_ domain.Store   = (*tables)(nil)
)
