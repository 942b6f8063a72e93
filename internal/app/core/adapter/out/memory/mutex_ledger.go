package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// Journal 是 MutexLedger 用來持久化的追加式日誌 (pkg/wal.WAL)
type Journal interface {
	Append(v any) error
	ReadAll(callback func(jsonRaw []byte) error) error
}

// entry 單一帳戶的狀態與鎖
// lock 為容量 1 的 channel，取得鎖時可以配合 ctx 逾時
type entry struct {
	lock    chan struct{}
	account domain.Account
	closed  bool
}

func newEntry(account domain.Account) *entry {
	return &entry{lock: make(chan struct{}, 1), account: account}
}

func (e *entry) acquire(ctx context.Context) error {
	select {
	case e.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) release() {
	<-e.lock
}

// MutexLedger 是一個使用帳戶層級鎖實現的記憶體帳本
//
// 結構:
//
//	accounts: 帳戶資料 Map (mu 保護 Map 本身)
//	records: 交易紀錄 (logMu 保護)
//	refs: 已處理過的 RefID
//	journal: Write-Ahead Log，先寫日誌再更新記憶體
//
// 不同帳戶的交易互不阻塞；同一帳戶的交易依鎖的取得順序提交
type MutexLedger struct {
	mu       sync.RWMutex
	accounts map[string]*entry

	logMu   sync.RWMutex
	records []domain.Transaction
	// refs: RefID -> 交易紀錄；nil 代表處理中
	refs map[uuid.UUID]*domain.Transaction

	journal Journal
	node    *snowflake.Node

	// lastID 已發出 (含 WAL 回放) 的最大交易 ID，時鐘倒退時 ID 仍遞增
	idMu   sync.Mutex
	lastID int64
}

// NewMutexLedger 建立一個新的 MutexLedger 實例，並從 journal 恢復狀態
//
// 參數:
//
//	journal: Write-Ahead Log 實例，nil 表示不持久化
//	node: 交易 ID 產生器
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(journal Journal, node *snowflake.Node) (*MutexLedger, error) {
	ledger := &MutexLedger{
		accounts: make(map[string]*entry),
		refs:     make(map[uuid.UUID]*domain.Transaction),
		journal:  journal,
		node:     node,
	}
	if journal != nil {
		if err := ledger.recoverFromWAL(); err != nil {
			return nil, err
		}
	}
	return ledger, nil
}

// GetAccount 取得帳戶快照
func (m *MutexLedger) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	e, err := m.lockOne(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	defer e.release()
	account := e.account
	return &account, nil
}

// CreateAccount 建立帳戶
func (m *MutexLedger) CreateAccount(ctx context.Context, account *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.Number]; ok {
		return domain.ErrAccountExists
	}
	if err := m.appendJournal(walRecord{Op: opCreate, Account: toWALAccount(account)}); err != nil {
		return err
	}
	m.accounts[account.Number] = newEntry(*account)
	return nil
}

// DeleteAccount 刪除帳戶並清除所有相關交易紀錄
func (m *MutexLedger) DeleteAccount(ctx context.Context, accountNumber string) error {
	e, err := m.lockOne(ctx, accountNumber)
	if err != nil {
		return err
	}
	defer e.release()

	if err := m.appendJournal(walRecord{Op: opDelete, Number: accountNumber}); err != nil {
		return err
	}
	e.closed = true
	m.mu.Lock()
	delete(m.accounts, accountNumber)
	m.mu.Unlock()
	m.purge(accountNumber)
	return nil
}

// PostTransaction 處理交易請求
//
// 參數:
//
//	ctx: 上下文
//	tran: 交易請求物件，成功時回填 ID 與 CreatedAt
//
// 回傳:
//
//	domain.Receipt: 交易紀錄與發起帳戶餘額
//	error: 處理錯誤
//
// 鎖定帳戶 (依帳號排序) -> 冪等檢查 -> 餘額檢查 -> WAL -> 更新記憶體 -> 解鎖
func (m *MutexLedger) PostTransaction(ctx context.Context, tran *domain.Transaction) (domain.Receipt, error) {
	if tran.Type == domain.TransactionTypeTransfer && tran.AccountNumber == tran.RecipientAccount {
		return domain.Receipt{}, domain.ErrSelfTransfer
	}
	if err := ctx.Err(); err != nil {
		return domain.Receipt{}, unavailable(err)
	}
	entries, release, err := m.lockMany(ctx, tran.GetLockIDs())
	if err != nil {
		return domain.Receipt{}, err
	}
	defer release()

	from, ok := entries[tran.AccountNumber]
	if !ok {
		return domain.Receipt{}, domain.ErrAccountNotFound
	}
	var to *entry
	if tran.Type == domain.TransactionTypeTransfer {
		if to, ok = entries[tran.RecipientAccount]; !ok {
			return domain.Receipt{}, domain.ErrRecipientNotFound
		}
	}

	if tran.RefID != uuid.Nil {
		prev, err := m.reserveRef(tran)
		if err != nil {
			return domain.Receipt{}, err
		}
		if prev != nil {
			return domain.Receipt{Transaction: *prev, Balance: from.account.Balance, Replayed: true}, nil
		}
	}

	receipt, err := m.commit(ctx, tran, from, to)
	if err != nil && tran.RefID != uuid.Nil {
		m.logMu.Lock()
		delete(m.refs, tran.RefID)
		m.logMu.Unlock()
	}
	return receipt, err
}

// commit 呼叫端已持有相關帳戶的鎖
func (m *MutexLedger) commit(ctx context.Context, tran *domain.Transaction, from, to *entry) (domain.Receipt, error) {
	fromAccount := from.account
	var toAccount domain.Account
	switch tran.Type {
	case domain.TransactionTypeDeposit:
		if err := fromAccount.Deposit(tran.Amount); err != nil {
			return domain.Receipt{}, err
		}
	case domain.TransactionTypeTransfer:
		toAccount = to.account
		if err := fromAccount.Withdraw(tran.Amount); err != nil {
			return domain.Receipt{}, err
		}
		if err := toAccount.Deposit(tran.Amount); err != nil {
			return domain.Receipt{}, err
		}
	default:
		return domain.Receipt{}, fmt.Errorf("%w: unsupported transaction type %q", domain.ErrConsistencyViolation, tran.Type)
	}

	if err := ctx.Err(); err != nil {
		return domain.Receipt{}, unavailable(err)
	}

	record := *tran
	record.ID = m.nextID()
	record.CreatedAt = time.Now().UTC()

	// 1. 寫入 WAL (Critical Path)，失敗時記憶體完全沒有異動
	if err := m.appendJournal(walRecord{Op: opPost, Transaction: toWALTransaction(&record)}); err != nil {
		return domain.Receipt{}, err
	}

	// 2. 更新記憶體
	fromAccount.UpdatedAt = record.CreatedAt
	from.account = fromAccount
	if to != nil {
		toAccount.UpdatedAt = record.CreatedAt
		to.account = toAccount
	}
	m.appendRecord(record)

	*tran = record
	return domain.Receipt{Transaction: record, Balance: fromAccount.Balance}, nil
}

// reserveRef 檢查 RefID；未使用過則標記為處理中
// 回傳非 nil 代表同一筆請求已處理過
func (m *MutexLedger) reserveRef(tran *domain.Transaction) (*domain.Transaction, error) {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	prev, ok := m.refs[tran.RefID]
	if !ok {
		m.refs[tran.RefID] = nil
		return nil, nil
	}
	if prev == nil || !prev.SameRequest(tran) {
		return nil, domain.ErrDuplicateReference
	}
	found := *prev
	return &found, nil
}

// ListTransactions 依 ID 由新到舊列出帳戶的交易
func (m *MutexLedger) ListTransactions(ctx context.Context, accountNumber string, limit int) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	m.logMu.RLock()
	out := make([]domain.Transaction, 0)
	for i := range m.records {
		if m.records[i].Involves(accountNumber) {
			out = append(out, m.records[i])
		}
	}
	m.logMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SumTransactions 統計帳戶作為發起方的存款 / 支出總額
func (m *MutexLedger) SumTransactions(ctx context.Context, accountNumber string) (domain.Totals, error) {
	if err := ctx.Err(); err != nil {
		return domain.Totals{}, unavailable(err)
	}
	m.logMu.RLock()
	defer m.logMu.RUnlock()
	var totals domain.Totals
	for i := range m.records {
		totals.Add(accountNumber, &m.records[i])
	}
	return totals, nil
}

// lockOne 取得單一帳戶的鎖
func (m *MutexLedger) lockOne(ctx context.Context, accountNumber string) (*entry, error) {
	entries, release, err := m.lockMany(ctx, []string{accountNumber})
	if err != nil {
		return nil, err
	}
	e, ok := entries[accountNumber]
	if !ok {
		release()
		return nil, domain.ErrAccountNotFound
	}
	return e, nil
}

// lockMany 依傳入順序 (已排序) 取得帳戶鎖
// 不存在或已刪除的帳戶不會出現在回傳的 map 中
func (m *MutexLedger) lockMany(ctx context.Context, ids []string) (map[string]*entry, func(), error) {
	m.mu.RLock()
	found := make([]*entry, 0, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.accounts[id]; ok {
			found = append(found, e)
			keys = append(keys, id)
		}
	}
	m.mu.RUnlock()

	held := make([]*entry, 0, len(found))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].release()
		}
	}
	for _, e := range found {
		if err := e.acquire(ctx); err != nil {
			release()
			return nil, nil, unavailable(err)
		}
		held = append(held, e)
	}

	entries := make(map[string]*entry, len(found))
	for i, e := range found {
		// 等鎖期間帳戶可能已被刪除
		if !e.closed {
			entries[keys[i]] = e
		}
	}
	return entries, release, nil
}

// nextID 取 max(snowflake, lastID+1)
func (m *MutexLedger) nextID() int64 {
	m.idMu.Lock()
	defer m.idMu.Unlock()
	id := m.node.Generate().Int64()
	if id <= m.lastID {
		id = m.lastID + 1
	}
	m.lastID = id
	return id
}

func (m *MutexLedger) appendRecord(record domain.Transaction) {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	m.records = append(m.records, record)
	if record.RefID != uuid.Nil {
		stored := record
		m.refs[record.RefID] = &stored
	}
}

// purge 清除帳戶相關的交易紀錄 (任一方)
func (m *MutexLedger) purge(accountNumber string) {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	kept := m.records[:0]
	for _, rec := range m.records {
		if rec.Involves(accountNumber) {
			if rec.RefID != uuid.Nil {
				delete(m.refs, rec.RefID)
			}
			continue
		}
		kept = append(kept, rec)
	}
	m.records = kept
}

func (m *MutexLedger) appendJournal(rec walRecord) error {
	if m.journal == nil {
		return nil
	}
	if err := m.journal.Append(rec); err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

var _ usecase.Ledger = (*MutexLedger)(nil)
