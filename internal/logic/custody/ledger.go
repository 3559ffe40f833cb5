package custody

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"dex-router/internal/types"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
)

type allowanceKey struct {
	asset   types.Address
	owner   types.Address
	spender types.Address
}

// Ledger 是模拟环境中的资产托管账本：asset → owner → balance，以及 ERC20 式授权。
// 所有写操作都会写 journal，配合 Snapshot / RevertToSnapshot 提供整笔调用的原子性。
type Ledger struct {
	mu         sync.RWMutex
	balances   map[types.Address]map[types.Address]*big.Int
	allowances map[allowanceKey]*big.Int

	journal   []journalEntry // 逆序执行即可撤销
	snapshots []int          // 打开中的 snapshot（journal 长度）
}

// journalEntry external 为 true 的撤销动作属于账本之外的状态，在释放账本锁之后执行
type journalEntry struct {
	undo     func()
	external bool
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[types.Address]map[types.Address]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return nil
}

// BalanceOf 返回余额副本，调用方修改不影响账本
func (l *Ledger) BalanceOf(asset, owner types.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.balanceUnsafe(asset, owner))
}

func (l *Ledger) balanceUnsafe(asset, owner types.Address) *big.Int {
	if holders, ok := l.balances[asset]; ok {
		if bal, ok := holders[owner]; ok {
			return bal
		}
	}
	return new(big.Int)
}

// setBalanceUnsafe 写入余额并记录 journal
func (l *Ledger) setBalanceUnsafe(asset, owner types.Address, value *big.Int) {
	holders, ok := l.balances[asset]
	if !ok {
		holders = make(map[types.Address]*big.Int)
		l.balances[asset] = holders
	}
	prev, existed := holders[owner]
	holders[owner] = value
	l.recordUnsafe(func() {
		if existed {
			holders[owner] = prev
		} else {
			delete(holders, owner)
		}
	})
}

func (l *Ledger) Mint(asset, to types.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setBalanceUnsafe(asset, to, new(big.Int).Add(l.balanceUnsafe(asset, to), amount))
	return nil
}

func (l *Ledger) Burn(asset, from types.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceUnsafe(asset, from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: asset=%s owner=%s have=%s want=%s",
			ErrInsufficientBalance, asset.Hex(), from.Hex(), bal, amount)
	}
	l.setBalanceUnsafe(asset, from, new(big.Int).Sub(bal, amount))
	return nil
}

func (l *Ledger) Transfer(asset, from, to types.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferUnsafe(asset, from, to, amount)
}

func (l *Ledger) transferUnsafe(asset, from, to types.Address, amount *big.Int) error {
	bal := l.balanceUnsafe(asset, from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: asset=%s owner=%s have=%s want=%s",
			ErrInsufficientBalance, asset.Hex(), from.Hex(), bal, amount)
	}
	if from == to || amount.Sign() == 0 {
		return nil
	}
	l.setBalanceUnsafe(asset, from, new(big.Int).Sub(bal, amount))
	l.setBalanceUnsafe(asset, to, new(big.Int).Add(l.balanceUnsafe(asset, to), amount))
	return nil
}

// Approve 设置 owner 对 spender 的授权额度（覆盖）
func (l *Ledger) Approve(asset, owner, spender types.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setAllowanceUnsafe(allowanceKey{asset: asset, owner: owner, spender: spender}, new(big.Int).Set(amount))
	return nil
}

func (l *Ledger) Allowance(asset, owner, spender types.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if v, ok := l.allowances[allowanceKey{asset: asset, owner: owner, spender: spender}]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (l *Ledger) setAllowanceUnsafe(key allowanceKey, value *big.Int) {
	prev, existed := l.allowances[key]
	l.allowances[key] = value
	l.recordUnsafe(func() {
		if existed {
			l.allowances[key] = prev
		} else {
			delete(l.allowances, key)
		}
	})
}

// TransferFrom 由 spender 消耗 from 的授权额度完成转账
func (l *Ledger) TransferFrom(asset, spender, from, to types.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := allowanceKey{asset: asset, owner: from, spender: spender}
	allowed, ok := l.allowances[key]
	if !ok || allowed.Cmp(amount) < 0 {
		if !ok {
			allowed = new(big.Int)
		}
		return fmt.Errorf("%w: asset=%s owner=%s spender=%s allowed=%s want=%s",
			ErrInsufficientAllowance, asset.Hex(), from.Hex(), spender.Hex(), allowed, amount)
	}
	if err := l.transferUnsafe(asset, from, to, amount); err != nil {
		return err
	}
	l.setAllowanceUnsafe(key, new(big.Int).Sub(allowed, amount))
	return nil
}

// AppendUndo 供账本之外、但需要随调用一起回滚的状态（例如签名授权）登记撤销动作
func (l *Ledger) AppendUndo(undo func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordEntryUnsafe(journalEntry{undo: undo, external: true})
}

// recordUnsafe 仅在存在打开的回滚点时记录 journal
func (l *Ledger) recordUnsafe(undo func()) {
	l.recordEntryUnsafe(journalEntry{undo: undo})
}

func (l *Ledger) recordEntryUnsafe(entry journalEntry) {
	if len(l.snapshots) == 0 {
		return
	}
	l.journal = append(l.journal, entry)
}

// Snapshot 打开一个回滚点，返回其 id
func (l *Ledger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := len(l.journal)
	l.snapshots = append(l.snapshots, id)
	return id
}

// RevertToSnapshot 撤销 id 之后的所有写操作，并关闭该回滚点及其内层回滚点
func (l *Ledger) RevertToSnapshot(id int) {
	l.mu.Lock()
	var external []func()
	for i := len(l.journal) - 1; i >= id; i-- {
		entry := l.journal[i]
		if entry.external {
			external = append(external, entry.undo)
		} else {
			entry.undo()
		}
		l.journal[i] = journalEntry{}
	}
	l.journal = l.journal[:id]
	l.popSnapshotsUnsafe(id)
	l.mu.Unlock()

	// 外部状态各自加锁，已按逆序收集
	for _, undo := range external {
		undo()
	}
}

// Commit 关闭回滚点；没有外层回滚点时丢弃 journal
func (l *Ledger) Commit(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.popSnapshotsUnsafe(id)
	if len(l.snapshots) == 0 {
		clear(l.journal)
		l.journal = l.journal[:0]
	}
}

func (l *Ledger) popSnapshotsUnsafe(id int) {
	for len(l.snapshots) > 0 && l.snapshots[len(l.snapshots)-1] >= id {
		l.snapshots = l.snapshots[:len(l.snapshots)-1]
	}
}
