package venue

import (
	"sync"

	"dex-router/internal/types"
)

// Book 按地址索引的场所集合，供执行器解析协议数据中的池子地址
type Book struct {
	mu     sync.RWMutex
	pairs  map[types.Address]*Pair
	vaults map[types.Address]*Vault
}

func NewBook() *Book {
	return &Book{
		pairs:  make(map[types.Address]*Pair),
		vaults: make(map[types.Address]*Vault),
	}
}

func (b *Book) AddPair(p *Pair) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pairs[p.Address()] = p
}

func (b *Book) AddVault(v *Vault) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vaults[v.Address()] = v
}

func (b *Book) Pair(addr types.Address) (*Pair, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.pairs[addr]
	return p, ok
}

func (b *Book) Vault(addr types.Address) (*Vault, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.vaults[addr]
	return v, ok
}

// Len 返回 (pair 数, vault 数)
func (b *Book) Len() (int, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pairs), len(b.vaults)
}
