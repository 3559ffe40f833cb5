package permit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"dex-router/internal/logic/custody"
	"dex-router/internal/types"
	"dex-router/pkg/logger"
)

var (
	ErrInvalidSignature      = errors.New("invalid permit signature")
	ErrInvalidNonce          = errors.New("invalid permit nonce")
	ErrPermitExpired         = errors.New("permit expired")
	ErrInsufficientAllowance = errors.New("insufficient permit allowance")
)

type allowanceKey struct {
	owner   types.Address
	asset   types.Address
	spender types.Address
}

type allowance struct {
	amount   *big.Int
	deadline int64
}

// Service 模拟签名授权服务（类似 Permit2）。
// 持有人先在账本上授权给服务地址，再用签名把额度分配给具体 spender；
// 服务内部状态通过账本 journal 与所在调用一起提交或回滚。
type Service struct {
	mu         sync.Mutex
	self       types.Address
	chainID    uint32
	ledger     *custody.Ledger
	allowances map[allowanceKey]allowance
	nonces     map[types.Address]uint64
	now        func() time.Time
}

func NewService(self types.Address, chainID uint32, ledger *custody.Ledger) *Service {
	return &Service{
		self:       self,
		chainID:    chainID,
		ledger:     ledger,
		allowances: make(map[allowanceKey]allowance),
		nonces:     make(map[types.Address]uint64),
		now:        time.Now,
	}
}

// Address 服务地址，持有人需在账本上授权给该地址
func (s *Service) Address() types.Address { return s.self }

func (s *Service) ChainID() uint32 { return s.chainID }

// Nonce 持有人下一次签名应使用的 nonce
func (s *Service) Nonce(owner types.Address) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonces[owner]
}

// Permit 校验签名、nonce 与有效期，并登记额度
func (s *Service) Permit(ctx context.Context, auth Authorization, sig []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if auth.Amount == nil || auth.Amount.Sign() < 0 {
		return fmt.Errorf("invalid permit amount %v", auth.Amount)
	}
	if s.now().Unix() > auth.Deadline {
		return fmt.Errorf("%w: deadline=%d", ErrPermitExpired, auth.Deadline)
	}
	signer, err := Signer(auth, s.chainID, s.self, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if signer != auth.Owner {
		return fmt.Errorf("%w: signer=%s owner=%s", ErrInvalidSignature, signer.Hex(), auth.Owner.Hex())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expected := s.nonces[auth.Owner]
	if auth.Nonce != expected {
		return fmt.Errorf("%w: got=%d want=%d", ErrInvalidNonce, auth.Nonce, expected)
	}
	s.setNonceUnsafe(auth.Owner, expected+1)
	s.setAllowanceUnsafe(allowanceKey{owner: auth.Owner, asset: auth.Asset, spender: auth.Spender}, allowance{
		amount:   new(big.Int).Set(auth.Amount),
		deadline: auth.Deadline,
	})

	logger.Debugf("[Permit:Permit] 登记签名授权: owner=%s asset=%s spender=%s amount=%s nonce=%d",
		auth.Owner.Hex(), auth.Asset.Hex(), auth.Spender.Hex(), auth.Amount, auth.Nonce)
	return nil
}

// Remaining 返回 spender 可从 owner 拉取的剩余额度（已过期视为 0）
func (s *Service) Remaining(owner, asset, spender types.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allowances[allowanceKey{owner: owner, asset: asset, spender: spender}]
	if !ok || s.now().Unix() > a.deadline {
		return new(big.Int)
	}
	return new(big.Int).Set(a.amount)
}

// TransferFrom 由 spender 消耗签名额度，从 owner 转 amount 个 asset 给 to
func (s *Service) TransferFrom(ctx context.Context, spender, owner, asset, to types.Address, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	key := allowanceKey{owner: owner, asset: asset, spender: spender}
	a, ok := s.allowances[key]
	switch {
	case !ok || a.amount.Cmp(amount) < 0:
		s.mu.Unlock()
		have := new(big.Int)
		if ok {
			have.Set(a.amount)
		}
		return fmt.Errorf("%w: owner=%s asset=%s spender=%s have=%s want=%s",
			ErrInsufficientAllowance, owner.Hex(), asset.Hex(), spender.Hex(), have, amount)
	case s.now().Unix() > a.deadline:
		s.mu.Unlock()
		return fmt.Errorf("%w: deadline=%d", ErrPermitExpired, a.deadline)
	}
	s.setAllowanceUnsafe(key, allowance{amount: new(big.Int).Sub(a.amount, amount), deadline: a.deadline})
	s.mu.Unlock()

	return s.ledger.TransferFrom(asset, s.self, owner, to, amount)
}

func (s *Service) setNonceUnsafe(owner types.Address, nonce uint64) {
	prev, existed := s.nonces[owner]
	s.nonces[owner] = nonce
	s.ledger.AppendUndo(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.nonces[owner] = prev
		} else {
			delete(s.nonces, owner)
		}
	})
}

func (s *Service) setAllowanceUnsafe(key allowanceKey, value allowance) {
	prev, existed := s.allowances[key]
	s.allowances[key] = value
	s.ledger.AppendUndo(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.allowances[key] = prev
		} else {
			delete(s.allowances, key)
		}
	})
}
