package guard

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"dex-router/internal/logic/core"
	"dex-router/internal/types"
	"dex-router/pkg/logger"
)

// Kind 授权来源
type Kind uint8

const (
	KindNone      Kind = 0
	KindAllowance Kind = 1 // 资产持有人直接授权给路由的额度，通过标准 transferFrom 拉取
	KindPermit    Kind = 2 // 经外部签名授权服务验证过的额度，通过该服务拉取
)

func (k Kind) String() string {
	switch k {
	case KindAllowance:
		return "allowance"
	case KindPermit:
		return "permit"
	default:
		return "none"
	}
}

var ErrNoPermitService = errors.New("permit service not configured")

// AllowanceSource 标准授权拉取（custody.Ledger）
type AllowanceSource interface {
	TransferFrom(asset, spender, from, to types.Address, amount *big.Int) error
}

// PermitSource 签名授权拉取（permit.Service）
type PermitSource interface {
	TransferFrom(ctx context.Context, spender, owner, asset, to types.Address, amount *big.Int) error
}

// Record 一条授权记录，每个资产同一时间只有一条
type Record struct {
	Owner        types.Address
	Remaining    *big.Int
	Kind         Kind
	PullRequired bool
}

// Scope 是单次顶层调用内的授权守卫。
// 每次调用新建一个 Scope，并在调用结束时（无论成功失败）Close，Close 后不再允许任何拉取。
type Scope struct {
	owner     types.Address
	spender   types.Address
	allowance AllowanceSource
	permits   PermitSource
	records   map[types.Address]*Record
	closed    bool
}

// NewScope owner 为被拉取资金的调用方，spender 为路由自身
func NewScope(owner, spender types.Address, allowance AllowanceSource, permits PermitSource) *Scope {
	return &Scope{
		owner:     owner,
		spender:   spender,
		allowance: allowance,
		permits:   permits,
		records:   make(map[types.Address]*Record),
	}
}

// Record 登记本次调用允许从 owner 拉取的 asset 数量，覆盖该资产已有的记录
func (s *Scope) Record(asset types.Address, amount *big.Int, kind Kind) error {
	if s.closed {
		return fmt.Errorf("authorization scope closed")
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid authorization amount %v", amount)
	}
	if kind != KindAllowance && kind != KindPermit {
		return fmt.Errorf("invalid authorization kind %d", kind)
	}
	s.records[asset] = &Record{
		Owner:        s.owner,
		Remaining:    new(big.Int).Set(amount),
		Kind:         kind,
		PullRequired: true,
	}
	return nil
}

// Remaining 返回 asset 剩余可拉取额度（无记录为 0）
func (s *Scope) Remaining(asset types.Address) *big.Int {
	if rec, ok := s.records[asset]; ok && !s.closed {
		return new(big.Int).Set(rec.Remaining)
	}
	return new(big.Int)
}

// Pending 是否还有需要拉取的额度
func (s *Scope) Pending(asset types.Address) bool {
	rec, ok := s.records[asset]
	return ok && !s.closed && rec.PullRequired && rec.Remaining.Sign() > 0
}

// Consume 从 owner 拉取 amount 个 asset 转给 to。
// 没有记录或 amount 超过剩余额度时返回 ExceededAuthorization(allowed, attempted)，不产生任何转账。
func (s *Scope) Consume(ctx context.Context, asset types.Address, amount *big.Int, to types.Address) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid pull amount %v", amount)
	}
	rec, ok := s.records[asset]
	allowed := s.Remaining(asset)
	if !ok || s.closed || amount.Cmp(allowed) > 0 {
		logger.Warnf("[Guard:Consume] 超出授权额度: asset=%s owner=%s allowed=%s attempted=%s",
			asset.Hex(), s.owner.Hex(), allowed, amount)
		return &core.ExceededAuthorizationError{
			Asset:     asset,
			Allowed:   allowed,
			Attempted: new(big.Int).Set(amount),
		}
	}

	var err error
	switch rec.Kind {
	case KindAllowance:
		err = s.allowance.TransferFrom(asset, s.spender, rec.Owner, to, amount)
	case KindPermit:
		if s.permits == nil {
			err = ErrNoPermitService
		} else {
			err = s.permits.TransferFrom(ctx, s.spender, rec.Owner, asset, to, amount)
		}
	}
	if err != nil {
		return fmt.Errorf("pull %s of %s from %s (%s): %w", amount, asset.Hex(), rec.Owner.Hex(), rec.Kind, err)
	}

	rec.Remaining.Sub(rec.Remaining, amount)
	if rec.Remaining.Sign() == 0 {
		rec.PullRequired = false
	}
	return nil
}

// Close 清除所有授权记录
func (s *Scope) Close() {
	clear(s.records)
	s.closed = true
}
