package splitledger

import (
	"fmt"
	"math/big"

	"dex-router/internal/consts"
	"dex-router/internal/logic/core"
)

var fractionOne = big.NewInt(int64(consts.FractionOne))

// Slots 是 split 拓扑中按下标索引的余额表，大小由调用方声明的 slot 数决定。
// slot 0 记入外部输入，其余 slot 初始为 0；读写严格按指令顺序进行。
type Slots struct {
	balances []*big.Int
}

// New 创建 slotCount 个 slot，并把 amountIn 记入 slot 0
func New(slotCount int, amountIn *big.Int) (*Slots, error) {
	if slotCount < 1 || slotCount > consts.MaxSlotCount {
		return nil, fmt.Errorf("slot count %d out of range [1, %d]", slotCount, consts.MaxSlotCount)
	}
	balances := make([]*big.Int, slotCount)
	for i := range balances {
		balances[i] = new(big.Int)
	}
	if amountIn != nil {
		balances[0].Set(amountIn)
	}
	return &Slots{balances: balances}, nil
}

func (s *Slots) Len() int { return len(s.balances) }

func (s *Slots) check(slot uint8) error {
	if int(slot) >= len(s.balances) {
		return core.MalformedPlanf("slot %d out of range (slot count %d)", slot, len(s.balances))
	}
	return nil
}

// Allocate 按分数规则从 slot 中划出一份并立即扣减：
//   - fraction == 0: 划出当前全部余额（该 slot 的最后一个消费者）
//   - 否则: floor(balance * fraction / 0xFFFFFF)
//
// 余额为 0 时划出 0，不视为错误。
func (s *Slots) Allocate(slot uint8, fraction uint32) (*big.Int, error) {
	if err := s.check(slot); err != nil {
		return nil, err
	}
	if fraction > consts.FractionOne {
		return nil, core.MalformedPlanf("fraction %#x exceeds 24 bits", fraction)
	}

	available := s.balances[slot]
	var amount *big.Int
	if fraction == 0 {
		amount = new(big.Int).Set(available)
	} else {
		amount = new(big.Int).Mul(available, big.NewInt(int64(fraction)))
		amount.Quo(amount, fractionOne)
	}
	available.Sub(available, amount)
	return amount, nil
}

// Credit 把执行器产出记入 slot
func (s *Slots) Credit(slot uint8, amount *big.Int) error {
	if err := s.check(slot); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid credit amount %v for slot %d", amount, slot)
	}
	s.balances[slot].Add(s.balances[slot], amount)
	return nil
}

// Balance 返回 slot 当前余额的副本
func (s *Slots) Balance(slot uint8) (*big.Int, error) {
	if err := s.check(slot); err != nil {
		return nil, err
	}
	return new(big.Int).Set(s.balances[slot]), nil
}
