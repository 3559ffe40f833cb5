package tools

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"dex-router/internal/consts"
	"dex-router/internal/logic/executors/fixedrate"
	"dex-router/internal/logic/executors/transfer"
	"dex-router/internal/logic/executors/uniswapv2"
	"dex-router/internal/logic/plan"
	"dex-router/internal/logic/router"
	"dex-router/internal/types"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mr-tron/base58"
)

// PlanFile 计划的 YAML 描述
type PlanFile struct {
	Strategy     string            `yaml:"strategy"`
	SlotCount    int               `yaml:"slotCount,omitempty"` // 仅 split
	Instructions []InstructionSpec `yaml:"instructions"`
}

// InstructionSpec 一条指令；protocol 与 data 二选一
type InstructionSpec struct {
	Executor string        `yaml:"executor"`
	In       uint8         `yaml:"in,omitempty"`       // split 输入 slot
	Out      uint8         `yaml:"out,omitempty"`      // split 输出 slot
	Percent  float64       `yaml:"percent,omitempty"`  // split 分配比例，0 且未给 fraction 时分配全部
	Fraction uint32        `yaml:"fraction,omitempty"` // 24 位定点分数，优先于 percent
	Protocol *ProtocolSpec `yaml:"protocol,omitempty"`
	Data     string        `yaml:"data,omitempty"` // 原始协议数据（hex）
}

// ProtocolSpec 内置执行器的协议数据
type ProtocolSpec struct {
	Kind       string `yaml:"kind"` // UniswapV2 / FixedRate
	Pair       string `yaml:"pair,omitempty"`
	ZeroForOne bool   `yaml:"zeroForOne,omitempty"`
	Vault      string `yaml:"vault,omitempty"`
	Transfer   string `yaml:"transfer"` // from_caller / from_router / none
}

// 字节串编码格式
const (
	FormatHex    = "hex"
	FormatBase58 = "base58"
	FormatAuto   = "auto" // 仅解码：0x 前缀按 hex，否则按 base58
)

// BuildPlan 把 YAML 描述编码为计划字节
func BuildPlan(pf *PlanFile) ([]byte, error) {
	strategy := router.ParseStrategy(pf.Strategy)
	if strategy == 0 {
		return nil, fmt.Errorf("unknown strategy %q", pf.Strategy)
	}
	if strategy == router.StrategySingle && len(pf.Instructions) != 1 {
		return nil, fmt.Errorf("single plan must hold exactly one instruction, got %d", len(pf.Instructions))
	}
	if strategy == router.StrategySplit && (pf.SlotCount < 2 || pf.SlotCount > consts.MaxSlotCount) {
		return nil, fmt.Errorf("slot count %d out of range [2, %d]", pf.SlotCount, consts.MaxSlotCount)
	}
	if len(pf.Instructions) == 0 {
		return nil, errors.New("plan has no instructions")
	}

	bodies := make([][]byte, 0, len(pf.Instructions))
	for i := range pf.Instructions {
		body, err := buildInstruction(strategy, pf.SlotCount, &pf.Instructions[i])
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		bodies = append(bodies, body)
	}
	return plan.Encode(bodies)
}

func buildInstruction(strategy router.Strategy, slotCount int, spec *InstructionSpec) ([]byte, error) {
	executor, err := types.TryAddressFromHex(spec.Executor)
	if err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}
	data, err := protocolData(spec)
	if err != nil {
		return nil, err
	}
	if strategy != router.StrategySplit {
		return plan.EncodeSequential(executor, data), nil
	}

	if int(spec.In) >= slotCount || int(spec.Out) >= slotCount {
		return nil, fmt.Errorf("slot %d→%d out of range [0, %d)", spec.In, spec.Out, slotCount)
	}
	fraction := spec.Fraction
	if fraction == 0 && spec.Percent > 0 {
		if fraction, err = plan.FractionFromPercent(spec.Percent); err != nil {
			return nil, err
		}
	}
	return plan.EncodeSplit(spec.In, spec.Out, fraction, executor, data)
}

func protocolData(spec *InstructionSpec) ([]byte, error) {
	if spec.Protocol == nil {
		if spec.Data == "" {
			return nil, nil
		}
		return DecodeBytes(spec.Data, FormatHex)
	}
	if spec.Data != "" {
		return nil, errors.New("protocol and data are mutually exclusive")
	}

	p := spec.Protocol
	t, err := transfer.ParseType(p.Transfer)
	if err != nil {
		return nil, err
	}
	switch consts.ExecutorKindByName(p.Kind) {
	case consts.ExecutorUniswapV2:
		pair, err := types.TryAddressFromHex(p.Pair)
		if err != nil {
			return nil, fmt.Errorf("pair: %w", err)
		}
		return uniswapv2.EncodeProtocolData(pair, p.ZeroForOne, t)
	case consts.ExecutorFixedRate:
		vault, err := types.TryAddressFromHex(p.Vault)
		if err != nil {
			return nil, fmt.Errorf("vault: %w", err)
		}
		return fixedrate.EncodeProtocolData(vault, t)
	default:
		return nil, fmt.Errorf("unknown protocol kind %q", p.Kind)
	}
}

// DescribePlan 把计划字节还原为 YAML 描述；能识别的协议数据按内置执行器展开
func DescribePlan(strategy string, buf []byte, slotCount int) (*PlanFile, error) {
	s := router.ParseStrategy(strategy)
	if s == 0 {
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
	bodies, err := plan.Bodies(buf)
	if err != nil {
		return nil, err
	}

	pf := &PlanFile{Strategy: s.String(), Instructions: make([]InstructionSpec, 0, len(bodies))}
	if s == router.StrategySplit {
		pf.SlotCount = slotCount
	}
	for i, body := range bodies {
		var spec InstructionSpec
		var data []byte
		if s == router.StrategySplit {
			ins, err := plan.ParseSplit(body)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			spec.Executor = ins.Executor.Hex()
			spec.In, spec.Out, spec.Fraction = ins.InSlot, ins.OutSlot, ins.Fraction
			data = ins.ProtocolData
		} else {
			ins, err := plan.ParseSequential(body)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			spec.Executor = ins.Executor.Hex()
			data = ins.ProtocolData
		}
		spec.Protocol = describeProtocol(data)
		if spec.Protocol == nil && len(data) > 0 {
			spec.Data = hexutil.Encode(data)
		}
		pf.Instructions = append(pf.Instructions, spec)
	}
	return pf, nil
}

// describeProtocol 两种内置协议数据长度不同，按长度识别
func describeProtocol(data []byte) *ProtocolSpec {
	switch len(data) {
	case uniswapv2.ProtocolDataSize:
		pd, err := uniswapv2.DecodeProtocolData(data)
		if err != nil {
			return nil
		}
		return &ProtocolSpec{
			Kind:       consts.ExecutorName(consts.ExecutorUniswapV2),
			Pair:       types.Address(pd.Pair).Hex(),
			ZeroForOne: pd.ZeroForOne,
			Transfer:   transfer.Type(pd.TransferType).String(),
		}
	case fixedrate.ProtocolDataSize:
		pd, err := fixedrate.DecodeProtocolData(data)
		if err != nil {
			return nil
		}
		return &ProtocolSpec{
			Kind:     consts.ExecutorName(consts.ExecutorFixedRate),
			Vault:    types.Address(pd.Vault).Hex(),
			Transfer: transfer.Type(pd.TransferType).String(),
		}
	default:
		return nil
	}
}

// EncodeBytes 按格式输出字节串
func EncodeBytes(b []byte, format string) (string, error) {
	switch format {
	case FormatHex, "":
		return hexutil.Encode(b), nil
	case FormatBase58:
		return base58.Encode(b), nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}

// DecodeBytes 解析字节串，hex 的 0x 前缀可省略
func DecodeBytes(s, format string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if format == FormatAuto {
		format = FormatBase58
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			format = FormatHex
		}
	}
	switch format {
	case FormatHex, "":
		b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return b, nil
	case FormatBase58:
		b, err := base58.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("invalid base58: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}
