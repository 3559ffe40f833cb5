package service

import (
	"context"
	"fmt"
	"math/big"
	"runtime/debug"
	"time"

	"dex-router/internal/logic/core"
	"dex-router/internal/logic/permit"
	"dex-router/internal/logic/router"
	"dex-router/internal/mq"
	"dex-router/internal/types"
	"dex-router/pkg/logger"

	"github.com/google/uuid"
)

// Swapper 路由的顶层入口
type Swapper interface {
	ExecuteSingle(ctx context.Context, p router.SwapParams) (*big.Int, error)
	ExecuteSequential(ctx context.Context, p router.SwapParams) (*big.Int, error)
	ExecuteSplit(ctx context.Context, p router.SwapParams, slotCount int) (*big.Int, error)
	ExecuteSinglePermit(ctx context.Context, p router.SwapParams, pp router.PermitParams) (*big.Int, error)
	ExecuteSequentialPermit(ctx context.Context, p router.SwapParams, pp router.PermitParams) (*big.Int, error)
	ExecuteSplitPermit(ctx context.Context, p router.SwapParams, slotCount int, pp router.PermitParams) (*big.Int, error)
}

// SwapHandler 把 swap 请求转换为路由调用，并生成回执
type SwapHandler struct {
	swapper Swapper
	now     func() time.Time
}

func NewSwapHandler(swapper Swapper) *SwapHandler {
	return &SwapHandler{swapper: swapper, now: time.Now}
}

// Handle 执行一条请求；失败也返回回执，原因写入 Reason / Error
func (h *SwapHandler) Handle(ctx context.Context, req *mq.SwapRequest) *mq.SwapReceipt {
	start := h.now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	receipt := &mq.SwapReceipt{
		RequestID: req.RequestID,
		Strategy:  req.Strategy,
		Recipient: req.Recipient,
		AssetOut:  req.AssetOut,
	}

	amountOut, err := h.safeExecute(ctx, req)
	end := h.now()
	receipt.ElapsedUs = end.Sub(start).Microseconds()
	receipt.AtMs = end.UnixMilli()
	if err != nil {
		receipt.Reason = router.FailureReason(err)
		receipt.Error = err.Error()
		return receipt
	}
	receipt.Success = true
	receipt.AmountOut = types.AmountToBytes(amountOut)
	return receipt
}

// safeExecute 单条请求 panic 时转换为失败回执，不影响同批其它请求
func (h *SwapHandler) safeExecute(ctx context.Context, req *mq.SwapRequest) (amountOut *big.Int, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[SwapHandler] panic: id=%s err=%v\nstack: %s", req.RequestID, r, debug.Stack())
			amountOut, err = nil, fmt.Errorf("swap panic: %v", r)
		}
	}()
	return h.execute(ctx, req)
}

func (h *SwapHandler) execute(ctx context.Context, req *mq.SwapRequest) (*big.Int, error) {
	p := toSwapParams(req)
	var pp *router.PermitParams
	if req.HasPermit {
		pp = toPermitParams(&req.Permit)
	}

	switch strategy := router.Strategy(req.Strategy); strategy {
	case router.StrategySingle:
		if pp != nil {
			return h.swapper.ExecuteSinglePermit(ctx, p, *pp)
		}
		return h.swapper.ExecuteSingle(ctx, p)
	case router.StrategySequential:
		if pp != nil {
			return h.swapper.ExecuteSequentialPermit(ctx, p, *pp)
		}
		return h.swapper.ExecuteSequential(ctx, p)
	case router.StrategySplit:
		if pp != nil {
			return h.swapper.ExecuteSplitPermit(ctx, p, int(req.SlotCount), *pp)
		}
		return h.swapper.ExecuteSplit(ctx, p, int(req.SlotCount))
	default:
		return nil, fmt.Errorf("%w: unknown strategy %s", core.ErrInvalidParams, strategy)
	}
}

func toSwapParams(req *mq.SwapRequest) router.SwapParams {
	return router.SwapParams{
		AmountIn:     types.AmountFromBytes(req.AmountIn),
		AssetIn:      req.AssetIn,
		AssetOut:     req.AssetOut,
		MinOut:       types.AmountFromBytes(req.MinOut),
		WrapIn:       req.WrapIn,
		UnwrapOut:    req.UnwrapOut,
		Recipient:    req.Recipient,
		Caller:       req.Caller,
		Value:        types.AmountFromBytes(req.Value),
		PullRequired: req.PullRequired,
		Plan:         req.Plan,
	}
}

func toPermitParams(p *mq.PermitPayload) *router.PermitParams {
	return &router.PermitParams{
		Authorization: permit.Authorization{
			Owner:    p.Owner,
			Asset:    p.Asset,
			Spender:  p.Spender,
			Amount:   types.AmountFromBytes(p.Amount),
			Nonce:    p.Nonce,
			Deadline: p.Deadline,
		},
		Signature: p.Signature,
	}
}

// DecodeRequests 解析一条 Kafka 消息中的全部请求（单条或批量）
func DecodeRequests(data []byte) ([]*mq.SwapRequest, error) {
	events, err := mq.SplitEvents(data)
	if err != nil {
		return nil, err
	}
	requests := make([]*mq.SwapRequest, 0, len(events))
	for i, ev := range events {
		req := &mq.SwapRequest{}
		if err := mq.DecodeEventAs(ev, mq.EventSwapRequest, req); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		requests = append(requests, req)
	}
	return requests, nil
}
