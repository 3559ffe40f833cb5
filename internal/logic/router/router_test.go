package router

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"dex-router/internal/consts"
	"dex-router/internal/logic/core"
	"dex-router/internal/logic/custody"
	"dex-router/internal/logic/dispatcher"
	"dex-router/internal/logic/executors"
	"dex-router/internal/logic/permit"
	"dex-router/internal/logic/plan"
	"dex-router/internal/logic/registry"
	"dex-router/internal/types"

	"github.com/ethereum/go-ethereum/crypto"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/prometheus"
	"pgregory.net/rapid"
)

var (
	routerAddr = types.AddressFromHex("0x00000000000000000000000000000000000000ff")
	permitAddr = types.AddressFromHex("0x000000000022D473030F116dDEE9F6B43aC78BA3")
	alice      = types.AddressFromHex("0x00000000000000000000000000000000000a11ce")
	bob        = types.AddressFromHex("0x0000000000000000000000000000000000000b0b")
	venueAddr  = types.AddressFromHex("0x0000000000000000000000000000000000000e11")

	tokenX = types.AddressFromHex("0x00000000000000000000000000000000000000a1")
	tokenY = types.AddressFromHex("0x00000000000000000000000000000000000000b2")
	tokenZ = types.AddressFromHex("0x00000000000000000000000000000000000000c3")

	exec1 = types.AddressFromHex("0x0000000000000000000000000000000000e0e001")
	exec2 = types.AddressFromHex("0x0000000000000000000000000000000000e0e002")
	exec3 = types.AddressFromHex("0x0000000000000000000000000000000000e0e003")
)

var liquidity = new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)

type fixture struct {
	ledger   *custody.Ledger
	catalog  *executors.Catalog
	registry *registry.Registry
	permits  *permit.Service
	native   *custody.NativeWrapper
	router   *Router
}

func newFixture(t require.TestingT) *fixture {
	l := custody.NewLedger()
	catalog := executors.NewCatalog()
	reg := registry.New(catalog, nil, nil)
	native := custody.NewNativeWrapper(l, consts.WrappedNative)
	permits := permit.NewService(permitAddr, consts.ChainIDEthereum, l)

	// 测试场所持有充足的各类资产
	for _, asset := range []types.Address{tokenX, tokenY, tokenZ} {
		require.NoError(t, l.Mint(asset, venueAddr, liquidity))
	}
	require.NoError(t, l.Mint(consts.NativeAsset, venueAddr, liquidity))
	require.NoError(t, native.Wrap(venueAddr, liquidity))

	return &fixture{
		ledger:   l,
		catalog:  catalog,
		registry: reg,
		permits:  permits,
		native:   native,
		router:   New(routerAddr, l, native, dispatcher.New(reg, catalog), permits),
	}
}

func (f *fixture) deploy(t require.TestingT, addr types.Address, impl core.Executor) {
	require.NoError(t, f.catalog.Deploy(addr, 0, impl))
	require.NoError(t, f.registry.Admit(context.Background(), addr))
}

// fund 给 owner 铸币并授权路由
func (f *fixture) fund(t require.TestingT, owner, asset types.Address, amount *big.Int) {
	require.NoError(t, f.ledger.Mint(asset, owner, amount))
	require.NoError(t, f.ledger.Approve(asset, owner, routerAddr, amount))
}

func (f *fixture) balance(asset, owner types.Address) *big.Int {
	return f.ledger.BalanceOf(asset, owner)
}

// converter 按 num/den 把 in 兑换为 out：输入送往场所（pull=true 时经守卫从调用方拉取），
// 场所把产出转给路由
func (f *fixture) converter(in, out types.Address, num, den int64, pull bool) core.Executor {
	return core.ExecutorFunc(func(env *core.Env, amountIn *big.Int, _ []byte) (*big.Int, error) {
		var err error
		if pull {
			err = env.PullFromCaller(in, amountIn, venueAddr)
		} else {
			err = env.Transfer(in, venueAddr, amountIn)
		}
		if err != nil {
			return nil, err
		}
		amountOut := new(big.Int).Mul(amountIn, big.NewInt(num))
		amountOut.Quo(amountOut, big.NewInt(den))
		if err = f.ledger.Transfer(out, venueAddr, env.Self(), amountOut); err != nil {
			return nil, err
		}
		return amountOut, nil
	})
}

// passThrough 从调用方拉取 amountIn 到路由并原样报告
func passThrough() core.Executor {
	return core.ExecutorFunc(func(env *core.Env, amountIn *big.Int, _ []byte) (*big.Int, error) {
		if err := env.PullFromCaller(tokenX, amountIn, env.Self()); err != nil {
			return nil, err
		}
		return amountIn, nil
	})
}

func seqPlan(execs ...types.Address) []byte {
	bodies := make([][]byte, len(execs))
	for i, e := range execs {
		bodies[i] = plan.EncodeSequential(e, []byte{byte(i)})
	}
	return plan.MustEncode(bodies...)
}

func params(amountIn int64, assetIn, assetOut types.Address, minOut int64, buf []byte) SwapParams {
	return SwapParams{
		AmountIn:     big.NewInt(amountIn),
		AssetIn:      assetIn,
		AssetOut:     assetOut,
		MinOut:       big.NewInt(minOut),
		Recipient:    bob,
		Caller:       alice,
		PullRequired: true,
		Plan:         buf,
	}
}

func TestSingleStepConservation(t *testing.T) {
	f := newFixture(t)
	f.deploy(t, exec1, passThrough())
	f.fund(t, alice, tokenX, big.NewInt(1000))

	out, err := f.router.ExecuteSingle(context.Background(), params(700, tokenX, tokenX, 1, seqPlan(exec1)))
	require.NoError(t, err)
	assert.Equal(t, int64(700), out.Int64())
	assert.Equal(t, int64(300), f.balance(tokenX, alice).Int64())
	assert.Equal(t, int64(700), f.balance(tokenX, bob).Int64())
	assert.Equal(t, int64(0), f.balance(tokenX, routerAddr).Int64())
}

func TestConcreteScenario(t *testing.T) {
	f := newFixture(t)
	// 1 X(18 位) → 2000 Y(6 位)
	f.deploy(t, exec1, f.converter(tokenX, tokenY, 2000, 1_000_000_000_000, true))

	amountIn, _ := new(big.Int).SetString("1000000000000000000", 10)
	f.fund(t, alice, tokenX, amountIn)

	p := SwapParams{
		AmountIn:     amountIn,
		AssetIn:      tokenX,
		AssetOut:     tokenY,
		MinOut:       big.NewInt(1000_000000),
		Recipient:    bob,
		Caller:       alice,
		PullRequired: true,
		Plan:         seqPlan(exec1),
	}
	out, err := f.router.ExecuteSequential(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "2000000000", out.String())
	assert.Equal(t, "2000000000", f.balance(tokenY, bob).String())
	assert.Equal(t, int64(0), f.balance(tokenX, alice).Int64())
}

func TestSequentialChaining(t *testing.T) {
	f := newFixture(t)
	f.deploy(t, exec1, f.converter(tokenX, tokenY, 3, 2, true))
	f.deploy(t, exec2, f.converter(tokenY, tokenZ, 1, 3, false))
	f.fund(t, alice, tokenX, big.NewInt(1000))

	out, err := f.router.ExecuteSequential(context.Background(), params(1000, tokenX, tokenZ, 1, seqPlan(exec1, exec2)))
	require.NoError(t, err)
	// 1000 * 3/2 = 1500; 1500 / 3 = 500
	assert.Equal(t, int64(500), out.Int64())
	assert.Equal(t, int64(500), f.balance(tokenZ, bob).Int64())
	assert.Equal(t, int64(0), f.balance(tokenY, routerAddr).Int64())
}

func TestSequentialCyclic(t *testing.T) {
	f := newFixture(t)
	f.deploy(t, exec1, f.converter(tokenX, tokenY, 2, 1, true))
	f.deploy(t, exec2, f.converter(tokenY, tokenX, 11, 20, false))
	f.fund(t, alice, tokenX, big.NewInt(1000))

	p := params(1000, tokenX, tokenX, 1100, seqPlan(exec1, exec2))
	p.Recipient = alice
	out, err := f.router.ExecuteSequential(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int64(1100), out.Int64())
	assert.Equal(t, int64(1100), f.balance(tokenX, alice).Int64())
}

func TestSlippageFloor(t *testing.T) {
	f := newFixture(t)
	f.deploy(t, exec1, f.converter(tokenX, tokenY, 2, 1, true))
	f.fund(t, alice, tokenX, big.NewInt(100))

	// 产出 200，floor 201 失败且全部回滚
	_, err := f.router.ExecuteSingle(context.Background(), params(100, tokenX, tokenY, 201, seqPlan(exec1)))
	require.ErrorIs(t, err, core.ErrNegativeSlippage)
	var slip *core.NegativeSlippageError
	require.True(t, errors.As(err, &slip))
	assert.Equal(t, int64(200), slip.Actual.Int64())
	assert.Equal(t, int64(201), slip.Minimum.Int64())
	assert.Equal(t, int64(100), f.balance(tokenX, alice).Int64())
	assert.Equal(t, int64(0), f.balance(tokenY, bob).Int64())
	assert.Equal(t, int64(0), f.balance(tokenY, routerAddr).Int64())

	// 相等成功
	out, err := f.router.ExecuteSingle(context.Background(), params(100, tokenX, tokenY, 200, seqPlan(exec1)))
	require.NoError(t, err)
	assert.Equal(t, int64(200), out.Int64())
}

func TestUndefinedMinimumOutput(t *testing.T) {
	f := newFixture(t)
	f.deploy(t, exec1, passThrough())
	f.fund(t, alice, tokenX, big.NewInt(100))

	_, err := f.router.ExecuteSingle(context.Background(), params(100, tokenX, tokenX, 0, seqPlan(exec1)))
	assert.ErrorIs(t, err, core.ErrUndefinedMinimumOutput)

	p := params(100, tokenX, tokenX, 1, seqPlan(exec1))
	p.MinOut = nil
	_, err = f.router.ExecuteSingle(context.Background(), p)
	assert.ErrorIs(t, err, core.ErrUndefinedMinimumOutput)
}

func TestEmptyAndMalformedPlan(t *testing.T) {
	f := newFixture(t)
	f.deploy(t, exec1, passThrough())
	f.fund(t, alice, tokenX, big.NewInt(100))
	ctx := context.Background()

	_, err := f.router.ExecuteSequential(ctx, params(100, tokenX, tokenX, 1, nil))
	assert.ErrorIs(t, err, core.ErrEmptyPlan)

	// 第一条指令已执行，第二条长度前缀越界：整体回滚
	buf := append(seqPlan(exec1), 0x00, 0x30, 0x01)
	_, err = f.router.ExecuteSequential(ctx, params(100, tokenX, tokenX, 1, buf))
	assert.ErrorIs(t, err, core.ErrMalformedPlan)
	assert.Equal(t, int64(100), f.balance(tokenX, alice).Int64())
	assert.Equal(t, int64(0), f.balance(tokenX, routerAddr).Int64())

	// 指令体短于执行器地址
	_, err = f.router.ExecuteSequential(ctx, params(100, tokenX, tokenX, 1, plan.MustEncode([]byte{1, 2, 3})))
	assert.ErrorIs(t, err, core.ErrMalformedPlan)

	_, err = f.router.ExecuteSingle(ctx, params(100, tokenX, tokenX, 1, seqPlan(exec1, exec1)))
	assert.ErrorIs(t, err, core.ErrInvalidParams)
}

func TestRegistryGating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.catalog.Deploy(exec1, 0, passThrough()))
	f.fund(t, alice, tokenX, big.NewInt(300))

	_, err := f.router.ExecuteSingle(ctx, params(100, tokenX, tokenX, 1, seqPlan(exec1)))
	assert.ErrorIs(t, err, core.ErrUnknownExecutor)

	require.NoError(t, f.registry.Admit(ctx, exec1))
	_, err = f.router.ExecuteSingle(ctx, params(100, tokenX, tokenX, 1, seqPlan(exec1)))
	require.NoError(t, err)

	require.NoError(t, f.registry.Revoke(ctx, exec1))
	_, err = f.router.ExecuteSingle(ctx, params(100, tokenX, tokenX, 1, seqPlan(exec1)))
	assert.ErrorIs(t, err, core.ErrUnknownExecutor)
	assert.Equal(t, int64(200), f.balance(tokenX, alice).Int64())

	// 没有代码的地址不能加入
	assert.ErrorIs(t, f.registry.Admit(ctx, exec2), core.ErrNotAContract)
}

func TestHostileExecutorBoundedByGuard(t *testing.T) {
	f := newFixture(t)
	// 调用方给了路由远超本次调用的授权
	f.fund(t, alice, tokenX, big.NewInt(1_000_000))

	f.deploy(t, exec1, core.ExecutorFunc(func(env *core.Env, amountIn *big.Int, _ []byte) (*big.Int, error) {
		if err := env.PullFromCaller(tokenX, new(big.Int).Add(amountIn, big.NewInt(1)), env.Self()); err != nil {
			return nil, err
		}
		return amountIn, nil
	}))
	// 分两次拉取，合计超出
	f.deploy(t, exec2, core.ExecutorFunc(func(env *core.Env, amountIn *big.Int, _ []byte) (*big.Int, error) {
		half := new(big.Int).Rsh(amountIn, 1)
		if err := env.PullFromCaller(tokenX, half, env.Self()); err != nil {
			return nil, err
		}
		if err := env.PullFromCaller(tokenX, new(big.Int).Add(half, big.NewInt(1)), env.Self()); err != nil {
			return nil, err
		}
		return amountIn, nil
	}))

	cases := []struct {
		executor  types.Address
		allowed   int64
		attempted int64
	}{
		{executor: exec1, allowed: 100, attempted: 101},
		{executor: exec2, allowed: 50, attempted: 51},
	}
	for _, c := range cases {
		_, err := f.router.ExecuteSingle(context.Background(), params(100, tokenX, tokenX, 1, seqPlan(c.executor)))
		require.ErrorIs(t, err, core.ErrExceededAuthorization)
		assert.ErrorIs(t, err, core.ErrExecutorCallFailed)

		var exceeded *core.ExceededAuthorizationError
		require.True(t, errors.As(err, &exceeded))
		assert.Equal(t, c.allowed, exceeded.Allowed.Int64())
		assert.Equal(t, c.attempted, exceeded.Attempted.Int64())
		assert.Equal(t, int64(1_000_000), f.balance(tokenX, alice).Int64())
	}
}

func TestNoStaleAuthorization(t *testing.T) {
	f := newFixture(t)
	f.deploy(t, exec1, passThrough())
	// 只拉取 100，剩余额度留在本次调用的记录里
	f.deploy(t, exec2, core.ExecutorFunc(func(env *core.Env, _ *big.Int, _ []byte) (*big.Int, error) {
		if err := env.PullFromCaller(tokenX, big.NewInt(100), env.Self()); err != nil {
			return nil, err
		}
		return big.NewInt(100), nil
	}))
	f.fund(t, alice, tokenX, big.NewInt(1000))
	ctx := context.Background()

	_, err := f.router.ExecuteSingle(ctx, params(500, tokenX, tokenX, 1, seqPlan(exec2)))
	require.NoError(t, err)

	// 下一次调用未要求拉取，上一次剩余的 400 不可复用
	p := params(100, tokenX, tokenX, 1, seqPlan(exec1))
	p.PullRequired = false
	_, err = f.router.ExecuteSingle(ctx, p)
	require.ErrorIs(t, err, core.ErrExceededAuthorization)
	var exceeded *core.ExceededAuthorizationError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, int64(0), exceeded.Allowed.Int64())
	assert.Equal(t, int64(900), f.balance(tokenX, alice).Int64())
}

func TestExecutorFailureRevertsEarlierSteps(t *testing.T) {
	f := newFixture(t)
	f.deploy(t, exec1, f.converter(tokenX, tokenY, 1, 1, true))
	f.deploy(t, exec2, core.ExecutorFunc(func(*core.Env, *big.Int, []byte) (*big.Int, error) {
		return nil, errors.New("venue paused")
	}))
	f.deploy(t, exec3, core.ExecutorFunc(func(*core.Env, *big.Int, []byte) (*big.Int, error) {
		panic("boom")
	}))
	f.fund(t, alice, tokenX, big.NewInt(100))

	for _, e := range []types.Address{exec2, exec3} {
		_, err := f.router.ExecuteSequential(context.Background(), params(100, tokenX, tokenY, 1, seqPlan(exec1, e)))
		require.ErrorIs(t, err, core.ErrExecutorCallFailed)
		var failed *core.ExecutorCallFailedError
		require.True(t, errors.As(err, &failed))
		assert.Equal(t, e, failed.Executor)

		assert.Equal(t, int64(100), f.balance(tokenX, alice).Int64())
		assert.Equal(t, int64(0), f.balance(tokenY, routerAddr).Int64())
		assert.Zero(t, liquidity.Cmp(f.balance(tokenX, venueAddr)))
	}
}

func TestOverReportedOutput(t *testing.T) {
	f := newFixture(t)
	f.deploy(t, exec1, core.ExecutorFunc(func(env *core.Env, amountIn *big.Int, _ []byte) (*big.Int, error) {
		if err := env.PullFromCaller(tokenX, amountIn, venueAddr); err != nil {
			return nil, err
		}
		return new(big.Int).Mul(amountIn, big.NewInt(2)), nil
	}))
	f.fund(t, alice, tokenX, big.NewInt(100))

	_, err := f.router.ExecuteSingle(context.Background(), params(100, tokenX, tokenY, 1, seqPlan(exec1)))
	assert.ErrorIs(t, err, core.ErrDeliveryShortfall)
	assert.Equal(t, int64(100), f.balance(tokenX, alice).Int64())
}

func splitPlan(t require.TestingT, steps ...plan.SplitInstruction) []byte {
	bodies := make([][]byte, len(steps))
	for i, s := range steps {
		body, err := plan.EncodeSplit(s.InSlot, s.OutSlot, s.Fraction, s.Executor, s.ProtocolData)
		require.NoError(t, err)
		bodies[i] = body
	}
	return plan.MustEncode(bodies...)
}

// recorder 记录每次分配到的输入，按 1:1 把 X 换成 Y
type recorder struct {
	seen []*big.Int
}

func (r *recorder) executor(f *fixture, in, out types.Address, pull bool) core.Executor {
	inner := f.converter(in, out, 1, 1, pull)
	return core.ExecutorFunc(func(env *core.Env, amountIn *big.Int, data []byte) (*big.Int, error) {
		r.seen = append(r.seen, new(big.Int).Set(amountIn))
		if amountIn.Sign() == 0 {
			return new(big.Int), nil
		}
		return inner.Swap(env, amountIn, data)
	})
}

func TestSplitConservation(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	f.deploy(t, exec1, rec.executor(f, tokenX, tokenY, true))
	f.deploy(t, exec2, f.converter(tokenY, tokenZ, 2, 1, false))
	f.fund(t, alice, tokenX, big.NewInt(1000))

	half, err := plan.FractionFromPercent(50)
	require.NoError(t, err)
	buf := splitPlan(t,
		plan.SplitInstruction{InSlot: 0, OutSlot: 1, Fraction: half, Executor: exec1},
		plan.SplitInstruction{InSlot: 0, OutSlot: 1, Fraction: 0, Executor: exec1},
		plan.SplitInstruction{InSlot: 1, OutSlot: 2, Fraction: 0, Executor: exec2},
	)

	out, err := f.router.ExecuteSplit(context.Background(), params(1000, tokenX, tokenZ, 2000, buf), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), out.Int64())

	require.Len(t, rec.seen, 2)
	assert.Equal(t, int64(1000), new(big.Int).Add(rec.seen[0], rec.seen[1]).Int64())
	assert.Equal(t, int64(0), f.balance(tokenX, alice).Int64())
}

func TestSplitConservationProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(rt)
		rec := &recorder{}
		f.deploy(rt, exec1, rec.executor(f, tokenX, tokenY, true))

		amountIn := rapid.Int64Range(1, 1_000_000_000).Draw(rt, "amountIn")
		fractions := rapid.SliceOfN(rapid.Uint32Range(1, consts.FractionOne), 0, 8).Draw(rt, "fractions")
		f.fund(rt, alice, tokenX, big.NewInt(amountIn))

		steps := make([]plan.SplitInstruction, 0, len(fractions)+1)
		for _, frac := range fractions {
			steps = append(steps, plan.SplitInstruction{InSlot: 0, OutSlot: 1, Fraction: frac, Executor: exec1})
		}
		steps = append(steps, plan.SplitInstruction{InSlot: 0, OutSlot: 1, Fraction: 0, Executor: exec1})

		out, err := f.router.ExecuteSplit(context.Background(), params(amountIn, tokenX, tokenY, 1, splitPlan(rt, steps...)), 2)
		require.NoError(rt, err)

		total := new(big.Int)
		for _, amt := range rec.seen {
			require.True(rt, amt.Sign() >= 0)
			total.Add(total, amt)
		}
		require.Equal(rt, amountIn, total.Int64())
		require.Equal(rt, amountIn, out.Int64())
	})
}

func TestSplitZeroAllocation(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	f.deploy(t, exec1, rec.executor(f, tokenX, tokenY, true))
	f.fund(t, alice, tokenX, big.NewInt(100))

	// 第二条读取已被取空的 slot 0，分配为 0
	buf := splitPlan(t,
		plan.SplitInstruction{InSlot: 0, OutSlot: 1, Fraction: 0, Executor: exec1},
		plan.SplitInstruction{InSlot: 0, OutSlot: 1, Fraction: consts.FractionOne, Executor: exec1},
	)
	out, err := f.router.ExecuteSplit(context.Background(), params(100, tokenX, tokenY, 100, buf), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(100), out.Int64())
	require.Len(t, rec.seen, 2)
	assert.Equal(t, int64(0), rec.seen[1].Int64())
}

func TestSplitRejects(t *testing.T) {
	f := newFixture(t)
	f.deploy(t, exec1, passThrough())
	f.fund(t, alice, tokenX, big.NewInt(100))
	ctx := context.Background()

	buf := splitPlan(t, plan.SplitInstruction{InSlot: 0, OutSlot: 1, Fraction: 0, Executor: exec1})
	_, err := f.router.ExecuteSplit(ctx, params(100, tokenX, tokenX, 1, buf), 1)
	assert.ErrorIs(t, err, core.ErrInvalidParams)
	_, err = f.router.ExecuteSplit(ctx, params(100, tokenX, tokenX, 1, buf), 257)
	assert.ErrorIs(t, err, core.ErrInvalidParams)

	// 输出 slot 越界
	buf = splitPlan(t, plan.SplitInstruction{InSlot: 0, OutSlot: 5, Fraction: 0, Executor: exec1})
	_, err = f.router.ExecuteSplit(ctx, params(100, tokenX, tokenX, 1, buf), 2)
	assert.ErrorIs(t, err, core.ErrMalformedPlan)
	assert.Equal(t, int64(100), f.balance(tokenX, alice).Int64())
}

func swapFailures(t *testing.T, strategy, reason string) float64 {
	families, err := prom.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "router_swap_failures") {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["strategy"] == strategy && labels["reason"] == reason {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestSplitSlotCountRecordedAsFailure(t *testing.T) {
	prometheus.Enable()
	f := newFixture(t)
	f.deploy(t, exec1, passThrough())
	f.fund(t, alice, tokenX, big.NewInt(100))
	ctx := context.Background()
	buf := splitPlan(t, plan.SplitInstruction{InSlot: 0, OutSlot: 1, Fraction: 0, Executor: exec1})

	before := swapFailures(t, "split", "invalid_params")
	_, err := f.router.ExecuteSplit(ctx, params(100, tokenX, tokenX, 1, buf), 0)
	assert.ErrorIs(t, err, core.ErrInvalidParams)
	_, err = f.router.ExecuteSplitPermit(ctx, params(100, tokenX, tokenX, 1, buf), 300, PermitParams{})
	assert.ErrorIs(t, err, core.ErrInvalidParams)
	assert.Equal(t, before+2, swapFailures(t, "split", "invalid_params"))
	assert.Equal(t, int64(100), f.balance(tokenX, alice).Int64())
}

func TestWrapAndUnwrapNative(t *testing.T) {
	f := newFixture(t)
	weth := consts.WrappedNative
	f.deploy(t, exec1, f.converter(weth, tokenY, 3, 1, false))
	f.deploy(t, exec2, f.converter(tokenY, weth, 1, 3, true))
	require.NoError(t, f.ledger.Mint(consts.NativeAsset, alice, big.NewInt(1000)))
	ctx := context.Background()

	p := params(1000, consts.NativeAsset, tokenY, 3000, seqPlan(exec1))
	p.WrapIn = true
	p.PullRequired = false
	p.Value = big.NewInt(1000)
	out, err := f.router.ExecuteSingle(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), out.Int64())
	assert.Equal(t, int64(0), f.balance(consts.NativeAsset, alice).Int64())
	assert.Equal(t, int64(3000), f.balance(tokenY, bob).Int64())
	assert.Equal(t, int64(0), f.balance(weth, routerAddr).Int64())

	// value 与 amountIn 不一致
	p.Value = big.NewInt(999)
	_, err = f.router.ExecuteSingle(ctx, p)
	assert.ErrorIs(t, err, core.ErrInvalidNativeValue)

	f.fund(t, alice, tokenY, big.NewInt(300))
	p = params(300, tokenY, consts.NativeAsset, 100, seqPlan(exec2))
	p.UnwrapOut = true
	out, err = f.router.ExecuteSingle(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(100), out.Int64())
	assert.Equal(t, int64(100), f.balance(consts.NativeAsset, bob).Int64())
	assert.Equal(t, int64(0), f.balance(weth, routerAddr).Int64())
}

func TestInvalidParams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := params(100, tokenX, tokenY, 1, seqPlan(exec1))

	cases := map[string]func(p *SwapParams){
		"zero amount":       func(p *SwapParams) { p.AmountIn = big.NewInt(0) },
		"zero recipient":    func(p *SwapParams) { p.Recipient = types.ZeroAddress },
		"router recipient":  func(p *SwapParams) { p.Recipient = routerAddr },
		"wrap non-native":   func(p *SwapParams) { p.WrapIn = true },
		"unwrap non-native": func(p *SwapParams) { p.UnwrapOut = true },
		"pull native":       func(p *SwapParams) { p.AssetIn = consts.NativeAsset; p.Value = p.AmountIn },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := base
			mutate(&p)
			_, err := f.router.ExecuteSingle(ctx, p)
			assert.ErrorIs(t, err, core.ErrInvalidParams)
		})
	}

	p := base
	p.Value = big.NewInt(1)
	_, err := f.router.ExecuteSingle(ctx, p)
	assert.ErrorIs(t, err, core.ErrInvalidNativeValue)
}

func TestPermitVariants(t *testing.T) {
	f := newFixture(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	owner := crypto.PubkeyToAddress(key.PublicKey)
	ctx := context.Background()

	f.deploy(t, exec1, f.converter(tokenX, tokenY, 2, 1, true))
	require.NoError(t, f.ledger.Mint(tokenX, owner, big.NewInt(1000)))
	// 只授权给签名授权服务，不授权路由
	require.NoError(t, f.ledger.Approve(tokenX, owner, permitAddr, big.NewInt(1000)))

	sign := func(amount int64, nonce uint64) PermitParams {
		a := permit.Authorization{
			Owner:    owner,
			Asset:    tokenX,
			Spender:  routerAddr,
			Amount:   big.NewInt(amount),
			Nonce:    nonce,
			Deadline: time.Now().Add(time.Hour).Unix(),
		}
		sig, err := permit.Sign(a, consts.ChainIDEthereum, permitAddr, key)
		require.NoError(t, err)
		return PermitParams{Authorization: a, Signature: sig}
	}

	p := params(100, tokenX, tokenY, 1, seqPlan(exec1))
	p.Caller = owner

	// 普通入口：没有给路由 allowance，拉取失败
	_, err = f.router.ExecuteSingle(ctx, p)
	require.Error(t, err)

	pp := sign(100, 0)
	out, err := f.router.ExecuteSinglePermit(ctx, p, pp)
	require.NoError(t, err)
	assert.Equal(t, int64(200), out.Int64())
	assert.Equal(t, int64(900), f.balance(tokenX, owner).Int64())
	assert.Equal(t, uint64(1), f.permits.Nonce(owner))

	// 重放同一签名
	_, err = f.router.ExecuteSinglePermit(ctx, p, pp)
	assert.ErrorIs(t, err, permit.ErrInvalidNonce)

	// 失败调用中登记的签名授权随之回滚，nonce 可重用
	pp = sign(100, 1)
	p.MinOut = big.NewInt(1_000_000)
	_, err = f.router.ExecuteSequentialPermit(ctx, p, pp)
	require.ErrorIs(t, err, core.ErrNegativeSlippage)
	assert.Equal(t, uint64(1), f.permits.Nonce(owner))
	assert.Equal(t, int64(900), f.balance(tokenX, owner).Int64())

	p.MinOut = big.NewInt(1)
	_, err = f.router.ExecuteSequentialPermit(ctx, p, pp)
	require.NoError(t, err)

	// 授权额度不足 amountIn
	_, err = f.router.ExecuteSinglePermit(ctx, p, sign(99, 2))
	assert.ErrorIs(t, err, core.ErrInvalidParams)

	// split 入口
	buf := splitPlan(t, plan.SplitInstruction{InSlot: 0, OutSlot: 1, Fraction: 0, Executor: exec1})
	p.Plan = buf
	out, err = f.router.ExecuteSplitPermit(ctx, p, 2, sign(100, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(200), out.Int64())
	assert.Equal(t, int64(700), f.balance(tokenX, owner).Int64())
}
