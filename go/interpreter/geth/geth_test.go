// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package geth

import (
	"bytes"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/Fantom-foundation/vmtests/go/tosca"
	geth "github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
	"go.uber.org/mock/gomock"
)

// newTestContext creates a run context of an empty world state.
func newTestContext(ctrl *gomock.Controller) *tosca.MockRunContext {
	context := tosca.NewMockRunContext(ctrl)
	context.EXPECT().AccountExists(gomock.Any()).Return(false).AnyTimes()
	context.EXPECT().GetBalance(gomock.Any()).Return(tosca.Value{}).AnyTimes()
	context.EXPECT().GetNonce(gomock.Any()).Return(tosca.Value{}).AnyTimes()
	context.EXPECT().GetCode(gomock.Any()).Return(tosca.Code(nil)).AnyTimes()
	context.EXPECT().GetCodeHash(gomock.Any()).Return(tosca.Hash{}).AnyTimes()
	context.EXPECT().GetCodeSize(gomock.Any()).Return(0).AnyTimes()
	context.EXPECT().GetStorage(gomock.Any(), gomock.Any()).Return(tosca.Word{}).AnyTimes()
	return context
}

func newTestParameters(context tosca.RunContext, code ...geth.OpCode) tosca.Parameters {
	bytecode := make([]byte, 0, len(code))
	for _, op := range code {
		bytecode = append(bytecode, byte(op))
	}
	return tosca.Parameters{
		BlockParameters: tosca.BlockParameters{
			BlockNumber: tosca.NewValue(1),
			GasLimit:    tosca.NewValue(1_000_000),
		},
		CallContext: tosca.CallContext{
			Address: tosca.Address{0x10},
			Caller:  tosca.Address{0x20},
		},
		Context:  context,
		Revision: tosca.R00_Frontier,
		Limits:   tosca.DefaultLimits,
		Gas:      100_000,
		Code:     bytecode,
	}
}

func TestGethVm_IsRegistered(t *testing.T) {
	vm, err := tosca.NewInterpreter("geth")
	if err != nil {
		t.Fatalf("failed to create geth interpreter: %v", err)
	}
	if _, ok := vm.(*gethVm); !ok {
		t.Errorf("unexpected interpreter type %T", vm)
	}
}

func TestGethVm_ReturnsValueAndGas(t *testing.T) {
	ctrl := gomock.NewController(t)
	params := newTestParameters(newTestContext(ctrl),
		geth.PUSH1, 0x2a, geth.PUSH1, 0x00, geth.MSTORE,
		geth.PUSH1, 0x20, geth.PUSH1, 0x00, geth.RETURN,
	)

	result, err := (&gethVm{}).Run(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := tosca.ExitReturned, result.Reason; want != got {
		t.Errorf("unexpected exit reason, wanted %v, got %v", want, got)
	}
	if want, got := tosca.Gas(100_000-18), result.GasLeft; want != got {
		t.Errorf("unexpected gas left, wanted %d, got %d", want, got)
	}
	want := make([]byte, 32)
	want[31] = 0x2a
	if !bytes.Equal(want, result.Output) {
		t.Errorf("unexpected output, wanted %x, got %x", want, result.Output)
	}
	if len(result.Changes) != 0 {
		t.Errorf("unexpected changes: %v", result.Changes)
	}
}

func TestGethVm_EmptyCodeStops(t *testing.T) {
	ctrl := gomock.NewController(t)
	params := newTestParameters(newTestContext(ctrl))

	result, err := (&gethVm{}).Run(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := tosca.ExitStopped, result.Reason; want != got {
		t.Errorf("unexpected exit reason, wanted %v, got %v", want, got)
	}
	if want, got := params.Gas, result.GasLeft; want != got {
		t.Errorf("unexpected gas left, wanted %d, got %d", want, got)
	}
}

func TestGethVm_StorageUpdatesAreReportedAsChanges(t *testing.T) {
	ctrl := gomock.NewController(t)
	params := newTestParameters(newTestContext(ctrl),
		geth.PUSH1, 0x01, geth.PUSH1, 0x00, geth.SSTORE,
	)

	result, err := (&gethVm{}).Run(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := tosca.ExitStopped, result.Reason; want != got {
		t.Errorf("unexpected exit reason, wanted %v, got %v", want, got)
	}
	if want, got := tosca.Gas(100_000-20_006), result.GasLeft; want != got {
		t.Errorf("unexpected gas left, wanted %d, got %d", want, got)
	}
	if len(result.Changes) != 1 {
		t.Fatalf("unexpected number of changes: %v", result.Changes)
	}
	change := result.Changes[0]
	if want, got := params.Address, change.Address; want != got {
		t.Errorf("unexpected changed account, wanted %v, got %v", want, got)
	}
	if want, got := (tosca.Word{31: 1}), change.Storage[tosca.Key{}]; want != got {
		t.Errorf("unexpected stored value, wanted %v, got %v", want, got)
	}
	if change.Code != nil || change.Deleted || change.ResetStorage {
		t.Errorf("unexpected change %+v", change)
	}
}

func TestGethVm_FailedExecutionsConsumeAllGasAndDiscardChanges(t *testing.T) {
	tests := map[string]struct {
		gas    tosca.Gas
		code   []geth.OpCode
		reason tosca.ExitReason
	}{
		"out of gas": {
			gas:    5,
			code:   []geth.OpCode{geth.PUSH1, 0x01, geth.PUSH1, 0x00, geth.SSTORE},
			reason: tosca.ExitOutOfGas,
		},
		"stack underflow": {
			gas:    100,
			code:   []geth.OpCode{geth.ADD},
			reason: tosca.ExitStackUnderflow,
		},
		"invalid op code after store": {
			gas:    100_000,
			code:   []geth.OpCode{geth.PUSH1, 0x01, geth.PUSH1, 0x00, geth.SSTORE, geth.INVALID},
			reason: tosca.ExitInvalidOpCode,
		},
		"invalid jump": {
			gas:    100,
			code:   []geth.OpCode{geth.PUSH1, 0x05, geth.JUMP},
			reason: tosca.ExitInvalidJump,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			params := newTestParameters(newTestContext(ctrl), test.code...)
			params.Gas = test.gas

			result, err := (&gethVm{}).Run(params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want, got := test.reason, result.Reason; want != got {
				t.Errorf("unexpected exit reason, wanted %v, got %v", want, got)
			}
			if !result.Reason.IsError() {
				t.Errorf("exit reason %v is not an error", result.Reason)
			}
			if want, got := tosca.Gas(0), result.GasLeft; want != got {
				t.Errorf("unexpected gas left, wanted %d, got %d", want, got)
			}
			if len(result.Changes) != 0 || len(result.Logs) != 0 || len(result.Output) != 0 {
				t.Errorf("unexpected side effects in result %+v", result)
			}
		})
	}
}

func TestGethVm_StackOverflowIsDetected(t *testing.T) {
	ctrl := gomock.NewController(t)
	code := []geth.OpCode{}
	for i := 0; i <= tosca.DefaultStackLimit; i++ {
		code = append(code, geth.PC)
	}
	params := newTestParameters(newTestContext(ctrl), code...)

	result, err := (&gethVm{}).Run(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := tosca.ExitStackOverflow, result.Reason; want != got {
		t.Errorf("unexpected exit reason, wanted %v, got %v", want, got)
	}
}

func TestGethVm_SelfDestructIsReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	params := newTestParameters(newTestContext(ctrl),
		geth.PUSH1, 0x00, geth.SELFDESTRUCT,
	)

	result, err := (&gethVm{}).Run(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := tosca.ExitSelfDestructed, result.Reason; want != got {
		t.Errorf("unexpected exit reason, wanted %v, got %v", want, got)
	}
	deleted := false
	for _, change := range result.Changes {
		if change.Address == params.Address {
			deleted = change.Deleted
		}
	}
	if !deleted {
		t.Errorf("self-destructed account is not deleted: %v", result.Changes)
	}
}

func TestGethVm_LogsAreReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	params := newTestParameters(newTestContext(ctrl),
		geth.PUSH1, 0x00, geth.PUSH1, 0x00, geth.LOG0,
	)

	result, err := (&gethVm{}).Run(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Logs) != 1 {
		t.Fatalf("unexpected logs: %v", result.Logs)
	}
	if want, got := params.Address, result.Logs[0].Address; want != got {
		t.Errorf("unexpected log address, wanted %v, got %v", want, got)
	}
}

func TestGethVm_BlockHashIsFetchedFromContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	context := tosca.NewMockRunContext(ctrl)
	hash := tosca.Hash{1, 2, 3}
	context.EXPECT().GetBlockHash(tosca.NewValue(0)).Return(hash)

	params := newTestParameters(context,
		geth.PUSH1, 0x00, geth.BLOCKHASH, geth.PUSH1, 0x00, geth.MSTORE,
		geth.PUSH1, 0x20, geth.PUSH1, 0x00, geth.RETURN,
	)

	result, err := (&gethVm{}).Run(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(hash[:], result.Output) {
		t.Errorf("unexpected output, wanted %v, got %x", hash, result.Output)
	}
	if want, got := tosca.Gas(100_000-38), result.GasLeft; want != got {
		t.Errorf("unexpected gas left, wanted %d, got %d", want, got)
	}
}

func TestGethVm_MemoryLimitIsEnforced(t *testing.T) {
	ctrl := gomock.NewController(t)
	params := newTestParameters(newTestContext(ctrl),
		geth.PUSH1, 0x01, geth.PUSH1, 0x20, geth.MSTORE, geth.STOP,
	)
	params.Limits.MemorySize = 32

	result, err := (&gethVm{}).Run(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := tosca.ExitMemoryLimit, result.Reason; want != got {
		t.Errorf("unexpected exit reason, wanted %v, got %v", want, got)
	}
}

func TestGethVm_MemoryLimitIsEnforcedOnFinalInstruction(t *testing.T) {
	tests := map[string]struct {
		code     []geth.OpCode
		revision tosca.Revision
		want     tosca.ExitReason
	}{
		"return beyond limit": {
			code: []geth.OpCode{geth.PUSH1, 0x20, geth.PUSH1, 0x20, geth.RETURN},
			want: tosca.ExitMemoryLimit,
		},
		"return within limit": {
			code: []geth.OpCode{geth.PUSH1, 0x20, geth.PUSH1, 0x00, geth.RETURN},
			want: tosca.ExitReturned,
		},
		"empty return at large offset": {
			code: []geth.OpCode{geth.PUSH1, 0x00, geth.PUSH1, 0xff, geth.RETURN},
			want: tosca.ExitReturned,
		},
		"store at end of code": {
			code: []geth.OpCode{geth.PUSH1, 0x01, geth.PUSH1, 0x20, geth.MSTORE},
			want: tosca.ExitMemoryLimit,
		},
		"revert beyond limit": {
			code:     []geth.OpCode{geth.PUSH1, 0x20, geth.PUSH1, 0x20, geth.REVERT},
			revision: tosca.R04_Byzantium,
			want:     tosca.ExitMemoryLimit,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			params := newTestParameters(newTestContext(ctrl), test.code...)
			params.Revision = test.revision
			params.Limits.MemorySize = 32

			result, err := (&gethVm{}).Run(params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want, got := test.want, result.Reason; want != got {
				t.Errorf("unexpected exit reason, wanted %v, got %v", want, got)
			}
		})
	}
}

func TestRequiredMemory_CoversArgumentsOfInstructions(t *testing.T) {
	// stack lists arguments from the top of the stack downwards
	tests := map[string]struct {
		op    geth.OpCode
		stack []uint64
		want  uint64
	}{
		"no memory access":       {geth.ADD, []uint64{1, 2}, 0},
		"mload":                  {geth.MLOAD, []uint64{1}, 64},
		"mstore8":                {geth.MSTORE8, []uint64{31, 1}, 32},
		"return":                 {geth.RETURN, []uint64{32, 33}, 96},
		"empty return":           {geth.RETURN, []uint64{1000, 0}, 0},
		"calldatacopy":           {geth.CALLDATACOPY, []uint64{64, 0, 1}, 96},
		"extcodecopy":            {geth.EXTCODECOPY, []uint64{0, 0, 0, 40}, 64},
		"call output":            {geth.CALL, []uint64{0, 0, 0, 0, 0, 128, 32}, 160},
		"staticcall input":       {geth.STATICCALL, []uint64{0, 0, 200, 1, 0, 0}, 224},
		"missing arguments":      {geth.RETURN, []uint64{32}, 0},
		"empty stack":            {geth.MSTORE, nil, 0},
		"size close to overflow": {geth.RETURN, []uint64{math.MaxUint64 - 10, 1}, math.MaxUint64},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			stack := make([]uint256.Int, len(test.stack))
			for i, value := range test.stack {
				stack[len(stack)-1-i].SetUint64(value)
			}
			if want, got := test.want, requiredMemory(test.op, stack); want != got {
				t.Errorf("unexpected memory requirement, wanted %d, got %d", want, got)
			}
		})
	}

	huge := []uint256.Int{*uint256.NewInt(1), *new(uint256.Int).Lsh(uint256.NewInt(1), 64)}
	if want, got := uint64(math.MaxUint64), requiredMemory(geth.RETURN, huge); want != got {
		t.Errorf("unexpected memory requirement for huge offset, wanted %d, got %d", want, got)
	}
}

func TestGethVm_MissingRunContextIsReported(t *testing.T) {
	params := newTestParameters(nil, geth.STOP)
	params.Context = nil
	_, err := (&gethVm{}).Run(params)
	if !errors.Is(err, tosca.ErrMissingRunContext) {
		t.Errorf("expected %v, got %v", tosca.ErrMissingRunContext, err)
	}
}

func TestGethVm_RevertKeepsGasButDiscardsChanges(t *testing.T) {
	ctrl := gomock.NewController(t)
	params := newTestParameters(newTestContext(ctrl),
		geth.PUSH1, 0x00, geth.PUSH1, 0x00, geth.REVERT,
	)
	params.Revision = tosca.R04_Byzantium

	result, err := (&gethVm{}).Run(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := tosca.ExitReverted, result.Reason; want != got {
		t.Errorf("unexpected exit reason, wanted %v, got %v", want, got)
	}
	if want, got := tosca.Gas(100_000-6), result.GasLeft; want != got {
		t.Errorf("unexpected gas left, wanted %d, got %d", want, got)
	}
}

func TestGethVm_RevertIsInvalidInFrontier(t *testing.T) {
	ctrl := gomock.NewController(t)
	params := newTestParameters(newTestContext(ctrl),
		geth.PUSH1, 0x00, geth.PUSH1, 0x00, geth.REVERT,
	)

	result, err := (&gethVm{}).Run(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := tosca.ExitInvalidOpCode, result.Reason; want != got {
		t.Errorf("unexpected exit reason, wanted %v, got %v", want, got)
	}
}

func TestGethVm_InvalidConfigurationsAreRejected(t *testing.T) {
	tests := map[string]func(*tosca.Parameters){
		"unsupported revision": func(p *tosca.Parameters) { p.Revision = tosca.NewestSupportedRevision + 1 },
		"stack limit":          func(p *tosca.Parameters) { p.Limits.StackDepth = 512 },
		"negative gas":         func(p *tosca.Parameters) { p.Gas = -1 },
		"timestamp overflow":   func(p *tosca.Parameters) { p.Timestamp = tosca.NewValue(1, 0) },
		"gas limit overflow":   func(p *tosca.Parameters) { p.GasLimit = tosca.NewValue(1, 0) },
		"missing context":      func(p *tosca.Parameters) { p.Context = nil },
	}

	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			params := newTestParameters(newTestContext(ctrl), geth.STOP)
			modify(&params)
			if _, err := (&gethVm{}).Run(params); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}

func TestGethVm_UnsupportedRevisionIsTyped(t *testing.T) {
	ctrl := gomock.NewController(t)
	params := newTestParameters(newTestContext(ctrl))
	params.Revision = tosca.Revision(42)

	_, err := (&gethVm{}).Run(params)
	var target *tosca.ErrUnsupportedRevision
	if !errors.As(err, &target) {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := params.Revision, target.Revision; want != got {
		t.Errorf("unexpected revision, wanted %v, got %v", want, got)
	}
}

func TestMakeChainConfig_ActivatesForksUpToRevision(t *testing.T) {
	zero := big.NewInt(0)

	frontier := MakeChainConfig(tosca.R00_Frontier)
	if frontier.IsHomestead(zero) {
		t.Errorf("frontier config must not enable homestead")
	}

	homestead := MakeChainConfig(tosca.R01_Homestead)
	if !homestead.IsHomestead(zero) || homestead.IsEIP150(zero) {
		t.Errorf("unexpected homestead config")
	}

	constantinople := MakeChainConfig(tosca.R05_Constantinople)
	if !constantinople.IsConstantinople(zero) || constantinople.IsPetersburg(zero) {
		t.Errorf("unexpected constantinople config")
	}

	istanbul := MakeChainConfig(tosca.R07_Istanbul)
	if !istanbul.IsIstanbul(zero) || !istanbul.IsPetersburg(zero) || istanbul.IsBerlin(zero) {
		t.Errorf("unexpected istanbul config")
	}
	if want, got := int64(1), istanbul.ChainID.Int64(); want != got {
		t.Errorf("unexpected chain id, wanted %d, got %d", want, got)
	}
}
