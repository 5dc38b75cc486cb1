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
	"errors"
	"fmt"
	"math"
	"math/big"
	"math/bits"

	"github.com/Fantom-foundation/vmtests/go/tosca"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	geth "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

func init() {
	tosca.MustRegisterInterpreterFactory("geth", func(any) (tosca.Interpreter, error) {
		return &gethVm{}, nil
	})
}

type gethVm struct{}

// Defines the newest supported revision for this interpreter implementation
const newestSupportedRevision = tosca.R07_Istanbul

func (m *gethVm) Run(parameters tosca.Parameters) (tosca.Result, error) {
	if parameters.Revision < tosca.R00_Frontier || parameters.Revision > newestSupportedRevision {
		return tosca.Result{}, &tosca.ErrUnsupportedRevision{Revision: parameters.Revision}
	}
	if parameters.Limits.StackDepth < 0 || uint64(parameters.Limits.StackDepth) != params.StackLimit {
		return tosca.Result{}, fmt.Errorf("unsupported stack limit %d, geth only supports %d", parameters.Limits.StackDepth, params.StackLimit)
	}
	if parameters.Gas < 0 {
		return tosca.Result{}, fmt.Errorf("invalid gas limit %d", parameters.Gas)
	}
	if parameters.Context == nil {
		return tosca.Result{}, tosca.ErrMissingRunContext
	}

	state := newSubstate(parameters.Context)
	tracker := &exitTracker{memoryLimit: parameters.Limits.MemorySize}
	evm, contract, err := createGethInterpreterContext(parameters, state, tracker)
	if err != nil {
		return tosca.Result{}, err
	}

	output, err := evm.Interpreter().Run(contract, parameters.Input, false)

	reason := tracker.exitReason(err)
	switch {
	case reason.IsSucceed():
		return tosca.Result{
			Reason:  reason,
			Output:  output,
			GasLeft: tosca.Gas(contract.Gas),
			Changes: state.changes(),
			Logs:    state.getLogs(),
		}, nil
	case reason.IsRevert():
		// A revert returns the unused gas and the revert data, but no changes.
		return tosca.Result{
			Reason:  reason,
			Output:  output,
			GasLeft: tosca.Gas(contract.Gas),
		}, nil
	default:
		// All other issues consume all gas and discard all changes.
		return tosca.Result{Reason: reason}, nil
	}
}

// exitTracker observes the execution of the top-level code to refine the
// exit reason of successful runs and to enforce the memory limit.
type exitTracker struct {
	lastOp         geth.OpCode
	memoryLimit    int
	memoryExceeded bool
	// pendingMemory holds, per call depth, the memory size required by the
	// instruction most recently started at that depth.
	pendingMemory []uint64
}

func (t *exitTracker) hooks() *tracing.Hooks {
	return &tracing.Hooks{
		OnOpcode: t.onOpcode,
		OnExit:   t.onExit,
	}
}

func (t *exitTracker) onOpcode(pc uint64, op byte, gas, cost uint64, scope tracing.OpContext, rData []byte, depth int, err error) {
	if depth == 1 {
		t.lastOp = geth.OpCode(op)
	}
	if t.memoryLimit <= 0 {
		return
	}
	if len(scope.MemoryData()) > t.memoryLimit {
		t.memoryExceeded = true
	}
	for len(t.pendingMemory) <= depth {
		t.pendingMemory = append(t.pendingMemory, 0)
	}
	t.pendingMemory[depth] = requiredMemory(geth.OpCode(op), scope.StackData())
}

// onExit is called when a nested call ends. The depth is the one of the
// caller, the finished code ran one level deeper.
func (t *exitTracker) onExit(depth int, output []byte, gasUsed uint64, err error, reverted bool) {
	t.checkPendingMemory(depth+1, err)
}

// checkPendingMemory accounts for the memory expansion of the last
// instruction run at the given depth, which is not observed by any later
// opcode hook. Expansions of failing instructions never happen.
func (t *exitTracker) checkPendingMemory(depth int, err error) {
	if depth >= len(t.pendingMemory) {
		return
	}
	required := t.pendingMemory[depth]
	t.pendingMemory[depth] = 0
	if err != nil && !errors.Is(err, geth.ErrExecutionReverted) {
		return
	}
	if t.memoryLimit > 0 && required > uint64(t.memoryLimit) {
		t.memoryExceeded = true
	}
}

// requiredMemory computes the memory size, in full words, an instruction
// needs given the stack it is started with. Instructions not touching memory
// or lacking arguments require nothing.
func requiredMemory(op geth.OpCode, stack []uint256.Int) uint64 {
	arg := func(i int) *uint256.Int {
		if i >= len(stack) {
			return nil
		}
		return &stack[len(stack)-1-i]
	}
	region := func(offset *uint256.Int, size uint64) uint64 {
		if offset == nil || size == 0 {
			return 0
		}
		if !offset.IsUint64() {
			return math.MaxUint64
		}
		end, overflow := bits.Add64(offset.Uint64(), size, 0)
		if overflow != 0 || end > math.MaxUint64-31 {
			return math.MaxUint64
		}
		return (end + 31) / 32 * 32
	}
	sized := func(offset, size int) uint64 {
		length := arg(size)
		if length == nil {
			return 0
		}
		if !length.IsUint64() {
			return math.MaxUint64
		}
		return region(arg(offset), length.Uint64())
	}

	switch op {
	case geth.MLOAD, geth.MSTORE:
		return region(arg(0), 32)
	case geth.MSTORE8:
		return region(arg(0), 1)
	case geth.KECCAK256, geth.RETURN, geth.REVERT,
		geth.LOG0, geth.LOG1, geth.LOG2, geth.LOG3, geth.LOG4:
		return sized(0, 1)
	case geth.CALLDATACOPY, geth.CODECOPY, geth.RETURNDATACOPY:
		return sized(0, 2)
	case geth.EXTCODECOPY:
		return sized(1, 3)
	case geth.CREATE, geth.CREATE2:
		return sized(1, 2)
	case geth.CALL, geth.CALLCODE:
		return max(sized(3, 4), sized(5, 6))
	case geth.DELEGATECALL, geth.STATICCALL:
		return max(sized(2, 3), sized(4, 5))
	}
	return 0
}

// exitReason converts the result of a geth interpreter run into an exit reason.
func (t *exitTracker) exitReason(err error) tosca.ExitReason {
	t.checkPendingMemory(1, err)
	if t.memoryExceeded {
		return tosca.ExitMemoryLimit
	}

	// If no error is reported, the execution ended with a STOP, RETURN, or SELFDESTRUCT.
	if err == nil {
		switch t.lastOp {
		case geth.RETURN:
			return tosca.ExitReturned
		case geth.SELFDESTRUCT:
			return tosca.ExitSelfDestructed
		default:
			return tosca.ExitStopped
		}
	}

	var (
		stackOverflow  *geth.ErrStackOverflow
		stackUnderflow *geth.ErrStackUnderflow
		invalidOpCode  *geth.ErrInvalidOpCode
	)
	switch {
	case errors.Is(err, geth.ErrExecutionReverted):
		return tosca.ExitReverted
	case errors.Is(err, geth.ErrOutOfGas),
		errors.Is(err, geth.ErrCodeStoreOutOfGas):
		return tosca.ExitOutOfGas
	case errors.Is(err, geth.ErrDepth):
		return tosca.ExitCallTooDeep
	case errors.Is(err, geth.ErrInsufficientBalance):
		return tosca.ExitOutOfFund
	case errors.Is(err, geth.ErrContractAddressCollision):
		return tosca.ExitCreateCollision
	case errors.Is(err, geth.ErrMaxCodeSizeExceeded):
		return tosca.ExitCreateContractLimit
	case errors.Is(err, geth.ErrInvalidJump):
		return tosca.ExitInvalidJump
	case errors.Is(err, geth.ErrWriteProtection):
		return tosca.ExitWriteProtection
	case errors.Is(err, geth.ErrReturnDataOutOfBounds):
		return tosca.ExitReturnDataOutOfBounds
	case errors.Is(err, geth.ErrGasUintOverflow):
		return tosca.ExitGasUintOverflow
	case errors.Is(err, geth.ErrInvalidCode):
		return tosca.ExitInvalidCode
	case errors.As(err, &stackOverflow):
		return tosca.ExitStackOverflow
	case errors.As(err, &stackUnderflow):
		return tosca.ExitStackUnderflow
	case errors.As(err, &invalidOpCode):
		return tosca.ExitInvalidOpCode
	}

	// Any other issue is a failure of the interpreter itself.
	return tosca.ExitFatal
}

// MakeChainConfig returns a chain config activating all fork blocks up to
// the given revision at block zero. Later forks remain disabled.
func MakeChainConfig(revision tosca.Revision) params.ChainConfig {
	chainConfig := params.ChainConfig{ChainID: big.NewInt(1)}
	if revision >= tosca.R01_Homestead {
		chainConfig.HomesteadBlock = big.NewInt(0)
	}
	if revision >= tosca.R02_TangerineWhistle {
		chainConfig.EIP150Block = big.NewInt(0)
	}
	if revision >= tosca.R03_SpuriousDragon {
		chainConfig.EIP155Block = big.NewInt(0)
		chainConfig.EIP158Block = big.NewInt(0)
	}
	if revision >= tosca.R04_Byzantium {
		chainConfig.ByzantiumBlock = big.NewInt(0)
	}
	if revision >= tosca.R05_Constantinople {
		chainConfig.ConstantinopleBlock = big.NewInt(0)
		// Without an explicit Petersburg block, geth treats Constantinople
		// as Petersburg.
		chainConfig.PetersburgBlock = big.NewInt(math.MaxInt64)
	}
	if revision >= tosca.R06_Petersburg {
		chainConfig.PetersburgBlock = big.NewInt(0)
	}
	if revision >= tosca.R07_Istanbul {
		chainConfig.IstanbulBlock = big.NewInt(0)
	}
	return chainConfig
}

func createGethInterpreterContext(parameters tosca.Parameters, state *substate, tracker *exitTracker) (*geth.EVM, *geth.Contract, error) {
	chainConfig := MakeChainConfig(parameters.Revision)

	timestamp := parameters.Timestamp.ToUint256()
	if !timestamp.IsUint64() {
		return nil, nil, fmt.Errorf("timestamp %v exceeds 64-bit range", parameters.Timestamp)
	}
	gasLimit := parameters.GasLimit.ToUint256()
	if !gasLimit.IsUint64() {
		return nil, nil, fmt.Errorf("block gas limit %v exceeds 64-bit range", parameters.GasLimit)
	}

	// Hashing function used in the context for BLOCKHASH instruction
	getHash := func(num uint64) common.Hash {
		return common.Hash(parameters.Context.GetBlockHash(tosca.NewValue(num)))
	}

	blockCtx := geth.BlockContext{
		BlockNumber: parameters.BlockNumber.ToBig(),
		Coinbase:    common.Address(parameters.Coinbase),
		Time:        timestamp.Uint64(),
		Difficulty:  parameters.Difficulty.ToBig(),
		GasLimit:    gasLimit.Uint64(),
		GetHash:     getHash,
		Transfer:    transferFunc,
		CanTransfer: canTransferFunc,
	}

	txCtx := geth.TxContext{
		Origin:   common.Address(parameters.Origin),
		GasPrice: parameters.GasPrice.ToBig(),
	}

	config := geth.Config{Tracer: tracker.hooks()}

	stateDb := &stateDbAdapter{state: state}
	evm := geth.NewEVM(blockCtx, txCtx, stateDb, &chainConfig, config)

	codeHash := crypto.Keccak256Hash(parameters.Code)
	if parameters.CodeHash != nil {
		codeHash = common.Hash(*parameters.CodeHash)
	}

	address := common.Address(parameters.Address)
	contract := geth.NewContract(
		geth.AccountRef(parameters.Caller),
		geth.AccountRef(address),
		parameters.ApparentValue.ToUint256(),
		uint64(parameters.Gas),
	)
	contract.SetCallCode(&address, codeHash, parameters.Code)

	return evm, contract, nil
}
