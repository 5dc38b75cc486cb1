// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package jsontests

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/Fantom-foundation/vmtests/go/tosca"
	"go.uber.org/mock/gomock"
)

func TestRecord_SuccessfulRunsAreRecordedAsExpectations(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := tosca.NewMockInterpreter(ctrl)
	f := newTestFixture(0x00)
	address := f.Transaction.Address

	interpreter.EXPECT().Run(gomock.Any()).Return(tosca.Result{
		Reason:  tosca.ExitReturned,
		Output:  tosca.Data{1, 2},
		GasLeft: 77,
		Changes: []tosca.Change{{
			Address: address,
			Balance: tosca.NewValue(1000),
			Storage: map[tosca.Key]tosca.Word{{1}: {2}, {2}: {}},
		}},
		Logs: []tosca.Log{{Address: address, Data: tosca.Data{1}}},
	}, nil).Times(3)

	recorded, outcome, err := Record(f, DefaultConfig(interpreter))
	if err != nil {
		t.Fatalf("failed to record fixture: %v", err)
	}
	if f.Expected != nil {
		t.Errorf("input fixture got modified")
	}
	if recorded.ExpectsFailure() {
		t.Fatalf("recorded fixture should expect a success")
	}
	expected := recorded.Expected
	if want, got := []byte{1, 2}, expected.Output; !bytes.Equal(want, got) {
		t.Errorf("unexpected output, wanted %x, got %x", want, got)
	}
	if want, got := uint64(77), expected.GasLeft.Big().Uint64(); want != got {
		t.Errorf("unexpected gas left, wanted %d, got %d", want, got)
	}
	if want, got := 1, len(expected.Post[address].Storage); want != got {
		t.Errorf("unexpected number of slots, wanted %d, got %d", want, got)
	}
	if err := Verify(recorded, outcome); err != nil {
		t.Errorf("recorded fixture does not accept its own outcome: %v", err)
	}

	verdict := RunFixture(recorded, DefaultConfig(interpreter))
	if !verdict.Passed() {
		t.Errorf("recorded fixture does not pass: %v", verdict.Err)
	}
}

func TestRecord_FailingRunsAreRecordedAsFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := tosca.NewMockInterpreter(ctrl)
	interpreter.EXPECT().Run(gomock.Any()).Return(tosca.Result{Reason: tosca.ExitStackUnderflow}, nil).Times(2)

	recorded, outcome, err := Record(newSuccessFixture(), DefaultConfig(interpreter))
	if err != nil {
		t.Fatalf("failed to record fixture: %v", err)
	}
	if !recorded.ExpectsFailure() {
		t.Errorf("recorded fixture should expect a failure")
	}
	if err := Verify(recorded, outcome); err != nil {
		t.Errorf("recorded fixture does not accept its own outcome: %v", err)
	}
}

func TestRecord_RevertsAreRecordedAsExpectations(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := tosca.NewMockInterpreter(ctrl)
	interpreter.EXPECT().Run(gomock.Any()).Return(tosca.Result{Reason: tosca.ExitReverted, GasLeft: 5}, nil).Times(2)

	recorded, outcome, err := Record(newTestFixture(0x00), DefaultConfig(interpreter))
	if err != nil {
		t.Fatalf("failed to record fixture: %v", err)
	}
	if recorded.ExpectsFailure() {
		t.Fatalf("reverts should be recorded as expectations")
	}
	if want, got := 0, len(recorded.Expected.Output); want != got {
		t.Errorf("unexpected output length, wanted %d, got %d", want, got)
	}
	if err := Verify(recorded, outcome); err != nil {
		t.Errorf("recorded fixture does not accept its own outcome: %v", err)
	}
}

func TestRecord_NonDeterministicRunsAreRejected(t *testing.T) {
	address := tosca.Address{0x0f}
	tests := map[string]struct {
		second tosca.Result
		want   string
	}{
		"different gas": {
			second: tosca.Result{Reason: tosca.ExitStopped, GasLeft: 6},
			want:   "non-deterministic result",
		},
		"different state": {
			second: tosca.Result{
				Reason:  tosca.ExitStopped,
				GasLeft: 5,
				Changes: []tosca.Change{{
					Address: address,
					Balance: tosca.NewValue(1000),
					Storage: map[tosca.Key]tosca.Word{{1}: {2}},
				}},
			},
			want: "non-deterministic post state",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			interpreter := tosca.NewMockInterpreter(ctrl)
			gomock.InOrder(
				interpreter.EXPECT().Run(gomock.Any()).Return(tosca.Result{Reason: tosca.ExitStopped, GasLeft: 5}, nil),
				interpreter.EXPECT().Run(gomock.Any()).Return(test.second, nil),
			)

			_, _, err := Record(newTestFixture(0x00), DefaultConfig(interpreter))
			var executionError *ExecutionError
			if !errors.As(err, &executionError) {
				t.Fatalf("expected execution error, got %v", err)
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not mention %q", err, test.want)
			}
		})
	}
}
