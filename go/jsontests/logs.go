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
	"github.com/Fantom-foundation/vmtests/go/tosca"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// LogsHash computes the Keccak256 hash of the RLP encoding of the given logs
// in the consensus format of log entries.
func LogsHash(logs []tosca.Log) (tosca.Hash, error) {
	entries := make([]*types.Log, 0, len(logs))
	for _, log := range logs {
		topics := make([]common.Hash, 0, len(log.Topics))
		for _, topic := range log.Topics {
			topics = append(topics, common.Hash(topic))
		}
		entries = append(entries, &types.Log{
			Address: common.Address(log.Address),
			Topics:  topics,
			Data:    log.Data,
		})
	}
	encoded, err := rlp.EncodeToBytes(entries)
	if err != nil {
		return tosca.Hash{}, err
	}
	return tosca.Hash(crypto.Keccak256Hash(encoded)), nil
}
