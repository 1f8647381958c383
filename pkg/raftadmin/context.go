package raftadmin

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/raftkv/pkg/rpc"
)

// EncodeAddress serializes a NodeAddressWire into the ConfChangeRequest
// Context bytes a join RPC carries. Exported for clients building the
// request.
func EncodeAddress(addr rpc.NodeAddressWire) []byte {
	data, err := json.Marshal(addr)
	if err != nil {
		panic(fmt.Sprintf("raftadmin: marshal address: %v", err))
	}
	return data
}

func decodeAddress(context []byte) (rpc.NodeAddressWire, error) {
	var addr rpc.NodeAddressWire
	if err := json.Unmarshal(context, &addr); err != nil {
		return rpc.NodeAddressWire{}, fmt.Errorf("raftadmin: unmarshal address: %w", err)
	}
	return addr, nil
}
