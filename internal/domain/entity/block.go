package entity

import "github.com/ethereum/go-ethereum/common/hexutil"

// BlockHeader is the subset of an eth_getBlockByNumber response the
// controller inspects. BaseFeePerGas is only present on networks that have
// activated the London fee market.
type BlockHeader struct {
	Number        hexutil.Uint64 `json:"number"`
	Hash          string         `json:"hash"`
	ParentHash    string         `json:"parentHash"`
	Timestamp     hexutil.Uint64 `json:"timestamp"`
	BaseFeePerGas *hexutil.Big   `json:"baseFeePerGas,omitempty"`
}

// SupportsEIP1559 reports whether the block advertises a base fee.
func (b BlockHeader) SupportsEIP1559() bool {
	return b.BaseFeePerGas != nil
}
