// Package database provides the blocks and transactions of the reference
// chain along with the byte codec used to store and transmit them.
package database

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/genesis"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/merkle"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/signature"
)

// Set of errors returned when decoding blocks.
var (
	ErrMalformedBlock = errors.New("malformed block data")
	ErrHashMismatch   = errors.New("block hash does not match its content")
)

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number        uint64    `json:"number"`                                          // Ethereum: Block number in the chain.
	PrevBlockHash string    `json:"prev_block_hash" validate:"required,hash"`        // Bitcoin: Hash of the previous block in the chain.
	TimeStamp     uint64    `json:"timestamp"`                                       // Bitcoin: Time the block was produced in milliseconds.
	BeneficiaryID AccountID `json:"beneficiary" validate:"omitempty,eth_addr"`       // Ethereum: The account who is receiving fees and tips.
	TransRoot     string    `json:"trans_root" validate:"required,hash"`             // Bitcoin/Ethereum: Merkle root of the transactions in this block.
	Uncles        []string  `json:"uncles,omitempty" validate:"omitempty,dive,hash"` // Ethereum: Hashes of the uncles this block recognizes.
}

// Block represents a group of transactions batched together. A block is
// never modified after construction.
type Block struct {
	Header BlockHeader
	Trans  []BlockTx
}

// NewBlockArgs represents the set of arguments required to build a block
// on top of a parent.
type NewBlockArgs struct {
	PrevBlock     Block
	BeneficiaryID AccountID
	TimeStamp     uint64
	Trans         []BlockTx
	Uncles        []string
}

// NewBlock constructs the child of the specified parent block.
func NewBlock(args NewBlockArgs) (Block, error) {
	root, err := TransRoot(args.Trans)
	if err != nil {
		return Block{}, err
	}

	b := Block{
		Header: BlockHeader{
			Number:        args.PrevBlock.Header.Number + 1,
			PrevBlockHash: args.PrevBlock.Hash(),
			TimeStamp:     args.TimeStamp,
			BeneficiaryID: args.BeneficiaryID,
			TransRoot:     root,
			Uncles:        append([]string(nil), args.Uncles...),
		},
		Trans: append([]BlockTx(nil), args.Trans...),
	}

	return b, nil
}

// GenesisBlock constructs block zero for the specified genesis.
func GenesisBlock(g genesis.Genesis) Block {
	var ts uint64
	if !g.Date.IsZero() {
		ts = uint64(g.Date.UTC().UnixMilli())
	}

	return Block{
		Header: BlockHeader{
			Number:        0,
			PrevBlockHash: signature.ZeroHash,
			TimeStamp:     ts,
			TransRoot:     signature.ZeroHash,
		},
	}
}

// TransRoot returns the merkle root for the transactions. A block without
// transactions uses the zero hash.
func TransRoot(trans []BlockTx) (string, error) {
	if len(trans) == 0 {
		return signature.ZeroHash, nil
	}

	tree, err := merkle.NewTree(trans)
	if err != nil {
		return "", err
	}

	return tree.RootHex(), nil
}

// Hash returns the unique hash for the Block. Only the header is hashed
// since the header commits to the transactions through the merkle root.
func (b Block) Hash() string {
	return signature.Hash(b.Header)
}

// ID implements the chain Block interface.
func (b Block) ID() string {
	return b.Hash()
}

// Parent implements the chain Block interface.
func (b Block) Parent() string {
	return b.Header.PrevBlockHash
}

// Number implements the chain Block interface.
func (b Block) Number() uint64 {
	return b.Header.Number
}

// Transactions implements the chain Block interface.
func (b Block) Transactions() []BlockTx {
	return b.Trans
}

// Uncles implements the chain UncleBlock interface.
func (b Block) Uncles() []string {
	return b.Header.Uncles
}

// Encode implements the chain Codec interface.
func (b Block) Encode() ([]byte, error) {
	return json.Marshal(NewBlockData(b))
}

// =============================================================================

// BlockData represents what is serialized to storage and the network.
type BlockData struct {
	Hash   string      `json:"hash"`
	Header BlockHeader `json:"block"`
	Trans  []BlockTx   `json:"trans"`
}

// NewBlockData constructs the value to serialize.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Hash:   block.Hash(),
		Header: block.Header,
		Trans:  block.Trans,
	}
}

// ToBlock converts the serialized value into a Block, checking the stored
// hash matches the content.
func ToBlock(blockData BlockData) (Block, error) {
	if blockData.Hash == "" || blockData.Header.PrevBlockHash == "" {
		return Block{}, fmt.Errorf("%w: missing hash or header", ErrMalformedBlock)
	}

	b := Block{
		Header: blockData.Header,
		Trans:  blockData.Trans,
	}

	if hash := b.Hash(); hash != blockData.Hash {
		return Block{}, fmt.Errorf("%w: got %s, exp %s", ErrHashMismatch, hash, blockData.Hash)
	}

	return b, nil
}

// Decode converts raw bytes produced by Encode back into a block.
func Decode(data []byte) (Block, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var blockData BlockData
	if err := dec.Decode(&blockData); err != nil {
		return Block{}, fmt.Errorf("%w: %s", ErrMalformedBlock, err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Block{}, fmt.Errorf("%w: trailing data", ErrMalformedBlock)
	}

	return ToBlock(blockData)
}
