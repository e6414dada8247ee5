package database

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Tx is the transactional information between two parties.
type Tx struct {
	ChainID uint16    `json:"chain_id" validate:"required"` // Ethereum: The chain id that is listed in the genesis file.
	Nonce   uint64    `json:"nonce" validate:"required"`    // Ethereum: Unique id for the transaction supplied by the user.
	FromID  AccountID `json:"from" validate:"required,eth_addr"`
	ToID    AccountID `json:"to" validate:"required,eth_addr"`
	Value   uint64    `json:"value"` // Ethereum: Monetary value received from this transaction.
	Tip     uint64    `json:"tip"`   // Ethereum: Tip offered by the sender as an incentive to include this transaction.
	Data    []byte    `json:"data"`  // Ethereum: Extra data related to the transaction.
}

// NewTx constructs a new transaction.
func NewTx(chainID uint16, nonce uint64, fromID AccountID, toID AccountID, value uint64, tip uint64, data []byte) (Tx, error) {
	if !fromID.IsAccountID() {
		return Tx{}, fmt.Errorf("from account is not properly formatted")
	}
	if !toID.IsAccountID() {
		return Tx{}, fmt.Errorf("to account is not properly formatted")
	}

	tx := Tx{
		ChainID: chainID,
		Nonce:   nonce,
		FromID:  fromID,
		ToID:    toID,
		Value:   value,
		Tip:     tip,
		Data:    data,
	}

	return tx, nil
}

// Sign uses the specified private key to sign the transaction.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {
	if PublicKeyToAccountID(privateKey.PublicKey) != tx.FromID {
		return SignedTx{}, errors.New("signing key does not match the from account")
	}

	v, r, s, err := signature.Sign(tx, privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	signedTx := SignedTx{
		Tx: tx,
		V:  v,
		R:  r,
		S:  s,
	}

	return signedTx, nil
}

// =============================================================================

// SignedTx is a signed version of the transaction.
type SignedTx struct {
	Tx
	V *big.Int `json:"v" validate:"required"` // Recovery identifier, either 29 or 30.
	R *big.Int `json:"r" validate:"required"` // First coordinate of the ECDSA signature.
	S *big.Int `json:"s" validate:"required"` // Second coordinate of the ECDSA signature.
}

// Validate verifies the transaction belongs to the specified chain, has a
// proper signature and was signed by the account it claims to be from.
func (tx SignedTx) Validate(chainID uint16) error {
	if tx.ChainID != chainID {
		return fmt.Errorf("invalid chain id, got %d, exp %d", tx.ChainID, chainID)
	}

	if !tx.ToID.IsAccountID() {
		return errors.New("invalid account for to account")
	}

	if tx.FromID == tx.ToID {
		return fmt.Errorf("sending money to yourself, from %s, to %s", tx.FromID, tx.ToID)
	}

	if err := signature.VerifySignature(tx.V, tx.R, tx.S); err != nil {
		return err
	}

	address, err := signature.FromAddress(tx.Tx, tx.V, tx.R, tx.S)
	if err != nil {
		return err
	}

	if AccountID(address) != tx.FromID {
		return fmt.Errorf("signature does not match the from account, got %s, exp %s", address, tx.FromID)
	}

	return nil
}

// SignatureString returns the signature as a string.
func (tx SignedTx) SignatureString() string {
	return signature.SignatureString(tx.V, tx.R, tx.S)
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s:%d", tx.FromID, tx.Nonce)
}

// =============================================================================

// BlockTx represents the transaction as it's recorded inside a block. This
// includes a timestamp and gas fees.
type BlockTx struct {
	SignedTx
	TimeStamp uint64 `json:"timestamp"` // Ethereum: The time the transaction was received.
	GasPrice  uint64 `json:"gas_price"` // Ethereum: The price of one unit of gas to be paid for fees.
	GasUnits  uint64 `json:"gas_units"` // Ethereum: The number of units of gas used for this transaction.
}

// NewBlockTx constructs a new block transaction.
func NewBlockTx(signedTx SignedTx, gasPrice uint64, unitsOfGas uint64) BlockTx {
	return BlockTx{
		SignedTx:  signedTx,
		TimeStamp: uint64(time.Now().UTC().UnixMilli()),
		GasPrice:  gasPrice,
		GasUnits:  unitsOfGas,
	}
}

// GasFee returns the fee charged to the sender for this transaction.
func (tx BlockTx) GasFee() uint64 {
	return tx.GasPrice * tx.GasUnits
}

// Hash implements the merkle Hashable interface for providing a hash
// of a block transaction.
func (tx BlockTx) Hash() ([]byte, error) {
	return hexutil.Decode(signature.Hash(tx))
}

// Equals implements the merkle Hashable interface for providing an equality
// check between two block transactions. If the sender, nonce and signatures
// are the same, the two transactions are the same.
func (tx BlockTx) Equals(otherTx BlockTx) bool {
	if tx.FromID != otherTx.FromID || tx.Nonce != otherTx.Nonce {
		return false
	}

	return equalInt(tx.V, otherTx.V) && equalInt(tx.R, otherTx.R) && equalInt(tx.S, otherTx.S)
}

// equalInt compares two signature values where either may be missing.
func equalInt(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}
