package database_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/database"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/genesis"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	fromID   = database.AccountID("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
	toID     = database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
)

func sign(t *testing.T, nonce uint64, value uint64) database.BlockTx {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the private key: %v", failed, err)
	}

	tx, err := database.NewTx(1, nonce, fromID, toID, value, 5, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
	}

	signedTx, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
	}

	return database.NewBlockTx(signedTx, 1, 10)
}

func genesisBlock() database.Block {
	return database.GenesisBlock(genesis.Genesis{
		Date:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ChainID: 1,
	})
}

// =============================================================================

func Test_RoundTrip(t *testing.T) {
	gen := genesisBlock()

	child, err := database.NewBlock(database.NewBlockArgs{
		PrevBlock:     gen,
		BeneficiaryID: toID,
		TimeStamp:     gen.Header.TimeStamp + 1000,
		Trans:         []database.BlockTx{sign(t, 1, 100), sign(t, 2, 50), sign(t, 3, 10)},
		Uncles:        []string{signature.Hash("uncle")},
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a block: %v", failed, err)
	}

	t.Log("Given the need to encode and decode blocks without loss.")
	{
		for testID, block := range []database.Block{gen, child} {
			t.Logf("\tTest %d:\tWhen handling block %d.", testID, block.Number())
			{
				data, err := block.Encode()
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to encode the block: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to encode the block.", success, testID)

				got, err := database.Decode(data)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to decode the block: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to decode the block.", success, testID)

				if got.ID() != block.ID() || got.Parent() != block.Parent() || got.Number() != block.Number() {
					t.Logf("\t%s\tTest %d:\tgot: %s %s %d", failed, testID, got.ID(), got.Parent(), got.Number())
					t.Logf("\t%s\tTest %d:\texp: %s %s %d", failed, testID, block.ID(), block.Parent(), block.Number())
					t.Fatalf("\t%s\tTest %d:\tShould get back the same block.", failed, testID)
				}

				if signature.Hash(got.Transactions()) != signature.Hash(block.Transactions()) {
					t.Fatalf("\t%s\tTest %d:\tShould get back the same transactions.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get back the same block.", success, testID)
			}
		}
	}
}

func Test_DecodeFailures(t *testing.T) {
	gen := genesisBlock()

	good, err := gen.Encode()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to encode the block: %v", failed, err)
	}

	type table struct {
		name string
		data []byte
		exp  error
	}

	tt := []table{
		{name: "empty", data: nil, exp: database.ErrMalformedBlock},
		{name: "garbage", data: []byte("\x00\x01\x02"), exp: database.ErrMalformedBlock},
		{name: "truncated", data: good[:len(good)/2], exp: database.ErrMalformedBlock},
		{name: "trailing", data: append(append([]byte(nil), good...), []byte(`{}`)...), exp: database.ErrMalformedBlock},
		{name: "no-header", data: []byte(`{"hash":"0x00"}`), exp: database.ErrMalformedBlock},
		{name: "unknown-field", data: []byte(`{"hash":"0x00","extra":1}`), exp: database.ErrMalformedBlock},
		{name: "tampered", data: []byte(strings.Replace(string(good), `"number":0`, `"number":9`, 1)), exp: database.ErrHashMismatch},
	}

	t.Log("Given the need to fail cleanly on corrupt bytes.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				_, err := database.Decode(tst.data)
				if !errors.Is(err, tst.exp) {
					t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, err)
					t.Logf("\t%s\tTest %d:\texp: %v", failed, testID, tst.exp)
					t.Fatalf("\t%s\tTest %d:\tShould fail to decode.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould fail to decode.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_NewBlock(t *testing.T) {
	gen := genesisBlock()

	if gen.Parent() != signature.ZeroHash || gen.Number() != 0 {
		t.Fatalf("\t%s\tShould build genesis on the zero hash.", failed)
	}

	b1, err := database.NewBlock(database.NewBlockArgs{PrevBlock: gen, TimeStamp: gen.Header.TimeStamp + 1})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a block: %v", failed, err)
	}

	if b1.Number() != 1 || b1.Parent() != gen.ID() {
		t.Fatalf("\t%s\tShould link the block to its parent.", failed)
	}
	t.Logf("\t%s\tShould link the block to its parent.", success)

	if b1.Header.TransRoot != signature.ZeroHash {
		t.Fatalf("\t%s\tShould use the zero hash for an empty transaction root.", failed)
	}

	tx := sign(t, 1, 10)
	b2, err := database.NewBlock(database.NewBlockArgs{PrevBlock: b1, TimeStamp: b1.Header.TimeStamp + 1, Trans: []database.BlockTx{tx}})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a block: %v", failed, err)
	}

	if b2.ID() == b1.ID() || b2.Header.TransRoot == signature.ZeroHash {
		t.Fatalf("\t%s\tShould commit to the transactions.", failed)
	}
	t.Logf("\t%s\tShould commit to the transactions.", success)

	if err := tx.Validate(1); err != nil {
		t.Fatalf("\t%s\tShould validate the signed transaction: %v", failed, err)
	}
	if err := tx.Validate(2); err == nil {
		t.Fatalf("\t%s\tShould reject a transaction for another chain.", failed)
	}
	t.Logf("\t%s\tShould validate transactions against the chain id.", success)
}
