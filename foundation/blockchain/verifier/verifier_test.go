package verifier_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/database"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/genesis"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/signature"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/verifier"
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

var gen = genesis.Genesis{
	Date:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	ChainID:       1,
	TransPerBlock: 2,
	MaxUncles:     2,
	UncleDepth:    2,
	MiningReward:  700,
}

// provider is a simple in memory provider where the most recently added
// block at a number is canonical.
type provider struct {
	blocks map[string]database.Block
	canon  map[uint64]string
}

func newProvider(blocks ...database.Block) *provider {
	p := provider{
		blocks: make(map[string]database.Block),
		canon:  make(map[uint64]string),
	}
	for _, b := range blocks {
		p.add(b)
	}
	return &p
}

func (p *provider) add(b database.Block) {
	p.blocks[b.ID()] = b
	p.canon[b.Number()] = b.ID()
}

func (p *provider) Block(id string) (database.Block, bool) {
	b, ok := p.blocks[id]
	return b, ok
}

func (p *provider) BlockID(num uint64) (string, bool) {
	id, ok := p.canon[num]
	return id, ok
}

func sign(t *testing.T, chainID uint16, nonce uint64) database.BlockTx {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the private key: %v", failed, err)
	}

	tx, err := database.NewTx(chainID, nonce, fromID, toID, 10, 1, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
	}

	signedTx, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
	}

	return database.NewBlockTx(signedTx, 1, 1)
}

func child(t *testing.T, parent database.Block, ts uint64, trans []database.BlockTx, uncles ...string) database.Block {
	b, err := database.NewBlock(database.NewBlockArgs{
		PrevBlock:     parent,
		BeneficiaryID: toID,
		TimeStamp:     parent.Header.TimeStamp + ts,
		Trans:         trans,
		Uncles:        uncles,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a block: %v", failed, err)
	}
	return b
}

func verify(v *verifier.Verifier, b database.Block, p verifier.Provider) error {
	if err := v.VerifyBasic(b); err != nil {
		return err
	}
	if err := v.VerifyUnordered(b); err != nil {
		return err
	}
	return v.VerifyFamily(b, p)
}

// =============================================================================

func Test_Genesis(t *testing.T) {
	v := verifier.New(gen, nil)
	g := database.GenesisBlock(gen)

	t.Log("Given the need to accept the genesis block.")
	{
		t.Log("\tWhen the provider is empty.")
		{
			if err := verify(v, g, newProvider()); err != nil {
				t.Fatalf("\t%s\tShould accept genesis: %v", failed, err)
			}
			t.Logf("\t%s\tShould accept genesis.", success)
		}

		t.Log("\tWhen the provider already knows the same genesis.")
		{
			if err := verify(v, g, newProvider(g)); err != nil {
				t.Fatalf("\t%s\tShould accept genesis again: %v", failed, err)
			}
			t.Logf("\t%s\tShould accept genesis again.", success)
		}

		t.Log("\tWhen the provider knows a different genesis.")
		{
			other := database.GenesisBlock(genesis.Genesis{Date: gen.Date.Add(time.Hour), ChainID: 1})

			if err := verify(v, g, newProvider(other)); !errors.Is(err, verifier.ErrGenesisMismatch) {
				t.Fatalf("\t%s\tShould reject the genesis: %v", failed, err)
			}
			t.Logf("\t%s\tShould reject the genesis.", success)
		}

		t.Log("\tWhen genesis carries transactions.")
		{
			bad := g
			bad.Trans = []database.BlockTx{sign(t, 1, 1)}

			if err := v.VerifyBasic(bad); !errors.Is(err, verifier.ErrGenesisShape) {
				t.Fatalf("\t%s\tShould reject the genesis shape: %v", failed, err)
			}
			t.Logf("\t%s\tShould reject the genesis shape.", success)
		}
	}
}

func Test_Basic(t *testing.T) {
	v := verifier.New(gen, nil)
	g := database.GenesisBlock(gen)

	wrongRoot := child(t, g, 1, []database.BlockTx{sign(t, 1, 1)})
	wrongRoot.Header.TransRoot = signature.Hash("other")

	type table struct {
		name  string
		block database.Block
		exp   error
	}

	tt := []table{
		{name: "too-many-trans", block: child(t, g, 1, []database.BlockTx{sign(t, 1, 1), sign(t, 1, 2), sign(t, 1, 3)}), exp: verifier.ErrTooManyTrans},
		{name: "duplicate-tx", block: child(t, g, 1, []database.BlockTx{sign(t, 1, 1), sign(t, 1, 1)}), exp: verifier.ErrDuplicateTx},
		{name: "wrong-chain", block: child(t, g, 1, []database.BlockTx{sign(t, 2, 1)}), exp: verifier.ErrWrongChain},
		{name: "merkle-root", block: wrongRoot, exp: verifier.ErrTransRoot},
		{name: "too-many-uncles", block: child(t, g, 1, nil, signature.Hash(1), signature.Hash(2), signature.Hash(3)), exp: verifier.ErrTooManyUncles},
		{name: "duplicate-uncle", block: child(t, g, 1, nil, signature.Hash(1), signature.Hash(1)), exp: verifier.ErrDuplicateUncle},
		{name: "parent-as-uncle", block: child(t, g, 1, nil, g.ID()), exp: verifier.ErrUncleIsAncestor},
	}

	t.Log("Given the need to reject structurally invalid blocks.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				err := v.VerifyBasic(tst.block)
				if !errors.Is(err, tst.exp) {
					t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, err)
					t.Logf("\t%s\tTest %d:\texp: %v", failed, testID, tst.exp)
					t.Fatalf("\t%s\tTest %d:\tShould reject the block.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould reject the block.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Unordered(t *testing.T) {
	v := verifier.New(gen, nil)
	g := database.GenesisBlock(gen)

	t.Log("Given the need to check transaction signatures.")
	{
		good := child(t, g, 1, []database.BlockTx{sign(t, 1, 1), sign(t, 1, 2)})
		if err := v.VerifyUnordered(good); err != nil {
			t.Fatalf("\t%s\tShould accept properly signed transactions: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept properly signed transactions.", success)

		tx := sign(t, 1, 1)
		tx.Value = 1_000_000
		tampered := child(t, g, 1, []database.BlockTx{tx})

		if err := v.VerifyUnordered(tampered); !errors.Is(err, verifier.ErrSignature) {
			t.Fatalf("\t%s\tShould reject a tampered transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a tampered transaction.", success)
	}
}

func Test_Family(t *testing.T) {
	v := verifier.New(gen, nil)

	g := database.GenesisBlock(gen)
	b1 := child(t, g, 10, nil)
	b2 := child(t, b1, 10, nil)
	b3 := child(t, b2, 10, nil)

	skip := child(t, b3, 10, nil)
	skip.Header.Number = 5

	orphan := child(t, child(t, g, 99, nil), 10, nil)

	sameTime := child(t, b3, 0, nil)

	p := newProvider(g, b1, b2, b3)

	type table struct {
		name  string
		block database.Block
		exp   error
	}

	tt := []table{
		{name: "next", block: child(t, b3, 10, nil), exp: nil},
		{name: "number-gap", block: skip, exp: verifier.ErrNumberDiscontinuity},
		{name: "unknown-parent", block: orphan, exp: verifier.ErrUnknownParent},
		{name: "timestamp", block: sameTime, exp: verifier.ErrTimestamp},
	}

	t.Log("Given the need to check a block against its parent.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				err := v.VerifyFamily(tst.block, p)
				if !errors.Is(err, tst.exp) {
					t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, err)
					t.Logf("\t%s\tTest %d:\texp: %v", failed, testID, tst.exp)
					t.Fatalf("\t%s\tTest %d:\tShould get the expected result.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get the expected result.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Uncles(t *testing.T) {
	g := database.GenesisBlock(gen)
	b1 := child(t, g, 10, nil)
	side := child(t, g, 20, nil)
	b2 := child(t, b1, 10, nil)

	// includer is a sibling of b2 that already recognizes the side block.
	includer := child(t, b1, 11, nil, side.ID())

	p := newProvider(g, side, b1, includer, b2)

	type table struct {
		name  string
		depth uint64
		block database.Block
		exp   error
	}

	tt := []table{
		{name: "sibling-of-parent", depth: 2, block: child(t, b1, 5, nil, side.ID()), exp: nil},
		{name: "two-back", depth: 2, block: child(t, b2, 10, nil, side.ID()), exp: nil},
		{name: "too-deep", depth: 1, block: child(t, b2, 10, nil, side.ID()), exp: verifier.ErrUncleDepth},
		{name: "unknown", depth: 2, block: child(t, b2, 10, nil, signature.Hash("nope")), exp: verifier.ErrUnknownUncle},
		{name: "ancestor", depth: 2, block: child(t, b2, 10, nil, b1.ID()), exp: verifier.ErrUncleIsAncestor},
		{name: "already-included", depth: 2, block: child(t, includer, 10, nil, side.ID()), exp: verifier.ErrUncleIncluded},
		{name: "own-sibling", depth: 2, block: child(t, b1, 12, nil, b2.ID()), exp: verifier.ErrUncleDepth},
	}

	t.Log("Given the need to check the uncles a block declares.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				g := gen
				g.UncleDepth = tst.depth
				v := verifier.New(g, nil)

				err := verify(v, tst.block, p)
				if !errors.Is(err, tst.exp) {
					t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, err)
					t.Logf("\t%s\tTest %d:\texp: %v", failed, testID, tst.exp)
					t.Fatalf("\t%s\tTest %d:\tShould get the expected result.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get the expected result.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}
