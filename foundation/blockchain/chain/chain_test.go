package chain_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/chain"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

// block is a minimal chain used to exercise the contracts.
type block struct {
	ParentID string   `json:"parent"`
	Num      uint64   `json:"number"`
	Hash     string   `json:"id"`
	Trans    []string `json:"trans"`
	UncleIDs []string `json:"uncles"`
}

func (b block) Parent() string         { return b.ParentID }
func (b block) Number() uint64         { return b.Num }
func (b block) ID() string             { return b.Hash }
func (b block) Transactions() []string { return b.Trans }
func (b block) Uncles() []string       { return b.UncleIDs }

func (b block) Encode() ([]byte, error) {
	return json.Marshal(b)
}

func decode(data []byte) (block, error) {
	var b block
	if err := json.Unmarshal(data, &b); err != nil {
		return block{}, err
	}
	if b.Hash == "" {
		return block{}, errors.New("missing id")
	}
	return b, nil
}

// provider stores blocks by id and tracks the canonical number index.
type provider struct {
	blocks    map[string]block
	canonical map[uint64]string
}

func newProvider(blocks ...block) *provider {
	p := provider{
		blocks:    make(map[string]block),
		canonical: make(map[uint64]string),
	}
	for _, b := range blocks {
		p.blocks[b.Hash] = b
		p.canonical[b.Num] = b.Hash
	}
	return &p
}

func (p *provider) Block(id string) (block, bool) {
	b, exists := p.blocks[id]
	return b, exists
}

func (p *provider) BlockID(num uint64) (string, bool) {
	id, exists := p.canonical[num]
	return id, exists
}

// fastProvider overrides the derived lookups.
type fastProvider struct {
	*provider
}

func (fp fastProvider) Transactions(id string) ([]string, bool) {
	b, exists := fp.blocks[id]
	if !exists {
		return nil, false
	}
	return slices.Clone(b.Trans), true
}

func (fp fastProvider) Uncles(id string) ([]string, bool) {
	b, exists := fp.blocks[id]
	if !exists {
		return nil, false
	}
	return slices.Clone(b.UncleIDs), true
}

// verifier records the phases it was asked to run and fails the configured
// phase.
type verifier struct {
	mu    sync.Mutex
	fail  chain.Phase
	calls []chain.Phase
}

func (v *verifier) record(phase chain.Phase) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.calls = append(v.calls, phase)
	if v.fail == phase {
		return fmt.Errorf("%s check failed", phase)
	}
	return nil
}

func (v *verifier) VerifyBasic(b block) error {
	if b.Hash == "bad-basic" {
		return errors.New("malformed")
	}
	return v.record(chain.PhaseBasic)
}

func (v *verifier) VerifyUnordered(b block) error {
	return v.record(chain.PhaseUnordered)
}

func (v *verifier) VerifyFamily(b block, p chain.Provider[string, block]) error {
	if err := v.record(chain.PhaseFamily); err != nil {
		return err
	}

	if b.Num == 0 {
		return nil
	}

	parent, exists := p.Block(b.ParentID)
	if !exists {
		return errors.New("unknown parent")
	}
	if b.Num != parent.Num+1 {
		return fmt.Errorf("number discontinuity, got %d, exp %d", b.Num, parent.Num+1)
	}
	return nil
}

func (v *verifier) called(phase chain.Phase) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return slices.Contains(v.calls, phase)
}

// state keeps the ids of enacted blocks and only accepts a single child of
// the latest block.
type state struct {
	mu     sync.Mutex
	blocks []string
}

func (s *state) Enact(b block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.blocks) == 0 {
		if b.Num != 0 {
			return errors.New("expecting genesis")
		}
		s.blocks = append(s.blocks, b.Hash)
		return nil
	}

	if s.blocks[len(s.blocks)-1] != b.ParentID {
		return errors.New("not an extension of the latest block")
	}

	s.blocks = append(s.blocks, b.Hash)
	return nil
}

func (s *state) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.blocks)
}

// observer counts importer outcomes.
type observer struct {
	accepted int
	rejected map[chain.Phase]int
}

func (o *observer) Accepted(number uint64) {
	o.accepted++
}

func (o *observer) Rejected(phase chain.Phase, err error) {
	if o.rejected == nil {
		o.rejected = make(map[chain.Phase]int)
	}
	o.rejected[phase]++
}

func newImporter(t *testing.T, v *verifier, p chain.Provider[string, block], s *state, o *observer) *chain.Importer[string, string, block] {
	imp, err := chain.NewImporter(chain.Config[string, string, block]{
		Chain: chain.Chain[string, string, block]{
			Decode:   decode,
			Verifier: v,
		},
		Provider: p,
		State:    s,
		Observer: o,
		EvHandler: func(v string, args ...any) {
			t.Logf(v, args...)
		},
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct an importer: %v", failed, err)
	}
	return imp
}

var genesis = block{ParentID: "0x0", Num: 0, Hash: "g"}

// =============================================================================

func Test_SequentialGating(t *testing.T) {
	type table struct {
		name       string
		fail       chain.Phase
		expFamily  bool
		expPhase   chain.Phase
		expEnacted int
	}

	tt := []table{
		{name: "accepted", expFamily: true, expEnacted: 1},
		{name: "basic", fail: chain.PhaseBasic, expPhase: chain.PhaseBasic},
		{name: "unordered", fail: chain.PhaseUnordered, expPhase: chain.PhaseUnordered},
		{name: "family", fail: chain.PhaseFamily, expFamily: true, expPhase: chain.PhaseFamily},
	}

	t.Log("Given the need to run verification phases strictly in order.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen the %s case is processed.", testID, tst.name)
				{
					v := verifier{fail: tst.fail}
					s := state{}
					o := observer{}
					imp := newImporter(t, &v, newProvider(), &s, &o)

					err := imp.Process(context.Background(), genesis)

					if tst.expPhase == 0 {
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be able to process the block: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould be able to process the block.", success, testID)
					} else {
						if !chain.IsPhase(err, tst.expPhase) {
							t.Fatalf("\t%s\tTest %d:\tShould get a %s phase error: %v", failed, testID, tst.expPhase, err)
						}
						t.Logf("\t%s\tTest %d:\tShould get a %s phase error.", success, testID, tst.expPhase)

						if o.rejected[tst.expPhase] != 1 {
							t.Fatalf("\t%s\tTest %d:\tShould report the rejection to the observer.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould report the rejection to the observer.", success, testID)
					}

					if v.called(chain.PhaseFamily) != tst.expFamily {
						t.Fatalf("\t%s\tTest %d:\tShould only run family after basic and unordered succeed.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould only run family after basic and unordered succeed.", success, testID)

					if got := len(s.snapshot()); got != tst.expEnacted {
						t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, got)
						t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, tst.expEnacted)
						t.Fatalf("\t%s\tTest %d:\tShould enact only verified blocks.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould enact only verified blocks.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_OutOfOrderPhases(t *testing.T) {
	t.Log("Given the need to refuse phases requested out of order.")
	{
		t.Logf("\tTest 0:\tWhen family is requested on an unverified block.")
		{
			v := verifier{}
			ver := chain.NewVerification[string, block](&v, genesis)

			err := ver.Family(newProvider())
			if !errors.Is(err, chain.ErrOutOfOrder) {
				t.Fatalf("\t%s\tTest 0:\tShould get an out of order error: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get an out of order error.", success)

			if v.called(chain.PhaseFamily) {
				t.Fatalf("\t%s\tTest 0:\tShould not run the family check.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not run the family check.", success)

			if ver.Status() != chain.Unverified {
				t.Fatalf("\t%s\tTest 0:\tShould leave the status untouched, got %s.", failed, ver.Status())
			}
			t.Logf("\t%s\tTest 0:\tShould leave the status untouched.", success)
		}

		t.Logf("\tTest 1:\tWhen a rejected verification is resumed.")
		{
			v := verifier{fail: chain.PhaseBasic}
			ver := chain.NewVerification[string, block](&v, genesis)

			if err := ver.Basic(); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould fail the basic phase.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould fail the basic phase.", success)

			if err := ver.Unordered(); !chain.IsPhase(err, chain.PhaseBasic) {
				t.Fatalf("\t%s\tTest 1:\tShould keep reporting the basic error: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould keep reporting the basic error.", success)

			if ver.Status() != chain.Rejected || ver.Accepted() {
				t.Fatalf("\t%s\tTest 1:\tShould stay rejected, got %s.", failed, ver.Status())
			}
			t.Logf("\t%s\tTest 1:\tShould stay rejected.", success)
		}
	}
}

func Test_FamilyRules(t *testing.T) {
	b1 := block{ParentID: "g", Num: 1, Hash: "b1"}
	b3 := block{ParentID: "b1", Num: 3, Hash: "b3"}

	type table struct {
		name  string
		block block
		ok    bool
	}

	tt := []table{
		{name: "genesis", block: genesis, ok: true},
		{name: "child", block: b1, ok: true},
		{name: "discontinuity", block: block{ParentID: "b3", Num: 5, Hash: "b5"}},
		{name: "unknown-parent", block: block{ParentID: "missing", Num: 2, Hash: "x"}},
	}

	t.Log("Given the need to reject blocks that do not fit their family.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen verifying block %s.", testID, tst.block.Hash)
				{
					ver := chain.NewVerification[string, block](&verifier{}, tst.block)
					err := ver.Run(newProvider(genesis, b1, b3))

					switch {
					case tst.ok && err != nil:
						t.Fatalf("\t%s\tTest %d:\tShould accept the block: %v", failed, testID, err)
					case !tst.ok && !chain.IsPhase(err, chain.PhaseFamily):
						t.Fatalf("\t%s\tTest %d:\tShould reject the block in the family phase: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get the expected family outcome.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_SiblingsEnactOnce(t *testing.T) {
	t.Log("Given two candidate blocks sharing the same parent.")
	{
		v := verifier{}
		s := state{}
		p := newProvider(genesis)
		imp := newImporter(t, &v, p, &s, &observer{})

		if err := s.Enact(genesis); err != nil {
			t.Fatalf("\t%s\tShould be able to enact genesis: %v", failed, err)
		}

		a := block{ParentID: "g", Num: 1, Hash: "a"}
		b := block{ParentID: "g", Num: 1, Hash: "b"}

		for i, err := range imp.Prevalidate(context.Background(), []block{a, b}) {
			if err != nil {
				t.Fatalf("\t%s\tShould prevalidate sibling %d: %v", failed, i, err)
			}
		}
		t.Logf("\t%s\tShould prevalidate both siblings independently.", success)

		if err := imp.Process(context.Background(), a); err != nil {
			t.Fatalf("\t%s\tShould enact the first sibling: %v", failed, err)
		}
		t.Logf("\t%s\tShould enact the first sibling.", success)

		err := imp.Process(context.Background(), b)
		if !chain.IsPhase(err, chain.PhaseEnact) {
			t.Fatalf("\t%s\tShould refuse the second sibling at enact: %v", failed, err)
		}
		t.Logf("\t%s\tShould refuse the second sibling at enact.", success)
	}
}

func Test_Prevalidate(t *testing.T) {
	t.Log("Given a batch of candidate blocks.")
	{
		imp := newImporter(t, &verifier{}, newProvider(), &state{}, &observer{})

		blocks := []block{genesis, {Hash: "bad-basic"}, {ParentID: "g", Num: 1, Hash: "b1"}}
		errs := imp.Prevalidate(context.Background(), blocks)

		if errs[0] != nil || errs[2] != nil {
			t.Fatalf("\t%s\tShould accept the valid blocks: %v", failed, errs)
		}
		t.Logf("\t%s\tShould accept the valid blocks.", success)

		if !chain.IsPhase(errs[1], chain.PhaseBasic) {
			t.Fatalf("\t%s\tShould reject the malformed block in basic: %v", failed, errs[1])
		}
		t.Logf("\t%s\tShould reject the malformed block in basic.", success)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		for _, err := range imp.Prevalidate(ctx, blocks) {
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("\t%s\tShould honor a cancelled context: %v", failed, err)
			}
		}
		t.Logf("\t%s\tShould honor a cancelled context.", success)
	}
}

func Test_ProcessBatch(t *testing.T) {
	t.Log("Given a batch of blocks to import in order.")
	{
		b1 := block{ParentID: "g", Num: 1, Hash: "b1"}

		s := state{}
		o := observer{}
		imp := newImporter(t, &verifier{}, newProvider(genesis, b1), &s, &o)

		errs := imp.ProcessBatch(context.Background(), []block{genesis, {Hash: "bad-basic"}, b1})

		if errs[0] != nil || errs[2] != nil {
			t.Fatalf("\t%s\tShould enact the valid blocks: %v", failed, errs)
		}
		if !chain.IsPhase(errs[1], chain.PhaseBasic) {
			t.Fatalf("\t%s\tShould reject the malformed block in basic: %v", failed, errs[1])
		}
		t.Logf("\t%s\tShould report the outcome of every block.", success)

		if got := s.snapshot(); !slices.Equal(got, []string{"g", "b1"}) {
			t.Fatalf("\t%s\tShould enact the valid blocks in order, got %v.", failed, got)
		}
		t.Logf("\t%s\tShould enact the valid blocks in order.", success)

		if o.accepted != 2 || o.rejected[chain.PhaseBasic] != 1 {
			t.Fatalf("\t%s\tShould notify the observer, got %d accepted %v rejected.", failed, o.accepted, o.rejected)
		}
		t.Logf("\t%s\tShould notify the observer.", success)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		b2 := block{ParentID: "b1", Num: 2, Hash: "b2"}
		for _, err := range imp.ProcessBatch(ctx, []block{b2, {Hash: "bad-basic"}}) {
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("\t%s\tShould honor a cancelled context: %v", failed, err)
			}
		}
		if len(s.snapshot()) != 2 {
			t.Fatalf("\t%s\tShould not enact blocks of a cancelled batch.", failed)
		}
		if o.accepted != 2 || len(o.rejected) != 1 || o.rejected[chain.PhaseBasic] != 1 {
			t.Fatalf("\t%s\tShould not report a cancelled batch as rejected, got %v.", failed, o.rejected)
		}
		t.Logf("\t%s\tShould not report a cancelled batch as rejected.", success)
	}
}

func Test_Import(t *testing.T) {
	t.Log("Given the need to import raw block bytes.")
	{
		s := state{}
		o := observer{}
		imp := newImporter(t, &verifier{}, newProvider(), &s, &o)

		if _, err := imp.Import(context.Background(), []byte("{corrupt")); !chain.IsPhase(err, chain.PhaseDecode) {
			t.Fatalf("\t%s\tShould reject corrupt bytes at decode: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject corrupt bytes at decode.", success)

		data, err := genesis.Encode()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode the block: %v", failed, err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := imp.Import(ctx, data); !errors.Is(err, context.Canceled) {
			t.Fatalf("\t%s\tShould not enact after cancellation: %v", failed, err)
		}
		if len(s.snapshot()) != 0 {
			t.Fatalf("\t%s\tShould leave the state untouched after cancellation.", failed)
		}
		t.Logf("\t%s\tShould not enact after cancellation.", success)

		got, err := imp.Import(context.Background(), data)
		if err != nil {
			t.Fatalf("\t%s\tShould import the block: %v", failed, err)
		}
		t.Logf("\t%s\tShould import the block.", success)

		if got.Hash != genesis.Hash || got.Num != genesis.Num || got.ParentID != genesis.ParentID {
			t.Logf("\t%s\tgot: %+v", failed, got)
			t.Logf("\t%s\texp: %+v", failed, genesis)
			t.Fatalf("\t%s\tShould round trip the block.", failed)
		}
		t.Logf("\t%s\tShould round trip the block.", success)

		if o.accepted != 1 {
			t.Fatalf("\t%s\tShould report the accepted block, got %d.", failed, o.accepted)
		}
		t.Logf("\t%s\tShould report the accepted block.", success)
	}
}

func Test_DerivedLookups(t *testing.T) {
	b1 := block{ParentID: "g", Num: 1, Hash: "b1", Trans: []string{"t1", "t2"}, UncleIDs: []string{"u1"}}
	base := newProvider(genesis, b1)

	providers := map[string]chain.Provider[string, block]{
		"derived":  base,
		"override": fastProvider{provider: base},
	}

	t.Log("Given the need for derived lookups to agree with the block lookup.")
	{
		for name, p := range providers {
			f := func(t *testing.T) {
				for _, id := range []string{"g", "b1", "missing"} {
					b, exists := p.Block(id)

					trans, ok := chain.Transactions[string, string, block](p, id)
					if ok != exists || (exists && !slices.Equal(trans, b.Transactions())) {
						t.Fatalf("\t%s\t%s:\tShould get consistent transactions for %s.", failed, name, id)
					}

					uncles, ok := chain.Uncles[string, string, block](p, id)
					if ok != exists || (exists && !slices.Equal(uncles, b.Uncles())) {
						t.Fatalf("\t%s\t%s:\tShould get consistent uncles for %s.", failed, name, id)
					}
				}
				t.Logf("\t%s\t%s:\tShould get consistent derived lookups.", success, name)

				trans, _ := chain.Transactions[string, string, block](p, "b1")
				trans[0] = "changed"
				if b, _ := p.Block("b1"); b.Trans[0] != "t1" {
					t.Fatalf("\t%s\t%s:\tShould return independent copies.", failed, name)
				}
				t.Logf("\t%s\t%s:\tShould return independent copies.", success, name)
			}

			t.Run(name, f)
		}
	}
}
