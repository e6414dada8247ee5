package genesis_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/genesis"
)

func Test_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")

	exp := genesis.Genesis{
		Date:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ChainID:       1,
		TransPerBlock: 10,
		MaxUncles:     2,
		UncleDepth:    6,
		MiningReward:  700,
		Balances:      map[string]uint64{"0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4": 1000},
	}

	if err := genesis.Save(path, exp); err != nil {
		t.Fatalf("Should be able to save the genesis file: %s", err)
	}

	got, err := genesis.Load(path)
	if err != nil {
		t.Fatalf("Should be able to load the genesis file: %s", err)
	}

	if !got.Date.Equal(exp.Date) || got.ChainID != exp.ChainID || got.UncleDepth != exp.UncleDepth || got.Balances["0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"] != 1000 {
		t.Logf("got: %+v", got)
		t.Logf("exp: %+v", exp)
		t.Fatalf("Should get back the same genesis information.")
	}

	if _, err := genesis.Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("Should fail to load a missing genesis file.")
	}
}
