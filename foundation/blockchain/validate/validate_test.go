package validate_test

import (
	"testing"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/signature"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/validate"
)

type model struct {
	Parent  string `json:"parent" validate:"required,hash"`
	Account string `json:"account" validate:"omitempty,eth_addr"`
}

func Test_Check(t *testing.T) {
	if err := validate.Check(model{Parent: signature.ZeroHash}); err != nil {
		t.Fatalf("Should accept a valid model: %s", err)
	}

	err := validate.Check(model{Parent: "0x12", Account: "bill"})
	if !validate.IsFieldErrors(err) {
		t.Fatalf("Should get field errors: %v", err)
	}

	fields := validate.GetFieldErrors(err).Fields()
	if _, exists := fields["parent"]; !exists {
		t.Fatalf("Should report the parent field by json name: %v", fields)
	}
	if _, exists := fields["account"]; !exists {
		t.Fatalf("Should report the account field by json name: %v", fields)
	}
}
