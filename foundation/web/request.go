package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/validate"
	"github.com/dimfeld/httptreemux/v5"
)

// Param returns the web call parameters from the request.
func Param(r *http.Request, key string) string {
	m := httptreemux.ContextParams(r.Context())
	return m[key]
}

// Decode reads the body of an HTTP request looking for a JSON document. The
// body is decoded into the provided value.
//
// If the provided value is a struct then it is checked for validation tags.
func Decode(r *http.Request, val any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(val); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if err := validate.Check(val); err != nil {
		return err
	}

	return nil
}

// ReadAll reads the raw body of the request up to the specified limit.
func ReadAll(r *http.Request, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("unable to read payload: %w", err)
	}

	if int64(len(data)) > limit {
		return nil, fmt.Errorf("payload larger than %d bytes", limit)
	}

	return data, nil
}
