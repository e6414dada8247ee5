// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/chaintraits/app/services/node/handlers/v1/private"
	"github.com/ardanlabs/chaintraits/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/peer"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/state"
	"github.com/ardanlabs/chaintraits/foundation/events"
	"github.com/ardanlabs/chaintraits/foundation/nameservice"
	"github.com/ardanlabs/chaintraits/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
	Peers *peer.PeerSet
	Host  string
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/accounts/list", pbl.Accounts)
	app.Handle(http.MethodGet, version, "/accounts/list/:account", pbl.Accounts)
	app.Handle(http.MethodGet, version, "/blocks/id/:id", pbl.BlockByID)
	app.Handle(http.MethodGet, version, "/blocks/id/:id/transactions", pbl.Transactions)
	app.Handle(http.MethodGet, version, "/blocks/id/:id/uncles", pbl.Uncles)
	app.Handle(http.MethodGet, version, "/blocks/number/:num", pbl.BlockByNumber)
	app.Handle(http.MethodPost, version, "/blocks", pbl.ImportBlock)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Peers: cfg.Peers,
		Host:  cfg.Host,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodPost, version, "/node/peers", prv.AddPeer)
	app.Handle(http.MethodGet, version, "/node/blocks/list/:from/:to", prv.BlocksByNumber)
	app.Handle(http.MethodPost, version, "/node/blocks/batch", prv.ImportBlocks)
	app.Handle(http.MethodPost, version, "/node/truncate", prv.Truncate)
}
