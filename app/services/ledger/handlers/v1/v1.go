// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/ledger/app/services/ledger/handlers/v1/chaingrp"
	"github.com/ardanlabs/ledger/business/core/ledger"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log  *zap.SugaredLogger
	Core *ledger.Core
	Evts *events.Events
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	cgh := chaingrp.Handlers{
		Log:  cfg.Log,
		Core: cfg.Core,
		Evts: cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", cgh.Events)
	app.Handle(http.MethodGet, version, "/genesis", cgh.Genesis)
	app.Handle(http.MethodGet, version, "/blocks/list", cgh.Blocks)
	app.Handle(http.MethodGet, version, "/blocks/list/:from/:to", cgh.Blocks)
	app.Handle(http.MethodGet, version, "/blocks/:number", cgh.QueryByNumber)
	app.Handle(http.MethodPost, version, "/blocks", cgh.Submit)
	app.Handle(http.MethodPost, version, "/blocks/append", cgh.Append)
	app.Handle(http.MethodGet, version, "/chain/validate", cgh.Validate)
}
