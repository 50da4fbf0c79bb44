// Package chaingrp maintains the group of handlers for blockchain access.
package chaingrp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/ledger/business/core/ledger"
	"github.com/ardanlabs/ledger/business/sys/validate"
	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of blockchain endpoints.
type Handlers struct {
	Log  *zap.SugaredLogger
	Core *ledger.Core
	WS   websocket.Upgrader
	Evts *events.Events
}

// Genesis returns the parameters of the chain.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, toGenesis(h.Core.Genesis()), http.StatusOK)
}

// Blocks returns the blocks of the chain between the optional from/to
// numbers. The keyword latest can be used for either value.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.Core.Blocks()
	latest := uint64(len(blocks) - 1)

	from, err := parseNumber(web.Param(r, "from"), 0, latest)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	to, err := parseNumber(web.Param(r, "to"), latest, latest)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if from > to {
		return errs.NewTrusted(errors.New("from greater than to"), http.StatusBadRequest)
	}

	if from > latest {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
	to = min(to, latest)

	blockData := make([]database.BlockData, 0, to-from+1)
	for _, block := range blocks[from : to+1] {
		blockData = append(blockData, database.NewBlockData(block))
	}

	return web.Respond(ctx, w, blockData, http.StatusOK)
}

// QueryByNumber returns a single block.
func (h Handlers) QueryByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := uint64(h.Core.Height() - 1)

	num, err := parseNumber(web.Param(r, "number"), latest, latest)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	block, err := h.Core.QueryByNumber(num)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return fmt.Errorf("query: number[%d]: %w", num, err)
	}

	return web.Respond(ctx, w, database.NewBlockData(block), http.StatusOK)
}

// Submit records a batch of transactions in a new block.
func (h Handlers) Submit(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var nb NewBatch
	if err := web.Decode(r, &nb); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(nb); err != nil {
		return fmt.Errorf("validating data: %w", err)
	}

	h.Log.Infow("submit", "traceid", v.TraceID, "trans", len(nb.Trans))

	block, err := h.Core.Submit(ctx, toDBTrans(nb))
	if err != nil {
		return toTrusted(err)
	}

	return web.Respond(ctx, w, database.NewBlockData(block), http.StatusCreated)
}

// Append admits a block that was mined by another party.
func (h Handlers) Append(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var blockData database.BlockData
	if err := web.Decode(r, &blockData); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("append", "traceid", v.TraceID, "number", blockData.Header.Number, "hash", blockData.Hash)

	if err := h.Core.Append(database.ToBlock(blockData)); err != nil {
		return toTrusted(err)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "accepted",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Validate checks the integrity of the entire chain.
func (h Handlers) Validate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := Validation{
		Valid:  true,
		Height: h.Core.Height(),
	}

	if err := h.Core.Validate(); err != nil {
		ie := database.GetIntegrityError(err)
		if ie == nil {
			return fmt.Errorf("validate: %w", err)
		}

		resp.Valid = false
		resp.Violation = &Violation{
			BlockIndex: ie.BlockIndex,
			Reason:     ie.Reason,
			Detail:     ie.Detail,
		}
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Events handles a web socket to provide chain events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// =============================================================================

// parseNumber converts a block number parameter. An empty value returns the
// default and the keyword latest returns the latest number.
func parseNumber(s string, def uint64, latest uint64) (uint64, error) {
	switch s {
	case "":
		return def, nil
	case "latest":
		return latest, nil
	}

	num, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid block number %q", s)
	}

	return num, nil
}

// toTrusted maps the errors of the ledger to the http status returned.
func toTrusted(err error) error {
	switch {
	case validate.IsFieldErrors(err):
		return err
	case errors.Is(err, database.ErrInvalidTransaction),
		errors.Is(err, database.ErrNoTransactions),
		errors.Is(err, database.ErrBatchTooLarge):
		return errs.NewTrusted(err, http.StatusBadRequest)
	case errors.Is(err, database.ErrInvalidBlock):
		return errs.NewTrusted(err, http.StatusNotAcceptable)
	case errors.Is(err, database.ErrChainCompromised):
		return errs.NewTrusted(err, http.StatusConflict)
	case errors.Is(err, database.ErrPOWTimeout):
		return errs.NewTrusted(err, http.StatusServiceUnavailable)
	}

	return err
}
