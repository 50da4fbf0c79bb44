package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/app/services/ledger/handlers"
	"github.com/ardanlabs/ledger/app/services/ledger/handlers/v1/chaingrp"
	"github.com/ardanlabs/ledger/business/core/ledger"
	"github.com/ardanlabs/ledger/business/sys/metrics"
	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type service struct {
	api   http.Handler
	debug http.Handler
	evts  *events.Events
}

func newService(t *testing.T) service {
	t.Helper()

	log := zap.NewNop().Sugar()
	evts := events.New()
	t.Cleanup(evts.Shutdown)

	gen := genesis.Default()
	gen.Difficulty = 1

	db, err := database.New(context.Background(), database.Config{
		Genesis:   gen,
		Storage:   memory.New(),
		Validator: ledger.ValidateTx,
		EvHandler: func(v string, args ...any) { evts.Send(fmt.Sprintf(v, args...)) },
	})
	require.NoError(t, err)

	m := metrics.New()
	require.NoError(t, m.RegisterChain(db.Length))

	core := ledger.NewCore(ledger.Config{
		Log:      log,
		DB:       db,
		Metrics:  m,
		Attempts: 1,
	})

	return service{
		api: handlers.APIMux(handlers.APIMuxConfig{
			Shutdown:   make(chan os.Signal, 1),
			Log:        log,
			Metrics:    m,
			Core:       core,
			Evts:       evts,
			CORSOrigin: "*",
		}),
		debug: handlers.DebugMux("test", log, m, core),
		evts:  evts,
	}
}

func do(t *testing.T, h http.Handler, method string, path string, body any, resp any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, &buf))

	if resp != nil && w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), resp), w.Body.String())
	}

	return w.Code
}

func TestAPI_SubmitAndQuery(t *testing.T) {
	svc := newService(t)

	batch := chaingrp.NewBatch{
		Trans: []chaingrp.NewTx{
			{From: "Alice", To: "Bob", Amount: 50},
			{From: "Bob", To: "Charlie", Amount: 25},
		},
	}

	var created database.BlockData
	require.Equal(t, http.StatusCreated, do(t, svc.api, http.MethodPost, "/v1/blocks", batch, &created))
	assert.Equal(t, uint64(1), created.Header.Number)
	assert.Len(t, created.Trans, 2)
	assert.True(t, strings.HasPrefix(created.Hash, "0x0"))

	var got database.BlockData
	require.Equal(t, http.StatusOK, do(t, svc.api, http.MethodGet, "/v1/blocks/1", nil, &got))
	assert.Equal(t, created, got)

	require.Equal(t, http.StatusOK, do(t, svc.api, http.MethodGet, "/v1/blocks/latest", nil, &got))
	assert.Equal(t, created.Hash, got.Hash)

	var list []database.BlockData
	require.Equal(t, http.StatusOK, do(t, svc.api, http.MethodGet, "/v1/blocks/list", nil, &list))
	require.Len(t, list, 2)
	assert.Equal(t, list[0].Hash, list[1].Header.PrevBlockHash)

	list = nil
	require.Equal(t, http.StatusOK, do(t, svc.api, http.MethodGet, "/v1/blocks/list/1/latest", nil, &list))
	assert.Len(t, list, 1)

	var er errs.Response
	require.Equal(t, http.StatusNotFound, do(t, svc.api, http.MethodGet, "/v1/blocks/9", nil, &er))
	require.Equal(t, http.StatusBadRequest, do(t, svc.api, http.MethodGet, "/v1/blocks/abc", nil, &er))
	require.Equal(t, http.StatusBadRequest, do(t, svc.api, http.MethodGet, "/v1/blocks/list/2/1", nil, &er))

	var val chaingrp.Validation
	require.Equal(t, http.StatusOK, do(t, svc.api, http.MethodGet, "/v1/chain/validate", nil, &val))
	assert.True(t, val.Valid)
	assert.Equal(t, 2, val.Height)
	assert.Nil(t, val.Violation)
}

func TestAPI_Rejections(t *testing.T) {
	svc := newService(t)

	tt := []struct {
		name   string
		body   any
		status int
		field  string
	}{
		{name: "empty", body: chaingrp.NewBatch{}, status: http.StatusBadRequest, field: "trans"},
		{name: "negative", body: chaingrp.NewBatch{Trans: []chaingrp.NewTx{{From: "Alice", To: "Bob", Amount: -1}}}, status: http.StatusBadRequest, field: "amount"},
		{name: "self", body: chaingrp.NewBatch{Trans: []chaingrp.NewTx{{From: "Alice", To: "Alice", Amount: 1}}}, status: http.StatusBadRequest, field: "to"},
		{name: "unknown", body: map[string]any{"transactions": []any{}}, status: http.StatusBadRequest},
	}

	for _, tst := range tt {
		t.Run(tst.name, func(t *testing.T) {
			var er errs.Response
			require.Equal(t, tst.status, do(t, svc.api, http.MethodPost, "/v1/blocks", tst.body, &er))
			if tst.field != "" {
				assert.Contains(t, er.Fields, tst.field)
			}
		})
	}

	var list []database.BlockData
	require.Equal(t, http.StatusOK, do(t, svc.api, http.MethodGet, "/v1/blocks/list", nil, &list))
	assert.Len(t, list, 1)
}

func TestAPI_Append(t *testing.T) {
	svc := newService(t)

	var gen database.BlockData
	require.Equal(t, http.StatusOK, do(t, svc.api, http.MethodGet, "/v1/blocks/0", nil, &gen))

	block, err := database.POW(context.Background(), database.POWArgs{
		Number:        1,
		PrevBlockHash: gen.Hash,
		TimeStamp:     gen.Header.TimeStamp,
		Trans:         []database.Tx{database.NewTx("Alice", "Bob", 9)},
		Difficulty:    1,
	})
	require.NoError(t, err)

	tampered := database.NewBlockData(block)
	tampered.Trans[0].Amount = 90

	var er errs.Response
	require.Equal(t, http.StatusNotAcceptable, do(t, svc.api, http.MethodPost, "/v1/blocks/append", tampered, &er))

	require.Equal(t, http.StatusOK, do(t, svc.api, http.MethodPost, "/v1/blocks/append", database.NewBlockData(block), nil))
	require.Equal(t, http.StatusNotAcceptable, do(t, svc.api, http.MethodPost, "/v1/blocks/append", database.NewBlockData(block), &er))
}

func TestAPI_GenesisAndDebug(t *testing.T) {
	svc := newService(t)

	var gen chaingrp.Genesis
	require.Equal(t, http.StatusOK, do(t, svc.api, http.MethodGet, "/v1/genesis", nil, &gen))
	assert.Equal(t, uint16(1), gen.Difficulty)
	assert.Equal(t, "sha256", gen.HashStrategy)

	require.Equal(t, http.StatusOK, do(t, svc.debug, http.MethodGet, "/debug/readiness", nil, nil))
	require.Equal(t, http.StatusOK, do(t, svc.debug, http.MethodGet, "/debug/liveness", nil, nil))

	w := httptest.NewRecorder()
	svc.debug.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "ledger_chain_height 1")
}

func TestAPI_Events(t *testing.T) {
	svc := newService(t)

	srv := httptest.NewServer(svc.api)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return svc.evts.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	batch := chaingrp.NewBatch{Trans: []chaingrp.NewTx{{From: "Alice", To: "Bob", Amount: 1}}}
	require.Equal(t, http.StatusCreated, do(t, svc.api, http.MethodPost, "/v1/blocks", batch, nil))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(msg), "database: "), string(msg))
}
