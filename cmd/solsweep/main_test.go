package main

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/solsweep/service/solana"
)

type fakeAccount struct {
	amount   uint64
	frozen   bool
	lamports uint64
}

// fakeRPC answers the JSON-RPC methods the CLI reads with canned data.
type fakeRPC struct {
	mu       sync.Mutex
	accounts []fakeAccount
	balance  uint64
	methods  []string
}

func newFakeRPC(t *testing.T, balance uint64, accounts ...fakeAccount) (*fakeRPC, *httptest.Server) {
	t.Helper()
	f := &fakeRPC{accounts: accounts, balance: balance}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeRPC) called(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.methods {
		if m == method {
			return true
		}
	}
	return false
}

func (f *fakeRPC) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.methods = append(f.methods, req.Method)
	f.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	switch req.Method {
	case "getProgramAccounts":
		resp["result"] = f.programAccounts()
	case "getBalance":
		resp["result"] = map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value":   f.balance,
		}
	case "getSignaturesForAddress":
		resp["result"] = []interface{}{}
	default:
		resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeRPC) programAccounts() []interface{} {
	out := make([]interface{}, 0, len(f.accounts))
	for _, a := range f.accounts {
		data := make([]byte, solana.TokenAccountSize)
		mint := solanago.NewWallet().PublicKey()
		copy(data[0:32], mint[:])
		binary.LittleEndian.PutUint64(data[64:72], a.amount)
		data[108] = byte(solana.AccountStateInitialized)
		if a.frozen {
			data[108] = byte(solana.AccountStateFrozen)
		}
		lamports := a.lamports
		if lamports == 0 {
			lamports = 2_039_280
		}
		out = append(out, map[string]interface{}{
			"pubkey": solanago.NewWallet().PublicKey().String(),
			"account": map[string]interface{}{
				"lamports":   lamports,
				"owner":      solana.TokenProgramID.String(),
				"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
				"executable": false,
				"rentEpoch":  0,
				"space":      solana.TokenAccountSize,
			},
		})
	}
	return out
}

// isolateEnv keeps the developer's environment out of the CLI under test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SOLSWEEP_CONFIG", "SOLANA_RPC_NODE", "RELAY_URL", "LOG_LEVEL",
		"DATABASE_URL", "NATS_URL", "METRICS_ADDR", "BATCH_SIZE",
		"FLEET_CONCURRENCY", "CONNECT_POLL_INTERVAL", "CONNECT_TIMEOUT",
		"TEMPORAL_HOST", "TEMPORAL_NAMESPACE", "SCAN_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

// runApp runs the CLI with args and returns what it wrote.
func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	isolateEnv(t)

	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"solsweep", "--log-level", "error"}, args...))
	return out.String(), err
}

func decodeJSON(t *testing.T, out string) map[string]interface{} {
	t.Helper()
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}
