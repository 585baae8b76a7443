package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/solsweep/service/solana"
	"github.com/brojonat/solsweep/service/temporal"
)

const testWallet = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"

func TestCleanDryRun(t *testing.T) {
	_, srv := newFakeRPC(t, 0,
		fakeAccount{},
		fakeAccount{amount: 1_000_000_000},
		fakeAccount{frozen: true},
	)

	out, err := runApp(t, "", "--rpc", srv.URL, "--json", "clean", "--dry-run", testWallet)
	require.NoError(t, err)

	res := decodeJSON(t, out)
	assert.Equal(t, testWallet, res["wallet"])
	assert.Equal(t, "dry_run", res["mode"])
	assert.Equal(t, true, res["success"])
	assert.EqualValues(t, 3, res["total_accounts"])
	assert.EqualValues(t, 1, res["candidates"])
	assert.EqualValues(t, 2_039_280, res["candidate_rent_lamports"])
}

func TestCleanDryRun_Dust(t *testing.T) {
	_, srv := newFakeRPC(t, 0,
		fakeAccount{},
		fakeAccount{amount: 1_000_000_000},
		fakeAccount{amount: 1_000_000_001},
	)

	out, err := runApp(t, "", "--rpc", srv.URL, "--json", "clean", "--dry-run", "--dust", "1", testWallet)
	require.NoError(t, err)

	res := decodeJSON(t, out)
	assert.EqualValues(t, 2, res["candidates"], "threshold is inclusive")
}

func TestCleanDryRun_MustJQ(t *testing.T) {
	_, srv := newFakeRPC(t, 0,
		fakeAccount{lamports: 2_039_280},
		fakeAccount{lamports: 5_000_000},
	)

	out, err := runApp(t, "", "--rpc", srv.URL, "--json",
		"clean", "--dry-run", "--must-jq", ".rent_lamports > 3000000", testWallet)
	require.NoError(t, err)

	res := decodeJSON(t, out)
	assert.EqualValues(t, 1, res["candidates"])
	assert.EqualValues(t, 5_000_000, res["candidate_rent_lamports"])
}

func TestCleanDryRun_TextOutput(t *testing.T) {
	_, srv := newFakeRPC(t, 0, fakeAccount{}, fakeAccount{})

	out, err := runApp(t, "", "--rpc", srv.URL, "clean", "--dry-run", testWallet)
	require.NoError(t, err)

	assert.Contains(t, out, "Token accounts: 2")
	assert.Contains(t, out, "Closeable: 2 (0.004079 SOL)")
	assert.Contains(t, out, "Dry run: nothing was closed.")
}

func TestCleanDryRun_NothingToClose(t *testing.T) {
	_, srv := newFakeRPC(t, 0, fakeAccount{amount: 10})

	out, err := runApp(t, "", "--rpc", srv.URL, "clean", "--dry-run", testWallet)
	require.NoError(t, err)
	assert.Contains(t, out, "No closeable accounts found.")
}

func TestCleanLocal_DeclinedPromptSendsNothing(t *testing.T) {
	rpc, srv := newFakeRPC(t, 0, fakeAccount{})
	key := solanago.NewWallet().PrivateKey

	out, err := runApp(t, "n\n", "--rpc", srv.URL, "clean", "--keypair", key.String(), key.PublicKey().String())
	require.NoError(t, err)

	assert.Contains(t, out, "Close 1 accounts and reclaim 0.002039 SOL? [y/N]")
	assert.Contains(t, out, "Aborted.")
	assert.False(t, rpc.called("getLatestBlockhash"))
	assert.False(t, rpc.called("sendTransaction"))
}

func TestCleanLocal_KeypairMismatch(t *testing.T) {
	_, srv := newFakeRPC(t, 0, fakeAccount{})
	key := solanago.NewWallet().PrivateKey

	_, err := runApp(t, "", "--rpc", srv.URL, "clean", "--keypair", key.String(), "--yes", testWallet)
	require.Error(t, err)
	assert.ErrorIs(t, err, solana.ErrKeypairMismatch)
}

func TestCleanJSONRequiresYes(t *testing.T) {
	_, srv := newFakeRPC(t, 0, fakeAccount{})
	key := solanago.NewWallet().PrivateKey

	_, err := runApp(t, "", "--rpc", srv.URL, "--json", "clean", "--keypair", key.String(), key.PublicKey().String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes is required")
}

func TestCleanFlagValidation(t *testing.T) {
	_, srv := newFakeRPC(t, 0)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"batch too large", []string{"clean", "--dry-run", "--batch", "21", testWallet}, "--batch must be between 1 and 20"},
		{"batch zero", []string{"clean", "--dry-run", "--batch", "0", testWallet}, "--batch must be between 1 and 20"},
		{"negative dust", []string{"clean", "--dry-run", "--dust", "-1", testWallet}, "--dust must not be negative"},
		{"bad jq", []string{"clean", "--dry-run", "--must-jq", ".[ ", testWallet}, "failed to parse jq filter"},
		{"file with wallet", []string{"clean", "--file", "wallets.csv", testWallet}, "--file cannot be combined"},
		{"bad wallet", []string{"clean", "--dry-run", "not-a-wallet"}, "invalid public key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, "", append([]string{"--rpc", srv.URL}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCleanFleetDryRun(t *testing.T) {
	_, srv := newFakeRPC(t, 0, fakeAccount{}, fakeAccount{amount: 5})

	a := solanago.NewWallet().PrivateKey
	b := solanago.NewWallet().PrivateKey
	path := filepath.Join(t.TempDir(), "wallets.csv")
	content := strings.Join([]string{
		"wallet,private_key",
		a.PublicKey().String() + "," + a.String(),
		"onlyonefield",
		b.PublicKey().String() + "," + b.String(),
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	out, err := runApp(t, "", "--rpc", srv.URL, "--json", "clean", "--file", path, "--dry-run")
	require.NoError(t, err)

	var got struct {
		Results []struct {
			Index      int    `json:"index"`
			Wallet     string `json:"wallet"`
			Candidates int    `json:"candidates"`
			Success    bool   `json:"success"`
		} `json:"results"`
		Totals struct {
			Wallets    int `json:"wallets"`
			Failed     int `json:"failed"`
			Candidates int `json:"candidates"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)

	require.Len(t, got.Results, 2)
	assert.Equal(t, a.PublicKey().String(), got.Results[0].Wallet)
	assert.Equal(t, b.PublicKey().String(), got.Results[1].Wallet)
	for _, r := range got.Results {
		assert.True(t, r.Success)
		assert.Equal(t, 1, r.Candidates)
	}
	assert.Equal(t, 2, got.Totals.Wallets)
	assert.Equal(t, 0, got.Totals.Failed)
	assert.Equal(t, 2, got.Totals.Candidates)
}

func TestCleanFleet_NoValidWallets(t *testing.T) {
	_, srv := newFakeRPC(t, 0)
	path := filepath.Join(t.TempDir(), "wallets.csv")
	require.NoError(t, os.WriteFile(path, []byte("wallet,private_key\nonlyonefield\n"), 0o600))

	_, err := runApp(t, "", "--rpc", srv.URL, "clean", "--file", path, "--dry-run")
	require.Error(t, err)
}

func TestScanCommand(t *testing.T) {
	_, srv := newFakeRPC(t, 2_500_000_000,
		fakeAccount{},
		fakeAccount{},
		fakeAccount{amount: 42},
	)

	out, err := runApp(t, "", "--rpc", srv.URL, "--json", "scan", testWallet)
	require.NoError(t, err)

	report := decodeJSON(t, out)
	assert.Equal(t, testWallet, report["wallet"])
	assert.EqualValues(t, 2_500_000_000, report["balance_lamports"])
	assert.EqualValues(t, 3, report["total_accounts"])
	assert.EqualValues(t, 2, report["empty_accounts"])
	assert.EqualValues(t, 1, report["with_balance"])
	assert.EqualValues(t, 2, report["closeable"])
	assert.EqualValues(t, 3, report["unique_mints"])
}

func TestScanCommand_Text(t *testing.T) {
	_, srv := newFakeRPC(t, 1_000_000_000, fakeAccount{})

	out, err := runApp(t, "", "--rpc", srv.URL, "scan", testWallet)
	require.NoError(t, err)

	assert.Contains(t, out, "Balance: 1.0000 SOL")
	assert.Contains(t, out, "Reclaimable: 0.002039 SOL (1 accounts)")
	assert.Contains(t, out, "solsweep clean "+testWallet)
}

func TestScanCommand_RequiresWallet(t *testing.T) {
	_, err := runApp(t, "", "scan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WALLET argument is required")
}

func TestConnectCommand(t *testing.T) {
	var polls atomic.Int32
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			assert.Equal(t, "connect", r.Header.Get("X-Relay-Mode"))
			_, _ = w.Write([]byte(`{"id":"sess-1"}`))
			return
		}
		assert.Equal(t, "sess-1", r.URL.Query().Get("id"))
		if polls.Add(1) < 2 {
			_, _ = w.Write([]byte(`{"connected":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"connected":true,"wallet":"` + testWallet + `"}`))
	}))
	defer relay.Close()

	out, err := runApp(t, "", "--relay-url", relay.URL, "--json",
		"connect", "--poll-interval", "10ms", "--timeout", "5s")
	require.NoError(t, err)

	assert.Equal(t, testWallet, decodeJSON(t, out)["wallet"])
	assert.Equal(t, int32(2), polls.Load())
}

func TestConnectCommand_ShowsQRCode(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"id":"sess-2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"connected":true,"wallet":"` + testWallet + `"}`))
	}))
	defer relay.Close()

	out, err := runApp(t, "", "--relay-url", relay.URL,
		"connect", "--poll-interval", "10ms", "--timeout", "5s")
	require.NoError(t, err)

	assert.Contains(t, out, "Scan with your wallet to connect")
	assert.Contains(t, out, "URI: solana:")
	assert.Contains(t, out, "sess-2")
	assert.Contains(t, out, "✓ Connected: "+testWallet)
}

func TestConnectCommand_Timeout(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"id":"sess-3"}`))
			return
		}
		_, _ = w.Write([]byte(`{"connected":false}`))
	}))
	defer relay.Close()

	_, err := runApp(t, "", "--relay-url", relay.URL, "--json",
		"connect", "--poll-interval", "10ms", "--timeout", "50ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out waiting for wallet connection")
}

func withMockScheduler(t *testing.T) *temporal.MockScheduler {
	t.Helper()
	mock := temporal.NewMockScheduler()
	orig := newScheduler
	newScheduler = func(*runtime) (temporal.Scheduler, func(), error) {
		return mock, func() {}, nil
	}
	t.Cleanup(func() { newScheduler = orig })
	return mock
}

func TestScheduleAddAndRemove(t *testing.T) {
	mock := withMockScheduler(t)

	out, err := runApp(t, "", "schedule", "add", "--every", "2h", "--dust", "1", testWallet)
	require.NoError(t, err)
	assert.Contains(t, out, "Scanning "+testWallet+" every 2h0m0s")

	sched, ok := mock.Schedule(testWallet)
	require.True(t, ok)
	assert.Equal(t, 2*time.Hour, sched.Interval)
	assert.Equal(t, uint64(1_000_000_000), sched.DustThreshold)

	_, err = runApp(t, "", "schedule", "remove", testWallet)
	require.NoError(t, err)
	_, ok = mock.Schedule(testWallet)
	assert.False(t, ok)
}

func TestScheduleAdd_DefaultInterval(t *testing.T) {
	mock := withMockScheduler(t)

	_, err := runApp(t, "", "schedule", "add", testWallet)
	require.NoError(t, err)

	sched, ok := mock.Schedule(testWallet)
	require.True(t, ok)
	assert.Equal(t, time.Hour, sched.Interval)
	assert.Zero(t, sched.DustThreshold)
}

func TestScheduleAdd_Errors(t *testing.T) {
	mock := withMockScheduler(t)

	_, err := runApp(t, "", "schedule", "add", "--every", "30s", testWallet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 1m")

	mock.SetUpsertError(errors.New("temporal unavailable"))
	_, err = runApp(t, "", "schedule", "add", testWallet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temporal unavailable")

	_, err = runApp(t, "", "schedule", "add", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid public key")
}

func TestHistoryRequiresDatabase(t *testing.T) {
	_, err := runApp(t, "", "history", testWallet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database-url is required")
}

func TestRenderQR(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderQR(&buf, "solana:https%3A%2F%2Frelay.example%2Ftx%3Fid%3Dabc"))

	out := buf.String()
	assert.Greater(t, strings.Count(out, "\n"), 10)
	assert.Contains(t, out, "URI: solana:https%3A%2F%2Frelay.example")
}

func TestPrintTransaction(t *testing.T) {
	var buf bytes.Buffer
	rt := &runtime{out: &buf}
	memo := "rent sweep"
	failure := "InstructionError"

	printTransaction(rt, &solana.Transaction{
		Signature:     "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7",
		BalanceChange: -5000,
		Memo:          &memo,
	})
	printTransaction(rt, &solana.Transaction{
		Signature:     "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7",
		BalanceChange: 2_039_280,
		Err:           &failure,
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "pending ✓")
	assert.Contains(t, lines[0], "-0.000005000 SOL")
	assert.Contains(t, lines[0], `memo="rent sweep"`)
	assert.Contains(t, lines[1], "✗")
	assert.Contains(t, lines[1], "+0.002039 SOL")
	assert.Contains(t, lines[1], "error=InstructionError")
}

func TestSetupLogger(t *testing.T) {
	assert.True(t, setupLogger("debug").Enabled(t.Context(), slog.LevelDebug))
	assert.False(t, setupLogger("warn").Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, setupLogger("bogus").Enabled(t.Context(), slog.LevelInfo))
}
