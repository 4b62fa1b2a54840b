package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/vault-ledger/internal/amount"
	"github.com/atmx/vault-ledger/internal/event"
	"github.com/atmx/vault-ledger/internal/ident"
	"github.com/atmx/vault-ledger/internal/ledger"
	"github.com/atmx/vault-ledger/internal/model"
)

var (
	account = ident.MustAddress("0x00000000000000000000000000000000000000a1")
	vault   = ident.MustAddress("0x00000000000000000000000000000000000000f1")
)

func result() ledger.Result {
	ev := ident.EventKey{TxHash: "0x" + strings.Repeat("ab", 32), LogIndex: 3}
	pos := ident.PositionKey{Account: account, Vault: vault}
	return ledger.Result{
		Event: ev,
		Kind:  event.KindTransfer,
		Positions: []model.PositionSnapshot{
			{Key: ident.SnapshotKey{Position: pos, Order: 4}, Kind: model.PositionTransferOut, SharesDelta: amount.New(10)},
			{Key: ident.SnapshotKey{Position: pos, Order: 5}, Kind: model.PositionTransferIn, SharesDelta: amount.New(10)},
		},
		Vault:        &model.VaultSnapshot{Key: ident.VaultSnapshotKey{Vault: vault, TxHash: ev.TxHash}},
		ReportResult: &model.ReportResult{},
		Transfer:     &model.Transfer{Event: ev, IsProtocolFee: true, Category: model.FeeTreasury},
	}
}

func TestMessages(t *testing.T) {
	msgs := Messages(result())

	var types []string
	for _, m := range msgs {
		types = append(types, m.Type)
		assert.Equal(t, "0x"+strings.Repeat("ab", 32)+"#3", m.Event)
	}
	assert.Equal(t, []string{
		TypePositionSnapshot, TypePositionSnapshot, TypeVaultSnapshot, TypeReportResult, TypeFeeTransfer,
	}, types)

	dup := result()
	dup.Duplicate = true
	assert.Empty(t, Messages(dup))
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	h := NewHub(1)
	h.Broadcast(Message{Type: TypeVaultSnapshot})
	h.Broadcast(Message{Type: TypeVaultSnapshot})
	assert.Len(t, h.broadcast, 1)
}

func TestHubDeliversToClients(t *testing.T) {
	h := NewHub(16)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(stopped)
	}()

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)

	h.Publish(result())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, TypePositionSnapshot, got.Type)

	var snap model.PositionSnapshot
	require.NoError(t, json.Unmarshal(got.Data, &snap))
	assert.Equal(t, uint64(4), snap.Key.Order)

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Zero(t, h.Clients())
}
