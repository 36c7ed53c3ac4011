package feed

import (
	"errors"
	"testing"

	"github.com/ianfigueroa/Titan/internal/domain"
	"github.com/ianfigueroa/Titan/pkg/quant"
)

const depthFrame = `{"stream":"btcusdt@depth@100ms","data":{"e":"depthUpdate","E":1700000000100,"T":1700000000099,"s":"BTCUSDT","U":1001,"u":1002,"pu":1000,"b":[["42150.50","0.000"],["42149.00","2.0"]],"a":[["42151.00","1.0"]]}}`

const aggTradeFrame = `{"stream":"btcusdt@aggTrade","data":{"e":"aggTrade","E":1700000000200,"s":"BTCUSDT","a":5550123,"p":"42150.50","q":"1.500","f":9000001,"l":9000003,"T":1700000000199,"m":false}}`

const snapshotBody = `{"lastUpdateId":1000,"E":1700000000000,"bids":[["42150.50","1.5"],["42149.00","2.0"]],"asks":[["42151.00","1.0"],["42152.00","1.5"]]}`

func TestParseStreamEnvelope(t *testing.T) {
	msg, err := ParseStreamEnvelope([]byte(depthFrame))
	if err != nil {
		t.Fatalf("ParseStreamEnvelope: %v", err)
	}
	if msg.Stream != "btcusdt@depth@100ms" {
		t.Errorf("stream = %q", msg.Stream)
	}
	if !IsDepthStream(msg.Stream) || IsAggTradeStream(msg.Stream) {
		t.Error("stream classification wrong")
	}

	if _, err := ParseStreamEnvelope([]byte(`{"data":{}}`)); !errors.Is(err, domain.ErrDecode) {
		t.Errorf("missing stream should be ErrDecode, got %v", err)
	}
	if _, err := ParseStreamEnvelope([]byte(`not json`)); !errors.Is(err, domain.ErrDecode) {
		t.Errorf("garbage should be ErrDecode, got %v", err)
	}
}

func TestParseDepthUpdate(t *testing.T) {
	msg, _ := ParseStreamEnvelope([]byte(depthFrame))

	u, err := ParseDepthUpdate(msg.Data)
	if err != nil {
		t.Fatalf("ParseDepthUpdate: %v", err)
	}

	if u.FirstUpdateID != 1001 || u.FinalUpdateID != 1002 || u.PrevFinalUpdateID != 1000 {
		t.Errorf("ids = %d/%d/%d", u.FirstUpdateID, u.FinalUpdateID, u.PrevFinalUpdateID)
	}
	if len(u.Bids) != 2 || len(u.Asks) != 1 {
		t.Fatalf("levels = %d/%d", len(u.Bids), len(u.Asks))
	}
	if u.Bids[0].Price != quant.MustParse("42150.50") || u.Bids[0].Qty != 0 {
		t.Errorf("bid[0] = %s @ %v; want delete sentinel at 42150.5", u.Bids[0].Price, u.Bids[0].Qty)
	}
	if u.Symbol != "BTCUSDT" || u.EventTime != 1700000000100 {
		t.Errorf("header = %q @ %d", u.Symbol, u.EventTime)
	}
}

func TestParseDepthUpdateInto_ReusesSlices(t *testing.T) {
	msg, _ := ParseStreamEnvelope([]byte(depthFrame))

	u := &domain.DepthUpdate{
		Bids: make([]domain.PriceLevel, 0, 16),
	}
	if err := ParseDepthUpdateInto(msg.Data, u); err != nil {
		t.Fatal(err)
	}
	if cap(u.Bids) != 16 {
		t.Errorf("bid slice capacity not reused: cap = %d", cap(u.Bids))
	}
}

func TestParseDepthUpdate_Rejects(t *testing.T) {
	cases := map[string]string{
		"wrong event type": `{"e":"trade","U":1,"u":2,"pu":0,"b":[],"a":[]}`,
		"bad price":        `{"e":"depthUpdate","U":1,"u":2,"pu":0,"b":[["x","1"]],"a":[]}`,
		"short level":      `{"e":"depthUpdate","U":1,"u":2,"pu":0,"b":[["42150.5"]],"a":[]}`,
		"not json":         `]`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseDepthUpdate([]byte(payload)); !errors.Is(err, domain.ErrDecode) {
				t.Errorf("want ErrDecode, got %v", err)
			}
		})
	}
}

func TestParseAggTrade(t *testing.T) {
	msg, _ := ParseStreamEnvelope([]byte(aggTradeFrame))

	tr, err := ParseAggTrade(msg.Data)
	if err != nil {
		t.Fatalf("ParseAggTrade: %v", err)
	}
	if tr.Price != 42150.50 || tr.Quantity != 1.5 {
		t.Errorf("trade = %v @ %v", tr.Quantity, tr.Price)
	}
	if tr.IsBuyerMaker {
		t.Error("m=false must parse as taker-bought")
	}
	if tr.AggTradeID != 5550123 || tr.FirstTradeID != 9000001 || tr.LastTradeID != 9000003 {
		t.Errorf("ids = %d/%d/%d", tr.AggTradeID, tr.FirstTradeID, tr.LastTradeID)
	}
}

func TestParseDepthSnapshot(t *testing.T) {
	snap, err := ParseDepthSnapshot([]byte(snapshotBody), "BTCUSDT")
	if err != nil {
		t.Fatalf("ParseDepthSnapshot: %v", err)
	}
	if snap.LastUpdateID != 1000 {
		t.Errorf("lastUpdateId = %d", snap.LastUpdateID)
	}
	if len(snap.Bids) != 2 || len(snap.Asks) != 2 {
		t.Errorf("levels = %d/%d", len(snap.Bids), len(snap.Asks))
	}
	if snap.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %q", snap.Symbol)
	}

	if _, err := ParseDepthSnapshot([]byte(`{"bids":[],"asks":[]}`), "X"); !errors.Is(err, domain.ErrDecode) {
		t.Errorf("missing lastUpdateId should be ErrDecode, got %v", err)
	}
}

func TestEndpoints(t *testing.T) {
	if got := StreamURL("fstream.binance.com", "443", "BTCUSDT"); got !=
		"wss://fstream.binance.com:443/stream?streams=btcusdt@depth@100ms/btcusdt@aggTrade" {
		t.Errorf("StreamURL = %q", got)
	}
	if got := DepthURL("fapi.binance.com", "443", "btcusdt", 1000); got !=
		"https://fapi.binance.com:443/fapi/v1/depth?symbol=BTCUSDT&limit=1000" {
		t.Errorf("DepthURL = %q", got)
	}
}

// FuzzParseDepthUpdate checks the decoder never panics on arbitrary bytes.
func FuzzParseDepthUpdate(f *testing.F) {
	f.Add([]byte(depthFrame))
	f.Add([]byte(`{"e":"depthUpdate"}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(``))

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = ParseDepthUpdate(data)
		_, _ = ParseAggTrade(data)
		_, _ = ParseDepthSnapshot(data, "BTCUSDT")
		_, _ = ParseStreamEnvelope(data)
	})
}
