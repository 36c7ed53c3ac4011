package feed

import (
	"fmt"
	"net"
	"strings"
)

// Binance USDT-futures endpoints. The stream side wants the lowercase
// symbol, the REST side the uppercase one.

// StreamURL builds the combined-stream WebSocket URL:
// wss://host:port/stream?streams=<sym>@depth@100ms/<sym>@aggTrade
func StreamURL(host, port, symbol string) string {
	sym := strings.ToLower(symbol)
	return fmt.Sprintf("wss://%s/stream?streams=%s@depth@100ms/%s@aggTrade",
		net.JoinHostPort(host, port), sym, sym)
}

// DepthURL builds the REST depth snapshot URL:
// https://host:port/fapi/v1/depth?symbol=<SYM>&limit=<n>
func DepthURL(host, port, symbol string, limit int) string {
	return fmt.Sprintf("https://%s/fapi/v1/depth?symbol=%s&limit=%d",
		net.JoinHostPort(host, port), strings.ToUpper(symbol), limit)
}

// IsDepthStream reports whether a combined-stream name is the depth feed.
func IsDepthStream(stream string) bool {
	return strings.Contains(stream, "@depth")
}

// IsAggTradeStream reports whether a combined-stream name is the trade feed.
func IsAggTradeStream(stream string) bool {
	return strings.Contains(stream, "@aggTrade")
}
