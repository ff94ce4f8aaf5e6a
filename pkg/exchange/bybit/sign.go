package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// sign computes the v5 request signature: hex HMAC-SHA256 over
// timestamp + apiKey + recvWindow + payload, where payload is the encoded
// query string for reads and the raw JSON body for writes.
func sign(secret, timestamp, apiKey, recvWindow, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + apiKey + recvWindow + payload))
	return hex.EncodeToString(mac.Sum(nil))
}
