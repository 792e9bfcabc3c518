package middlewares

import (
	"bytes"
	"io"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/broker-engine/internal/http/httputil"
	"github.com/hxuan190/broker-engine/internal/metrics"
)

const (
	HeaderWallet    = "X-Wallet-Address"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
	HeaderNonce     = "X-Nonce"

	walletContextKey = "wallet"

	maxSignedBody = 1 << 20
	maxNonceLen   = 64
)

// SignedMessage is what a client signs: "<unix seconds>.<nonce>.<raw body>".
func SignedMessage(timestamp, nonce string, body []byte) []byte {
	msg := make([]byte, 0, len(timestamp)+len(nonce)+2+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, '.')
	msg = append(msg, nonce...)
	msg = append(msg, '.')
	return append(msg, body...)
}

func reject(c *gin.Context, reason, msg string) {
	metrics.SignatureFailures.WithLabelValues(reason).Inc()
	httputil.Unauthorized(c, msg)
}

// SignatureMiddleware authenticates the request as the wallet in
// X-Wallet-Address with an ed25519 signature over SignedMessage. Timestamps
// further than maxAge from now are rejected, and each wallet nonce is
// accepted once.
func SignatureMiddleware(maxAge time.Duration, nonces *NonceCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, err := solana.PublicKeyFromBase58(c.GetHeader(HeaderWallet))
		if err != nil {
			reject(c, "wallet", "invalid "+HeaderWallet)
			return
		}

		timestamp := c.GetHeader(HeaderTimestamp)
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			reject(c, "timestamp", "invalid "+HeaderTimestamp)
			return
		}
		if drift := time.Since(time.Unix(ts, 0)); drift > maxAge || drift < -maxAge {
			reject(c, "expired", "request timestamp outside the accepted window")
			return
		}

		nonce := c.GetHeader(HeaderNonce)
		if nonce == "" || len(nonce) > maxNonceLen {
			reject(c, "nonce", "invalid "+HeaderNonce)
			return
		}

		sig, err := solana.SignatureFromBase58(c.GetHeader(HeaderSignature))
		if err != nil {
			reject(c, "signature", "invalid "+HeaderSignature)
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSignedBody))
		if err != nil {
			reject(c, "body", "unreadable request body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !sig.Verify(wallet, SignedMessage(timestamp, nonce, body)) {
			reject(c, "mismatch", "signature does not match request")
			return
		}
		if !nonces.Claim(wallet.String() + "|" + nonce) {
			reject(c, "replay", "nonce already used")
			return
		}

		c.Set(walletContextKey, wallet)
		c.Next()
	}
}

// WalletFromContext returns the wallet authenticated by SignatureMiddleware.
func WalletFromContext(c *gin.Context) (solana.PublicKey, bool) {
	v, ok := c.Get(walletContextKey)
	if !ok {
		return solana.PublicKey{}, false
	}
	wallet, ok := v.(solana.PublicKey)
	return wallet, ok
}
