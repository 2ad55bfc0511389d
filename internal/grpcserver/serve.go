package grpcserver

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

const (
	// handshakeTimeout bounds the TLS handshake of an accepted connection.
	handshakeTimeout = 10 * time.Second
	// connIdleTimeout drops a connection with no stream activity.
	connIdleTimeout = 30 * time.Second
)

// Serve accepts connections from ln and serves each one to completion over
// TLS + HTTP/2 before accepting the next. A connection is limited to one
// concurrent stream; per-connection failures are logged and the accept loop
// continues. Serve returns when Accept fails: nil if ln has been closed or
// ctx has been cancelled, the accept error otherwise. Cancelling ctx does not
// by itself interrupt a blocked Accept.
func Serve(ctx context.Context, ln net.Listener, tlsCfg *tls.Config, handler http.Handler) error {
	h2 := &http2.Server{
		MaxConcurrentStreams: 1,
		IdleTimeout:          connIdleTimeout,
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		serveConn(ctx, h2, conn, tlsCfg, handler)
	}
}

// serveConn performs the TLS handshake and drives the HTTP/2 connection
// until it ends, cleanly or not.
func serveConn(ctx context.Context, h2 *http2.Server, conn net.Conn, tlsCfg *tls.Config, handler http.Handler) {
	remote := conn.RemoteAddr()
	tc := tls.Server(conn, tlsCfg)

	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	err := tc.HandshakeContext(hsCtx)
	cancel()
	if err != nil {
		slog.Warn("TLS handshake failed", "remote", remote, "err", err)
		_ = tc.Close()
		return
	}

	slog.Info("client connected", "remote", remote, "alpn", tc.ConnectionState().NegotiatedProtocol)
	h2.ServeConn(tc, &http2.ServeConnOpts{
		Context: ctx,
		Handler: handler,
	})
	slog.Info("client disconnected", "remote", remote)
}
