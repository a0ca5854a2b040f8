// Package logging provides structured logging for the chippy server.
//
// The server core receives a *zap.Logger by construction; New builds one at
// a given level. The CLI additionally keeps a process-wide logger set up by
// Initialize, reachable through the Info/Warn/Error helpers.
//
// # Log Levels
//
//   - Debug: wire frames (hex), handshake transitions
//   - Info: connections, completed handshakes, forwarded reads
//   - Warn: recoverable device errors, resyncs, retries
//   - Error: fatal per-connection errors, startup failures
//
// # Structured Fields
//
// Fields used across the server:
//
//	client_id    beacon id learned during the handshake
//	conn_id      per-connection uuid
//	remote_addr  peer address
//	direction    "in" or "out" for frame logs
//
// Example:
//
//	logger.Info("Handshake complete",
//	    zap.Int("client_id", 4991),
//	    zap.String("conn_id", id),
//	)
//
// When CHIPPY_LOG_LEVEL is unset and no level is given, logging is silent.
package logging
