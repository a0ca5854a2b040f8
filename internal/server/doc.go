// Package server implements the TCP server transceivers connect to.
//
// A fixed pool of workers shares one listening socket. Each worker accepts a
// connection, runs the handshake, then reads frames until the device goes
// away, and loops back to accepting. The pool size therefore bounds the
// number of devices served at once.
//
// # Connection Lifecycle
//
//	ACCEPTING -> HANDSHAKING -> STEADY_STATE -> closed -> ACCEPTING
//
// Every connection gets a uuid used as conn_id in logs and error reports.
//
// # Error Policy
//
// Errors never escape a worker. Classify decides the fate of the connection:
//
//	*device.MalformedMessageError   discard the rest of the frame, continue
//	*protocol.DecodeError           continue
//	*device.ProtocolError           continue
//	*dispatch.DeviceError           continue
//	*handshake.HandshakeError       close
//	*handshake.TimeoutError         close
//	EOF, reset, broken pipe         close
//	anything else                   close
//
// All errors are logged with the client id when known and sent to the
// configured report.Reporter. Panics in a worker are recovered, reported and
// only close the affected connection.
//
// # Shutdown
//
// On SIGINT or SIGTERM the listener is closed, active connections are
// closed, workers are awaited (bounded by ShutdownTimeout) and the status
// store is marked offline.
//
// # Usage Example
//
//	srv := server.New(&server.Config{Port: 44999, Concurrency: 10}, server.Deps{
//	    Logger:   logger,
//	    Reporter: reporter,
//	    Registry: registry,
//	    Sink:     events,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
package server
