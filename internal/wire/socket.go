package wire

import "net"

// SocketBufferSize is the SO_SNDBUF/SO_RCVBUF target for worker
// connections.
const SocketBufferSize = 16 << 20

// TuneWorkerConn applies the socket options spec.md §4.1 calls for.
// Expressed entirely through net.TCPConn's portable accessors rather
// than platform-specific syscalls, per the capability-layer note in
// spec.md §9 — the standard library already exposes exactly these
// knobs, so there is nothing a third-party socket-options package
// would add.
func TuneWorkerConn(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetNoDelay(true); err != nil {
		return err
	}
	if err := tc.SetWriteBuffer(SocketBufferSize); err != nil {
		return err
	}
	if err := tc.SetReadBuffer(SocketBufferSize); err != nil {
		return err
	}
	return nil
}
