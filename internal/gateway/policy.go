package gateway

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickConn
)

// Policy decides what happens to a receiver whose send buffer was full
// during a fan-out.
type Policy interface {
	OnBackpressure(event string, c *Conn) BackpressureAction
}

// DropPolicy drops the frame for the slow receiver and keeps the
// connection. Chat history is recoverable on the next join and voice is
// best-effort, so dropping beats disconnecting.
type DropPolicy struct{}

func (DropPolicy) OnBackpressure(string, *Conn) BackpressureAction {
	return DropFrame
}
