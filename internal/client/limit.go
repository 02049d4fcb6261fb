package client

import "time"

const (
	KB int64 = 1 << 10
	MB int64 = 1 << 20
	GB int64 = 1 << 30
)

// Limit bounds a single outbound request. Zero values mean no limit. Size
// caps the response body and fails fast when exceeded; Time bounds the whole
// round trip.
type Limit struct {
	Size int64
	Time time.Duration
}

// DefaultPeerLimit is the cap applied to routine peer calls.
func DefaultPeerLimit() Limit {
	return Limit{Size: 1 * KB, Time: 3 * time.Second}
}

func (l Limit) WithSize(size int64) Limit {
	l.Size = size
	return l
}

func (l Limit) WithTime(d time.Duration) Limit {
	l.Time = d
	return l
}
