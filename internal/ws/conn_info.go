package ws

import "time"

type ConnInfo struct {
	ConnID      string
	IP          string
	ConnectedAt time.Time
}
