package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Instance is a chippy server found on the network.
type Instance struct {
	Name     string
	Hostname string
	IP       string
	Port     int
	Version  string

	// Metadata holds the raw TXT records.
	Metadata map[string]string

	DiscoveredAt time.Time
}

func (i *Instance) String() string {
	return fmt.Sprintf("chippy %s (%s) at %s", i.Name, i.Hostname, i.Addr())
}

// Addr returns host:port for dialing the device listener.
func (i *Instance) Addr() string {
	return net.JoinHostPort(i.IP, strconv.Itoa(i.Port))
}

// GetMetadata retrieves a TXT value by key, or "" if absent.
func (i *Instance) GetMetadata(key string) string {
	if i.Metadata == nil {
		return ""
	}
	return i.Metadata[key]
}
