// Package admin serves a small operator HTTP endpoint next to the device
// listener: health, connected sessions, the shared status record and a
// websocket feed of forwarded transponder reads.
package admin
