// Package x11 reads display outputs from an X server through RandR, for
// running the backend nested inside an existing X session.
package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// Connection holds the X connection and its root window.
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window
}

// NewConnection connects to display (empty means $DISPLAY) and initializes
// the RandR extension.
func NewConnection(display string) (*Connection, error) {
	xu, err := xgbutil.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X display %q: %w", display, err)
	}
	if err := randr.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr init failed: %w", err)
	}
	return &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}, nil
}

// Close disconnects from the X server.
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
