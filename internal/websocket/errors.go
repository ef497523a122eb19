// internal/websocket/errors.go
package websocket

import "errors"

var ErrChannelForbidden = errors.New("channel requires a permission the client lacks")
