package registry

import "errors"

// ErrNotConnected is returned when an operation references a connection id
// that is not currently registered.
var ErrNotConnected = errors.New("client is not connected")

// closeNormalClosure is the RFC 6455 normal closure status code, duplicated
// here so the registry does not depend on the websocket transport package.
const closeNormalClosure = 1000
