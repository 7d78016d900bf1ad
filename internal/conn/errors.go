package conn

import "errors"

var (
	ErrTransport        = errors.New("transport failure")
	ErrMalformedMessage = errors.New("malformed inbound message")
	ErrClosed           = errors.New("connection closed")
	ErrAlreadyOpen      = errors.New("connection already open")
	ErrBufferFull       = errors.New("send buffer full")
	ErrBufferDropped    = errors.New("buffered messages dropped")
	ErrConnectionLost   = errors.New("connection lost")
)
