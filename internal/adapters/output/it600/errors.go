package it600

import "errors"

var (
	// ErrAuthentication means the gateway answered with something the
	// EUID-derived key cannot decrypt.
	ErrAuthentication  = errors.New("it600: cannot decrypt gateway response, check the EUID")
	ErrCommandRejected = errors.New("it600: gateway rejected the request")
	ErrNoGateway       = errors.New("it600: no gateway in device listing")
	ErrClosed          = errors.New("it600: session closed")
)
