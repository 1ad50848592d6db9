// Package transport defines the radio collaborator consumed by the mesh
// engine, plus implementations for in-process simulation and MQTT.
package transport

import "errors"

// ErrSendFailed is returned when the underlying medium rejects a frame.
// Packets are not retried automatically; the caller may requeue.
var ErrSendFailed = errors.New("radio send failed")

// RxPacket is a received frame with its link metadata.
type RxPacket struct {
	Data []byte
	RSSI float32
	SNR  float32
}

// RadioTransport is the non-blocking radio collaborator. Send hands a
// serialized packet to the medium; TryReceive polls for the next inbound
// frame and never blocks.
type RadioTransport interface {
	Send(data []byte) error
	TryReceive() (RxPacket, bool)
}
