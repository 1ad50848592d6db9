package transport

import "sync"

const endpointQueueSize = 64

// LoopbackHub is a shared broadcast medium connecting in-process
// endpoints. Every frame sent by one endpoint is delivered to all others,
// which is how a shared radio channel behaves. Used for simulations and
// multi-node tests.
type LoopbackHub struct {
	mu        sync.Mutex
	endpoints []*LoopbackEndpoint
}

// NewLoopbackHub creates an empty hub.
func NewLoopbackHub() *LoopbackHub {
	return &LoopbackHub{}
}

// Endpoint attaches a new node to the hub.
func (h *LoopbackHub) Endpoint() *LoopbackEndpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	ep := &LoopbackEndpoint{hub: h, inbound: make(chan RxPacket, endpointQueueSize)}
	h.endpoints = append(h.endpoints, ep)
	return ep
}

func (h *LoopbackHub) broadcast(from *LoopbackEndpoint, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ep := range h.endpoints {
		if ep == from {
			continue
		}
		frame := make([]byte, len(data))
		copy(frame, data)
		select {
		case ep.inbound <- RxPacket{Data: frame}:
		default:
			// Receiver queue full; the frame is lost, as on a real
			// lossy medium.
		}
	}
}

// LoopbackEndpoint is one node's attachment to a LoopbackHub.
type LoopbackEndpoint struct {
	hub     *LoopbackHub
	inbound chan RxPacket
}

// Send broadcasts a frame to every other endpoint on the hub.
func (e *LoopbackEndpoint) Send(data []byte) error {
	e.hub.broadcast(e, data)
	return nil
}

// TryReceive returns the next queued inbound frame, if any.
func (e *LoopbackEndpoint) TryReceive() (RxPacket, bool) {
	select {
	case pkt := <-e.inbound:
		return pkt, true
	default:
		return RxPacket{}, false
	}
}
