package meshcore

// NodeRole values carried in advert appdata (lower 4 bits of flags).
const (
	RoleUnknown  = 0x00
	RoleChat     = 0x01
	RoleRepeater = 0x02
	RoleRoom     = 0x03
	RoleSensor   = 0x04
)

// NodeInfo is a known mesh node, learned from advertisements.
// Two different nodes may share a path hash; entries are disambiguated by
// public key once one is known.
type NodeInfo struct {
	PathHash     byte
	Name         string
	PublicKey    []byte // nil until an advert carrying it is seen
	LastSeen     int64  // engine clock, milliseconds
	AdvertTime   uint32 // unix timestamp from the advert payload
	LastRSSI     float32
	LastSNR      float32
	HopCount     uint8
	Role         uint8
	Verified     bool // advert signature checked out
}

// HasPublicKey reports whether the node's public key has been learned.
func (n *NodeInfo) HasPublicKey() bool { return len(n.PublicKey) > 0 }

// Channel is a named group-messaging context secured by a shared
// symmetric key.
type Channel struct {
	Name         string
	Joined       bool
	Encrypted    bool // key derived from a password rather than the name
	Key          []byte
	LastActivity int64 // engine clock, milliseconds
	Unread       int
}

// IsPublic reports whether this is the well-known default channel.
func (c *Channel) IsPublic() bool { return c.Name == "#Public" }

// ChannelMessage is one received or sent group message. Records are
// append-only; only the Read flag changes after creation.
type ChannelMessage struct {
	Channel      string
	FromHash     byte
	SenderName   string
	SenderPubKey []byte // nil if the sender is unknown
	Signature    []byte // nil if unsigned
	Text         string
	Timestamp    int64  // receipt time, engine clock milliseconds
	PacketID     uint32 // content id of the originating packet
	Read         bool
	Verified     bool
	IsOurs       bool
}

// Message is a received direct text message.
type Message struct {
	FromHash  byte
	Text      string
	Timestamp int64 // receipt time, engine clock milliseconds
	Read      bool
}

// Stats are the engine's packet counters.
type Stats struct {
	Received     uint32
	Transmitted  uint32
	Dropped      uint32 // malformed or oversized wire data
	CryptoFailed uint32 // group messages that failed authentication
	Duplicates   uint32
	Rebroadcasts uint32
}
