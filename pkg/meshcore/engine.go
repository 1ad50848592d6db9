// Package meshcore implements the mesh networking core: flood routing,
// identity-signed announcements, and encrypted group channels over a
// lossy shared broadcast medium.
package meshcore

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/ezmesh/ezmesh/pkg/meshcore/codec"
	"github.com/ezmesh/ezmesh/pkg/meshcore/crypto"
	"github.com/ezmesh/ezmesh/pkg/meshcore/identity"
	"github.com/ezmesh/ezmesh/pkg/meshcore/router"
	"github.com/ezmesh/ezmesh/pkg/store"
	"github.com/ezmesh/ezmesh/pkg/transport"
)

const (
	defaultAnnounceInterval = time.Minute
	defaultNodeTableSize    = 256
	defaultNodeTTL          = time.Hour

	// duplicateWindowMillis is how long a group message content id
	// suppresses identical copies arriving over other paths.
	duplicateWindowMillis = 30_000

	keyChannels = "channels"
)

var (
	ErrMissingRadio = errors.New("radio transport is required")
	ErrMissingStore = errors.New("key-value store is required")
	ErrNotInChannel = errors.New("channel not joined")
	ErrEmptyChannel = errors.New("channel name must not be empty")
	ErrEmptyText    = errors.New("message text must not be empty")
)

// Options configures an Engine. Radio and Store are required; everything
// else has sensible defaults.
type Options struct {
	Radio  transport.RadioTransport
	Store  store.KeyValueStore
	Clock  Clock
	Logger *slog.Logger

	// AnnounceInterval is how often Update sends an identity advert.
	// Zero selects the one minute default; negative disables periodic
	// announcements.
	AnnounceInterval time.Duration

	// NodeTableSize and NodeTTL bound the discovered-node table. Nodes
	// unseen for NodeTTL, or beyond the size limit, are evicted oldest
	// first. This is local policy, not protocol semantics.
	NodeTableSize int
	NodeTTL       time.Duration
}

// Engine orchestrates the mesh core. All state it owns is mutated only
// from Update and the send methods; callers drive it from a single
// goroutine.
type Engine struct {
	radio  transport.RadioTransport
	kv     store.KeyValueStore
	clock  Clock
	log    *slog.Logger
	id     *identity.Identity
	router *router.Router

	nodes           *ttlcache.Cache[string, *NodeInfo]
	channels        []*Channel
	channelMessages []*ChannelMessage
	messages        []*Message
	pending         []pendingRebroadcast

	announceInterval time.Duration
	lastAnnounce     int64
	announced        bool

	onNode           func(NodeInfo)
	onChannelMessage func(ChannelMessage)
	onDirectMessage  func(Message)

	rxCount         uint32
	txCount         uint32
	droppedCount    uint32
	cryptoFailCount uint32
}

// pendingRebroadcast is a serialized packet awaiting its jittered relay
// slot.
type pendingRebroadcast struct {
	data   []byte
	sendAt int64
}

// persistedChannel is the stored form of a joined channel.
type persistedChannel struct {
	Name      string `json:"name"`
	Key       string `json:"key"`
	Encrypted bool   `json:"encrypted"`
}

// New creates an Engine, loading or generating the node identity and
// joining the default public channel. An identity failure is fatal: with
// no keypair the node has no routing identity.
func New(opts Options) (*Engine, error) {
	if opts.Radio == nil {
		return nil, ErrMissingRadio
	}
	if opts.Store == nil {
		return nil, ErrMissingStore
	}
	if opts.Clock == nil {
		opts.Clock = NewSystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.AnnounceInterval == 0 {
		opts.AnnounceInterval = defaultAnnounceInterval
	}
	if opts.NodeTableSize <= 0 {
		opts.NodeTableSize = defaultNodeTableSize
	}
	if opts.NodeTTL <= 0 {
		opts.NodeTTL = defaultNodeTTL
	}

	id, err := identity.Init(opts.Store)
	if err != nil {
		return nil, fmt.Errorf("identity init: %w", err)
	}

	e := &Engine{
		radio:  opts.Radio,
		kv:     opts.Store,
		clock:  opts.Clock,
		log:    opts.Logger,
		id:     id,
		router: router.New(),
		nodes: ttlcache.New[string, *NodeInfo](
			ttlcache.WithTTL[string, *NodeInfo](opts.NodeTTL),
			ttlcache.WithCapacity[string, *NodeInfo](uint64(opts.NodeTableSize)),
		),
		announceInterval: opts.AnnounceInterval,
	}

	e.loadChannels()
	if _, err := e.JoinChannel(crypto.PublicChannelName, ""); err != nil {
		return nil, err
	}

	e.log.Info("mesh engine ready",
		"node_id", id.FullID(),
		"name", id.Name(),
		"path_hash", fmt.Sprintf("%02X", id.PathHash()))
	return e, nil
}

// Identity returns the node's identity.
func (e *Engine) Identity() *identity.Identity { return e.id }

// OnNodeDiscovered registers the node table callback.
func (e *Engine) OnNodeDiscovered(cb func(NodeInfo)) { e.onNode = cb }

// OnChannelMessage registers the group message callback.
func (e *Engine) OnChannelMessage(cb func(ChannelMessage)) { e.onChannelMessage = cb }

// OnDirectMessage registers the direct message callback.
func (e *Engine) OnDirectMessage(cb func(Message)) { e.onDirectMessage = cb }

// Update runs one engine tick: it drains the radio, dispatches each
// decoded packet, flushes due rebroadcasts, and sends the periodic
// announcement. All work is synchronous and non-blocking.
func (e *Engine) Update() {
	for {
		pkt, ok := e.radio.TryReceive()
		if !ok {
			break
		}
		e.rxCount++
		e.handleFrame(pkt)
	}

	e.flushRebroadcasts()

	if e.announceInterval > 0 {
		now := e.clock.NowMillis()
		if !e.announced || now-e.lastAnnounce >= e.announceInterval.Milliseconds() {
			if err := e.SendAnnounce(); err != nil {
				e.log.Warn("periodic announce failed", "error", err)
			}
			e.announced = true
			e.lastAnnounce = now
		}
	}
}

// handleFrame decodes and dispatches one received buffer. Malformed input
// is dropped and counted; it never propagates.
func (e *Engine) handleFrame(rx transport.RxPacket) {
	var pkt codec.Packet
	if _, err := pkt.Deserialize(rx.Data); err != nil {
		e.droppedCount++
		e.log.Debug("failed to decode packet", "len", len(rx.Data), "error", err)
		return
	}
	if !pkt.IsValid() {
		e.droppedCount++
		e.log.Debug("invalid packet",
			"route_type", codec.RouteTypeName(pkt.RouteType()),
			"payload_type", codec.PayloadTypeName(pkt.PayloadType()))
		return
	}

	e.log.Debug("packet received",
		"route_type", codec.RouteTypeName(pkt.RouteType()),
		"payload_type", codec.PayloadTypeName(pkt.PayloadType()),
		"path_len", len(pkt.Path),
		"payload_len", len(pkt.Payload),
		"rssi", rx.RSSI)

	switch pkt.PayloadType() {
	case codec.PayloadTypeAdvert:
		e.handleAdvert(&pkt, rx)
	case codec.PayloadTypeTxtMsg:
		e.handleText(&pkt, rx)
	case codec.PayloadTypeGrpTxt:
		e.handleGroupText(&pkt, rx)
	default:
		e.log.Debug("unhandled payload type",
			"payload_type", codec.PayloadTypeName(pkt.PayloadType()))
	}

	// Relay decision is independent of local handling: a packet we will
	// not relay may still carry a message we have not seen.
	if e.router.ShouldRebroadcast(&pkt, e.id.PathHash()) {
		e.scheduleRebroadcast(&pkt)
	}
}

// handleAdvert processes a node announcement: verify the signature,
// upsert the node table, and notify.
func (e *Engine) handleAdvert(pkt *codec.Packet, rx transport.RxPacket) {
	advert, err := codec.ParseAdvertPayload(pkt.Payload)
	if err != nil {
		e.droppedCount++
		e.log.Debug("failed to parse advert payload", "error", err)
		return
	}

	if bytes.Equal(advert.PubKey[:], e.id.PublicKey()) {
		return // our own advert, relayed back
	}

	verified := identity.Verify(advert.SigningBytes(), advert.Signature[:], advert.PubKey[:])
	if !verified {
		e.log.Debug("advert signature invalid",
			"path_hash", fmt.Sprintf("%02X", advert.PubKey[0]))
	}

	node := e.upsertNode(advert, rx, uint8(len(pkt.Path)), verified)
	e.log.Info("advert received",
		"path_hash", fmt.Sprintf("%02X", node.PathHash),
		"name", node.Name,
		"node_type", codec.NodeTypeName(advert.NodeType),
		"verified", verified,
		"hops", node.HopCount)

	if e.onNode != nil {
		e.onNode(*node)
	}
}

// handleText processes a direct text message.
func (e *Engine) handleText(pkt *codec.Packet, rx transport.RxPacket) {
	text, err := codec.ParseTextPayload(pkt.Payload)
	if err != nil {
		e.droppedCount++
		e.log.Debug("failed to parse text payload", "error", err)
		return
	}

	var fromHash byte
	if len(pkt.Path) > 0 {
		fromHash = pkt.Path[0]
	}

	msg := &Message{
		FromHash:  fromHash,
		Text:      text.Text,
		Timestamp: e.clock.NowMillis(),
	}
	e.messages = append(e.messages, msg)

	if e.onDirectMessage != nil {
		e.onDirectMessage(*msg)
	}
}

// handleGroupText processes an encrypted group message: match the channel
// hash against joined channels, authenticate and decrypt, parse, and
// record. Authentication failures are counted, never surfaced.
func (e *Engine) handleGroupText(pkt *codec.Packet, rx transport.RxPacket) {
	grp, err := codec.ParseGroupPayload(pkt.Payload)
	if err != nil {
		e.droppedCount++
		e.log.Debug("failed to parse group payload", "error", err)
		return
	}

	var senderHash byte
	if len(pkt.Path) > 0 {
		senderHash = pkt.Path[0]
	}

	for _, ch := range e.channels {
		if !ch.Joined || crypto.ComputeChannelHash(ch.Key) != grp.ChannelHash {
			continue
		}

		plaintext, err := crypto.DecryptChannelMessage(ch.Key, grp.Sealed)
		if err != nil {
			// Hash collision between channel keys, or a corrupt frame.
			e.log.Debug("channel decrypt failed", "channel", ch.Name, "error", err)
			continue
		}

		_, _, sender, text, err := crypto.ParseChannelPlaintext(plaintext)
		if err != nil {
			e.log.Debug("failed to parse channel plaintext", "channel", ch.Name, "error", err)
			continue
		}

		now := e.clock.NowMillis()
		packetID := crc32.ChecksumIEEE(pkt.Payload)
		if e.isDuplicateChannelMessage(ch.Name, packetID, now) {
			e.log.Debug("duplicate group message ignored",
				"channel", ch.Name,
				"from", fmt.Sprintf("%02X", senderHash))
			return
		}

		msg := &ChannelMessage{
			Channel:    ch.Name,
			FromHash:   senderHash,
			SenderName: sender,
			Text:       text,
			Timestamp:  now,
			PacketID:   packetID,
		}
		if node := e.findNodeByHash(senderHash); node != nil && node.HasPublicKey() {
			msg.SenderPubKey = node.PublicKey
		}

		e.channelMessages = append(e.channelMessages, msg)
		ch.LastActivity = now
		ch.Unread++

		e.log.Info("group message received",
			"channel", ch.Name,
			"from", fmt.Sprintf("%02X", senderHash),
			"sender", sender,
			"text_len", len(text))

		if e.onChannelMessage != nil {
			e.onChannelMessage(*msg)
		}
		return
	}

	e.cryptoFailCount++
	e.log.Debug("group message did not match any joined channel",
		"channel_hash", fmt.Sprintf("%02X", grp.ChannelHash))
}

// isDuplicateChannelMessage suppresses copies of a message arriving over
// multiple flood paths within a short window.
func (e *Engine) isDuplicateChannelMessage(channel string, packetID uint32, now int64) bool {
	for i := len(e.channelMessages) - 1; i >= 0; i-- {
		existing := e.channelMessages[i]
		if now-existing.Timestamp > duplicateWindowMillis {
			break
		}
		if existing.Channel == channel && existing.PacketID == packetID {
			return true
		}
	}
	return false
}

// scheduleRebroadcast appends our hash to the path, re-serializes, and
// queues the bytes for a jittered relay.
func (e *Engine) scheduleRebroadcast(pkt *codec.Packet) {
	relay := codec.Packet{
		Header:         pkt.Header,
		TransportCodes: pkt.TransportCodes,
		Path:           append([]byte(nil), pkt.Path...),
		Payload:        pkt.Payload,
	}
	if err := relay.AddToPath(e.id.PathHash()); err != nil {
		e.log.Debug("path full, not rebroadcasting")
		return
	}

	data, err := relay.Bytes()
	if err != nil {
		e.log.Warn("failed to serialize rebroadcast", "error", err)
		return
	}

	e.pending = append(e.pending, pendingRebroadcast{
		data:   data,
		sendAt: e.clock.NowMillis() + e.router.RebroadcastDelay().Milliseconds(),
	})
}

// flushRebroadcasts transmits queued relays whose jitter delay has
// elapsed.
func (e *Engine) flushRebroadcasts() {
	now := e.clock.NowMillis()
	remaining := e.pending[:0]
	for _, rb := range e.pending {
		if now >= rb.sendAt {
			if err := e.radio.Send(rb.data); err != nil {
				e.log.Warn("rebroadcast send failed", "error", err)
				continue
			}
			e.txCount++
		} else {
			remaining = append(remaining, rb)
		}
	}
	e.pending = remaining
}

// SendAnnounce broadcasts a signed identity advertisement.
func (e *Engine) SendAnnounce() error {
	advert := codec.AdvertPayload{
		Timestamp: uint32(e.clock.NowMillis() / 1000),
		Flags:     codec.FlagHasName | RoleChat,
		Name:      e.id.Name(),
	}
	copy(advert.PubKey[:], e.id.PublicKey())
	copy(advert.Signature[:], e.id.Sign(advert.SigningBytes()))

	payload, err := advert.Encode()
	if err != nil {
		return err
	}

	pkt := codec.Packet{
		Header:  codec.MakeHeader(codec.RouteTypeFlood, codec.PayloadTypeAdvert, codec.PayloadVersion1),
		Payload: payload,
	}

	e.log.Debug("sending advert",
		"path_hash", fmt.Sprintf("%02X", e.id.PathHash()),
		"name", e.id.Name())
	return e.sendPacket(&pkt)
}

// SendChannelMessage encrypts and broadcasts a group message on a joined
// channel, and records it locally as our own.
func (e *Engine) SendChannelMessage(channel, text string) error {
	if text == "" {
		return ErrEmptyText
	}
	ch := e.findChannel(normalizeChannelName(channel))
	if ch == nil || !ch.Joined {
		return fmt.Errorf("%w: %s", ErrNotInChannel, channel)
	}
	if len(text) > crypto.MaxChannelText {
		text = text[:crypto.MaxChannelText]
	}

	now := e.clock.NowMillis()
	plaintext := crypto.BuildChannelPlaintext(uint32(now/1000), e.id.Name(), text)
	sealed, err := crypto.EncryptChannelMessage(ch.Key, plaintext)
	if err != nil {
		return fmt.Errorf("channel encrypt: %w", err)
	}

	payload := codec.EncodeGroupPayload(crypto.ComputeChannelHash(ch.Key), sealed)
	pkt := codec.Packet{
		Header:  codec.MakeHeader(codec.RouteTypeFlood, codec.PayloadTypeGrpTxt, codec.PayloadVersion1),
		Payload: payload,
	}
	if err := e.sendPacket(&pkt); err != nil {
		return err
	}

	e.channelMessages = append(e.channelMessages, &ChannelMessage{
		Channel:      ch.Name,
		FromHash:     e.id.PathHash(),
		SenderName:   e.id.Name(),
		SenderPubKey: e.id.PublicKey(),
		Text:         text,
		Timestamp:    now,
		PacketID:     crc32.ChecksumIEEE(payload),
		Read:         true,
		Verified:     true,
		IsOurs:       true,
	})
	ch.LastActivity = now

	e.log.Info("group message sent", "channel", ch.Name, "text_len", len(text))
	return nil
}

// SendTextMessage broadcasts a direct text message.
func (e *Engine) SendTextMessage(text string) error {
	if text == "" {
		return ErrEmptyText
	}
	payload := codec.EncodeTextPayload(uint32(e.clock.NowMillis()/1000), 0, text)
	pkt := codec.Packet{
		Header:  codec.MakeHeader(codec.RouteTypeDirect, codec.PayloadTypeTxtMsg, codec.PayloadVersion1),
		Payload: payload,
	}
	return e.sendPacket(&pkt)
}

// sendPacket stamps our hash into the path, serializes, and transmits.
func (e *Engine) sendPacket(pkt *codec.Packet) error {
	if err := pkt.AddToPath(e.id.PathHash()); err != nil {
		return err
	}
	data, err := pkt.Bytes()
	if err != nil {
		return err
	}
	if err := e.radio.Send(data); err != nil {
		return fmt.Errorf("radio send: %w", err)
	}
	e.txCount++
	return nil
}

// JoinChannel joins (or rejoins) a channel, deriving its key from the
// password when given, else from the channel name. Names are normalized
// to a leading '#'.
func (e *Engine) JoinChannel(name, password string) (*Channel, error) {
	if name == "" {
		return nil, ErrEmptyChannel
	}
	name = normalizeChannelName(name)

	if ch := e.findChannel(name); ch != nil {
		if !ch.Joined {
			ch.Joined = true
			e.saveChannels()
			e.log.Info("rejoined channel", "channel", name)
		}
		return ch, nil
	}

	key := crypto.DeriveChannelKey(password, name)
	ch := &Channel{
		Name:         name,
		Joined:       true,
		Encrypted:    password != "",
		Key:          key,
		LastActivity: e.clock.NowMillis(),
	}
	e.channels = append(e.channels, ch)

	e.log.Info("joined channel",
		"channel", name,
		"channel_hash", fmt.Sprintf("%02X", crypto.ComputeChannelHash(key)),
		"encrypted", ch.Encrypted)

	if !ch.IsPublic() {
		e.saveChannels()
	}
	return ch, nil
}

// JoinChannelWithKey joins a channel using an explicit pre-shared key
// instead of deriving one.
func (e *Engine) JoinChannelWithKey(name string, key []byte) (*Channel, error) {
	if name == "" {
		return nil, ErrEmptyChannel
	}
	if len(key) != crypto.ChannelKeySize {
		return nil, crypto.ErrInvalidKeySize
	}
	name = normalizeChannelName(name)

	if ch := e.findChannel(name); ch != nil {
		ch.Joined = true
		ch.Key = append([]byte(nil), key...)
		ch.Encrypted = true
		e.saveChannels()
		return ch, nil
	}

	ch := &Channel{
		Name:         name,
		Joined:       true,
		Encrypted:    true,
		Key:          append([]byte(nil), key...),
		LastActivity: e.clock.NowMillis(),
	}
	e.channels = append(e.channels, ch)
	e.saveChannels()

	e.log.Info("joined channel",
		"channel", name,
		"channel_hash", fmt.Sprintf("%02X", crypto.ComputeChannelHash(ch.Key)),
		"encrypted", true)
	return ch, nil
}

// LeaveChannel marks a channel as not joined. Its history is kept.
func (e *Engine) LeaveChannel(name string) error {
	ch := e.findChannel(normalizeChannelName(name))
	if ch == nil || !ch.Joined {
		return fmt.Errorf("%w: %s", ErrNotInChannel, name)
	}
	ch.Joined = false
	e.saveChannels()
	e.log.Info("left channel", "channel", ch.Name)
	return nil
}

// MarkChannelRead marks all messages on a channel read and clears its
// unread counter.
func (e *Engine) MarkChannelRead(name string) {
	name = normalizeChannelName(name)
	for _, msg := range e.channelMessages {
		if msg.Channel == name {
			msg.Read = true
		}
	}
	if ch := e.findChannel(name); ch != nil {
		ch.Unread = 0
	}
}

// Channels returns a snapshot of the channel list.
func (e *Engine) Channels() []Channel {
	out := make([]Channel, 0, len(e.channels))
	for _, ch := range e.channels {
		out = append(out, *ch)
	}
	return out
}

// ChannelMessages returns the history for one channel, oldest first.
func (e *Engine) ChannelMessages(channel string) []ChannelMessage {
	channel = normalizeChannelName(channel)
	var out []ChannelMessage
	for _, msg := range e.channelMessages {
		if msg.Channel == channel {
			out = append(out, *msg)
		}
	}
	return out
}

// Messages returns the direct message history, oldest first.
func (e *Engine) Messages() []Message {
	out := make([]Message, 0, len(e.messages))
	for _, msg := range e.messages {
		out = append(out, *msg)
	}
	return out
}

// Nodes returns a snapshot of the discovered-node table.
func (e *Engine) Nodes() []NodeInfo {
	var out []NodeInfo
	e.nodes.Range(func(item *ttlcache.Item[string, *NodeInfo]) bool {
		out = append(out, *item.Value())
		return true
	})
	return out
}

// Stats returns the engine's counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Received:     e.rxCount,
		Transmitted:  e.txCount,
		Dropped:      e.droppedCount,
		CryptoFailed: e.cryptoFailCount,
		Duplicates:   e.router.DuplicateCount(),
		Rebroadcasts: e.router.RebroadcastCount(),
	}
}

// upsertNode updates or inserts a node record from an advert. Entries are
// keyed by public key; a placeholder learned by path hash alone is
// replaced once the key is known.
func (e *Engine) upsertNode(advert *codec.AdvertPayload, rx transport.RxPacket, hops uint8, verified bool) *NodeInfo {
	key := hex.EncodeToString(advert.PubKey[:])

	var node *NodeInfo
	if item := e.nodes.Get(key); item != nil {
		node = item.Value()
	} else {
		// Drop any keyless placeholder sharing this path hash.
		e.nodes.Delete(fmt.Sprintf("hash:%02x", advert.PubKey[0]))
		node = &NodeInfo{
			PathHash:  advert.PubKey[0],
			PublicKey: append([]byte(nil), advert.PubKey[:]...),
		}
	}

	if advert.Name != "" {
		node.Name = advert.Name
	} else if node.Name == "" {
		node.Name = fmt.Sprintf("%02X", node.PathHash)
	}
	node.LastSeen = e.clock.NowMillis()
	node.AdvertTime = advert.Timestamp
	node.LastRSSI = rx.RSSI
	node.LastSNR = rx.SNR
	node.HopCount = hops
	node.Role = advert.NodeType
	node.Verified = verified

	e.nodes.Set(key, node, ttlcache.DefaultTTL)
	return node
}

// findNodeByHash returns any node with the given path hash. Hash
// collisions make this a best-effort lookup.
func (e *Engine) findNodeByHash(hash byte) *NodeInfo {
	var found *NodeInfo
	e.nodes.Range(func(item *ttlcache.Item[string, *NodeInfo]) bool {
		if item.Value().PathHash == hash {
			found = item.Value()
			return false
		}
		return true
	})
	return found
}

func (e *Engine) findChannel(name string) *Channel {
	for _, ch := range e.channels {
		if ch.Name == name {
			return ch
		}
	}
	return nil
}

func normalizeChannelName(name string) string {
	if name == "" || strings.HasPrefix(name, "#") {
		return name
	}
	return "#" + name
}

// saveChannels persists the non-public joined channels. A storage failure
// is logged; the engine keeps running on in-memory state.
func (e *Engine) saveChannels() {
	var persisted []persistedChannel
	for _, ch := range e.channels {
		if ch.Joined && !ch.IsPublic() {
			persisted = append(persisted, persistedChannel{
				Name:      ch.Name,
				Key:       hex.EncodeToString(ch.Key),
				Encrypted: ch.Encrypted,
			})
		}
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		e.log.Warn("failed to marshal channel list", "error", err)
		return
	}
	if err := e.kv.Put(keyChannels, data); err != nil {
		e.log.Warn("failed to persist channel list", "error", err)
	}
}

// loadChannels restores the persisted channel list.
func (e *Engine) loadChannels() {
	data, err := e.kv.Get(keyChannels)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.log.Warn("failed to load channel list", "error", err)
		}
		return
	}

	var persisted []persistedChannel
	if err := json.Unmarshal(data, &persisted); err != nil {
		e.log.Warn("corrupt channel list, ignoring", "error", err)
		return
	}

	for _, pc := range persisted {
		key, err := hex.DecodeString(pc.Key)
		if err != nil || len(key) != crypto.ChannelKeySize {
			e.log.Warn("corrupt channel key, re-deriving", "channel", pc.Name)
			key = crypto.DeriveChannelKey("", pc.Name)
		}
		e.channels = append(e.channels, &Channel{
			Name:         pc.Name,
			Joined:       true,
			Encrypted:    pc.Encrypted,
			Key:          key,
			LastActivity: e.clock.NowMillis(),
		})
	}
	e.log.Debug("loaded channels", "count", len(persisted))
}
