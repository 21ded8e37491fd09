// Package rtps implements the core RTPS (Real-Time Publish-Subscribe)
// engine: wire codec, history cache, reader/writer behaviors, the
// message receiver, discovery, the matching engine and the status bus.
// The user-facing DDS entity facade, type serialization and transport
// socket implementation are external collaborators; this package only
// implements the send/receive contract it needs from them.
package rtps

import (
	"encoding/hex"
	"fmt"
)

// GuidPrefixLength is the size in bytes of a GuidPrefix (DDSI-RTPS §9.3.1).
const GuidPrefixLength = 12

// GuidPrefix identifies a participant. It is the first 12 bytes of
// every GUID minted by that participant.
type GuidPrefix [GuidPrefixLength]byte

func (p GuidPrefix) String() string {
	return hex.EncodeToString(p[:])
}

// EntityKind occupies the low byte of an EntityId and encodes
// built-in/user-defined, with/without key, and the entity's role.
type EntityKind byte

const (
	EntityKindUnknown             EntityKind = 0x00
	EntityKindUserWriterWithKey   EntityKind = 0x02
	EntityKindUserWriterNoKey     EntityKind = 0x03
	EntityKindUserReaderWithKey   EntityKind = 0x07
	EntityKindUserReaderNoKey     EntityKind = 0x04
	EntityKindBuiltinParticipant  EntityKind = 0xc1
	EntityKindBuiltinWriterWithKey EntityKind = 0xc2
	EntityKindBuiltinWriterNoKey  EntityKind = 0xc3
	EntityKindBuiltinReaderWithKey EntityKind = 0xc7
	EntityKindBuiltinReaderNoKey  EntityKind = 0xc4
)

// EntityId names an entity within a participant: a 3-byte entity key
// plus a 1-byte entity kind.
type EntityId struct {
	EntityKey [3]byte
	Kind      EntityKind
}

// Predefined entity ids for the RTPS built-in discovery endpoints
// (DDSI-RTPS §9.3.1.2, confirmed against
// original_source/rtps/src/discovery/spdp_endpoints.rs).
var (
	EntityIdUnknown              = EntityId{}
	EntityIdParticipant          = EntityId{EntityKey: [3]byte{0x00, 0x00, 0x01}, Kind: EntityKindBuiltinParticipant}
	EntityIdSpdpBuiltinWriter    = EntityId{EntityKey: [3]byte{0x00, 0x01, 0x00}, Kind: EntityKindBuiltinWriterWithKey}
	EntityIdSpdpBuiltinReader    = EntityId{EntityKey: [3]byte{0x00, 0x01, 0x00}, Kind: EntityKindBuiltinReaderWithKey}
	EntityIdSedpPubWriter        = EntityId{EntityKey: [3]byte{0x00, 0x03, 0x00}, Kind: EntityKindBuiltinWriterWithKey}
	EntityIdSedpPubReader        = EntityId{EntityKey: [3]byte{0x00, 0x03, 0x00}, Kind: EntityKindBuiltinReaderWithKey}
	EntityIdSedpSubWriter        = EntityId{EntityKey: [3]byte{0x00, 0x04, 0x00}, Kind: EntityKindBuiltinWriterWithKey}
	EntityIdSedpSubReader        = EntityId{EntityKey: [3]byte{0x00, 0x04, 0x00}, Kind: EntityKindBuiltinReaderWithKey}
)

func (e EntityId) String() string {
	return fmt.Sprintf("%02x.%02x.%02x.%02x", e.EntityKey[0], e.EntityKey[1], e.EntityKey[2], byte(e.Kind))
}

// IsWriter reports whether the entity kind names a writer/publication endpoint.
func (e EntityId) IsWriter() bool {
	switch e.Kind {
	case EntityKindUserWriterWithKey, EntityKindUserWriterNoKey, EntityKindBuiltinWriterWithKey, EntityKindBuiltinWriterNoKey:
		return true
	}
	return false
}

// IsReader reports whether the entity kind names a reader/subscription endpoint.
func (e EntityId) IsReader() bool {
	switch e.Kind {
	case EntityKindUserReaderWithKey, EntityKindUserReaderNoKey, EntityKindBuiltinReaderWithKey, EntityKindBuiltinReaderNoKey:
		return true
	}
	return false
}

// GuidLength is the size in bytes of a full GUID.
const GuidLength = GuidPrefixLength + 4

// Guid is the 16-byte global identifier of an RTPS entity: a
// GuidPrefix naming the owning participant plus an EntityId naming
// the entity within it.
type Guid struct {
	Prefix   GuidPrefix
	EntityId EntityId
}

func (g Guid) String() string {
	return fmt.Sprintf("%s:%s", g.Prefix, g.EntityId)
}

// Unknown reports whether this is the sentinel "no entity" GUID.
func (g Guid) Unknown() bool {
	return g.EntityId == EntityIdUnknown
}
