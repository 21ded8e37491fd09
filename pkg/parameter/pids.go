package parameter

// ParameterId names an entry in a ParameterList (spec §3, §6).
// Well-known PIDs used by the built-in discovery types, grounded on
// original_source/rtps_udp_psm/src mapping files and spec §6.
type ParameterId uint16

const (
	PidPadding              ParameterId = 0x0000
	PidSentinel             ParameterId = 0x0001
	PidParticipantGuid      ParameterId = 0x0050
	PidUnicastLocator       ParameterId = 0x002f
	PidMulticastLocator     ParameterId = 0x0030
	PidDefaultUnicastLocator   ParameterId = 0x0031
	PidMetaUnicastLocator   ParameterId = 0x0032
	PidMetaMulticastLocator ParameterId = 0x0033
	PidDefaultMulticastLocator ParameterId = 0x0048
	PidTopicName            ParameterId = 0x0005
	PidTypeName             ParameterId = 0x0007
	PidReliability          ParameterId = 0x001a
	PidDurability           ParameterId = 0x001d
	PidDeadline             ParameterId = 0x0023
	PidEndpointGuid         ParameterId = 0x005a
	PidProtocolVersion      ParameterId = 0x0015
	PidVendorId             ParameterId = 0x0016
	PidBuiltinEndpointSet   ParameterId = 0x0058
	PidLeaseDuration        ParameterId = 0x0002
	PidPartition            ParameterId = 0x0029
	PidKeyHash              ParameterId = 0x0070
	PidStatusInfo           ParameterId = 0x0071
	PidExpectsInlineQos     ParameterId = 0x0043
)

// BuiltinEndpointSet is a bitmask of which SEDP built-in endpoints a
// participant announces in its SPDP data (spec §4.6).
type BuiltinEndpointSet uint32

const (
	BuiltinEndpointParticipantAnnouncer     BuiltinEndpointSet = 1 << 0
	BuiltinEndpointParticipantDetector      BuiltinEndpointSet = 1 << 1
	BuiltinEndpointPublicationsAnnouncer    BuiltinEndpointSet = 1 << 2
	BuiltinEndpointPublicationsDetector     BuiltinEndpointSet = 1 << 3
	BuiltinEndpointSubscriptionsAnnouncer   BuiltinEndpointSet = 1 << 4
	BuiltinEndpointSubscriptionsDetector    BuiltinEndpointSet = 1 << 5
)
