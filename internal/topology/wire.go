package topology

import (
	"encoding/binary"
	"fmt"

	"github.com/kb9vty/ump2/internal/ump"
)

// EndpointDiscoveryFilter bits select which Endpoint notifications a
// client is asking for.
type EndpointDiscoveryFilter uint8

const (
	FilterEndpointInfo EndpointDiscoveryFilter = 1 << iota
	FilterDeviceIdentity
	FilterEndpointName
	FilterProductInstanceID
	FilterStreamConfig
)

// AllEndpointFilters requests every Endpoint notification kind.
const AllEndpointFilters = FilterEndpointInfo | FilterDeviceIdentity | FilterEndpointName | FilterProductInstanceID | FilterStreamConfig

// FunctionBlockDiscoveryFilter bits select which Function Block
// notifications a client is asking for.
type FunctionBlockDiscoveryFilter uint8

const (
	FilterFunctionBlockInfo FunctionBlockDiscoveryFilter = 1 << iota
	FilterFunctionBlockName
)

// AllFunctionBlockFilters requests every Function Block notification kind.
const AllFunctionBlockFilters = FilterFunctionBlockInfo | FilterFunctionBlockName

// AllFunctionBlocks is the Function Block Discovery target meaning "every
// block", per the spec.
const AllFunctionBlocks uint8 = 0x7F

func endpointDiscoveryPacket(filter EndpointDiscoveryFilter) ump.Packet {
	return ump.StreamMessage{
		Format: ump.StreamComplete,
		Status: ump.StatusEndpointDiscovery,
		Data:   padTo14([]byte{byte(filter)}),
	}
}

func functionBlockDiscoveryPacket(target uint8, filter FunctionBlockDiscoveryFilter) ump.Packet {
	return ump.StreamMessage{
		Format: ump.StreamComplete,
		Status: ump.StatusFunctionBlockDiscovery,
		Data:   padTo14([]byte{target, byte(filter)}),
	}
}

func padTo14(b []byte) []byte {
	out := make([]byte, 14)
	copy(out, b)
	return out
}

// endpointInfoPayload/decodeEndpointInfo carry UMP version and protocol
// capability flags.
func endpointInfoPayload(e Endpoint) []byte {
	var caps byte
	if e.SupportsMIDI1 {
		caps |= 1 << 0
	}
	if e.SupportsMIDI2 {
		caps |= 1 << 1
	}
	if e.SupportsJRTx {
		caps |= 1 << 2
	}
	if e.SupportsJRRx {
		caps |= 1 << 3
	}
	return []byte{e.UMPVersionMajor, e.UMPVersionMinor, caps, byte(len(e.FunctionBlocks))}
}

func decodeEndpointInfo(data []byte) (major, minor uint8, midi1, midi2, jrTx, jrRx bool, numBlocks uint8, err error) {
	if len(data) < 4 {
		return 0, 0, false, false, false, false, 0, fmt.Errorf("topology: endpoint info payload too short")
	}
	major, minor = data[0], data[1]
	caps := data[2]
	return major, minor, caps&1 != 0, caps&2 != 0, caps&4 != 0, caps&8 != 0, data[3], nil
}

// functionBlockInfoPayload/decodeFunctionBlockInfo carry one Function
// Block's static attributes.
func functionBlockInfoPayload(fb FunctionBlock) []byte {
	var b1 byte
	if fb.IsActive {
		b1 |= 1 << 7
	}
	b1 |= byte(fb.Direction&0x3) << 5
	b1 |= fb.UIHint & 0x1F
	return []byte{fb.ID, b1, fb.FirstGroup, fb.NumGroups, byte(fb.MIDI1)}
}

func decodeFunctionBlockInfo(data []byte) (FunctionBlock, error) {
	if len(data) < 5 {
		return FunctionBlock{}, fmt.Errorf("topology: function block info payload too short")
	}
	return FunctionBlock{
		ID:         data[0],
		IsActive:   data[1]&(1<<7) != 0,
		Direction:  Direction((data[1] >> 5) & 0x3),
		UIHint:     data[1] & 0x1F,
		FirstGroup: data[2],
		NumGroups:  data[3],
		MIDI1:      MIDI1Mode(data[4]),
	}, nil
}

// deviceIdentityPayload/decodeDeviceIdentity mirror the MIDI universal
// identity reply shape (manufacturer/family/model/revision), used here
// only as a discovery notification rather than a SysEx reply.
type deviceIdentity struct {
	Manufacturer     [3]byte
	Family           uint16
	FamilyModelNum   uint16
	SoftwareRevision [4]byte
}

func deviceIdentityPayload(d deviceIdentity) []byte {
	out := make([]byte, 11)
	copy(out[0:3], d.Manufacturer[:])
	binary.BigEndian.PutUint16(out[3:5], d.Family)
	binary.BigEndian.PutUint16(out[5:7], d.FamilyModelNum)
	copy(out[7:11], d.SoftwareRevision[:])
	return out
}

func decodeDeviceIdentity(data []byte) (deviceIdentity, error) {
	if len(data) < 11 {
		return deviceIdentity{}, fmt.Errorf("topology: device identity payload too short")
	}
	var d deviceIdentity
	copy(d.Manufacturer[:], data[0:3])
	d.Family = binary.BigEndian.Uint16(data[3:5])
	d.FamilyModelNum = binary.BigEndian.Uint16(data[5:7])
	copy(d.SoftwareRevision[:], data[7:11])
	return d, nil
}

// splitNameWithBlockID / decodeNameWithBlockID prefix a Function Block name
// with its block ID before chunking, since Stream message reassembly is
// keyed only by Status and multiple blocks share the same Name status.
func splitNameWithBlockID(status uint16, blockID uint8, name string) []ump.StreamMessage {
	payload := append([]byte{blockID}, []byte(name)...)
	return ump.SplitStreamPayload(status, payload)
}

func decodeNameWithBlockID(payload []byte) (blockID uint8, name string, err error) {
	if len(payload) < 1 {
		return 0, "", fmt.Errorf("topology: name payload missing block id")
	}
	return payload[0], trimNulString(payload[1:]), nil
}

func trimNulString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
