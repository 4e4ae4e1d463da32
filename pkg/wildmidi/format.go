package wildmidi

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Container is a file container accepted by the engine.
type Container string

const (
	ContainerSMF     Container = "smf"
	ContainerRMID    Container = "rmid"
	ContainerHMI     Container = "hmi"
	ContainerHMP     Container = "hmp"
	ContainerMUS     Container = "mus"
	ContainerXMI     Container = "xmi"
	ContainerUnknown Container = "unknown"
)

var signatures = []struct {
	offset    int
	magic     string
	container Container
}{
	{0, "MThd", ContainerSMF},
	{0, "HMI-MIDISONG061595", ContainerHMI},
	{0, "HMIMIDIP", ContainerHMP},
	{0, "MUS\x1a", ContainerMUS},
	{8, "XDIR", ContainerXMI},
	{8, "RMID", ContainerRMID},
}

// DetectFormat detects the container from the leading bytes.
func DetectFormat(data []byte) Container {
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(data) >= end && string(data[sig.offset:end]) == sig.magic {
			return sig.container
		}
	}
	return ContainerUnknown
}

// Header is the static description of a stream, read once at open time.
type Header struct {
	Container Container
	// Format is the SMF format (0, 1 or 2), or -1 when not an SMF.
	Format int
	// Tracks is the number of MTrk chunks, 0 when unknown.
	Tracks int
	// Division is ticks per quarter note, 0 for SMPTE or unknown.
	Division uint16
}

// ProbeHeader reads the SMF header of data. Containers the engine converts
// internally, and SMF data this parser rejects, come back with only
// Container set.
func ProbeHeader(data []byte) Header {
	h := Header{Container: DetectFormat(data), Format: -1}

	body := data
	if h.Container == ContainerRMID {
		body = rmidPayload(data)
	} else if h.Container != ContainerSMF {
		return h
	}
	if len(body) < 14 || string(body[:4]) != "MThd" {
		return h
	}

	s, err := readSMF(body)
	if err != nil {
		return h
	}
	h.Format = int(s.Format())
	h.Tracks = len(s.Tracks)
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		h.Division = mt.Resolution()
	}
	return h
}

// readSMF parses a Standard MIDI File. gomidi panics on some corrupt track
// data; that is reported as an error.
func readSMF(data []byte) (s *smf.SMF, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("corrupt smf: %v", r)
		}
	}()
	return smf.ReadFrom(bytes.NewReader(data))
}

// rmidPayload returns the SMF inside a RIFF RMID "data" chunk.
func rmidPayload(data []byte) []byte {
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8
		if size < 0 || pos+size > len(data) {
			return nil
		}
		if id == "data" {
			return data[pos : pos+size]
		}
		pos += size + size&1
	}
	return nil
}
