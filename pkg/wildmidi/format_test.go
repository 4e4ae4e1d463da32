package wildmidi

import (
	"bytes"
	"encoding/binary"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func buildSMF(t *testing.T, tracks int) []byte {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(96)
	for i := 0; i < tracks; i++ {
		var tr smf.Track
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(96, midi.NoteOff(0, 60))
		tr.Close(0)
		if err := s.Add(tr); err != nil {
			t.Fatalf("add track: %v", err)
		}
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	return buf.Bytes()
}

func wrapRMID(smfData []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(4+8+len(smfData)))
	buf.WriteString("RMID")
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(smfData)))
	buf.Write(smfData)
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected Container
	}{
		{"SMF", []byte("MThd\x00\x00\x00\x06"), ContainerSMF},
		{"HMI", []byte("HMI-MIDISONG061595\x00\x00"), ContainerHMI},
		{"HMP", []byte("HMIMIDIP013195\x00"), ContainerHMP},
		{"MUS", []byte("MUS\x1a\x10\x00"), ContainerMUS},
		{"XMI", []byte("FORM\x00\x00\x00\x0eXDIRINFO"), ContainerXMI},
		{"RMID", []byte("RIFF\x00\x00\x00\x00RMIDdata"), ContainerRMID},
		{"short", []byte{0x4D, 0x54}, ContainerUnknown},
		{"empty", nil, ContainerUnknown},
		{"garbage", []byte("hello world, not midi"), ContainerUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.data); got != tt.expected {
				t.Errorf("DetectFormat() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestProbeHeader(t *testing.T) {
	one := buildSMF(t, 1)
	three := buildSMF(t, 3)

	tests := []struct {
		name string
		data []byte
		want Header
	}{
		{"one track", one, Header{Container: ContainerSMF, Format: int(binary.BigEndian.Uint16(one[8:10])), Tracks: 1, Division: 96}},
		{"three tracks", three, Header{Container: ContainerSMF, Format: 1, Tracks: 3, Division: 96}},
		{"rmid", wrapRMID(three), Header{Container: ContainerRMID, Format: 1, Tracks: 3, Division: 96}},
		{"mus", []byte("MUS\x1a\x10\x00\x20\x00"), Header{Container: ContainerMUS, Format: -1}},
		{"broken rmid", []byte("RIFF\x00\x00\x00\x00RMIDdata\xff\xff\xff\x7f"), Header{Container: ContainerRMID, Format: -1}},
		{"garbage", []byte("garbage"), Header{Container: ContainerUnknown, Format: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProbeHeader(tt.data); got != tt.want {
				t.Errorf("ProbeHeader() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
