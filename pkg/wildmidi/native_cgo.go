//go:build cgo && wildmidi

package wildmidi

/*
#cgo LDFLAGS: -lWildMidi

#include <stdlib.h>
#include <stdint.h>
#include <wildmidi_lib.h>
*/
import "C"

import (
	"unsafe"
)

// nativeEngine drives libWildMidi through cgo. Handles are small integers
// mapped to the library's midi pointers so no C pointer escapes to callers.
type nativeEngine struct {
	streams map[Handle]unsafe.Pointer
	next    Handle
}

var native = &nativeEngine{streams: make(map[Handle]unsafe.Pointer)}

// Native returns the libWildMidi engine. There is only one per process.
func Native() Engine {
	return native
}

// lastStatus collects and clears the library's error string.
func lastStatus(fallback Code) Status {
	cmsg := C.WildMidi_GetError()
	if cmsg == nil {
		return Fail(fallback, "")
	}
	msg := C.GoString(cmsg)
	C.WildMidi_ClearError()
	code := CodeFromMessage(msg)
	if code == CodeUnknown {
		code = fallback
	}
	return Fail(code, msg)
}

func (e *nativeEngine) Version() (int, int, int) {
	v := int(C.WildMidi_GetVersion())
	return (v >> 16) & 0xFF, (v >> 8) & 0xFF, v & 0xFF
}

func (e *nativeEngine) Init(configPath string, rate uint16, options MixerOption) Status {
	cpath := C.CString(configPath)
	defer C.free(unsafe.Pointer(cpath))

	if C.WildMidi_Init(cpath, C.uint16_t(rate), C.uint16_t(options)) != 0 {
		return lastStatus(CodeLoad)
	}
	return Status{}
}

func (e *nativeEngine) Shutdown() {
	C.WildMidi_Shutdown()
	for h := range e.streams {
		delete(e.streams, h)
	}
}

func (e *nativeEngine) OpenBuffer(data []byte) (Handle, Status) {
	if uint64(len(data)) > 0xFFFFFFFF {
		return 0, Fail(CodeLongFile, "")
	}
	// The engine only ever sees C memory.
	cbuf := C.CBytes(data)
	defer C.free(cbuf)

	ptr := C.WildMidi_OpenBuffer((*C.uint8_t)(cbuf), C.uint32_t(len(data)))
	if ptr == nil {
		return 0, lastStatus(CodeInvalid)
	}
	e.next++
	e.streams[e.next] = unsafe.Pointer(ptr)
	return e.next, Status{}
}

func (e *nativeEngine) stream(h Handle) (unsafe.Pointer, Status) {
	ptr, ok := e.streams[h]
	if !ok {
		return nil, Fail(CodeInvalidArg, "unknown handle")
	}
	return ptr, Status{}
}

func (e *nativeEngine) Close(h Handle) Status {
	ptr, st := e.stream(h)
	if !st.OK() {
		return st
	}
	delete(e.streams, h)
	if C.WildMidi_Close(ptr) != 0 {
		return lastStatus(CodeUnknown)
	}
	return Status{}
}

func (e *nativeEngine) Info(h Handle) (NativeInfo, Status) {
	ptr, st := e.stream(h)
	if !st.OK() {
		return NativeInfo{}, st
	}
	info := C.WildMidi_GetInfo(ptr)
	if info == nil {
		return NativeInfo{}, lastStatus(CodeUnknown)
	}
	ni := NativeInfo{
		CurrentSample:      uint64(info.current_sample),
		ApproxTotalSamples: uint64(info.approx_total_samples),
		TotalMidiTime:      uint64(info.total_midi_time),
		MixerOptions:       uint16(info.mixer_options),
	}
	if info.copyright != nil {
		ni.Copyright = C.GoString(info.copyright)
		ni.HasCopyright = true
	}
	return ni, Status{}
}

func (e *nativeEngine) Output(h Handle, buf []byte) (int, Status) {
	ptr, st := e.stream(h)
	if !st.OK() {
		return 0, st
	}
	if len(buf) == 0 {
		return 0, Status{}
	}
	n := C.WildMidi_GetOutput(ptr, (*C.int8_t)(unsafe.Pointer(&buf[0])), C.uint32_t(len(buf)))
	if n < 0 {
		return 0, lastStatus(CodeUnknown)
	}
	return int(n), Status{}
}

func (e *nativeEngine) FastSeek(h Handle, sample uint64) (uint64, Status) {
	ptr, st := e.stream(h)
	if !st.OK() {
		return 0, st
	}
	pos := C.ulong(sample)
	if C.WildMidi_FastSeek(ptr, &pos) < 0 {
		return 0, lastStatus(CodeUnknown)
	}
	return uint64(pos), Status{}
}

func (e *nativeEngine) SetOption(h Handle, options, setting MixerOption) Status {
	ptr, st := e.stream(h)
	if !st.OK() {
		return st
	}
	if C.WildMidi_SetOption(ptr, C.uint16_t(options), C.uint16_t(setting)) != 0 {
		return lastStatus(CodeInvalidArg)
	}
	return Status{}
}

func (e *nativeEngine) Lyric(h Handle) (string, bool) {
	ptr, st := e.stream(h)
	if !st.OK() {
		return "", false
	}
	text := C.WildMidi_GetLyric(ptr)
	if text == nil {
		return "", false
	}
	return C.GoString(text), true
}

func (e *nativeEngine) MidiOutput(h Handle) ([]byte, Status) {
	ptr, st := e.stream(h)
	if !st.OK() {
		return nil, st
	}
	var out *C.int8_t
	var size C.uint32_t
	if C.WildMidi_GetMidiOutput(ptr, &out, &size) != 0 {
		return nil, lastStatus(CodeConvert)
	}
	defer C.free(unsafe.Pointer(out))
	return C.GoBytes(unsafe.Pointer(out), C.int(size)), Status{}
}

func (e *nativeEngine) MasterVolume(volume uint8) Status {
	if C.WildMidi_MasterVolume(C.uint8_t(volume)) != 0 {
		return lastStatus(CodeInvalidArg)
	}
	return Status{}
}

func (e *nativeEngine) SetConversionOption(opt ConversionOption, value uint16) Status {
	if C.WildMidi_SetCvtOption(C.uint16_t(opt), C.uint16_t(value)) != 0 {
		return lastStatus(CodeInvalidArg)
	}
	return Status{}
}
