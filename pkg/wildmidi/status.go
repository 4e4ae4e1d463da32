package wildmidi

import (
	"fmt"
	"strings"
)

// Code is a native status code. The values follow the WM_ERR_* table of
// libWildMidi, with CodeUnsupported and CodeUnknown added for engines that
// cannot perform a call at all.
type Code int

const (
	CodeOK Code = iota
	CodeMemory
	CodeStat
	CodeLoad
	CodeOpen
	CodeRead
	CodeInvalid
	CodeCorrupt
	CodeNotInit
	CodeInvalidArg
	CodeAlreadyInit
	CodeNotMIDI
	CodeLongFile
	CodeNotHMP
	CodeNotHMI
	CodeConvert
	CodeNotMUS
	CodeUnsupported
	CodeUnknown
)

var codeNames = [...]string{
	CodeOK:          "ok",
	CodeMemory:      "out of memory",
	CodeStat:        "unable to stat",
	CodeLoad:        "unable to load",
	CodeOpen:        "unable to open",
	CodeRead:        "unable to read",
	CodeInvalid:     "invalid or unsupported file format",
	CodeCorrupt:     "file corrupt",
	CodeNotInit:     "library not initialized",
	CodeInvalidArg:  "invalid argument",
	CodeAlreadyInit: "library already initialized",
	CodeNotMIDI:     "not a midi file",
	CodeLongFile:    "file too long",
	CodeNotHMP:      "not an hmp file",
	CodeNotHMI:      "not an hmi file",
	CodeConvert:     "unable to convert",
	CodeNotMUS:      "not a mus file",
	CodeUnsupported: "not supported by engine",
	CodeUnknown:     "unknown error",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Status is the outcome of one engine call. The zero value is success.
type Status struct {
	Code    Code
	Message string
}

// OK reports whether the call succeeded.
func (s Status) OK() bool {
	return s.Code == CodeOK
}

// Fail builds a failed Status.
func Fail(code Code, message string) Status {
	return Status{Code: code, Message: message}
}

// libWildMidi only reports failures as a formatted string, so the engine
// recovers the code from the message text.
var messageCodes = []struct {
	text string
	code Code
}{
	{"unable to obtain memory", CodeMemory},
	{"unable to stat", CodeStat},
	{"unable to load", CodeLoad},
	{"unable to open", CodeOpen},
	{"unable to read", CodeRead},
	{"invalid or unsuported file format", CodeInvalid},
	{"invalid or unsupported file format", CodeInvalid},
	{"file corrupt", CodeCorrupt},
	{"library not initialized", CodeNotInit},
	{"invalid argument", CodeInvalidArg},
	{"library already initialized", CodeAlreadyInit},
	{"not a midi file", CodeNotMIDI},
	{"refusing to load unusually long file", CodeLongFile},
	{"not an hmp file", CodeNotHMP},
	{"not an hmi file", CodeNotHMI},
	{"unable to convert", CodeConvert},
	{"not a mus file", CodeNotMUS},
}

// CodeFromMessage classifies a libWildMidi error string.
func CodeFromMessage(msg string) Code {
	lower := strings.ToLower(msg)
	for _, mc := range messageCodes {
		if strings.Contains(lower, mc.text) {
			return mc.code
		}
	}
	return CodeUnknown
}
