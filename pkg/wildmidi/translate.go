package wildmidi

// Operations used in error values and for picking a translation table.
const (
	opInit     = "init"
	opShutdown = "shutdown"
	opOpen     = "open"
	opClose    = "close"
	opInfo     = "info"
	opRender   = "render"
	opSeek     = "seek"
	opOption   = "option"
	opLyric    = "lyric"
	opExport   = "export"
)

// translate maps an engine Status to an error of the closed taxonomy. The
// same code can mean different things depending on the call: a read or parse
// failure during init means the patch config could not be loaded, during open
// it is an I/O failure or a bad file.
func translate(op string, st Status) error {
	if st.OK() {
		return nil
	}
	kind := kindFor(op, st.Code)
	detail := st.Message
	if detail == "" {
		detail = st.Code.String()
	}
	return &Error{Op: op, Kind: kind, Detail: detail}
}

func kindFor(op string, code Code) error {
	switch code {
	case CodeNotInit:
		return ErrNotInitialized
	case CodeAlreadyInit:
		return ErrAlreadyInitialized
	case CodeInvalidArg:
		switch op {
		case opInit:
			// Config.validate already checked the arguments, so this is a
			// syntax error in the patch config.
			return ErrConfigNotFound
		case opOpen:
			return ErrInvalidFormat
		}
		return ErrInvalidValue
	case CodeStat, CodeLoad, CodeOpen, CodeRead:
		switch op {
		case opInit:
			return ErrConfigNotFound
		case opOpen:
			return ErrIO
		}
		return ErrEngine
	case CodeInvalid, CodeCorrupt, CodeLongFile:
		switch op {
		case opInit:
			return ErrConfigNotFound
		case opOpen, opExport:
			return ErrInvalidFormat
		}
		return ErrEngine
	case CodeNotMIDI, CodeNotHMP, CodeNotHMI, CodeNotMUS, CodeConvert:
		if op == opOpen || op == opExport {
			return ErrInvalidFormat
		}
		return ErrEngine
	case CodeUnsupported:
		if op == opOption {
			return ErrUnsupportedOption
		}
		return ErrEngine
	case CodeMemory, CodeUnknown:
		return ErrEngine
	default:
		return ErrEngine
	}
}
