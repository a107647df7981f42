package protocol

// PipePrefix is the pipe of the unnamed server instance.
const PipePrefix = `\\.\PIPE\Everything IPC`

const hexDigits = "0123456789ABCDEF"

// EscapeInstance percent-escapes the characters that cannot appear in a
// pipe name: '%', ':' and '\'. Hex digits are uppercase.
func EscapeInstance(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch c {
		case '%', ':', '\\':
			out = append(out, '%', hexDigits[c>>4], hexDigits[c&0xf])
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// PipeName returns the full pipe path for an instance. The empty instance
// addresses the unnamed server.
func PipeName(instance string) string {
	if instance == "" {
		return PipePrefix
	}
	return PipePrefix + " (" + EscapeInstance(instance) + ")"
}
