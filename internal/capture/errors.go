package capture

import "strings"

// ErrorCategory classifies a pipeline failure for logging purposes. It does
// not change restart behavior: every category triggers the same unbounded
// backoff-and-retry, but operators scanning logs for "is the network down"
// benefit from the distinction.
type ErrorCategory int

const (
	ErrCategoryUnknown ErrorCategory = iota
	ErrCategoryNetwork
	ErrCategoryCodec
	ErrCategoryDevice
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryDevice:
		return "device"
	default:
		return "unknown"
	}
}

// classifyError does best-effort string matching against a GStreamer bus
// error message. go-gst's GError does not expose a structured domain/code
// pair that's stable across plugin versions, so matching on the rendered
// message text is the only portable option.
func classifyError(msg string) ErrorCategory {
	m := strings.ToLower(msg)

	switch {
	case containsAny(m, "timeout", "connection", "unreachable", "could not connect", "resolve", "rtsp", "tcp", "udp"):
		return ErrCategoryNetwork
	case containsAny(m, "codec", "decode", "negotiation", "caps", "not negotiated", "missing plugin", "h264"):
		return ErrCategoryCodec
	case containsAny(m, "device", "v4l2", "no such file", "busy", "permission denied"):
		return ErrCategoryDevice
	default:
		return ErrCategoryUnknown
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
