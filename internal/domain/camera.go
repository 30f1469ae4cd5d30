package domain

// CameraKind identifies the capture source behind a camera.
type CameraKind string

const (
	CameraRTSP CameraKind = "rtsp"
	CameraUSB  CameraKind = "usb"
	CameraTest CameraKind = "test"
)

// Encoder selects the GStreamer encoder element used for cameras that need
// software or hardware H.264 encoding (USB and test sources; RTSP sources are
// assumed to already deliver H.264 and are depayloaded, not encoded).
type Encoder string

const (
	EncoderSoftware Encoder = "software"
	EncoderVAAPI    Encoder = "vaapi"
)

// CameraDescriptor is the immutable, per-camera configuration produced at
// startup. It never changes for the lifetime of the process.
type CameraDescriptor struct {
	ID             string
	Name           string
	Kind           CameraKind
	SourceLocator  string
	Width          int
	Height         int
	FPS            int
	BitrateKbps    int
	Encoder        Encoder
}

// EncodedFrame is a single H.264 access unit in Annex-B byte-stream form.
// Immutable once produced. Subscribers receive it by reference and must not
// retain the Payload slice beyond the callback invocation.
type EncodedFrame struct {
	Payload    []byte
	PTS        int64 // nanoseconds, from the capture clock
	IsKeyframe bool
	TraceID    string
}
