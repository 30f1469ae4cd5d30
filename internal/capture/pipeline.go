package capture

import (
	"fmt"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"camerafeed/internal/domain"
)

// pipelineElements holds the constructed elements a CaptureSource needs to
// hold onto past construction time: the pipeline itself for state changes
// and bus polling, and the appsink for callback wiring.
type pipelineElements struct {
	pipeline *gst.Pipeline
	appsink  *app.Sink
}

// buildPipeline constructs, but does not start, the GStreamer pipeline for
// desc. The caller is responsible for SetState(gst.StatePlaying) and for
// eventually SetState(gst.StateNull).
func buildPipeline(desc domain.CameraDescriptor) (*pipelineElements, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("capture: new pipeline: %w", err)
	}

	switch desc.Kind {
	case domain.CameraRTSP:
		return buildRTSPPipeline(pipeline, desc)
	case domain.CameraUSB:
		return buildEncodedPipeline(pipeline, desc, usbSource)
	case domain.CameraTest:
		return buildEncodedPipeline(pipeline, desc, testSource)
	default:
		return nil, fmt.Errorf("capture: unknown camera kind %q", desc.Kind)
	}
}

func buildRTSPPipeline(pipeline *gst.Pipeline, desc domain.CameraDescriptor) (*pipelineElements, error) {
	rtspsrc, err := gst.NewElement("rtspsrc")
	if err != nil {
		return nil, fmt.Errorf("capture: new rtspsrc: %w", err)
	}
	rtspsrc.SetProperty("location", desc.SourceLocator)
	rtspsrc.SetProperty("latency", uint(0))
	rtspsrc.SetProperty("protocols", 4) // tcp only, matches the lower-latency path used elsewhere in the pack

	depay, err := gst.NewElement("rtph264depay")
	if err != nil {
		return nil, fmt.Errorf("capture: new rtph264depay: %w", err)
	}

	parse, err := gst.NewElement("h264parse")
	if err != nil {
		return nil, fmt.Errorf("capture: new h264parse: %w", err)
	}
	parse.SetProperty("config-interval", -1)

	caps, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("capture: new capsfilter: %w", err)
	}
	caps.SetProperty("caps", gst.NewCapsFromString("video/x-h264,stream-format=byte-stream,alignment=au"))

	sink, err := newAppSink()
	if err != nil {
		return nil, err
	}

	if err := pipeline.AddMany(rtspsrc, depay, parse, caps, sink.Element); err != nil {
		return nil, fmt.Errorf("capture: add elements: %w", err)
	}
	if err := gst.ElementLinkMany(depay, parse, caps, sink.Element); err != nil {
		return nil, fmt.Errorf("capture: link elements: %w", err)
	}

	// rtspsrc exposes its source pad only once the SDP is negotiated.
	rtspsrc.Connect("pad-added", func(srcElement *gst.Element, srcPad *gst.Pad) {
		linkDynamicPad(srcPad, depay)
	})

	return &pipelineElements{pipeline: pipeline, appsink: sink}, nil
}

type rawSourceBuilder func(desc domain.CameraDescriptor) (*gst.Element, error)

func usbSource(desc domain.CameraDescriptor) (*gst.Element, error) {
	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("capture: new v4l2src: %w", err)
	}
	src.SetProperty("device", desc.SourceLocator)
	return src, nil
}

func testSource(desc domain.CameraDescriptor) (*gst.Element, error) {
	src, err := gst.NewElement("videotestsrc")
	if err != nil {
		return nil, fmt.Errorf("capture: new videotestsrc: %w", err)
	}
	src.SetProperty("is-live", true)
	src.SetProperty("pattern", "smpte")
	return src, nil
}

// buildEncodedPipeline assembles the shared raw-capture → encode → appsink
// tail used by both the USB and TEST camera kinds; they differ in the
// leading source element, and the TEST kind also adds a clockoverlay after
// videoconvert.
func buildEncodedPipeline(pipeline *gst.Pipeline, desc domain.CameraDescriptor, newSource rawSourceBuilder) (*pipelineElements, error) {
	src, err := newSource(desc)
	if err != nil {
		return nil, err
	}

	rawCaps, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("capture: new capsfilter: %w", err)
	}
	rawCaps.SetProperty("caps", gst.NewCapsFromString(fmt.Sprintf(
		"video/x-raw,width=%d,height=%d,framerate=%d/1", desc.Width, desc.Height, desc.FPS)))

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("capture: new videoconvert: %w", err)
	}

	elements := []*gst.Element{src, rawCaps}

	if desc.Kind == domain.CameraTest {
		overlay, err := gst.NewElement("clockoverlay")
		if err != nil {
			return nil, fmt.Errorf("capture: new clockoverlay: %w", err)
		}
		elements = append(elements, convert, overlay)
	} else {
		elements = append(elements, convert)
	}

	encoder, err := newEncoder(desc)
	if err != nil {
		return nil, err
	}

	encodedCaps, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("capture: new capsfilter: %w", err)
	}
	encodedCaps.SetProperty("caps", gst.NewCapsFromString(
		"video/x-h264,stream-format=byte-stream,alignment=au,profile=baseline"))

	parse, err := gst.NewElement("h264parse")
	if err != nil {
		return nil, fmt.Errorf("capture: new h264parse: %w", err)
	}
	parse.SetProperty("config-interval", -1)

	sink, err := newAppSink()
	if err != nil {
		return nil, err
	}

	elements = append(elements, encoder, encodedCaps, parse)

	allElements := make([]*gst.Element, 0, len(elements)+1)
	allElements = append(allElements, elements...)
	allElements = append(allElements, sink.Element)

	if err := pipeline.AddMany(allElements...); err != nil {
		return nil, fmt.Errorf("capture: add elements: %w", err)
	}
	if err := gst.ElementLinkMany(allElements...); err != nil {
		return nil, fmt.Errorf("capture: link elements: %w", err)
	}

	return &pipelineElements{pipeline: pipeline, appsink: sink}, nil
}

func newEncoder(desc domain.CameraDescriptor) (*gst.Element, error) {
	if desc.Encoder == domain.EncoderVAAPI {
		enc, err := gst.NewElement("vaapih264enc")
		if err == nil {
			return enc, nil
		}
		// fall through to software on a build without the VAAPI plugin
	}

	enc, err := gst.NewElement("x264enc")
	if err != nil {
		return nil, fmt.Errorf("capture: new x264enc: %w", err)
	}
	enc.SetProperty("tune", "zerolatency")
	enc.SetProperty("bitrate", uint(desc.BitrateKbps))
	enc.SetProperty("speed-preset", "ultrafast")
	keyIntMax := desc.FPS * 2
	if keyIntMax <= 0 {
		keyIntMax = 60
	}
	enc.SetProperty("key-int-max", uint(keyIntMax))
	enc.SetProperty("bframes", uint(0))
	return enc, nil
}

func newAppSink() (*app.Sink, error) {
	sink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("capture: new appsink: %w", err)
	}
	sink.SetProperty("max-buffers", uint(2))
	sink.SetProperty("drop", true)
	sink.SetProperty("sync", false)
	return sink, nil
}

func linkDynamicPad(srcPad *gst.Pad, sinkElement *gst.Element) {
	sinkPad := sinkElement.GetStaticPad("sink")
	if sinkPad == nil {
		return
	}
	if sinkPad.IsLinked() {
		return
	}
	srcPad.Link(sinkPad)
}

// teardownPipeline sets the pipeline to NULL. It does not wait for the
// state change to complete and applies no timeout of its own.
func teardownPipeline(p *pipelineElements) {
	if p == nil || p.pipeline == nil {
		return
	}
	p.pipeline.SetState(gst.StateNull)
}
