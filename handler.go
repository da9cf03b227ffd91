package flacstream

import (
	"github.com/mewkiz/flacstream/frame"
	"github.com/mewkiz/flacstream/meta"
)

// A Handler receives the metadata blocks, audio frames and errors produced by
// a Decoder. Its methods are invoked synchronously from the decoding
// operations and must not call back into the decoder, except for Abort.
type Handler interface {
	// OnMetadata receives a metadata block selected by the metadata filter.
	OnMetadata(block *meta.Block)
	// OnFrame receives a decoded audio frame. The frame is not retained by the
	// decoder. A non-nil error aborts decoding.
	OnFrame(f *frame.Frame) error
	// OnError receives a recoverable or advisory error.
	OnError(kind ErrorKind, err error)
}

// NopHandler is a Handler which ignores everything.
type NopHandler struct{}

// OnMetadata implements Handler.
func (NopHandler) OnMetadata(*meta.Block) {}

// OnFrame implements Handler.
func (NopHandler) OnFrame(*frame.Frame) error { return nil }

// OnError implements Handler.
func (NopHandler) OnError(ErrorKind, error) {}

// HandlerFuncs adapts functions to the Handler interface. Nil fields are
// no-ops.
type HandlerFuncs struct {
	Metadata func(block *meta.Block)
	Frame    func(f *frame.Frame) error
	Error    func(kind ErrorKind, err error)
}

// OnMetadata implements Handler.
func (h HandlerFuncs) OnMetadata(block *meta.Block) {
	if h.Metadata != nil {
		h.Metadata(block)
	}
}

// OnFrame implements Handler.
func (h HandlerFuncs) OnFrame(f *frame.Frame) error {
	if h.Frame != nil {
		return h.Frame(f)
	}
	return nil
}

// OnError implements Handler.
func (h HandlerFuncs) OnError(kind ErrorKind, err error) {
	if h.Error != nil {
		h.Error(kind, err)
	}
}
