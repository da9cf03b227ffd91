package flacstream

import (
	"github.com/mewkiz/flacstream/meta"
)

// Configuration setters are only valid before Init; afterwards they return
// ErrAlreadyInitialized and leave the configuration unchanged.

// SetMetadataRespond delivers metadata blocks of the given type to
// Handler.OnMetadata.
func (dec *Decoder) SetMetadataRespond(t meta.Type) error {
	return dec.configure(func() { dec.filter.Respond(t) })
}

// SetMetadataIgnore stops metadata blocks of the given type from being
// delivered. Blocks which are not delivered are skipped without being parsed,
// except for StreamInfo and SeekTable which the decoder uses itself.
func (dec *Decoder) SetMetadataIgnore(t meta.Type) error {
	return dec.configure(func() { dec.filter.Ignore(t) })
}

// SetMetadataRespondApplication delivers application blocks with the given
// ID.
func (dec *Decoder) SetMetadataRespondApplication(id meta.ID) error {
	return dec.configure(func() { dec.filter.RespondApplication(id) })
}

// SetMetadataIgnoreApplication stops application blocks with the given ID
// from being delivered.
func (dec *Decoder) SetMetadataIgnoreApplication(id meta.ID) error {
	return dec.configure(func() { dec.filter.IgnoreApplication(id) })
}

// SetMetadataRespondAll delivers metadata blocks of every type.
func (dec *Decoder) SetMetadataRespondAll() error {
	return dec.configure(dec.filter.RespondAll)
}

// SetMetadataIgnoreAll delivers no metadata blocks.
func (dec *Decoder) SetMetadataIgnoreAll() error {
	return dec.configure(dec.filter.IgnoreAll)
}

// SetMD5Checking enables or disables verification of the MD5 signature of
// StreamInfo by Finish. It is enabled by default.
func (dec *Decoder) SetMD5Checking(enable bool) error {
	return dec.configure(func() { dec.md5Checking = enable })
}

// SetSingleFrame enables single-frame mode, in which the stream ends after the
// first delivered frame. Metadata is read as usual before it.
func (dec *Decoder) SetSingleFrame(enable bool) error {
	return dec.configure(func() { dec.singleFrame = enable })
}

func (dec *Decoder) configure(f func()) error {
	if dec.State() != StateUninitialized {
		return ErrAlreadyInitialized
	}
	f()
	return nil
}
