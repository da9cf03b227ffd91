package meta

import (
	"fmt"
)

// registeredApplications maps from a registered application ID to a
// description.
//
// ref: https://www.xiph.org/flac/id.html
var registeredApplications = map[ID]string{
	"ATCH": "FlacFile",
	"BSOL": "beSolo",
	"BUGS": "Bugs Player",
	"Cues": "GoldWave cue points (specification)",
	"Fica": "CUE Splitter",
	"Ftol": "flac-tools",
	"MOTB": "MOTB MetaCzar",
	"MPSE": "MP3 Stream Editor",
	"MuML": "MusicML: Music Metadata Language",
	"RIFF": "Sound Devices RIFF chunk storage",
	"SFFL": "Sound Font FLAC",
	"SONY": "Sony Creative Software",
	"SQEZ": "flacsqueeze",
	"TtWv": "TwistedWave",
	"UITS": "UITS Embedding tools",
	"aiff": "FLAC AIFF chunk storage",
	"imag": "flac-image application for storing arbitrary files in APPLICATION metadata blocks",
	"peem": "Parseable Embedded Extensible Metadata (specification)",
	"qfst": "QFLAC Studio",
	"riff": "FLAC RIFF chunk storage",
	"tune": "TagTuner",
	"w64 ": "FLAC Wave64 chunk storage",
	"xbat": "XBAT",
	"xmcd": "xmcd",
}

// An ID is a 4 byte identifier of a registered application.
type ID string

func (id ID) String() string {
	s, ok := registeredApplications[id]
	if ok {
		return s
	}
	return fmt.Sprintf("<unregistered ID: %q>", string(id))
}

// IsRegistered reports whether id is a registered application ID.
func (id ID) IsRegistered() bool {
	_, ok := registeredApplications[id]
	return ok
}

// Application contains third party application specific data.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_application
type Application struct {
	// Registered application ID.
	ID ID
	// Application data.
	Data []byte
}

// AppIDSize is the size in bytes of an application ID.
const AppIDSize = 4

// parseApplication reads and parses the body of an Application metadata block.
// Unregistered application IDs are accepted.
//
// Application format (pseudo code):
//
//	type METADATA_BLOCK_APPLICATION struct {
//	   ID   uint32
//	   Data [header.Length-4]byte
//	}
func (block *Block) parseApplication() error {
	// 32 bits: ID.
	buf, err := block.readBytes(AppIDSize)
	if err != nil {
		return err
	}
	app := &Application{ID: ID(buf)}

	// Check if the Application block only contains an ID.
	if block.lr.N == 0 {
		block.Body = app
		return nil
	}

	// (block length)-4 bytes: Data.
	app.Data, err = block.readBytes(block.lr.N)
	if err != nil {
		return err
	}
	block.Body = app
	return nil
}
