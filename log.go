package flacstream

import (
	"github.com/coreos/pkg/capnslog"
)

var plog = capnslog.NewPackageLogger("github.com/mewkiz/flacstream", "flacstream")
