package app

import (
	"time"

	"github.com/specialistvlad/chatgraph/internal/registry"
	"github.com/specialistvlad/chatgraph/modules/demo"
)

// coreModules is the list of flows compiled into the chatgraph binary.
var coreModules = []registry.Module{
	&demo.Module{LookupDelay: time.Second},
}
