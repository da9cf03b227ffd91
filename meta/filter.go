package meta

// A Filter selects which metadata blocks are delivered to the caller. Blocks
// are selected per type and, for application blocks, per application ID.
//
// Application IDs follow the respond/ignore semantics of the reference decoder:
// while application blocks are responded to, IDs on the ignore list are
// filtered out; while they are ignored, only IDs on the respond list are
// delivered.
type Filter struct {
	respond [128]bool
	// Application IDs explicitly responded to or ignored; exceptions to the
	// per-type setting of TypeApplication.
	appIDs map[ID]bool
}

// NewFilter returns a filter which responds to every block type except
// padding.
func NewFilter() *Filter {
	f := &Filter{}
	f.RespondAll()
	f.Ignore(TypePadding)
	return f
}

// Respond delivers blocks of the given type.
func (f *Filter) Respond(t Type) {
	if t&0x7F != t {
		return
	}
	f.respond[t] = true
	if t == TypeApplication {
		f.appIDs = nil
	}
}

// Ignore filters out blocks of the given type.
func (f *Filter) Ignore(t Type) {
	if t&0x7F != t {
		return
	}
	f.respond[t] = false
	if t == TypeApplication {
		f.appIDs = nil
	}
}

// RespondApplication delivers application blocks with the given ID.
func (f *Filter) RespondApplication(id ID) {
	if f.respond[TypeApplication] {
		// Already responded to unless on the ignore list.
		delete(f.appIDs, id)
		return
	}
	f.setApp(id)
}

// IgnoreApplication filters out application blocks with the given ID.
func (f *Filter) IgnoreApplication(id ID) {
	if !f.respond[TypeApplication] {
		delete(f.appIDs, id)
		return
	}
	f.setApp(id)
}

func (f *Filter) setApp(id ID) {
	if f.appIDs == nil {
		f.appIDs = make(map[ID]bool)
	}
	f.appIDs[id] = true
}

// RespondAll delivers blocks of every type.
func (f *Filter) RespondAll() {
	for i := range f.respond {
		f.respond[i] = true
	}
	f.appIDs = nil
}

// IgnoreAll filters out blocks of every type.
func (f *Filter) IgnoreAll() {
	for i := range f.respond {
		f.respond[i] = false
	}
	f.appIDs = nil
}

// Wants reports whether a block of the given type is delivered. For
// application blocks the ID is unknown until the body is read; use
// WantsApplication once it is.
func (f *Filter) Wants(t Type) bool {
	if t == TypeApplication {
		return f.respond[t] || len(f.appIDs) > 0
	}
	return f.respond[t&0x7F]
}

// WantsApplication reports whether an application block with the given ID is
// delivered.
func (f *Filter) WantsApplication(id ID) bool {
	// The ID list holds exceptions to the per-type setting.
	return f.respond[TypeApplication] != f.appIDs[id]
}
