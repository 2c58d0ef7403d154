package guard

import (
	"slices"

	"github.com/SwouitAzia/formshandler/protocol"
)

// DefaultAllowed are the packets a client may send while a form is open
// under the default allow-list filter. They keep the connection healthy
// and have no effect on the world.
var DefaultAllowed = []protocol.ID{
	protocol.IDDisconnect,
	protocol.IDRequestChunkRadius,
	protocol.IDNetworkStackLatency,
	protocol.IDClientCacheStatus,
	protocol.IDClientCacheBlobStatus,
	protocol.IDPacketViolationWarning,
	protocol.IDServerboundDiagnostics,
}

// DefaultDenied are the packets rejected by a deny-list filter built
// without an explicit list.
var DefaultDenied = []protocol.ID{
	protocol.IDInventorySlot,
	protocol.IDInventoryTransaction,
	protocol.IDItemStackRequest,
	protocol.IDCommandRequest,
	protocol.IDText,
}

// Filter decides which packets are acceptable while a form is open. Form
// replies are never subject to it.
type Filter struct {
	deny bool
	ids  map[protocol.ID]struct{}
}

// AllowList permits only ids.
func AllowList(ids ...protocol.ID) *Filter { return newFilter(false, ids) }

// DenyList permits everything except ids.
func DenyList(ids ...protocol.ID) *Filter { return newFilter(true, ids) }

// DefaultFilter is AllowList(DefaultAllowed...).
func DefaultFilter() *Filter { return AllowList(DefaultAllowed...) }

func newFilter(deny bool, ids []protocol.ID) *Filter {
	f := &Filter{deny: deny, ids: make(map[protocol.ID]struct{}, len(ids))}
	for _, id := range ids {
		f.ids[id] = struct{}{}
	}
	return f
}

// Permits reports whether id may be sent while a form is open.
func (f *Filter) Permits(id protocol.ID) bool {
	if id == protocol.IDModalFormResponse {
		return true
	}
	_, listed := f.ids[id]
	return listed != f.deny
}

// IsDenyList reports whether listed packets are the rejected ones.
func (f *Filter) IsDenyList() bool { return f.deny }

// IDs returns the listed packets in ascending order.
func (f *Filter) IDs() []protocol.ID {
	out := make([]protocol.ID, 0, len(f.ids))
	for id := range f.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
