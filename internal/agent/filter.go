package agent

import "strings"

const (
	openMarker  = "<tool_call>"
	closeMarker = "</tool_call>"
)

// contentFilter passes streamed model text through to emit while withholding
// <tool_call> blocks. Text that might be the start of a marker is held back
// until the next chunk settles it, so users never see directive fragments but
// everything else streams through unchanged and in order.
type contentFilter struct {
	emit    func(string)
	pending string
	inBlock bool
}

func newContentFilter(emit func(string)) *contentFilter {
	return &contentFilter{emit: emit}
}

func (f *contentFilter) Write(chunk string) {
	f.pending += chunk
	for {
		if f.inBlock {
			i := strings.Index(f.pending, closeMarker)
			if i < 0 {
				return
			}
			f.pending = f.pending[i+len(closeMarker):]
			f.inBlock = false
			continue
		}

		if i := strings.Index(f.pending, openMarker); i >= 0 {
			f.emitText(f.pending[:i])
			f.pending = f.pending[i+len(openMarker):]
			f.inBlock = true
			continue
		}

		hold := markerOverlap(f.pending)
		f.emitText(f.pending[:len(f.pending)-hold])
		f.pending = f.pending[len(f.pending)-hold:]
		return
	}
}

// Flush releases held text. An unterminated block is dropped; the model was
// cut off mid-directive and the fragment is not an answer.
func (f *contentFilter) Flush() {
	if !f.inBlock {
		f.emitText(f.pending)
	}
	f.pending = ""
	f.inBlock = false
}

func (f *contentFilter) emitText(s string) {
	if s != "" && f.emit != nil {
		f.emit(s)
	}
}

// markerOverlap returns the length of the longest suffix of s that is a
// proper prefix of the open marker.
func markerOverlap(s string) int {
	max := len(openMarker) - 1
	if len(s) < max {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		if strings.HasPrefix(openMarker, s[len(s)-k:]) {
			return k
		}
	}
	return 0
}
